package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/societymgmt/society-api/api/handlers"
	"github.com/societymgmt/society-api/databases"
	mocksdb "github.com/societymgmt/society-api/databases/mocks"
	"github.com/societymgmt/society-api/models"
)

func newReportMocks() (*mocksdb.DatabaseHelper, *mocksdb.CollectionHelper, *mocksdb.SingleResultHelper) {
	db := &mocksdb.DatabaseHelper{}
	conn := &mocksdb.CollectionHelper{}
	singleResultHelper := &mocksdb.SingleResultHelper{}
	db.On("Collection", "reports").Return(conn)
	return db, conn, singleResultHelper
}

func TestReport_CreateReportHandlerInvalidType(t *testing.T) {
	body := `{"title":"Noise at night","description":"Construction after midnight","type":"gossip"}`
	req := citizenRequest(t, "POST", "/api/v1/reports", body, "user1")

	db, conn, _ := newReportMocks()

	c := handlers.Report{DB: databases.NewReportDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.CreateReportHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	expected := models.ErrorMessageResponse{Response: models.MessageError{Message: "invalid report type", Error: "unknown report type: gossip"}}
	b, _ := json.Marshal(expected)
	assert.Equal(t, string(b), rr.Body.String())
	conn.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything)
}

func TestReport_CreateReportHandlerSuccess(t *testing.T) {
	body := `{"title":"Noise at night","description":"Construction after midnight","type":"complaint","category":"noise"}`
	req := citizenRequest(t, "POST", "/api/v1/reports", body, "user1")

	db, conn, _ := newReportMocks()

	insertResult := &mocksdb.InsertOneResultHelper{}
	conn.On("InsertOne", mock.Anything, mock.Anything).Return(insertResult, nil)

	c := handlers.Report{DB: databases.NewReportDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.CreateReportHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var created models.Report
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, models.ReportStatusPending, created.Status)
	assert.Equal(t, "user1", created.SubmittedBy)
	assert.Nil(t, created.Fine)
}

func TestReport_ReportByIDHandlerForbidden(t *testing.T) {
	rID := primitive.NewObjectID()
	req := citizenRequest(t, "GET", "/api/v1/reports/"+rID.Hex(), "", "user2")
	req = mux.SetURLVars(req, map[string]string{"report_id": rID.Hex()})

	db, conn, singleResultHelper := newReportMocks()

	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Report)
		(*arg).ID = rID
		(*arg).SubmittedBy = "user1"
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)

	c := handlers.Report{DB: databases.NewReportDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.ReportByIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestReport_ReportByIDHandlerAdminCanView(t *testing.T) {
	rID := primitive.NewObjectID()
	req := adminRequest(t, "GET", "/api/v1/reports/"+rID.Hex(), "", "admin1")
	req = mux.SetURLVars(req, map[string]string{"report_id": rID.Hex()})

	db, conn, singleResultHelper := newReportMocks()

	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Report)
		(*arg).ID = rID
		(*arg).SubmittedBy = "user1"
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)

	c := handlers.Report{DB: databases.NewReportDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.ReportByIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestReport_UpdateReportStatusHandlerTerminal(t *testing.T) {
	rID := primitive.NewObjectID()
	req := adminRequest(t, "PUT", "/api/v1/admin/reports/"+rID.Hex()+"/status", `{"status":"in-progress","adminNote":"taking a look"}`, "admin1")
	req = mux.SetURLVars(req, map[string]string{"report_id": rID.Hex()})

	db, conn, singleResultHelper := newReportMocks()

	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 0, ModifiedCount: 0}, nil)

	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Report)
		(*arg).ID = rID
		(*arg).Status = models.ReportStatusResolved
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)

	c := handlers.Report{DB: databases.NewReportDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.UpdateReportStatusHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "report status is final")
}

func TestReport_UpdateReportStatusHandlerBackToPending(t *testing.T) {
	rID := primitive.NewObjectID()
	req := adminRequest(t, "PUT", "/api/v1/admin/reports/"+rID.Hex()+"/status", `{"status":"pending","adminNote":"wrongly picked up, back to the queue"}`, "admin1")
	req = mux.SetURLVars(req, map[string]string{"report_id": rID.Hex()})

	db, conn, singleResultHelper := newReportMocks()

	var statusFilter bson.M
	var statusUpdate bson.M
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			statusFilter = args.Get(1).(bson.M)
			statusUpdate = args.Get(2).(bson.M)
		})

	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Report)
		(*arg).ID = rID
		(*arg).Status = models.ReportStatusPending
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)

	c := handlers.Report{DB: databases.NewReportDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.UpdateReportStatusHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	// the reversal only matches a report that is currently in progress
	assert.Equal(t, models.ReportStatusInProgress, statusFilter["status"])

	set := statusUpdate["$set"].(bson.M)
	assert.Equal(t, models.ReportStatusPending, set["status"])
	_, hasResolvedAt := set["resolvedAt"]
	assert.False(t, hasResolvedAt)
}

func TestReport_UpdateReportStatusHandlerRejectedSetsResolvedAt(t *testing.T) {
	rID := primitive.NewObjectID()
	req := adminRequest(t, "PUT", "/api/v1/admin/reports/"+rID.Hex()+"/status", `{"status":"rejected","adminNote":"no evidence found"}`, "admin1")
	req = mux.SetURLVars(req, map[string]string{"report_id": rID.Hex()})

	db, conn, singleResultHelper := newReportMocks()

	var statusUpdate bson.M
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			statusUpdate = args.Get(2).(bson.M)
		})

	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Report)
		(*arg).ID = rID
		(*arg).Status = models.ReportStatusRejected
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)

	c := handlers.Report{DB: databases.NewReportDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.UpdateReportStatusHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	// rejection closes the report just like resolution does
	set := statusUpdate["$set"].(bson.M)
	assert.Equal(t, models.ReportStatusRejected, set["status"])
	assert.NotNil(t, set["resolvedAt"])
}

func TestReport_UpdateReportStatusHandlerMissingNote(t *testing.T) {
	rID := primitive.NewObjectID()
	req := adminRequest(t, "PUT", "/api/v1/admin/reports/"+rID.Hex()+"/status", `{"status":"resolved"}`, "admin1")
	req = mux.SetURLVars(req, map[string]string{"report_id": rID.Hex()})

	db, conn, _ := newReportMocks()

	c := handlers.Report{DB: databases.NewReportDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.UpdateReportStatusHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "an admin note is required")
	conn.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestReport_UpdateReportStatusHandlerResolveWithFine(t *testing.T) {
	rID := primitive.NewObjectID()
	body := `{"status":"resolved","adminNote":"confirmed on site","fine":{"amount":5000,"currency":"usd"}}`
	req := adminRequest(t, "PUT", "/api/v1/admin/reports/"+rID.Hex()+"/status", body, "admin1")
	req = mux.SetURLVars(req, map[string]string{"report_id": rID.Hex()})

	db, conn, singleResultHelper := newReportMocks()

	var statusFilter bson.M
	var statusUpdate bson.M
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			statusFilter = args.Get(1).(bson.M)
			statusUpdate = args.Get(2).(bson.M)
		})

	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Report)
		(*arg).ID = rID
		(*arg).Status = models.ReportStatusResolved
		(*arg).Type = models.ReportTypeViolation
		(*arg).Fine = &models.Fine{Amount: 5000, Currency: "usd", Status: models.FineStatusUnpaid}
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)

	c := handlers.Report{DB: databases.NewReportDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.UpdateReportStatusHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	// the filter only matches open reports
	assert.Equal(t, bson.M{"$nin": []string{models.ReportStatusResolved, models.ReportStatusRejected}}, statusFilter["status"])

	set := statusUpdate["$set"].(bson.M)
	assert.Equal(t, models.ReportStatusResolved, set["status"])
	assert.NotNil(t, set["resolvedAt"])
	fine := set["fine"].(models.Fine)
	assert.Equal(t, int64(5000), fine.Amount)
	assert.Equal(t, models.FineStatusUnpaid, fine.Status)

	push := statusUpdate["$push"].(bson.M)
	note := push["adminNotes"].(models.AdminNote)
	assert.Equal(t, "confirmed on site", note.Text)
	assert.Equal(t, "admin1", note.AddedBy)
}

func TestReport_UpdateReportStatusHandlerFineOutsideResolution(t *testing.T) {
	rID := primitive.NewObjectID()
	body := `{"status":"rejected","adminNote":"closing out","fine":{"amount":5000}}`
	req := adminRequest(t, "PUT", "/api/v1/admin/reports/"+rID.Hex()+"/status", body, "admin1")
	req = mux.SetURLVars(req, map[string]string{"report_id": rID.Hex()})

	db, conn, _ := newReportMocks()

	c := handlers.Report{DB: databases.NewReportDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.UpdateReportStatusHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "fine may only accompany a resolution")
	conn.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestReport_ReportsHandlerScopedToCaller(t *testing.T) {
	req := citizenRequest(t, "GET", "/api/v1/reports?status=pending", "", "user1")

	db, conn, _ := newReportMocks()

	cursor := &mocksdb.CursorHelper{}
	cursor.On("Decode", mock.Anything).Return(nil)

	var findFilter bson.M
	conn.On("Find", mock.Anything, mock.Anything, mock.Anything).
		Return(cursor, nil).
		Run(func(args mock.Arguments) {
			findFilter = args.Get(1).(bson.M)
		})

	c := handlers.Report{DB: databases.NewReportDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.ReportsHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "user1", findFilter["submittedBy"])
	assert.Equal(t, "pending", findFilter["status"])
	assert.Equal(t, "[]", rr.Body.String())
}

func TestReport_ReportsHandlerSearchFilter(t *testing.T) {
	req := citizenRequest(t, "GET", "/api/v1/reports?search=noise", "", "user1")

	db, conn, _ := newReportMocks()

	cursor := &mocksdb.CursorHelper{}
	cursor.On("Decode", mock.Anything).Return(nil)

	var findFilter bson.M
	conn.On("Find", mock.Anything, mock.Anything, mock.Anything).
		Return(cursor, nil).
		Run(func(args mock.Arguments) {
			findFilter = args.Get(1).(bson.M)
		})

	c := handlers.Report{DB: databases.NewReportDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.ReportsHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []bson.M{
		{"title": bson.M{"$regex": primitive.Regex{Pattern: "noise", Options: "i"}}},
		{"description": bson.M{"$regex": primitive.Regex{Pattern: "noise", Options: "i"}}},
		{"location": bson.M{"$regex": primitive.Regex{Pattern: "noise", Options: "i"}}},
		{"category": bson.M{"$regex": primitive.Regex{Pattern: "noise", Options: "i"}}},
	}, findFilter["$or"])
}

func TestReport_AdminReportsHandlerReturnsTotal(t *testing.T) {
	req := adminRequest(t, "GET", "/api/v1/admin/reports", "", "admin1")

	db, conn, _ := newReportMocks()

	cursor := &mocksdb.CursorHelper{}
	cursor.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.Report)
		*arg = []models.Report{{Title: "Noise at night", Status: models.ReportStatusPending}}
	})
	conn.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(cursor, nil)
	conn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(42), nil)

	c := handlers.Report{DB: databases.NewReportDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.AdminReportsHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Reports []models.Report `json:"reports"`
		Total   int64           `json:"total"`
	}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.Total)
	assert.Len(t, resp.Reports, 1)
}
