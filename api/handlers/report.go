package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/societymgmt/society-api/api"
	"github.com/societymgmt/society-api/config"
	"github.com/societymgmt/society-api/databases"
	"github.com/societymgmt/society-api/models"
)

// Report exported for testing purposes
type Report struct {
	DB databases.ReportDatabase
}

// ReportStatusUpdateRequest is the admin payload for a status transition.
// AdminNote is recorded alongside the transition; Fine may only accompany
// a resolution of a violation report.
type ReportStatusUpdateRequest struct {
	Status    string `json:"status"`
	AdminNote string `json:"adminNote"`
	Fine      *struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	} `json:"fine"`
}

// CreateReportHandler files a new civic issue report for the caller
func (c Report) CreateReportHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var report models.Report
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	report.Title = strings.TrimSpace(report.Title)
	report.Description = strings.TrimSpace(report.Description)
	if report.Title == "" || report.Description == "" {
		config.ErrorStatus("title and description are required", http.StatusBadRequest, w, fmt.Errorf("empty title or description"))
		return
	}
	if !models.ValidReportType(report.Type) {
		config.ErrorStatus("invalid report type", http.StatusBadRequest, w, fmt.Errorf("unknown report type: %v", report.Type))
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	report.ID = primitive.NewObjectID()
	report.Status = models.ReportStatusPending
	report.SubmittedBy = identity.UserID
	report.Comments = []models.Comment{}
	report.AdminNotes = []models.AdminNote{}
	report.Fine = nil
	report.ResolvedAt = nil
	report.CreatedAt = now
	report.UpdatedAt = now

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	_, err := c.DB.InsertOne(ctx, report)
	if err != nil {
		config.ErrorStatus("failed to create report", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(report)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// ReportsHandler returns the caller's own reports, newest first
func (c Report) ReportsHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	limit64 := getLimit(r)
	page := getPage(Page, r)
	skip64 := int64(page) * limit64

	filter := bson.M{"submittedBy": identity.UserID}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}
	if reportType := r.URL.Query().Get("type"); reportType != "" {
		filter["type"] = reportType
	}
	if category := r.URL.Query().Get("category"); category != "" {
		filter["category"] = category
	}
	if search := r.URL.Query().Get("search"); search != "" {
		filter["$or"] = textSearch(search, "title", "description", "location", "category")
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	opts := options.Find().
		SetLimit(limit64).
		SetSkip(skip64).
		SetSort(bson.M{"_id": -1})

	dbResp, err := c.DB.Find(ctx, filter, opts)
	if err != nil {
		config.ErrorStatus("failed to get reports", http.StatusInternalServerError, w, err)
		return
	}

	if len(dbResp) == 0 {
		dbResp = []models.Report{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ReportByIDHandler returns a report by ID. Only the submitter and
// admin-capable roles may view a report.
func (c Report) ReportByIDHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	reportID := mux.Vars(r)["report_id"]

	zap.S().Debugf("report_id: %v", reportID)

	rID, err := primitive.ObjectIDFromHex(reportID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := c.DB.FindOne(ctx, bson.M{"_id": rID})
	if err != nil {
		config.ErrorStatus("failed to get report by ID", http.StatusNotFound, w, err)
		return
	}

	if dbResp.SubmittedBy != identity.UserID && !identity.AdminCapable() {
		config.ErrorStatus("report belongs to another citizen", http.StatusForbidden, w, fmt.Errorf("user %v is not the submitter", identity.UserID))
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// AddReportCommentHandler appends a comment to a report. The submitter and
// admin-capable roles may comment.
func (c Report) AddReportCommentHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	reportID := mux.Vars(r)["report_id"]

	rID, err := primitive.ObjectIDFromHex(reportID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	body.Text = strings.TrimSpace(body.Text)
	if body.Text == "" {
		config.ErrorStatus("comment text is required", http.StatusBadRequest, w, fmt.Errorf("empty comment text"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := c.DB.FindOne(ctx, bson.M{"_id": rID})
	if err != nil {
		config.ErrorStatus("failed to get report by ID", http.StatusNotFound, w, err)
		return
	}
	if dbResp.SubmittedBy != identity.UserID && !identity.AdminCapable() {
		config.ErrorStatus("report belongs to another citizen", http.StatusForbidden, w, fmt.Errorf("user %v is not the submitter", identity.UserID))
		return
	}

	comment := models.Comment{
		Text:      body.Text,
		Author:    identity.UserID,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
	}

	res, err := c.DB.UpdateOne(ctx,
		bson.M{"_id": rID},
		bson.M{
			"$push": bson.M{"comments": comment},
			"$set":  bson.M{"updatedAt": primitive.NewDateTimeFromTime(time.Now())},
		},
	)
	if err != nil {
		config.ErrorStatus("failed to add comment", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("report not found", http.StatusNotFound, w, fmt.Errorf("no report matched %v", reportID))
		return
	}

	b, err := json.Marshal(comment)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// UpdateReportStatusHandler moves a report through its lifecycle. Resolved
// and rejected are terminal; a guarded update keeps concurrent admin actions
// from reviving a closed report.
func (c Report) UpdateReportStatusHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	reportID := mux.Vars(r)["report_id"]

	rID, err := primitive.ObjectIDFromHex(reportID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var body ReportStatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	if !models.ValidReportStatus(body.Status) {
		config.ErrorStatus("invalid target status", http.StatusBadRequest, w, fmt.Errorf("cannot transition to %q", body.Status))
		return
	}
	note := strings.TrimSpace(body.AdminNote)
	if note == "" {
		config.ErrorStatus("an admin note is required", http.StatusBadRequest, w, fmt.Errorf("empty admin note on %q transition", body.Status))
		return
	}
	if body.Fine != nil && body.Status != models.ReportStatusResolved {
		config.ErrorStatus("fine may only accompany a resolution", http.StatusBadRequest, w, fmt.Errorf("fine attached to %q transition", body.Status))
		return
	}
	if body.Fine != nil && body.Fine.Amount <= 0 {
		config.ErrorStatus("fine amount must be positive", http.StatusBadRequest, w, fmt.Errorf("fine amount %v", body.Fine.Amount))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	now := primitive.NewDateTimeFromTime(time.Now())
	set := bson.M{
		"status":    body.Status,
		"updatedAt": now,
	}
	if models.IsTerminalReportStatus(body.Status) {
		set["resolvedAt"] = now
	}
	if body.Fine != nil {
		currency := body.Fine.Currency
		if currency == "" {
			currency = "usd"
		}
		set["fine"] = models.Fine{
			Amount:   body.Fine.Amount,
			Currency: currency,
			Status:   models.FineStatusUnpaid,
		}
	}
	update := bson.M{
		"$set": set,
		"$push": bson.M{"adminNotes": models.AdminNote{
			Text:    note,
			AddedBy: identity.UserID,
			AddedAt: now,
		}},
	}

	// The filter re-asserts that the report is still open, so two admins
	// racing on the same report cannot both close it. Going back to pending
	// is only defined from in-progress.
	filter := bson.M{
		"_id":    rID,
		"status": bson.M{"$nin": []string{models.ReportStatusResolved, models.ReportStatusRejected}},
	}
	if body.Status == models.ReportStatusPending {
		filter["status"] = models.ReportStatusInProgress
	}

	res, err := c.DB.UpdateOne(ctx, filter, update)
	if err != nil {
		config.ErrorStatus("failed to update report status", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		dbResp, ferr := c.DB.FindOne(ctx, bson.M{"_id": rID})
		if ferr != nil {
			config.ErrorStatus("report not found", http.StatusNotFound, w, ferr)
			return
		}
		if models.IsTerminalReportStatus(dbResp.Status) {
			config.ErrorStatus("report status is final", http.StatusBadRequest, w, fmt.Errorf("cannot transition from %q to %q", dbResp.Status, body.Status))
			return
		}
		config.ErrorStatus("invalid status transition", http.StatusBadRequest, w, fmt.Errorf("cannot transition from %q to %q", dbResp.Status, body.Status))
		return
	}

	if body.Fine != nil {
		zap.S().Infow("fine issued",
			"reportId", reportID,
			"amount", body.Fine.Amount,
			"issuedBy", identity.UserID,
		)
	}

	dbResp, err := c.DB.FindOne(ctx, bson.M{"_id": rID})
	if err != nil {
		config.ErrorStatus("failed to get report by ID", http.StatusNotFound, w, err)
		return
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// AdminReportsHandler returns all reports for the moderation queue with an
// overall count, fetched concurrently.
func (c Report) AdminReportsHandler(w http.ResponseWriter, r *http.Request) {
	limit64 := getLimit(r)
	page := getPage(Page, r)
	skip64 := int64(page) * limit64

	filter := bson.M{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}
	if reportType := r.URL.Query().Get("type"); reportType != "" {
		filter["type"] = reportType
	}
	if submittedBy := r.URL.Query().Get("submitted_by"); submittedBy != "" {
		filter["submittedBy"] = submittedBy
	}
	if search := r.URL.Query().Get("search"); search != "" {
		filter["$or"] = textSearch(search, "title", "description", "location", "category")
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	opts := options.Find().
		SetLimit(limit64).
		SetSkip(skip64).
		SetSort(bson.M{"_id": -1})

	type findResult struct {
		reports []models.Report
		err     error
	}
	type countResult struct {
		count int64
		err   error
	}
	findCh := make(chan findResult, 1)
	countCh := make(chan countResult, 1)

	go func() {
		reports, err := c.DB.Find(ctx, filter, opts)
		findCh <- findResult{reports: reports, err: err}
	}()
	go func() {
		count, err := c.DB.CountDocuments(ctx, filter)
		countCh <- countResult{count: count, err: err}
	}()

	fr := <-findCh
	if fr.err != nil {
		config.ErrorStatus("failed to get reports", http.StatusInternalServerError, w, fr.err)
		return
	}
	cr := <-countCh
	if cr.err != nil {
		config.ErrorStatus("failed to count reports", http.StatusInternalServerError, w, cr.err)
		return
	}

	if len(fr.reports) == 0 {
		fr.reports = []models.Report{}
	}
	b, err := json.Marshal(map[string]interface{}{
		"reports": fr.reports,
		"total":   cr.count,
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
