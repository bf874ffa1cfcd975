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

func newRuleMocks() (*mocksdb.DatabaseHelper, *mocksdb.CollectionHelper, *mocksdb.SingleResultHelper) {
	db := &mocksdb.DatabaseHelper{}
	conn := &mocksdb.CollectionHelper{}
	singleResultHelper := &mocksdb.SingleResultHelper{}
	db.On("Collection", "rules").Return(conn)
	return db, conn, singleResultHelper
}

func TestRule_RuleByIDHandlerBadHex(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/rules/1234", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"rule_id": "1234"})

	db, _, _ := newRuleMocks()

	c := handlers.Rule{DB: databases.NewRuleDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.RuleByIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	expected := models.ErrorMessageResponse{Response: models.MessageError{Message: "failed to get objectID from Hex", Error: "the provided hex string is not a valid ObjectID"}}
	b, _ := json.Marshal(expected)
	assert.Equal(t, string(b), rr.Body.String())
}

func TestRule_RulesHandlerSearchFilter(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/rules?search=parking&category=traffic", nil)
	if err != nil {
		t.Fatal(err)
	}

	db, conn, _ := newRuleMocks()

	cursor := &mocksdb.CursorHelper{}
	cursor.On("Decode", mock.Anything).Return(nil)

	var findFilter bson.M
	conn.On("Find", mock.Anything, mock.Anything, mock.Anything).
		Return(cursor, nil).
		Run(func(args mock.Arguments) {
			findFilter = args.Get(1).(bson.M)
		})

	c := handlers.Rule{DB: databases.NewRuleDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.RulesHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "traffic", findFilter["category"])
	assert.Equal(t, bson.M{"$regex": primitive.Regex{Pattern: "parking", Options: "i"}}, findFilter["title"])
}

func TestRule_CreateRuleHandlerSuccess(t *testing.T) {
	body := `{"title":"No overnight parking","description":"No parking on main street between 2am and 5am","category":"traffic","penalty":"50 credit fine"}`
	req := adminRequest(t, "POST", "/api/v1/admin/rules", body, "admin1")

	db, conn, _ := newRuleMocks()

	insertResult := &mocksdb.InsertOneResultHelper{}
	conn.On("InsertOne", mock.Anything, mock.Anything).Return(insertResult, nil)

	c := handlers.Rule{DB: databases.NewRuleDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.CreateRuleHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var created models.Rule
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "No overnight parking", created.Title)
	assert.Equal(t, "admin1", created.CreatedBy)
}

func TestRule_UpdateRuleHandlerIgnoresEmptyFields(t *testing.T) {
	rID := primitive.NewObjectID()
	req := adminRequest(t, "PUT", "/api/v1/admin/rules/"+rID.Hex(), `{"penalty":"100 credit fine"}`, "admin1")
	req = mux.SetURLVars(req, map[string]string{"rule_id": rID.Hex()})

	db, conn, singleResultHelper := newRuleMocks()

	var ruleUpdate bson.M
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			ruleUpdate = args.Get(2).(bson.M)
		})

	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Rule)
		(*arg).ID = rID
		(*arg).Penalty = "100 credit fine"
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)

	c := handlers.Rule{DB: databases.NewRuleDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.UpdateRuleHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	set := ruleUpdate["$set"].(bson.M)
	assert.Equal(t, "100 credit fine", set["penalty"])
	_, hasTitle := set["title"]
	assert.False(t, hasTitle)
}

func TestRule_DeleteRuleHandlerNotFound(t *testing.T) {
	rID := primitive.NewObjectID()
	req := adminRequest(t, "DELETE", "/api/v1/admin/rules/"+rID.Hex(), "", "admin1")
	req = mux.SetURLVars(req, map[string]string{"rule_id": rID.Hex()})

	db, conn, _ := newRuleMocks()

	conn.On("DeleteOne", mock.Anything, mock.Anything).Return(int64(0), nil)

	c := handlers.Rule{DB: databases.NewRuleDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.DeleteRuleHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
