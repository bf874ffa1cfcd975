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

func newIdeaMocks() (*mocksdb.DatabaseHelper, *mocksdb.CollectionHelper, *mocksdb.SingleResultHelper) {
	db := &mocksdb.DatabaseHelper{}
	conn := &mocksdb.CollectionHelper{}
	singleResultHelper := &mocksdb.SingleResultHelper{}
	db.On("Collection", "ideas").Return(conn)
	return db, conn, singleResultHelper
}

func TestIdea_UpvoteIdeaHandlerAddsVote(t *testing.T) {
	iID := primitive.NewObjectID()
	req := citizenRequest(t, "POST", "/api/v1/ideas/"+iID.Hex()+"/upvote", "", "user1")
	req = mux.SetURLVars(req, map[string]string{"idea_id": iID.Hex()})

	db, conn, singleResultHelper := newIdeaMocks()

	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Idea)
		(*arg).ID = iID
		(*arg).Upvotes = []string{"user2"}
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)

	var voteUpdate bson.M
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			voteUpdate = args.Get(2).(bson.M)
		})

	i := handlers.Idea{DB: databases.NewIdeaDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.UpvoteIdeaHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, bson.M{"upvotes": "user1"}, voteUpdate["$addToSet"])

	var resp map[string]bool
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp["upvoted"])
}

func TestIdea_UpvoteIdeaHandlerTakesVoteBack(t *testing.T) {
	iID := primitive.NewObjectID()
	req := citizenRequest(t, "POST", "/api/v1/ideas/"+iID.Hex()+"/upvote", "", "user1")
	req = mux.SetURLVars(req, map[string]string{"idea_id": iID.Hex()})

	db, conn, singleResultHelper := newIdeaMocks()

	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Idea)
		(*arg).ID = iID
		(*arg).Upvotes = []string{"user1", "user2"}
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)

	var voteUpdate bson.M
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			voteUpdate = args.Get(2).(bson.M)
		})

	i := handlers.Idea{DB: databases.NewIdeaDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.UpvoteIdeaHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, bson.M{"upvotes": "user1"}, voteUpdate["$pull"])

	var resp map[string]bool
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp["upvoted"])
}

func TestIdea_IdeasHandlerSearchFilter(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/ideas?search=garden", nil)
	if err != nil {
		t.Fatal(err)
	}

	db, conn, _ := newIdeaMocks()

	cursor := &mocksdb.CursorHelper{}
	cursor.On("Decode", mock.Anything).Return(nil)

	var findFilter bson.M
	conn.On("Find", mock.Anything, mock.Anything, mock.Anything).
		Return(cursor, nil).
		Run(func(args mock.Arguments) {
			findFilter = args.Get(1).(bson.M)
		})

	i := handlers.Idea{DB: databases.NewIdeaDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.IdeasHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []bson.M{
		{"title": bson.M{"$regex": primitive.Regex{Pattern: "garden", Options: "i"}}},
		{"description": bson.M{"$regex": primitive.Regex{Pattern: "garden", Options: "i"}}},
		{"category": bson.M{"$regex": primitive.Regex{Pattern: "garden", Options: "i"}}},
	}, findFilter["$or"])
}

func TestIdea_CreateIdeaHandlerMissingTitle(t *testing.T) {
	req := citizenRequest(t, "POST", "/api/v1/ideas", `{"description":"a community garden"}`, "user1")

	db, conn, _ := newIdeaMocks()

	i := handlers.Idea{DB: databases.NewIdeaDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.CreateIdeaHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	conn.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything)
}

func TestIdea_AddIdeaCommentHandlerSuccess(t *testing.T) {
	iID := primitive.NewObjectID()
	req := citizenRequest(t, "POST", "/api/v1/ideas/"+iID.Hex()+"/comments", `{"text":"love this"}`, "user1")
	req = mux.SetURLVars(req, map[string]string{"idea_id": iID.Hex()})

	db, conn, _ := newIdeaMocks()

	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	i := handlers.Idea{DB: databases.NewIdeaDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.AddIdeaCommentHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var comment models.Comment
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &comment))
	assert.Equal(t, "love this", comment.Text)
	assert.Equal(t, "user1", comment.Author)
}

func TestIdea_DeleteIdeaHandlerForbidden(t *testing.T) {
	iID := primitive.NewObjectID()
	req := citizenRequest(t, "DELETE", "/api/v1/ideas/"+iID.Hex(), "", "user2")
	req = mux.SetURLVars(req, map[string]string{"idea_id": iID.Hex()})

	db, conn, singleResultHelper := newIdeaMocks()

	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Idea)
		(*arg).ID = iID
		(*arg).CreatedBy = "user1"
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)

	i := handlers.Idea{DB: databases.NewIdeaDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.DeleteIdeaHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	conn.AssertNotCalled(t, "DeleteOne", mock.Anything, mock.Anything)
}
