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

// Idea exported for testing purposes
type Idea struct {
	DB databases.IdeaDatabase
}

// CreateIdeaHandler creates a community improvement idea for the caller
func (i Idea) CreateIdeaHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var idea models.Idea
	if err := json.NewDecoder(r.Body).Decode(&idea); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	idea.Title = strings.TrimSpace(idea.Title)
	idea.Description = strings.TrimSpace(idea.Description)
	if idea.Title == "" || idea.Description == "" {
		config.ErrorStatus("title and description are required", http.StatusBadRequest, w, fmt.Errorf("empty title or description"))
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	idea.ID = primitive.NewObjectID()
	idea.CreatedBy = identity.UserID
	idea.Upvotes = []string{}
	idea.Comments = []models.Comment{}
	idea.CreatedAt = now
	idea.UpdatedAt = now

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	_, err := i.DB.InsertOne(ctx, idea)
	if err != nil {
		config.ErrorStatus("failed to create idea", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(idea)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// IdeasHandler returns all ideas, newest first
func (i Idea) IdeasHandler(w http.ResponseWriter, r *http.Request) {
	limit64 := getLimit(r)
	page := getPage(Page, r)
	skip64 := int64(page) * limit64

	filter := bson.M{}
	if category := r.URL.Query().Get("category"); category != "" {
		filter["category"] = category
	}
	if createdBy := r.URL.Query().Get("created_by"); createdBy != "" {
		filter["createdBy"] = createdBy
	}
	if search := r.URL.Query().Get("search"); search != "" {
		filter["$or"] = textSearch(search, "title", "description", "category")
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	opts := options.Find().
		SetLimit(limit64).
		SetSkip(skip64).
		SetSort(bson.M{"_id": -1})

	dbResp, err := i.DB.Find(ctx, filter, opts)
	if err != nil {
		config.ErrorStatus("failed to get ideas", http.StatusInternalServerError, w, err)
		return
	}

	if len(dbResp) == 0 {
		dbResp = []models.Idea{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// IdeaByIDHandler returns an idea by ID
func (i Idea) IdeaByIDHandler(w http.ResponseWriter, r *http.Request) {
	ideaID := mux.Vars(r)["idea_id"]

	zap.S().Debugf("idea_id: %v", ideaID)

	iID, err := primitive.ObjectIDFromHex(ideaID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := i.DB.FindOne(ctx, bson.M{"_id": iID})
	if err != nil {
		config.ErrorStatus("failed to get idea by ID", http.StatusNotFound, w, err)
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

// UpvoteIdeaHandler toggles the caller's upvote. Voting twice takes the
// vote back.
func (i Idea) UpvoteIdeaHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	ideaID := mux.Vars(r)["idea_id"]

	iID, err := primitive.ObjectIDFromHex(ideaID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := i.DB.FindOne(ctx, bson.M{"_id": iID})
	if err != nil {
		config.ErrorStatus("failed to get idea by ID", http.StatusNotFound, w, err)
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	var update bson.M
	upvoted := !dbResp.HasUpvoted(identity.UserID)
	if upvoted {
		update = bson.M{
			"$addToSet": bson.M{"upvotes": identity.UserID},
			"$set":      bson.M{"updatedAt": now},
		}
	} else {
		update = bson.M{
			"$pull": bson.M{"upvotes": identity.UserID},
			"$set":  bson.M{"updatedAt": now},
		}
	}

	res, err := i.DB.UpdateOne(ctx, bson.M{"_id": iID}, update)
	if err != nil {
		config.ErrorStatus("failed to update upvotes", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("idea not found", http.StatusNotFound, w, fmt.Errorf("no idea matched %v", ideaID))
		return
	}

	b, err := json.Marshal(map[string]interface{}{"upvoted": upvoted})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// AddIdeaCommentHandler appends a comment to an idea. Any authenticated
// citizen may comment.
func (i Idea) AddIdeaCommentHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	ideaID := mux.Vars(r)["idea_id"]

	iID, err := primitive.ObjectIDFromHex(ideaID)
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

	comment := models.Comment{
		Text:      body.Text,
		Author:    identity.UserID,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
	}

	res, err := i.DB.UpdateOne(ctx,
		bson.M{"_id": iID},
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
		config.ErrorStatus("idea not found", http.StatusNotFound, w, fmt.Errorf("no idea matched %v", ideaID))
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

// DeleteIdeaHandler removes an idea. Creator only.
func (i Idea) DeleteIdeaHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	ideaID := mux.Vars(r)["idea_id"]

	iID, err := primitive.ObjectIDFromHex(ideaID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := i.DB.FindOne(ctx, bson.M{"_id": iID})
	if err != nil {
		config.ErrorStatus("failed to get idea by ID", http.StatusNotFound, w, err)
		return
	}
	if dbResp.CreatedBy != identity.UserID {
		config.ErrorStatus("idea belongs to another citizen", http.StatusForbidden, w, fmt.Errorf("user %v is not the creator", identity.UserID))
		return
	}

	deleted, err := i.DB.DeleteOne(ctx, bson.M{"_id": iID, "createdBy": identity.UserID})
	if err != nil {
		config.ErrorStatus("failed to delete idea", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("idea not found", http.StatusNotFound, w, fmt.Errorf("no idea matched %v", ideaID))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf(`{"deleted": "%v"}`, ideaID)))
}
