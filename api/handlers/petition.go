package handlers

import (
	"context"
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
	templates "github.com/societymgmt/society-api/templates/html"
)

// Petition exported for testing purposes
type Petition struct {
	DB  databases.PetitionDatabase
	UDB databases.UserDatabase
}

// PetitionReviewRequest is the admin payload for a moderation verdict.
type PetitionReviewRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// CreatePetitionHandler creates a petition for the caller. New petitions
// start active with a pending review, so they stay hidden from the public
// listing until an admin approves them.
func (p Petition) CreatePetitionHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var petition models.Petition
	if err := json.NewDecoder(r.Body).Decode(&petition); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	petition.Title = strings.TrimSpace(petition.Title)
	petition.Description = strings.TrimSpace(petition.Description)
	if petition.Title == "" || petition.Description == "" {
		config.ErrorStatus("title and description are required", http.StatusBadRequest, w, fmt.Errorf("empty title or description"))
		return
	}
	if petition.Goal < models.MinPetitionGoal {
		config.ErrorStatus("signature goal is below the minimum", http.StatusBadRequest, w, fmt.Errorf("goal %v is below %v", petition.Goal, models.MinPetitionGoal))
		return
	}
	if !petition.Deadline.Time().After(time.Now()) {
		config.ErrorStatus("deadline must be in the future", http.StatusBadRequest, w, fmt.Errorf("deadline %v is in the past", petition.Deadline.Time()))
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	petition.ID = primitive.NewObjectID()
	petition.Status = models.PetitionStatusActive
	petition.CreatedBy = identity.UserID
	petition.Signatures = []models.Signature{}
	petition.Updates = []models.PetitionUpdate{}
	petition.AdminReview = models.AdminReview{Status: models.ReviewStatusPending}
	petition.CreatedAt = now
	petition.UpdatedAt = now

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	_, err := p.DB.InsertOne(ctx, petition)
	if err != nil {
		config.ErrorStatus("failed to create petition", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(petition)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// PetitionsHandler returns petitions visible to the caller: approved ones,
// plus the caller's own regardless of review state. Admin-capable callers
// see everything.
func (p Petition) PetitionsHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	limit64 := getLimit(r)
	page := getPage(Page, r)
	skip64 := int64(page) * limit64

	filter := bson.M{}
	var visibility []bson.M
	if !identity.AdminCapable() {
		visibility = []bson.M{
			{"adminReview.status": models.ReviewStatusApproved},
			{"createdBy": identity.UserID},
		}
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}
	if category := r.URL.Query().Get("category"); category != "" {
		filter["category"] = category
	}
	if search := r.URL.Query().Get("search"); search != "" {
		clauses := textSearch(search, "title", "description", "category")
		if visibility != nil {
			// both the visibility gate and the search are $or lists
			filter["$and"] = []bson.M{{"$or": visibility}, {"$or": clauses}}
		} else {
			filter["$or"] = clauses
		}
	} else if visibility != nil {
		filter["$or"] = visibility
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	opts := options.Find().
		SetLimit(limit64).
		SetSkip(skip64).
		SetSort(bson.M{"_id": -1})

	dbResp, err := p.DB.Find(ctx, filter, opts)
	if err != nil {
		config.ErrorStatus("failed to get petitions", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now()
	out := make([]models.Petition, 0, len(dbResp))
	for _, petition := range dbResp {
		petition.Normalize(now)
		out = append(out, petition.Redact(identity.UserID, identity.AdminCapable()))
	}

	b, err := json.Marshal(out)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// PetitionsByUserHandler returns the caller's own petitions, any review state
func (p Petition) PetitionsByUserHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	limit64 := getLimit(r)
	page := getPage(Page, r)
	skip64 := int64(page) * limit64

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	opts := options.Find().
		SetLimit(limit64).
		SetSkip(skip64).
		SetSort(bson.M{"_id": -1})

	dbResp, err := p.DB.Find(ctx, bson.M{"createdBy": identity.UserID}, opts)
	if err != nil {
		config.ErrorStatus("failed to get petitions", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now()
	out := make([]models.Petition, 0, len(dbResp))
	for _, petition := range dbResp {
		petition.Normalize(now)
		out = append(out, petition)
	}

	b, err := json.Marshal(out)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// PetitionByIDHandler returns a petition by ID. A petition that is not
// visible to the caller is indistinguishable from a missing one.
func (p Petition) PetitionByIDHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	petitionID := mux.Vars(r)["petition_id"]

	zap.S().Debugf("petition_id: %v", petitionID)

	pID, err := primitive.ObjectIDFromHex(petitionID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := p.DB.FindOne(ctx, bson.M{"_id": pID})
	if err != nil {
		config.ErrorStatus("failed to get petition by ID", http.StatusNotFound, w, err)
		return
	}

	if !dbResp.VisibleTo(identity.UserID, identity.AdminCapable()) {
		config.ErrorStatus("petition not found", http.StatusNotFound, w, fmt.Errorf("petition %v is not visible to user %v", petitionID, identity.UserID))
		return
	}

	dbResp.Normalize(time.Now())
	redacted := dbResp.Redact(identity.UserID, identity.AdminCapable())

	b, err := json.Marshal(redacted)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// SignPetitionHandler adds the caller's signature. The update filter
// re-asserts every precondition, so a duplicate signature cannot slip in
// between the read and the write. Reaching the goal flips the petition to
// completed in a second guarded update.
func (p Petition) SignPetitionHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	petitionID := mux.Vars(r)["petition_id"]

	pID, err := primitive.ObjectIDFromHex(petitionID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var body struct {
		Comment string `json:"comment"`
	}
	if r.Body != nil {
		// The comment is optional, an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := p.DB.FindOne(ctx, bson.M{"_id": pID})
	if err != nil {
		config.ErrorStatus("failed to get petition by ID", http.StatusNotFound, w, err)
		return
	}
	if !dbResp.VisibleTo(identity.UserID, identity.AdminCapable()) {
		config.ErrorStatus("petition not found", http.StatusNotFound, w, fmt.Errorf("petition %v is not visible to user %v", petitionID, identity.UserID))
		return
	}
	if dbResp.HasSigned(identity.UserID) {
		config.ErrorStatus("petition already signed", http.StatusBadRequest, w, fmt.Errorf("user %v already signed petition %v", identity.UserID, petitionID))
		return
	}
	dbResp.Normalize(time.Now())
	if dbResp.Status != models.PetitionStatusActive {
		config.ErrorStatus("petition is not open for signatures", http.StatusBadRequest, w, fmt.Errorf("petition %v status is %v", petitionID, dbResp.Status))
		return
	}

	name := identity.UserID
	uID, err := primitive.ObjectIDFromHex(identity.UserID)
	if err == nil {
		if user, uerr := p.UDB.FindOne(ctx, bson.M{"_id": uID}); uerr == nil {
			name = user.Name
		}
	}

	now := time.Now()
	signature := models.Signature{
		UserID:   identity.UserID,
		Name:     name,
		Comment:  strings.TrimSpace(body.Comment),
		SignedAt: primitive.NewDateTimeFromTime(now),
	}

	res, err := p.DB.UpdateOne(ctx,
		bson.M{
			"_id":               pID,
			"status":            models.PetitionStatusActive,
			"deadline":          bson.M{"$gt": primitive.NewDateTimeFromTime(now)},
			"signatures.userId": bson.M{"$ne": identity.UserID},
		},
		bson.M{
			"$push": bson.M{"signatures": signature},
			"$set":  bson.M{"updatedAt": primitive.NewDateTimeFromTime(now)},
		},
	)
	if err != nil {
		config.ErrorStatus("failed to sign petition", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		// Lost a race since the read above. Re-read to say why.
		fresh, ferr := p.DB.FindOne(ctx, bson.M{"_id": pID})
		if ferr != nil {
			config.ErrorStatus("petition not found", http.StatusNotFound, w, ferr)
			return
		}
		if fresh.HasSigned(identity.UserID) {
			config.ErrorStatus("petition already signed", http.StatusBadRequest, w, fmt.Errorf("user %v already signed petition %v", identity.UserID, petitionID))
			return
		}
		config.ErrorStatus("petition is not open for signatures", http.StatusBadRequest, w, fmt.Errorf("petition %v is no longer active", petitionID))
		return
	}

	// A second guarded update flips the petition to completed once the goal
	// is met. Only one of the racing signers can match this filter.
	completion, err := p.DB.UpdateOne(ctx,
		bson.M{
			"_id":    pID,
			"status": models.PetitionStatusActive,
			"$expr":  bson.M{"$gte": []interface{}{bson.M{"$size": "$signatures"}, "$goal"}},
		},
		bson.M{"$set": bson.M{
			"status":    models.PetitionStatusCompleted,
			"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
		}},
	)
	if err != nil {
		zap.S().Errorw("failed to run petition completion check",
			"petitionId", petitionID,
			"error", err,
		)
	} else if completion.ModifiedCount > 0 {
		zap.S().Infow("petition reached its signature goal",
			"petitionId", petitionID,
		)
		go p.notifyCreator(dbResp.CreatedBy, "Petition goal reached",
			fmt.Sprintf("Your petition %q has reached its signature goal and is now marked completed.", dbResp.Title))
	}

	b, err := json.Marshal(signature)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// ReviewPetitionHandler records the admin verdict on a pending petition.
// A review is a one-shot decision; re-reviewing is an invalid transition.
// Rejection cascades to the petition status, which closes it permanently.
func (p Petition) ReviewPetitionHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	petitionID := mux.Vars(r)["petition_id"]

	pID, err := primitive.ObjectIDFromHex(petitionID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var body PetitionReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if body.Status != models.ReviewStatusApproved && body.Status != models.ReviewStatusRejected {
		config.ErrorStatus("invalid review status", http.StatusBadRequest, w, fmt.Errorf("unknown review status %q", body.Status))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	now := primitive.NewDateTimeFromTime(time.Now())
	set := bson.M{
		"adminReview.status":     body.Status,
		"adminReview.notes":      strings.TrimSpace(body.Notes),
		"adminReview.reviewedBy": identity.UserID,
		"adminReview.reviewedAt": now,
		"updatedAt":              now,
	}

	res, err := p.DB.UpdateOne(ctx,
		bson.M{
			"_id":                pID,
			"adminReview.status": models.ReviewStatusPending,
		},
		bson.M{"$set": set},
	)
	if err != nil {
		config.ErrorStatus("failed to review petition", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		dbResp, ferr := p.DB.FindOne(ctx, bson.M{"_id": pID})
		if ferr != nil {
			config.ErrorStatus("petition not found", http.StatusNotFound, w, ferr)
			return
		}
		config.ErrorStatus("petition has already been reviewed", http.StatusBadRequest, w, fmt.Errorf("petition %v review status is %v", petitionID, dbResp.AdminReview.Status))
		return
	}

	// Rejection only closes a petition that is still collecting signatures.
	// One that completed while the review was pending keeps its status.
	if body.Status == models.ReviewStatusRejected {
		_, cerr := p.DB.UpdateOne(ctx,
			bson.M{"_id": pID, "status": models.PetitionStatusActive},
			bson.M{"$set": bson.M{
				"status":    models.PetitionStatusRejected,
				"updatedAt": now,
			}},
		)
		if cerr != nil {
			config.ErrorStatus("failed to reject petition", http.StatusInternalServerError, w, cerr)
			return
		}
	}

	dbResp, err := p.DB.FindOne(ctx, bson.M{"_id": pID})
	if err != nil {
		config.ErrorStatus("failed to get petition by ID", http.StatusNotFound, w, err)
		return
	}

	go p.notifyCreator(dbResp.CreatedBy, fmt.Sprintf("Petition %s", body.Status),
		fmt.Sprintf("Your petition %q has been %s by a moderator.", dbResp.Title, body.Status))

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// AddPetitionUpdateHandler posts a progress note. Creator only.
func (p Petition) AddPetitionUpdateHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	petitionID := mux.Vars(r)["petition_id"]

	pID, err := primitive.ObjectIDFromHex(petitionID)
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
		config.ErrorStatus("update text is required", http.StatusBadRequest, w, fmt.Errorf("empty update text"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	update := models.PetitionUpdate{
		Text:    body.Text,
		AddedBy: identity.UserID,
		AddedAt: primitive.NewDateTimeFromTime(time.Now()),
	}

	res, err := p.DB.UpdateOne(ctx,
		bson.M{"_id": pID, "createdBy": identity.UserID},
		bson.M{
			"$push": bson.M{"updates": update},
			"$set":  bson.M{"updatedAt": primitive.NewDateTimeFromTime(time.Now())},
		},
	)
	if err != nil {
		config.ErrorStatus("failed to add petition update", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		if _, ferr := p.DB.FindOne(ctx, bson.M{"_id": pID}); ferr != nil {
			config.ErrorStatus("petition not found", http.StatusNotFound, w, ferr)
			return
		}
		config.ErrorStatus("petition belongs to another citizen", http.StatusForbidden, w, fmt.Errorf("user %v is not the creator", identity.UserID))
		return
	}

	b, err := json.Marshal(update)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// DeletePetitionHandler removes a petition. Creator only; admin-capable
// roles use the moderation verdict instead of deletion.
func (p Petition) DeletePetitionHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	petitionID := mux.Vars(r)["petition_id"]

	pID, err := primitive.ObjectIDFromHex(petitionID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := p.DB.FindOne(ctx, bson.M{"_id": pID})
	if err != nil {
		config.ErrorStatus("failed to get petition by ID", http.StatusNotFound, w, err)
		return
	}
	if dbResp.CreatedBy != identity.UserID {
		config.ErrorStatus("petition belongs to another citizen", http.StatusForbidden, w, fmt.Errorf("user %v is not the creator", identity.UserID))
		return
	}

	deleted, err := p.DB.DeleteOne(ctx, bson.M{"_id": pID, "createdBy": identity.UserID})
	if err != nil {
		config.ErrorStatus("failed to delete petition", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("petition not found", http.StatusNotFound, w, fmt.Errorf("no petition matched %v", petitionID))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf(`{"deleted": "%v"}`, petitionID)))
}

// AdminPetitionsHandler returns all petitions for the moderation queue
func (p Petition) AdminPetitionsHandler(w http.ResponseWriter, r *http.Request) {
	limit64 := getLimit(r)
	page := getPage(Page, r)
	skip64 := int64(page) * limit64

	filter := bson.M{}
	if review := r.URL.Query().Get("review"); review != "" {
		filter["adminReview.status"] = review
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	opts := options.Find().
		SetLimit(limit64).
		SetSkip(skip64).
		SetSort(bson.M{"_id": -1})

	dbResp, err := p.DB.Find(ctx, filter, opts)
	if err != nil {
		config.ErrorStatus("failed to get petitions", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now()
	out := make([]models.Petition, 0, len(dbResp))
	for _, petition := range dbResp {
		petition.Normalize(now)
		out = append(out, petition)
	}

	b, err := json.Marshal(out)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// notifyCreator emails the petition creator about a lifecycle event. Best
// effort, failures are logged and swallowed.
func (p Petition) notifyCreator(creatorID, subject, bodyText string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	uID, err := primitive.ObjectIDFromHex(creatorID)
	if err != nil {
		zap.S().Warnw("cannot notify creator, bad user id", "userId", creatorID)
		return
	}
	user, err := p.UDB.FindOne(ctx, bson.M{"_id": uID})
	if err != nil || user.Email == "" {
		zap.S().Warnw("cannot notify creator, no email on file", "userId", creatorID)
		return
	}

	htmlContent := templates.RenderGenericEmail(subject, bodyText)
	if err := sendNotificationEmail(user.Email, user.Name, subject, htmlContent, bodyText); err != nil {
		zap.S().Errorw("failed to send petition notification email",
			"error", err,
			"userId", creatorID,
		)
	}
}
