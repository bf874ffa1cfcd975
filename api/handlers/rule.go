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

	"github.com/societymgmt/society-api/api"
	"github.com/societymgmt/society-api/config"
	"github.com/societymgmt/society-api/databases"
	"github.com/societymgmt/society-api/models"
)

// Rule exported for testing purposes
type Rule struct {
	DB databases.RuleDatabase
}

// RulesHandler returns the legal catalog, optionally filtered by category
// or a case-insensitive title search
func (c Rule) RulesHandler(w http.ResponseWriter, r *http.Request) {
	limit64 := getLimit(r)
	page := getPage(Page, r)
	skip64 := int64(page) * limit64

	filter := bson.M{}
	if category := r.URL.Query().Get("category"); category != "" {
		filter["category"] = category
	}
	if search := r.URL.Query().Get("search"); search != "" {
		filter["title"] = bson.M{"$regex": primitive.Regex{Pattern: search, Options: "i"}}
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	opts := options.Find().
		SetLimit(limit64).
		SetSkip(skip64).
		SetSort(bson.M{"_id": -1})

	dbResp, err := c.DB.Find(ctx, filter, opts)
	if err != nil {
		config.ErrorStatus("failed to get rules", http.StatusInternalServerError, w, err)
		return
	}

	if len(dbResp) == 0 {
		dbResp = []models.Rule{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// RuleByIDHandler returns a rule by ID
func (c Rule) RuleByIDHandler(w http.ResponseWriter, r *http.Request) {
	ruleID := mux.Vars(r)["rule_id"]

	rID, err := primitive.ObjectIDFromHex(ruleID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := c.DB.FindOne(ctx, bson.M{"_id": rID})
	if err != nil {
		config.ErrorStatus("failed to get rule by ID", http.StatusNotFound, w, err)
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

// CreateRuleHandler adds a rule to the catalog. Admin only, enforced by the
// route middleware.
func (c Rule) CreateRuleHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var rule models.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	rule.Title = strings.TrimSpace(rule.Title)
	rule.Description = strings.TrimSpace(rule.Description)
	if rule.Title == "" || rule.Description == "" {
		config.ErrorStatus("title and description are required", http.StatusBadRequest, w, fmt.Errorf("empty title or description"))
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	rule.ID = primitive.NewObjectID()
	rule.CreatedBy = identity.UserID
	rule.CreatedAt = now
	rule.UpdatedAt = now

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	_, err := c.DB.InsertOne(ctx, rule)
	if err != nil {
		config.ErrorStatus("failed to create rule", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(rule)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// UpdateRuleHandler edits the mutable fields of a rule. Admin only.
func (c Rule) UpdateRuleHandler(w http.ResponseWriter, r *http.Request) {
	ruleID := mux.Vars(r)["rule_id"]

	rID, err := primitive.ObjectIDFromHex(ruleID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Penalty     string `json:"penalty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	set := bson.M{"updatedAt": primitive.NewDateTimeFromTime(time.Now())}
	if v := strings.TrimSpace(body.Title); v != "" {
		set["title"] = v
	}
	if v := strings.TrimSpace(body.Description); v != "" {
		set["description"] = v
	}
	if v := strings.TrimSpace(body.Category); v != "" {
		set["category"] = v
	}
	if v := strings.TrimSpace(body.Penalty); v != "" {
		set["penalty"] = v
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := c.DB.UpdateOne(ctx, bson.M{"_id": rID}, bson.M{"$set": set})
	if err != nil {
		config.ErrorStatus("failed to update rule", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("rule not found", http.StatusNotFound, w, fmt.Errorf("no rule matched %v", ruleID))
		return
	}

	dbResp, err := c.DB.FindOne(ctx, bson.M{"_id": rID})
	if err != nil {
		config.ErrorStatus("failed to get rule by ID", http.StatusNotFound, w, err)
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

// DeleteRuleHandler removes a rule from the catalog. Admin only.
func (c Rule) DeleteRuleHandler(w http.ResponseWriter, r *http.Request) {
	ruleID := mux.Vars(r)["rule_id"]

	rID, err := primitive.ObjectIDFromHex(ruleID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	deleted, err := c.DB.DeleteOne(ctx, bson.M{"_id": rID})
	if err != nil {
		config.ErrorStatus("failed to delete rule", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("rule not found", http.StatusNotFound, w, fmt.Errorf("no rule matched %v", ruleID))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf(`{"deleted": "%v"}`, ruleID)))
}
