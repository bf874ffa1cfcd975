package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/societymgmt/society-api/api"
	"github.com/societymgmt/society-api/config"
)

var (
	// Page denotes the starting Page for pagination results
	Page = 0
)

func getPage(Page int, r *http.Request) int {
	if r.URL.Query().Get("page") == "" {
		zap.S().Warnf("page not set, using default of %v", Page)
	} else {
		var err error
		Page, err = strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil {
			zap.S().Errorf(fmt.Sprintf("error parsing page number: %v", err))
		}
		if Page < 0 {
			zap.S().Warnf(fmt.Sprintf("cannot process page number less than 1. Got: %v", Page))
			return 0
		}
	}
	return Page
}

func getLimit(r *http.Request) int64 {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		zap.S().Warnf("limit not set, using default of 10")
		return 10
	}
	return int64(limit)
}

// textSearch builds case-insensitive substring clauses over the given fields,
// for use in an $or
func textSearch(search string, fields ...string) []bson.M {
	clauses := make([]bson.M, 0, len(fields))
	for _, field := range fields {
		clauses = append(clauses, bson.M{field: bson.M{"$regex": primitive.Regex{Pattern: search, Options: "i"}}})
	}
	return clauses
}

// requireIdentity pulls the identity resolved by the auth middleware. Writes
// a 401 and returns false when the middleware was bypassed.
func requireIdentity(w http.ResponseWriter, r *http.Request) (api.Identity, bool) {
	identity, ok := api.IdentityFrom(r.Context())
	if !ok {
		config.ErrorStatus("missing identity", http.StatusUnauthorized, w, fmt.Errorf("no identity in request context"))
		return api.Identity{}, false
	}
	return identity, true
}
