package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
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

func newUserMocks() (*mocksdb.DatabaseHelper, *mocksdb.CollectionHelper, *mocksdb.SingleResultHelper) {
	db := &mocksdb.DatabaseHelper{}
	conn := &mocksdb.CollectionHelper{}
	singleResultHelper := &mocksdb.SingleResultHelper{}
	db.On("Collection", "users").Return(conn)
	return db, conn, singleResultHelper
}

func TestUser_RegisterHandlerShortPassword(t *testing.T) {
	body := `{"name":"Pat","email":"pat@example.com","password":"short"}`
	req, err := http.NewRequest("POST", "/api/v1/auth/register", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	db, conn, _ := newUserMocks()

	u := handlers.User{DB: databases.NewUserDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.RegisterHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "password must be at least 8 characters")
	conn.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything)
}

func TestUser_RegisterHandlerDuplicateEmail(t *testing.T) {
	body := `{"name":"Pat","email":"Pat@Example.com","password":"correcthorse"}`
	req, err := http.NewRequest("POST", "/api/v1/auth/register", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	db, conn, _ := newUserMocks()

	var countFilter bson.M
	conn.On("CountDocuments", mock.Anything, mock.Anything).
		Return(int64(1), nil).
		Run(func(args mock.Arguments) {
			countFilter = args.Get(1).(bson.M)
		})

	u := handlers.User{DB: databases.NewUserDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.RegisterHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "email is already registered")
	// emails are compared lowercased
	assert.Equal(t, "pat@example.com", countFilter["email"])
	conn.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything)
}

func TestUser_RegisterHandlerSuccess(t *testing.T) {
	body := `{"name":"Pat","email":"pat@example.com","password":"correcthorse"}`
	req, err := http.NewRequest("POST", "/api/v1/auth/register", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	db, conn, _ := newUserMocks()

	conn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(0), nil)
	insertResult := &mocksdb.InsertOneResultHelper{}
	conn.On("InsertOne", mock.Anything, mock.Anything).Return(insertResult, nil)

	u := handlers.User{DB: databases.NewUserDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.RegisterHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var created models.User
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, models.RoleCitizen, created.Role)
	assert.Equal(t, models.UserStatusActive, created.Status)
	// the password hash never leaves the server
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestUser_UpdateUserRoleHandlerInvalidRole(t *testing.T) {
	uID := primitive.NewObjectID()
	req := adminRequest(t, "PUT", "/api/v1/admin/users/"+uID.Hex()+"/role", `{"role":"overlord"}`, "admin1")
	req = mux.SetURLVars(req, map[string]string{"user_id": uID.Hex()})

	db, conn, _ := newUserMocks()

	u := handlers.User{DB: databases.NewUserDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UpdateUserRoleHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	conn.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestUser_UpdateUserStatusHandlerSuspend(t *testing.T) {
	uID := primitive.NewObjectID()
	req := adminRequest(t, "PUT", "/api/v1/admin/users/"+uID.Hex()+"/status", `{"status":"suspended"}`, "admin1")
	req = mux.SetURLVars(req, map[string]string{"user_id": uID.Hex()})

	db, conn, _ := newUserMocks()

	var statusUpdate bson.M
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).
		Run(func(args mock.Arguments) {
			statusUpdate = args.Get(2).(bson.M)
		})

	u := handlers.User{DB: databases.NewUserDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UpdateUserStatusHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	set := statusUpdate["$set"].(bson.M)
	assert.Equal(t, models.UserStatusSuspended, set["status"])
}

func TestUser_DeleteUserHandlerNotFound(t *testing.T) {
	uID := primitive.NewObjectID()
	req := adminRequest(t, "DELETE", "/api/v1/admin/users/"+uID.Hex(), "", "admin1")
	req = mux.SetURLVars(req, map[string]string{"user_id": uID.Hex()})

	db, conn, _ := newUserMocks()

	conn.On("DeleteOne", mock.Anything, mock.Anything).Return(int64(0), nil)

	u := handlers.User{DB: databases.NewUserDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.DeleteUserHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUser_AdminLoginHandlerRejectsCitizen(t *testing.T) {
	body := `{"email":"pat@example.com","password":"correcthorse"}`
	req, err := http.NewRequest("POST", "/api/v1/auth/admin/login", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	db, conn, singleResultHelper := newUserMocks()

	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.User)
		(*arg).Email = "pat@example.com"
		(*arg).Role = models.RoleCitizen
		(*arg).Status = models.UserStatusActive
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)

	u := handlers.User{DB: databases.NewUserDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.AdminLoginHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
