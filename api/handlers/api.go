package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/societymgmt/society-api/api"
	"github.com/societymgmt/society-api/api/scheduler"
	"github.com/societymgmt/society-api/config"
	"github.com/societymgmt/society-api/databases"
	"github.com/societymgmt/society-api/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	DB        databases.CollectionHelper
	Config    config.Config
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()
	r.Use(api.TimeoutMiddleware(30 * time.Second))

	u := User{DB: databases.NewUserDatabase(a.dbHelper)}
	report := Report{DB: databases.NewReportDatabase(a.dbHelper)}
	petition := Petition{DB: databases.NewPetitionDatabase(a.dbHelper), UDB: databases.NewUserDatabase(a.dbHelper)}
	idea := Idea{DB: databases.NewIdeaDatabase(a.dbHelper)}
	rule := Rule{DB: databases.NewRuleDatabase(a.dbHelper)}
	payment := Payment{DB: databases.NewReportDatabase(a.dbHelper)}
	cloudinaryHandler := CloudinaryHandler{}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/register", http.HandlerFunc(u.RegisterHandler)).Methods("POST")
	apiCreate.Handle("/auth/token", http.HandlerFunc(m.CreateToken)).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")
	apiCreate.Handle("/auth/admin/login", http.HandlerFunc(u.AdminLoginHandler)).Methods("POST")

	apiCreate.Handle("/me", api.Middleware(http.HandlerFunc(u.MeHandler))).Methods("GET")

	apiCreate.Handle("/reports", api.Middleware(http.HandlerFunc(report.CreateReportHandler))).Methods("POST")
	apiCreate.Handle("/reports", api.Middleware(http.HandlerFunc(report.ReportsHandler))).Methods("GET")
	apiCreate.Handle("/reports/{report_id}", api.Middleware(http.HandlerFunc(report.ReportByIDHandler))).Methods("GET")
	apiCreate.Handle("/reports/{report_id}/comments", api.Middleware(http.HandlerFunc(report.AddReportCommentHandler))).Methods("POST")
	apiCreate.Handle("/reports/{report_id}/checkout", api.Middleware(http.HandlerFunc(payment.CreateFineCheckoutSessionHandler))).Methods("POST")

	apiCreate.Handle("/petitions", api.Middleware(http.HandlerFunc(petition.CreatePetitionHandler))).Methods("POST")
	apiCreate.Handle("/petitions", api.Middleware(http.HandlerFunc(petition.PetitionsHandler))).Methods("GET")
	apiCreate.Handle("/petitions/user", api.Middleware(http.HandlerFunc(petition.PetitionsByUserHandler))).Methods("GET")
	apiCreate.Handle("/petitions/{petition_id}", api.Middleware(http.HandlerFunc(petition.PetitionByIDHandler))).Methods("GET")
	apiCreate.Handle("/petitions/{petition_id}", api.Middleware(http.HandlerFunc(petition.DeletePetitionHandler))).Methods("DELETE")
	apiCreate.Handle("/petitions/{petition_id}/sign", api.Middleware(http.HandlerFunc(petition.SignPetitionHandler))).Methods("POST")
	apiCreate.Handle("/petitions/{petition_id}/updates", api.Middleware(http.HandlerFunc(petition.AddPetitionUpdateHandler))).Methods("POST")

	apiCreate.Handle("/ideas", api.Middleware(http.HandlerFunc(idea.CreateIdeaHandler))).Methods("POST")
	apiCreate.Handle("/ideas", api.Middleware(http.HandlerFunc(idea.IdeasHandler))).Methods("GET")
	apiCreate.Handle("/ideas/{idea_id}", api.Middleware(http.HandlerFunc(idea.IdeaByIDHandler))).Methods("GET")
	apiCreate.Handle("/ideas/{idea_id}", api.Middleware(http.HandlerFunc(idea.DeleteIdeaHandler))).Methods("DELETE")
	apiCreate.Handle("/ideas/{idea_id}/upvote", api.Middleware(http.HandlerFunc(idea.UpvoteIdeaHandler))).Methods("POST")
	apiCreate.Handle("/ideas/{idea_id}/comments", api.Middleware(http.HandlerFunc(idea.AddIdeaCommentHandler))).Methods("POST")

	apiCreate.Handle("/rules", http.HandlerFunc(rule.RulesHandler)).Methods("GET")
	apiCreate.Handle("/rules/{rule_id}", http.HandlerFunc(rule.RuleByIDHandler)).Methods("GET")

	apiCreate.Handle("/generate-signature", api.Middleware(http.HandlerFunc(cloudinaryHandler.GenerateSignature))).Methods("POST")

	apiCreate.Handle("/fines/success", http.HandlerFunc(payment.HandleFineSuccessRedirect)).Methods("GET")
	apiCreate.Handle("/fines/cancel", http.HandlerFunc(payment.HandleFineCancelRedirect)).Methods("GET")

	admin := r.PathPrefix("/api/v1/admin").Subrouter()
	admin.Handle("/reports", api.AdminMiddleware(http.HandlerFunc(report.AdminReportsHandler))).Methods("GET")
	admin.Handle("/reports/{report_id}/status", api.AdminMiddleware(http.HandlerFunc(report.UpdateReportStatusHandler))).Methods("PUT")
	admin.Handle("/petitions", api.AdminMiddleware(http.HandlerFunc(petition.AdminPetitionsHandler))).Methods("GET")
	admin.Handle("/petitions/{petition_id}/review", api.AdminMiddleware(http.HandlerFunc(petition.ReviewPetitionHandler))).Methods("PUT")
	admin.Handle("/users", api.AdminMiddleware(http.HandlerFunc(u.AdminUsersHandler))).Methods("GET")
	admin.Handle("/users/{user_id}/role", api.AdminMiddleware(http.HandlerFunc(u.UpdateUserRoleHandler))).Methods("PUT")
	admin.Handle("/users/{user_id}/status", api.AdminMiddleware(http.HandlerFunc(u.UpdateUserStatusHandler))).Methods("PUT")
	admin.Handle("/users/{user_id}", api.AdminMiddleware(http.HandlerFunc(u.DeleteUserHandler))).Methods("DELETE")
	admin.Handle("/rules", api.AdminMiddleware(http.HandlerFunc(rule.CreateRuleHandler))).Methods("POST")
	admin.Handle("/rules/{rule_id}", api.AdminMiddleware(http.HandlerFunc(rule.UpdateRuleHandler))).Methods("PUT")
	admin.Handle("/rules/{rule_id}", api.AdminMiddleware(http.HandlerFunc(rule.DeleteRuleHandler))).Methods("DELETE")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("society-api has connected to the database")

	// initialize stripe
	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		return fmt.Errorf("stripe secret key is not set")
	}
	stripe.Key = stripeKey

	// start the notification scheduler
	a.Scheduler = scheduler.NewScheduler(
		databases.NewPetitionDatabase(a.dbHelper),
		databases.NewReportDatabase(a.dbHelper),
		databases.NewUserDatabase(a.dbHelper),
	)
	a.Scheduler.Start()

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
