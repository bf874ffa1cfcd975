package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/societymgmt/society-api/api"
	"github.com/societymgmt/society-api/config"
	"github.com/societymgmt/society-api/databases"
	"github.com/societymgmt/society-api/models"
)

// Payment exported for testing purposes
type Payment struct {
	DB databases.ReportDatabase
}

// CreateFineCheckoutSessionHandler starts a Stripe checkout for an unpaid
// fine on the caller's own report
func (p Payment) CreateFineCheckoutSessionHandler(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	report, err := p.DB.FindOne(ctx, bson.M{"_id": rID})
	if err != nil {
		config.ErrorStatus("failed to get report by ID", http.StatusNotFound, w, err)
		return
	}
	if report.SubmittedBy != identity.UserID {
		config.ErrorStatus("report belongs to another citizen", http.StatusForbidden, w, fmt.Errorf("user %v is not the submitter", identity.UserID))
		return
	}
	if report.Fine == nil {
		config.ErrorStatus("report has no fine", http.StatusBadRequest, w, fmt.Errorf("no fine on report %v", reportID))
		return
	}
	if report.Fine.Status == models.FineStatusPaid {
		config.ErrorStatus("fine is already paid", http.StatusBadRequest, w, fmt.Errorf("fine on report %v is already paid", reportID))
		return
	}

	baseURL := os.Getenv("BASE_URL")
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(report.Fine.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Fine for report: %s", report.Title)),
					},
					UnitAmount: stripe.Int64(report.Fine.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(fmt.Sprintf("%s/api/v1/fines/success?session_id={CHECKOUT_SESSION_ID}&report_id=%s", baseURL, reportID)),
		CancelURL:  stripe.String(fmt.Sprintf("%s/api/v1/fines/cancel", baseURL)),
	}
	params.AddMetadata("reportId", reportID)
	params.AddMetadata("userId", identity.UserID)

	s, err := session.New(params)
	if err != nil {
		config.ErrorStatus("failed to create checkout session", http.StatusInternalServerError, w, err)
		return
	}

	_, err = p.DB.UpdateOne(ctx,
		bson.M{"_id": rID},
		bson.M{"$set": bson.M{
			"fine.sessionId": s.ID,
			"updatedAt":      primitive.NewDateTimeFromTime(time.Now()),
		}},
	)
	if err != nil {
		config.ErrorStatus("failed to record checkout session", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(map[string]string{"url": s.URL, "sessionId": s.ID})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// HandleFineSuccessRedirect verifies the checkout session with Stripe and
// marks the fine paid. The filter matches on the stored session id so a
// forged redirect cannot settle a different report's fine.
func (p Payment) HandleFineSuccessRedirect(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	reportID := r.URL.Query().Get("report_id")
	if sessionID == "" || reportID == "" {
		config.ErrorStatus("missing session_id or report_id", http.StatusBadRequest, w, fmt.Errorf("incomplete redirect params"))
		return
	}

	rID, err := primitive.ObjectIDFromHex(reportID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	s, err := session.Get(sessionID, nil)
	if err != nil {
		config.ErrorStatus("failed to retrieve checkout session", http.StatusInternalServerError, w, err)
		return
	}
	if s.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		config.ErrorStatus("payment not completed", http.StatusBadRequest, w, fmt.Errorf("session %v payment status is %v", sessionID, s.PaymentStatus))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := p.DB.UpdateOne(ctx,
		bson.M{
			"_id":            rID,
			"fine.sessionId": sessionID,
			"fine.status":    models.FineStatusUnpaid,
		},
		bson.M{"$set": bson.M{
			"fine.status": models.FineStatusPaid,
			"updatedAt":   primitive.NewDateTimeFromTime(time.Now()),
		}},
	)
	if err != nil {
		config.ErrorStatus("failed to mark fine paid", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("no matching unpaid fine", http.StatusNotFound, w, fmt.Errorf("no unpaid fine for session %v", sessionID))
		return
	}

	zap.S().Infow("fine paid",
		"reportId", reportID,
		"sessionId", sessionID,
	)

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "paid"}`))
}

// HandleFineCancelRedirect is where Stripe sends the citizen when they back
// out of checkout. Nothing changes on the report.
func (p Payment) HandleFineCancelRedirect(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "cancelled"}`))
}
