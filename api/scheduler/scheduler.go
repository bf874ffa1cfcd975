package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/societymgmt/society-api/databases"
	"github.com/societymgmt/society-api/models"
	templates "github.com/societymgmt/society-api/templates/html"
)

// Scheduler handles periodic notification jobs. Jobs only send email; the
// database state machine never depends on the scheduler having run.
type Scheduler struct {
	cron *cron.Cron
	PDB  databases.PetitionDatabase
	RDB  databases.ReportDatabase
	UDB  databases.UserDatabase
}

// NewScheduler creates a new scheduler instance
func NewScheduler(pDB databases.PetitionDatabase, rDB databases.ReportDatabase, uDB databases.UserDatabase) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		PDB:  pDB,
		RDB:  rDB,
		UDB:  uDB,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Moderation digest for admins daily at 6 AM UTC
	_, err := s.cron.AddFunc("0 6 * * *", s.sendModerationDigest)
	if err != nil {
		zap.S().Errorw("failed to register moderation digest job", "error", err)
	}

	// Deadline reminders for petition creators daily at 7 AM UTC
	_, err = s.cron.AddFunc("0 7 * * *", s.sendDeadlineReminders)
	if err != nil {
		zap.S().Errorw("failed to register deadline reminder job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Notification scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Notification scheduler stopped")
}

// sendModerationDigest mails the admin inbox a count of items waiting on a
// moderator: pending petition reviews and open reports.
func (s *Scheduler) sendModerationDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	digestEmail := os.Getenv("ADMIN_DIGEST_EMAIL")
	if digestEmail == "" {
		zap.S().Debug("ADMIN_DIGEST_EMAIL not set, skipping moderation digest")
		return
	}

	pendingReviews, err := s.PDB.CountDocuments(ctx, bson.M{"adminReview.status": models.ReviewStatusPending})
	if err != nil {
		zap.S().Errorw("failed to count pending reviews", "error", err)
		return
	}
	openReports, err := s.RDB.CountDocuments(ctx, bson.M{
		"status": bson.M{"$in": []string{models.ReportStatusPending, models.ReportStatusInProgress}},
	})
	if err != nil {
		zap.S().Errorw("failed to count open reports", "error", err)
		return
	}

	if pendingReviews == 0 && openReports == 0 {
		zap.S().Debug("moderation queue is empty, skipping digest")
		return
	}

	subject := "Moderation digest"
	bodyText := fmt.Sprintf("Good morning.\n\nPetitions awaiting review: %d\nOpen reports: %d\n\nPlease visit the back office to work the queue.", pendingReviews, openReports)
	htmlContent := templates.RenderGenericEmail(subject, bodyText)

	if err := s.sendEmail(digestEmail, "Moderation team", subject, htmlContent, bodyText); err != nil {
		zap.S().Errorw("failed to send moderation digest", "error", err)
		return
	}

	zap.S().Infow("Moderation digest sent",
		"pendingReviews", pendingReviews,
		"openReports", openReports,
	)
}

// sendDeadlineReminders emails creators of approved, still-active petitions
// whose deadline falls within the next 72 hours.
func (s *Scheduler) sendDeadlineReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := time.Now()
	cutoff := now.Add(72 * time.Hour)

	petitions, err := s.PDB.Find(ctx, bson.M{
		"status":             models.PetitionStatusActive,
		"adminReview.status": models.ReviewStatusApproved,
		"deadline": bson.M{
			"$gt": primitive.NewDateTimeFromTime(now),
			"$lt": primitive.NewDateTimeFromTime(cutoff),
		},
	})
	if err != nil {
		zap.S().Errorw("failed to find petitions nearing deadline", "error", err)
		return
	}

	sent := 0
	for _, petition := range petitions {
		email, name := s.getUserEmail(ctx, petition.CreatedBy)
		if email == "" {
			continue
		}

		remaining := petition.Goal - len(petition.Signatures)
		subject := "Your petition deadline is approaching"
		bodyText := fmt.Sprintf("Hi %s,\n\nYour petition %q closes on %s.\nSignatures so far: %d of %d (%d to go).\n\nShare it while there is still time.",
			name, petition.Title, petition.Deadline.Time().Format("January 2, 2006"),
			len(petition.Signatures), petition.Goal, remaining)
		htmlContent := templates.RenderGenericEmail(subject, bodyText)

		if err := s.sendEmail(email, name, subject, htmlContent, bodyText); err != nil {
			zap.S().Errorw("failed to send deadline reminder", "error", err, "petitionId", petition.ID.Hex())
			continue
		}
		sent++
	}

	zap.S().Infow("Deadline reminders sent",
		"petitionsChecked", len(petitions),
		"remindersSent", sent,
	)
}

func (s *Scheduler) sendEmail(toEmail, toName, subject, htmlContent, plainText string) error {
	apiKey := os.Getenv("SENDGRID_API_KEY")
	if apiKey == "" {
		zap.S().Warnw("SENDGRID_API_KEY not set, skipping email", "to", toEmail)
		return nil
	}

	from := mail.NewEmail("Society Management", "no-reply@societymgmt.org")
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	client := sendgrid.NewSendClient(apiKey)
	response, err := client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
	}
	return nil
}

func (s *Scheduler) getUserEmail(ctx context.Context, userID string) (email, name string) {
	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return "", ""
	}
	user, err := s.UDB.FindOne(ctx, bson.M{"_id": uID})
	if err != nil || user.Email == "" {
		return "", ""
	}
	return user.Email, user.Name
}
