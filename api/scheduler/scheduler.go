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
	"go.uber.org/zap"

	"github.com/assetpilot/asset-tracker-api/databases"
	"github.com/assetpilot/asset-tracker-api/models"
	"github.com/assetpilot/asset-tracker-api/reminders"
	templates "github.com/assetpilot/asset-tracker-api/templates/html"
)

// Scheduler runs the periodic reminder digest job
type Scheduler struct {
	cron       *cron.Cron
	ADB        databases.AssetDatabase
	UDB        databases.UserDatabase
	LockDB     databases.SchedulerLockDatabase
	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	aDB databases.AssetDatabase,
	uDB databases.UserDatabase,
	lockDB databases.SchedulerLockDatabase,
) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		ADB:        aDB,
		UDB:        uDB,
		LockDB:     lockDB,
		instanceID: instanceID,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Send reminder digest emails daily at midnight UTC
	_, err := s.cron.AddFunc("@daily", s.sendReminderDigests)
	if err != nil {
		zap.S().Errorw("failed to register reminder digest job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Reminder digest scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Reminder digest scheduler stopped")
}

// sendReminderDigests emails every opted-in user whose assets have warranties
// or maintenance due inside the default window
func (s *Scheduler) sendReminderDigests() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Try to acquire distributed lock (15 minute TTL)
	acquired, err := s.LockDB.TryAcquireLock(ctx, "reminder_digest_job", s.instanceID, 15*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for reminder digest job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Reminder digest job already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "reminder_digest_job", s.instanceID)

	zap.S().Infow("Running reminder digest job", "instance", s.instanceID)

	users, err := s.UDB.Find(ctx, bson.M{"user.digestOptIn": true})
	if err != nil {
		zap.S().Errorw("failed to find digest subscribers", "error", err)
		return
	}

	now := time.Now().UTC()
	window := reminders.DefaultWindowDays * 24 * time.Hour
	sent := 0

	for _, user := range users {
		if user.Details.Email == "" {
			continue
		}

		assets, err := s.ADB.Find(ctx, bson.M{"asset.userID": user.ID})
		if err != nil {
			zap.S().Errorw("failed to load assets for digest", "error", err, "userId", user.ID)
			continue
		}

		// Digests carry real reminders only, never samples, and ignore any
		// in-session dismissals.
		buckets := reminders.Derive(assets, now, window, reminders.NewDismissals())
		if len(buckets.Warranties) == 0 && len(buckets.Maintenance) == 0 {
			continue
		}

		if err := s.sendDigestEmail(user, buckets); err != nil {
			zap.S().Errorw("failed to send digest email", "error", err, "userId", user.ID)
			continue
		}
		sent++
	}

	zap.S().Infow("Reminder digest job complete",
		"subscribers", len(users),
		"digestsSent", sent,
	)
}

func (s *Scheduler) sendDigestEmail(user models.User, buckets reminders.Buckets) error {
	subject := fmt.Sprintf("Upcoming reminders for your assets (%d due)", len(buckets.Warranties)+len(buckets.Maintenance))
	htmlContent := templates.RenderReminderDigest(user.Details.Name, buckets.Warranties, buckets.Maintenance)
	plainText := plainDigest(buckets)

	from := mail.NewEmail("Asset Pilot", "no-reply@assetpilot.io")
	to := mail.NewEmail(user.Details.Name, user.Details.Email)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
	response, err := client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
	}
	return nil
}

func plainDigest(buckets reminders.Buckets) string {
	out := "You have upcoming reminders:\n"
	for _, item := range buckets.Warranties {
		out += "- " + digestLine(item) + "\n"
	}
	for _, item := range buckets.Maintenance {
		out += "- " + digestLine(item) + "\n"
	}
	return out
}

func digestLine(item reminders.Item) string {
	line := item.AssetLabel + ": " + item.Type
	if item.DueDate != nil {
		line += " due " + item.DueDate.Format("Jan 2, 2006")
	}
	return line
}
