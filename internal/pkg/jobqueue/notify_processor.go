package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio/app/models"
	"github.com/gigfolio/gigfolio/app/repository"
	metrics "github.com/gigfolio/gigfolio/internal/pkg/metrics/counter"
	"github.com/gigfolio/gigfolio/internal/pkg/webhook"
)

var (
	webhookClient     *webhook.Client
	webhookClientOnce sync.Once
)

func getWebhookClient() *webhook.Client {
	webhookClientOnce.Do(func() {
		webhookClient = webhook.NewClient()
	})
	return webhookClient
}

// EnqueueNotifyAppJob enqueues one webhook notification for one subscriber.
func (q *Queue) EnqueueNotifyAppJob(payload NotifyAppJobPayload) (*Job, error) {
	return q.EnqueueJob(JobTypeNotifyApp, payload.ToMap())
}

// processNotifyAppJob delivers one notification to one subscriber app.
// Missing targets dead-letter immediately, unusable webhook URLs are dropped,
// and transient failures retry with exponential backoff until the delivery
// budget runs out.
func (q *Queue) processNotifyAppJob(ctx context.Context, job *Job) error {
	payload, perr := NotifyAppJobPayloadFromMap(job.Payload)
	if perr != nil {
		return Drop(fmt.Errorf("failed to parse notify payload: %w", perr))
	}

	repos := repository.GetGlobalRepositories()

	app, err := repos.ClientApp.GetByID(payload.AppID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Permanent(fmt.Errorf("app %d not found at notification time", payload.AppID))
		}
		return fmt.Errorf("failed to load app %d: %w", payload.AppID, err)
	}

	user, err := repos.User.GetByID(payload.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Permanent(fmt.Errorf("user %d not found at notification time", payload.UserID))
		}
		return fmt.Errorf("failed to load user %d: %w", payload.UserID, err)
	}

	platform, err := repos.Platform.GetByID(payload.PlatformID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Permanent(fmt.Errorf("platform %d not found at notification time", payload.PlatformID))
		}
		return fmt.Errorf("failed to load platform %d: %w", payload.PlatformID, err)
	}

	if app.WebhookURL == "" {
		q.appendNotifyStep(payload.SyncLogID, models.StepFailed, app.ID, "", "no webhook URL configured")
		return Drop(fmt.Errorf("app %d has no webhook URL configured", app.ID))
	}

	state := models.ConnectionState(payload.State)
	reason := webhook.Reason(payload.Reason)

	// The data section is loaded live so the subscriber always receives the
	// latest snapshot, however long this notification waited in the queue.
	var data *models.PlatformData
	if reason == webhook.ReasonDataUpdate {
		data, err = repos.PlatformData.GetByUserAndPlatform(payload.UserID, payload.PlatformID)
		if err != nil {
			return fmt.Errorf("failed to load platform data: %w", err)
		}
	}

	claim := models.DataClaim(payload.Claim)
	if !models.ValidClaim(claim) {
		claim = models.DefaultDataClaim
	}

	body, err := webhook.BuildPayload(platform, user, state, reason, app.Secret, claim, data, time.Now())
	if err != nil {
		return Permanent(fmt.Errorf("failed to build webhook payload for app %d: %w", app.ID, err))
	}

	if err := getWebhookClient().Deliver(ctx, app.WebhookURL, body); err != nil {
		var invalid *webhook.ErrInvalidTarget
		if errors.As(err, &invalid) {
			q.appendNotifyStep(payload.SyncLogID, models.StepFailed, app.ID, app.WebhookURL, invalid.Error())
			if cerr := metrics.AddFailed(app.ID); cerr != nil {
				log.Warnf("[Notify] Could not bump failure counter for app %d: %v", app.ID, cerr)
			}
			return Drop(err)
		}
		// Transient: redelivered with backoff, dead-lettered past the cap.
		return err
	}

	q.appendNotifyStep(payload.SyncLogID, models.StepSucceeded, app.ID, app.WebhookURL, "")
	if cerr := metrics.AddDelivered(app.ID); cerr != nil {
		log.Warnf("[Notify] Could not bump delivery counter for app %d: %v", app.ID, cerr)
	}

	return nil
}

// appendNotifyStep records a notification step on the cycle's sync log,
// best-effort; a zero log id means the cycle ran without a log.
func (q *Queue) appendNotifyStep(syncLogID uint, state models.SyncStepState, appID uint, targetURL string, message string) {
	if syncLogID == 0 {
		return
	}
	step := models.NewNotificationStep(state, appID, targetURL, message)
	if err := repository.GetGlobalRepositories().SyncLog.AppendStep(syncLogID, step); err != nil {
		log.Warnf("[Notify] Could not append sync step to log %d: %v", syncLogID, err)
	}
}
