package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio/app/models"
	"github.com/gigfolio/gigfolio/app/repository"
	"github.com/gigfolio/gigfolio/internal/pkg/correlation"
	"github.com/gigfolio/gigfolio/internal/pkg/platformapi"
)

// EnqueueFetchPlatformJob enqueues one fetch job for one connection.
func (q *Queue) EnqueueFetchPlatformJob(userID, platformID, connectionID uint) (*Job, error) {
	payload := FetchPlatformJobPayload{
		UserID:       userID,
		PlatformID:   platformID,
		ConnectionID: connectionID,
	}
	return q.EnqueueJob(JobTypeFetchPlatform, payload.ToMap())
}

// processFetchPlatformJob starts one platform data fetch: it opens a sync log,
// invokes the integration-specific fetcher and either registers the async
// request for later correlation or hands the inline result straight to the
// completion pipeline.
func (q *Queue) processFetchPlatformJob(ctx context.Context, job *Job) error {
	payload, perr := FetchPlatformJobPayloadFromMap(job.Payload)
	if perr != nil {
		return Drop(fmt.Errorf("failed to parse fetch platform payload: %w", perr))
	}

	repos := repository.GetGlobalRepositories()

	user, err := repos.User.GetByID(payload.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Permanent(fmt.Errorf("user %d not found for fetch", payload.UserID))
		}
		return fmt.Errorf("failed to load user %d: %w", payload.UserID, err)
	}

	platform, err := repos.Platform.GetByID(payload.PlatformID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Permanent(fmt.Errorf("platform %d not found for fetch", payload.PlatformID))
		}
		return fmt.Errorf("failed to load platform %d: %w", payload.PlatformID, err)
	}

	conn, err := repos.Connection.GetByUserAndPlatform(payload.UserID, payload.PlatformID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Drop(fmt.Errorf("connection for user %d / platform %d is gone", payload.UserID, payload.PlatformID))
		}
		return fmt.Errorf("failed to load connection: %w", err)
	}
	if conn.IsDeleted {
		return Drop(fmt.Errorf("connection %d is tombstoned, skipping fetch", conn.ID))
	}

	// One sync log per fetch cycle. Its correlation id is replaced by the
	// platform's opaque request id for async integrations.
	syncLog := &models.DataSyncLog{
		CorrelationID: uuid.New().String(),
		UserID:        user.ID,
		PlatformID:    platform.ID,
		Steps: []models.DataSyncStep{
			models.NewSyncStep(models.StepPlatformDataFetch, models.StepStarted, ""),
		},
	}
	if err := repos.SyncLog.Create(syncLog); err != nil {
		// Best-effort audit trail; the fetch proceeds without it.
		log.Warnf("[Fetch] Could not create sync log for connection %d: %v", conn.ID, err)
		syncLog = nil
	}

	// Keep the dead-letter step hook informed once the log exists.
	if syncLog != nil {
		job.Payload["sync_log_id"] = float64(syncLog.ID)
		q.updateJob(ctx, job)
	}

	fetcher, err := platformapi.Get(platform.Name)
	if err != nil {
		q.appendFetchStep(syncLog, models.StepFailed, err.Error())
		return Drop(err)
	}

	outcome, err := fetcher.Fetch(ctx, user, conn)
	if err != nil {
		// Transient upstream failure; the queue retries with backoff.
		return fmt.Errorf("platform fetch for connection %d failed: %w", conn.ID, err)
	}

	if outcome.AuthorizationRevoked {
		log.Warnf("[Fetch] Platform %s revoked authorization for connection %d", platform.Name, conn.ID)
		q.appendFetchStep(syncLog, models.StepFailed, "authorization revoked by platform")
		removal := RemoveConnectionJobPayload{
			UserID:     user.ID,
			PlatformID: platform.ID,
			Hard:       false,
			Reason:     string(models.DeleteReasonNotAuthorized),
		}
		if _, err := q.EnqueueJob(JobTypeRemoveConnection, removal.ToMap()); err != nil {
			return fmt.Errorf("failed to enqueue removal after revoked authorization: %w", err)
		}
		return nil
	}

	if outcome.RequestID != "" {
		// Asynchronous integration: remember where the callback belongs.
		var syncLogID uint
		if syncLog != nil {
			syncLogID = syncLog.ID
			if err := repos.SyncLog.UpdateCorrelationID(syncLog.ID, outcome.RequestID); err != nil {
				log.Warnf("[Fetch] Could not update correlation id on sync log %d: %v", syncLog.ID, err)
			}
		}
		entry := correlation.Entry{
			UserID:     user.ID,
			PlatformID: platform.ID,
			SyncLogID:  syncLogID,
		}
		if err := correlation.Register(ctx, outcome.RequestID, entry); err != nil {
			return fmt.Errorf("failed to register correlation for request %s: %w", outcome.RequestID, err)
		}
		return nil
	}

	// Synchronous integration: complete in-line via the completion pipeline.
	complete := FetchCompleteJobPayload{
		UserID:     user.ID,
		PlatformID: platform.ID,
		Result:     outcome.Result,
		Malformed:  outcome.Malformed,
	}
	if syncLog != nil {
		complete.SyncLogID = syncLog.ID
	}
	if _, err := q.EnqueueJob(JobTypeFetchComplete, complete.ToMap()); err != nil {
		return fmt.Errorf("failed to enqueue fetch completion: %w", err)
	}

	return nil
}

// appendFetchStep records a fetch step on the cycle's sync log, best-effort.
func (q *Queue) appendFetchStep(syncLog *models.DataSyncLog, state models.SyncStepState, message string) {
	if syncLog == nil {
		return
	}
	step := models.NewSyncStep(models.StepPlatformDataFetch, state, message)
	if err := repository.GetGlobalRepositories().SyncLog.AppendStep(syncLog.ID, step); err != nil {
		log.Warnf("[Fetch] Could not append sync step to log %d: %v", syncLog.ID, err)
	}
}
