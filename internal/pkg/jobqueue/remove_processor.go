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
	"github.com/gigfolio/gigfolio/internal/pkg/webhook"
)

// EnqueueRemoveConnectionJob enqueues a connection teardown. Hard removals
// drop the row; soft removals tombstone it with the given reason.
func (q *Queue) EnqueueRemoveConnectionJob(userID, platformID uint, hard bool, reason models.DeleteReason) (*Job, error) {
	payload := RemoveConnectionJobPayload{
		UserID:     userID,
		PlatformID: platformID,
		Hard:       hard,
		Reason:     string(reason),
	}
	return q.EnqueueJob(JobTypeRemoveConnection, payload.ToMap())
}

// processRemoveConnectionJob tears down one connection and fans out the
// deletion notice to every subscriber that was on the connection.
func (q *Queue) processRemoveConnectionJob(ctx context.Context, job *Job) error {
	payload, perr := RemoveConnectionJobPayloadFromMap(job.Payload)
	if perr != nil {
		return Drop(fmt.Errorf("failed to parse remove connection payload: %w", perr))
	}

	repos := repository.GetGlobalRepositories()

	conn, err := repos.Connection.GetByUserAndPlatform(payload.UserID, payload.PlatformID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Drop(fmt.Errorf("connection for user %d / platform %d already removed", payload.UserID, payload.PlatformID))
		}
		return fmt.Errorf("failed to load connection: %w", err)
	}

	// Capture the fan-out list before the teardown mutates or deletes it.
	subscribers := make([]models.NotificationInfo, len(conn.Subscribers))
	copy(subscribers, conn.Subscribers)

	syncLog := &models.DataSyncLog{
		CorrelationID: uuid.New().String(),
		UserID:        payload.UserID,
		PlatformID:    payload.PlatformID,
		Steps: []models.DataSyncStep{
			models.NewSyncStep(models.StepRemovePlatformConnection, models.StepStarted, payload.Reason),
		},
	}
	if err := repos.SyncLog.Create(syncLog); err != nil {
		log.Warnf("[Remove] Could not create sync log for connection %d: %v", conn.ID, err)
		syncLog = nil
	}
	if syncLog != nil {
		job.Payload["sync_log_id"] = float64(syncLog.ID)
		q.updateJob(ctx, job)
	}

	if payload.Hard {
		if err := repos.Connection.HardDelete(conn); err != nil {
			return fmt.Errorf("failed to hard-delete connection %d: %w", conn.ID, err)
		}
	} else {
		reason := models.DeleteReason(payload.Reason)
		if reason == "" {
			reason = models.DeleteReasonUserRequest
		}
		conn.SoftDelete(reason)
		if err := repos.Connection.Save(conn); err != nil {
			return fmt.Errorf("failed to tombstone connection %d: %w", conn.ID, err)
		}
	}

	if syncLog != nil {
		step := models.NewSyncStep(models.StepRemovePlatformConnection, models.StepSucceeded, "")
		if err := repos.SyncLog.AppendStep(syncLog.ID, step); err != nil {
			log.Warnf("[Remove] Could not append sync step to log %d: %v", syncLog.ID, err)
		}
	}

	// Every subscriber learns the connection is gone.
	var syncLogID uint
	if syncLog != nil {
		syncLogID = syncLog.ID
	}
	for _, sub := range subscribers {
		notify := NotifyAppJobPayload{
			AppID:      sub.AppID,
			UserID:     payload.UserID,
			PlatformID: payload.PlatformID,
			State:      string(models.StateRemoved),
			Reason:     string(webhook.ReasonConnectionDeleted),
			Claim:      string(sub.Claim),
			SyncLogID:  syncLogID,
		}
		if _, err := q.EnqueueNotifyAppJob(notify); err != nil {
			log.Errorf("[Remove] Failed to enqueue deletion notice for app %d: %v", sub.AppID, err)
		}
	}

	return nil
}
