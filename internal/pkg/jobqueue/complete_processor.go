package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio/app/models"
	"github.com/gigfolio/gigfolio/app/repository"
	"github.com/gigfolio/gigfolio/internal/pkg/correlation"
	"github.com/gigfolio/gigfolio/internal/pkg/database"
	"github.com/gigfolio/gigfolio/internal/pkg/webhook"
)

// EnqueueFetchCallbackJob enqueues an asynchronous platform callback for
// completion processing. Only the opaque request id and the payload are known
// at this point; the origin is resolved through the correlation store.
func (q *Queue) EnqueueFetchCallbackJob(requestID string, result *models.PlatformDataFetchResult, malformed bool) (*Job, error) {
	payload := FetchCompleteJobPayload{
		RequestID: requestID,
		Result:    result,
		Malformed: malformed,
	}
	return q.EnqueueJob(JobTypeFetchComplete, payload.ToMap())
}

// processFetchCompleteJob finishes one fetch cycle: resolve the origin,
// persist the snapshot, advance the connection state and fan out one
// notification job per subscriber. All database mutations commit in a single
// transaction; a failure before that point leaves no partial state and the
// job is redelivered.
func (q *Queue) processFetchCompleteJob(ctx context.Context, job *Job) error {
	payload, perr := FetchCompleteJobPayloadFromMap(job.Payload)
	if perr != nil {
		return Drop(fmt.Errorf("failed to parse fetch complete payload: %w", perr))
	}

	repos := repository.GetGlobalRepositories()

	if !payload.Resolved() {
		entry, err := correlation.Resolve(ctx, payload.RequestID)
		if err != nil {
			if errors.Is(err, correlation.ErrNotFound) {
				// The callback may have raced ahead of the cache write; the
				// queue redelivers it a bounded number of times. A miss on
				// the last delivery means the entry expired or was never
				// written, so the origin cannot be recovered: discard with a
				// log instead of dead-lettering a job nobody can replay.
				if job.OnFinalAttempt() {
					return Drop(fmt.Errorf("correlation for request %s unrecoverably lost after %d deliveries", payload.RequestID, job.RetryCount+1))
				}
				return fmt.Errorf("no correlation entry for request %s yet", payload.RequestID)
			}
			return fmt.Errorf("correlation lookup for request %s failed: %w", payload.RequestID, err)
		}
		payload.UserID = entry.UserID
		payload.PlatformID = entry.PlatformID
		payload.SyncLogID = entry.SyncLogID
		// Persist the resolved origin so a later redelivery (e.g. webhook
		// fan-out failure) does not need the consumed cache entry again.
		job.Payload = payload.ToMap()
		q.updateJob(ctx, job)
	}

	conn, err := repos.Connection.GetByUserAndPlatform(payload.UserID, payload.PlatformID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Drop(fmt.Errorf("connection for user %d / platform %d disappeared before completion", payload.UserID, payload.PlatformID))
		}
		return fmt.Errorf("failed to load connection: %w", err)
	}
	if conn.IsDeleted {
		return Drop(fmt.Errorf("connection %d was tombstoned mid-fetch, discarding result", conn.ID))
	}

	if _, err := repos.User.GetByID(payload.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The owning user vanished between dispatch and completion.
			conn.SoftDelete(models.DeleteReasonUserDidNotExist)
			if serr := repos.Connection.Save(conn); serr != nil {
				return fmt.Errorf("failed to tombstone orphaned connection %d: %w", conn.ID, serr)
			}
			return Drop(fmt.Errorf("user %d did not exist at fetch completion", payload.UserID))
		}
		return fmt.Errorf("failed to load user %d: %w", payload.UserID, err)
	}

	result := payload.Result
	if payload.Malformed || result == nil {
		// Malformed upstream data counts as a successful fetch with empty
		// data so a permanently broken upstream cannot retry forever.
		log.Warnf("[FetchComplete] Malformed or empty platform data for connection %d, storing empty snapshot", conn.ID)
		result = &models.PlatformDataFetchResult{}
	}

	now := time.Now()

	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		txRepos := repository.NewRepositories(tx)

		data, err := txRepos.PlatformData.GetByUserAndPlatform(payload.UserID, payload.PlatformID)
		if err != nil {
			return err
		}
		if data == nil {
			data = &models.PlatformData{
				UserID:     payload.UserID,
				PlatformID: payload.PlatformID,
			}
		}
		if err := data.ApplyResult(result); err != nil {
			return fmt.Errorf("failed to apply fetch result: %w", err)
		}
		if err := txRepos.PlatformData.Upsert(data); err != nil {
			return err
		}

		conn.MarkAttemptCompleted(now, true)
		return txRepos.Connection.Save(conn)
	})
	if err != nil {
		return fmt.Errorf("failed to persist fetch completion for connection %d: %w", conn.ID, err)
	}

	if payload.SyncLogID != 0 {
		step := models.NewSyncStep(models.StepPlatformDataFetch, models.StepSucceeded, "")
		if err := repos.SyncLog.AppendStep(payload.SyncLogID, step); err != nil {
			log.Warnf("[FetchComplete] Could not append sync step to log %d: %v", payload.SyncLogID, err)
		}
	}

	// Fan out one notification per subscriber; per-app delivery is isolated.
	for _, sub := range conn.Subscribers {
		notify := NotifyAppJobPayload{
			AppID:      sub.AppID,
			UserID:     payload.UserID,
			PlatformID: payload.PlatformID,
			State:      string(conn.State),
			Reason:     string(webhook.ReasonDataUpdate),
			Claim:      string(sub.Claim),
			SyncLogID:  payload.SyncLogID,
		}
		if _, err := q.EnqueueNotifyAppJob(notify); err != nil {
			log.Errorf("[FetchComplete] Failed to enqueue notification for app %d: %v", sub.AppID, err)
		}
	}

	return nil
}
