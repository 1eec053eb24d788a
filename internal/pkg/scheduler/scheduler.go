// Package scheduler decides when platform connections are due for a data
// refresh. It runs a coarse index query first and applies the precise
// ripeness rule per connection, so a cycle never loads the whole user
// population.
package scheduler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/gigfolio/gigfolio/app/models"
	"github.com/gigfolio/gigfolio/app/repository"
	"github.com/gigfolio/gigfolio/internal/pkg/env"
	"github.com/gigfolio/gigfolio/internal/pkg/jobqueue"
)

// DefaultTriggerIntervalMinutes is the wall-clock cadence of the scheduler.
const DefaultTriggerIntervalMinutes = 5

// FetchEnqueuer enqueues one fetch job per ripe connection.
type FetchEnqueuer interface {
	EnqueueFetchPlatformJob(userID, platformID, connectionID uint) (*jobqueue.Job, error)
}

// Scheduler periodically scans for ripe connections and dispatches fetch jobs.
type Scheduler struct {
	users    repository.UserRepository
	conns    repository.ConnectionRepository
	enqueuer FetchEnqueuer
	now      func() time.Time
}

// NewScheduler creates a scheduler over the given repositories and queue.
func NewScheduler(users repository.UserRepository, conns repository.ConnectionRepository, enqueuer FetchEnqueuer) *Scheduler {
	return &Scheduler{
		users:    users,
		conns:    conns,
		enqueuer: enqueuer,
		now:      time.Now,
	}
}

// TriggerInterval returns the configured wall-clock cadence.
func TriggerInterval() time.Duration {
	return time.Duration(env.GetEnvInt("FETCH_TRIGGER_INTERVAL_MINUTES", DefaultTriggerIntervalMinutes)) * time.Minute
}

// Start runs the scheduler until the context is cancelled. One cycle runs
// immediately on startup.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Infof("[Scheduler] Started (interval: %s)", interval)

	if err := s.RunOnce(ctx); err != nil {
		log.Errorf("[Scheduler] Cycle failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("[Scheduler] Stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				log.Errorf("[Scheduler] Cycle failed: %v", err)
			}
		}
	}
}

// RunOnce executes one scheduling cycle. It is also the on-demand trigger.
//
// Phase one: the globally smallest poll interval bounds a cutoff, and the
// index query returns every user who might own a ripe connection. Phase two:
// each candidate's connections are checked precisely; ripe ones are marked
// in-flight and get exactly one fetch job. Marker mutations are persisted in
// a single batch at the end of the cycle.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := s.now()

	minInterval, err := s.conns.MinPollInterval()
	if err != nil {
		return err
	}
	if minInterval == nil {
		log.Debug("[Scheduler] No connection has a poll interval configured")
		return nil
	}

	cutoff := start.Add(-time.Duration(*minInterval) * time.Second)
	candidateIDs, err := s.conns.CandidateUserIDs(cutoff)
	if err != nil {
		return err
	}
	if len(candidateIDs) == 0 {
		return nil
	}

	var dirty []*models.PlatformConnection
	dispatched := 0

	for _, userID := range candidateIDs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		user, err := s.users.GetWithConnections(userID)
		if err != nil {
			log.Errorf("[Scheduler] Could not load user %d: %v", userID, err)
			continue
		}

		for _, conn := range user.ActiveConnections() {
			if !conn.Ripe(start) {
				continue
			}

			conn.MarkAttemptStarted(start)
			if _, err := s.enqueuer.EnqueueFetchPlatformJob(user.ID, conn.PlatformID, conn.ID); err != nil {
				log.Errorf("[Scheduler] Could not enqueue fetch for connection %d: %v", conn.ID, err)
				continue
			}
			dirty = append(dirty, conn)
			dispatched++
		}
	}

	if err := s.conns.SaveBatch(dirty); err != nil {
		return err
	}

	if dispatched > 0 {
		log.Infof("[Scheduler] Cycle dispatched %d fetch jobs across %d candidate users in %s",
			dispatched, len(candidateIDs), time.Since(start))
	}

	return nil
}
