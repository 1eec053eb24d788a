//go:build integration
// +build integration

package jobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigfolio/gigfolio/app/repository"
)

func setupRedisQueue(t *testing.T) (*Queue, context.Context) {
	t.Helper()

	host, port := resolveTestRedis(t)
	configureTestCache(host, port)

	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	queue := NewQueue(1)
	queue.client = client
	resetJobQueueRedisWithClient(t, client)
	t.Cleanup(func() {
		resetJobQueueRedisWithClient(t, client)
	})
	return queue, context.Background()
}

func TestEnqueueNotifyAppJob(t *testing.T) {
	queue, ctx := setupRedisQueue(t)

	job, err := queue.EnqueueNotifyAppJob(NotifyAppJobPayload{
		AppID:      7,
		UserID:     1,
		PlatformID: 2,
		State:      "Connected",
		Reason:     "DataUpdate",
		Claim:      "full",
	})
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, JobTypeNotifyApp, job.Type)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, notifyMaxAttempts(), job.MaxRetries)

	size, err := queue.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)
}

func TestProcessJob_CorrelationMissRetriesThenDrops(t *testing.T) {
	// The correlation-miss path returns before any repository call; the
	// factory only needs to exist.
	repository.InitializeFactory(nil)
	queue, ctx := setupRedisQueue(t)

	job := &Job{
		ID:         "corr-miss-job",
		Type:       JobTypeFetchComplete,
		Status:     JobStatusPending,
		Payload:    FetchCompleteJobPayload{RequestID: "req-unknown"}.ToMap(),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: 2,
	}
	queue.updateJob(ctx, job)

	// First delivery: the miss is still retryable.
	queue.processJob(ctx, job)
	assert.Equal(t, JobStatusRetrying, job.Status)
	assert.Equal(t, 1, job.RetryCount)

	size, err := queue.DeadLetterSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, size)

	// Final delivery: the entry is declared lost and the job is discarded
	// with a log, never dead-lettered.
	queue.processJob(ctx, job)
	assert.Equal(t, JobStatusFailed, job.Status)

	size, err = queue.DeadLetterSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, size)

	stats, err := queue.GetJobStats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats[JobStatusFailed], int64(1))
}

func TestProcessJob_UnknownTypeDropped(t *testing.T) {
	queue, ctx := setupRedisQueue(t)

	job := &Job{
		ID:         "mystery-job",
		Type:       JobType("mystery"),
		Status:     JobStatusPending,
		Payload:    map[string]interface{}{},
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		MaxRetries: 3,
	}
	queue.updateJob(ctx, job)

	queue.processJob(ctx, job)
	assert.Equal(t, JobStatusFailed, job.Status)

	size, err := queue.DeadLetterSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, size)
}

func TestQueue_DeadLetterExactlyOnce(t *testing.T) {
	queue, ctx := setupRedisQueue(t)

	created, err := queue.EnqueueJob(JobTypeNotifyApp, map[string]interface{}{"app_id": float64(1)})
	require.NoError(t, err)

	job, err := queue.dequeueJob(ctx)
	require.NoError(t, err)
	require.Equal(t, created.ID, job.ID)

	job.MarkAsFailed("delivery failed")
	job.RetryCount = job.MaxRetries
	queue.deadLetter(ctx, job)
	queue.removeFromProcessing(ctx, job.ID)

	size, err := queue.DeadLetterSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)

	// The job body is deleted along with the dead-letter push, so no worker
	// or sweeper can ever deliver it again.
	_, err = queue.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, redis.Nil)

	queueSize, err := queue.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, queueSize)

	processingSize, err := queue.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, processingSize)

	stats, err := queue.GetJobStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats[JobStatusDeadLetter])
}
