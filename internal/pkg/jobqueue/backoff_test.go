package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay_Schedule(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 0},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 32 * time.Second},
		{7, 64 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BackoffDelay(tt.attempt, DefaultMaxDelaySeconds),
			"attempt %d", tt.attempt)
	}
}

func TestBackoffDelay_Cap(t *testing.T) {
	maxDelay := time.Duration(DefaultMaxDelaySeconds) * time.Second

	// 2^12/2 = 2048s exceeds the 1024s cap.
	assert.Equal(t, maxDelay, BackoffDelay(12, DefaultMaxDelaySeconds))
	assert.Equal(t, maxDelay, BackoffDelay(50, DefaultMaxDelaySeconds))
	assert.Equal(t, maxDelay, BackoffDelay(100, DefaultMaxDelaySeconds))
}

func TestBackoffDelay_InvalidAttempt(t *testing.T) {
	assert.Equal(t, time.Duration(0), BackoffDelay(0, DefaultMaxDelaySeconds))
	assert.Equal(t, time.Duration(0), BackoffDelay(-3, DefaultMaxDelaySeconds))
}

func TestRetryDelay_FixedForCorrelation(t *testing.T) {
	job := &Job{Type: JobTypeFetchComplete, RetryCount: 3}
	assert.Equal(t, 30*time.Second, retryDelay(job))

	// The fixed delay does not grow with the attempt counter.
	job.RetryCount = 4
	assert.Equal(t, 30*time.Second, retryDelay(job))
}

func TestRetryDelay_ExponentialForNotify(t *testing.T) {
	job := &Job{Type: JobTypeNotifyApp, RetryCount: 2}
	assert.Equal(t, 2*time.Second, retryDelay(job))

	job.RetryCount = 6
	assert.Equal(t, 32*time.Second, retryDelay(job))
}
