package jobqueue

import (
	"math"
	"time"

	"github.com/gigfolio/gigfolio/internal/pkg/env"
)

const (
	// DefaultNotifyMaxAttempts is the delivery retry cap before dead-lettering.
	DefaultNotifyMaxAttempts = 100
	// DefaultMaxDelaySeconds caps the exponential backoff at ~17 minutes.
	DefaultMaxDelaySeconds = 1024
	// DefaultCorrelationMaxRetries bounds correlation-miss redelivery.
	DefaultCorrelationMaxRetries = 5
	// DefaultCorrelationRetryDelaySeconds is the fixed correlation-miss delay.
	DefaultCorrelationRetryDelaySeconds = 30
)

// BackoffDelay computes the deferral before the given delivery attempt:
// half of (2^attempt - 1) seconds, rounded to the nearest even second and
// capped at maxDelaySeconds. Attempts 1..6 yield 0, 2, 4, 8, 16, 32 seconds.
func BackoffDelay(attempt int, maxDelaySeconds int) time.Duration {
	if attempt < 1 {
		return 0
	}
	maxDelay := time.Duration(maxDelaySeconds) * time.Second
	// 2^attempt overtakes any sane cap long before the exponent gets large.
	if attempt > 30 {
		return maxDelay
	}
	seconds := math.RoundToEven((math.Pow(2, float64(attempt)) - 1) / 2)
	delay := time.Duration(seconds) * time.Second
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func notifyMaxAttempts() int {
	return env.GetEnvInt("NOTIFY_MAX_ATTEMPTS", DefaultNotifyMaxAttempts)
}

func notifyMaxDelaySeconds() int {
	return env.GetEnvInt("NOTIFY_MAX_DELAY_SECONDS", DefaultMaxDelaySeconds)
}

func correlationMaxRetries() int {
	return env.GetEnvInt("CORRELATION_MAX_RETRIES", DefaultCorrelationMaxRetries)
}

func correlationRetryDelay() time.Duration {
	return time.Duration(env.GetEnvInt("CORRELATION_RETRY_DELAY_SECONDS", DefaultCorrelationRetryDelaySeconds)) * time.Second
}

// retryDelay selects the deferral for a failed job. Correlation lookups use a
// short fixed delay; everything else backs off exponentially on the attempt
// counter carried in the job.
func retryDelay(job *Job) time.Duration {
	switch job.Type {
	case JobTypeFetchComplete:
		return correlationRetryDelay()
	default:
		return BackoffDelay(job.RetryCount, notifyMaxDelaySeconds())
	}
}
