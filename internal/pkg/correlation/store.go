// Package correlation maps opaque external fetch request ids back to the
// (user, platform, sync log) triple that originated them. Entries are
// time-boxed in Redis and consumed exactly once; there is no cleanup job
// beyond the TTL.
package correlation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gigfolio/gigfolio/internal/pkg/cache"
	"github.com/gigfolio/gigfolio/internal/pkg/env"
)

const keyPrefix = "fetchreq:"

// DefaultTTLHours bounds how long an async platform callback may lag behind
// its originating request.
const DefaultTTLHours = 6

// ErrNotFound means no entry exists for the request id: the callback either
// raced ahead of the cache write or the entry already expired or was consumed.
var ErrNotFound = errors.New("correlation entry not found")

// Entry is the origin of one asynchronous fetch request.
type Entry struct {
	UserID     uint `json:"user_id"`
	PlatformID uint `json:"platform_id"`
	SyncLogID  uint `json:"sync_log_id"`
}

// TTL returns the configured entry lifetime.
func TTL() time.Duration {
	return time.Duration(env.GetEnvInt("CORRELATION_TTL_HOURS", DefaultTTLHours)) * time.Hour
}

// Register stores the origin of an async fetch request under its opaque id.
func Register(ctx context.Context, requestID string, entry Entry) error {
	if requestID == "" {
		return fmt.Errorf("empty correlation request id")
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal correlation entry: %w", err)
	}
	return cache.GetClient().Set(ctx, keyPrefix+requestID, data, TTL()).Err()
}

// Resolve looks up and consumes the entry for a request id. The GETDEL keeps
// consumption exactly-once even when a callback is delivered twice.
func Resolve(ctx context.Context, requestID string) (*Entry, error) {
	data, err := cache.GetClient().GetDel(ctx, keyPrefix+requestID).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("correlation lookup failed: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal correlation entry: %w", err)
	}
	return &entry, nil
}
