// Package counter accumulates webhook delivery counters in Redis and flushes
// them to the database in batches, keeping the hot delivery path off the
// database.
package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gigfolio/gigfolio/internal/pkg/cache"
	"github.com/gigfolio/gigfolio/internal/pkg/database"
)

const (
	deliveredKey = "webhook:counters:delivered"
	failedKey    = "webhook:counters:failed"
)

// AddDelivered increments the pending delivered counter for an app in Redis
func AddDelivered(appID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(appID), 10)
	return cache.GetClient().HIncrBy(ctx, deliveredKey, field, 1).Err()
}

// AddFailed increments the pending failed counter for an app in Redis
func AddFailed(appID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(appID), 10)
	return cache.GetClient().HIncrBy(ctx, failedKey, field, 1).Err()
}

// FlushAll flushes both delivery counters to the database
func FlushAll() error {
	if err := flushHashToTable(deliveredKey, "client_apps", "delivered_count"); err != nil {
		return err
	}
	return flushHashToTable(failedKey, "client_apps", "failed_count")
}

// flushHashToTable drains a Redis hash atomically and applies batched
// increments to the target table. Uses RENAME to a temporary key so in-flight
// increments are not lost during the drain.
func flushHashToTable(redisKey, table, column string) error {
	ctx := context.Background()
	rdb := cache.GetClient()

	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", redisKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		if err.Error() == "redis: nil" {
			return nil
		}
		return err
	}

	// Ensure cleanup of tmpKey even if later steps fail
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	type pair struct {
		id  uint64
		inc int64
	}
	pairs := make([]pair, 0, len(data))
	for k, v := range data {
		id, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			continue
		}
		inc, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		pairs = append(pairs, pair{id: id, inc: inc})
	}
	if len(pairs) == 0 {
		return nil
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	// UPDATE <table> SET <column> = <column> + CASE id WHEN ? THEN ? ... END WHERE id IN (...)
	var builder strings.Builder
	args := make([]interface{}, 0, len(pairs)*3)
	builder.WriteString("UPDATE ")
	builder.WriteString(table)
	builder.WriteString(" SET ")
	builder.WriteString(column)
	builder.WriteString(" = ")
	builder.WriteString(column)
	builder.WriteString(" + CASE id")
	for _, p := range pairs {
		builder.WriteString(" WHEN ? THEN ?")
		args = append(args, p.id, p.inc)
	}
	builder.WriteString(" END WHERE id IN (")
	for i, p := range pairs {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("?")
		args = append(args, p.id)
	}
	builder.WriteString(")")

	return database.GetDB().Exec(builder.String(), args...).Error
}
