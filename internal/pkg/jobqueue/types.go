package jobqueue

import (
	"encoding/json"
	"time"

	"github.com/gigfolio/gigfolio/app/models"
)

// JobType defines the type of job
type JobType string

const (
	// JobTypeFetchPlatform asks the platform fetcher to start one data fetch
	// for one connection.
	JobTypeFetchPlatform JobType = "fetch_platform"
	// JobTypeFetchComplete carries (or correlates) the result of a finished
	// platform fetch.
	JobTypeFetchComplete JobType = "fetch_complete"
	// JobTypeNotifyApp delivers one webhook notification to one subscriber.
	JobTypeNotifyApp JobType = "notify_app"
	// JobTypeRemoveConnection tears down a connection and fans out the
	// deletion notice.
	JobTypeRemoveConnection JobType = "remove_connection"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
	JobStatusDeadLetter JobStatus = "dead_letter"
)

// Job represents a background job. RetryCount is carried in the job body so
// the attempt counter survives process restarts.
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// IsRetryable reports whether the job still has retry budget left.
func (j *Job) IsRetryable() bool {
	return j.RetryCount < j.MaxRetries
}

// OnFinalAttempt reports whether the current delivery is the job's last one:
// a failure now exhausts the retry budget.
func (j *Job) OnFinalAttempt() bool {
	return j.RetryCount >= j.MaxRetries-1
}

// MarkAsProcessing transitions the job to processing.
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.ProcessedAt = &now
	j.UpdatedAt = now
}

// MarkAsCompleted transitions the job to completed and clears any error.
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.ErrorMsg = ""
	j.UpdatedAt = now
}

// MarkAsFailed records the failure and increments the attempt counter.
func (j *Job) MarkAsFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMsg = errMsg
	j.RetryCount++
	j.UpdatedAt = time.Now()
}

// MarkAsRetrying transitions the job to retrying ahead of its redelivery.
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}

// maxRetriesFor returns the retry budget per job type. Notifications retry up
// to the configured delivery cap; correlation lookups get a small fixed
// budget; fetches sit in between.
func maxRetriesFor(jobType JobType) int {
	switch jobType {
	case JobTypeNotifyApp:
		return notifyMaxAttempts()
	case JobTypeFetchComplete:
		return correlationMaxRetries()
	default:
		return DefaultMaxRetries
	}
}

// FetchPlatformJobPayload identifies the connection a fetch job serves.
type FetchPlatformJobPayload struct {
	UserID       uint `json:"user_id"`
	PlatformID   uint `json:"platform_id"`
	ConnectionID uint `json:"connection_id"`
}

// ToMap converts the payload to a map for storage
func (p FetchPlatformJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       p.UserID,
		"platform_id":   p.PlatformID,
		"connection_id": p.ConnectionID,
	}
}

// FetchPlatformJobPayloadFromMap creates a payload from a map
func FetchPlatformJobPayloadFromMap(data map[string]interface{}) (*FetchPlatformJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload FetchPlatformJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// FetchCompleteJobPayload carries a finished fetch. Synchronous fetchers fill
// the ids and result inline; asynchronous callbacks carry only the request id
// and are resolved through the correlation store.
type FetchCompleteJobPayload struct {
	RequestID  string                          `json:"request_id,omitempty"`
	UserID     uint                            `json:"user_id,omitempty"`
	PlatformID uint                            `json:"platform_id,omitempty"`
	SyncLogID  uint                            `json:"sync_log_id,omitempty"`
	Result     *models.PlatformDataFetchResult `json:"result,omitempty"`
	Malformed  bool                            `json:"malformed,omitempty"`
}

// Resolved reports whether the payload already carries its origin ids.
func (p *FetchCompleteJobPayload) Resolved() bool {
	return p.UserID != 0 && p.PlatformID != 0
}

// ToMap converts the payload to a map for storage
func (p FetchCompleteJobPayload) ToMap() map[string]interface{} {
	jsonData, err := json.Marshal(p)
	if err != nil {
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(jsonData, &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}

// FetchCompleteJobPayloadFromMap creates a payload from a map
func FetchCompleteJobPayloadFromMap(data map[string]interface{}) (*FetchCompleteJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload FetchCompleteJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// NotifyAppJobPayload targets one subscriber app with one notification.
// State and claim are snapshotted at fan-out time so delivery still works
// after a hard delete removed the connection row.
type NotifyAppJobPayload struct {
	AppID      uint   `json:"app_id"`
	UserID     uint   `json:"user_id"`
	PlatformID uint   `json:"platform_id"`
	State      string `json:"state"`
	Reason     string `json:"reason"`
	Claim      string `json:"claim"`
	SyncLogID  uint   `json:"sync_log_id,omitempty"`
}

// ToMap converts the payload to a map for storage
func (p NotifyAppJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"app_id":      p.AppID,
		"user_id":     p.UserID,
		"platform_id": p.PlatformID,
		"state":       p.State,
		"reason":      p.Reason,
		"claim":       p.Claim,
		"sync_log_id": p.SyncLogID,
	}
}

// NotifyAppJobPayloadFromMap creates a payload from a map
func NotifyAppJobPayloadFromMap(data map[string]interface{}) (*NotifyAppJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload NotifyAppJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// RemoveConnectionJobPayload tears down one connection. Hard removals drop the
// row; soft removals tombstone it with the given reason.
type RemoveConnectionJobPayload struct {
	UserID     uint   `json:"user_id"`
	PlatformID uint   `json:"platform_id"`
	Hard       bool   `json:"hard"`
	Reason     string `json:"reason,omitempty"`
}

// ToMap converts the payload to a map for storage
func (p RemoveConnectionJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     p.UserID,
		"platform_id": p.PlatformID,
		"hard":        p.Hard,
		"reason":      p.Reason,
	}
}

// RemoveConnectionJobPayloadFromMap creates a payload from a map
func RemoveConnectionJobPayloadFromMap(data map[string]interface{}) (*RemoveConnectionJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload RemoveConnectionJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}
