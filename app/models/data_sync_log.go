package models

import (
	"time"
)

// SyncStepType names the kind of work a sync step records.
type SyncStepType string

const (
	StepPlatformDataFetch        SyncStepType = "PlatformDataFetch"
	StepAppNotification          SyncStepType = "AppNotification"
	StepRemovePlatformConnection SyncStepType = "RemovePlatformConnection"
)

// SyncStepState is the outcome recorded for one step.
type SyncStepState string

const (
	StepStarted   SyncStepState = "Started"
	StepSucceeded SyncStepState = "Succeeded"
	StepFailed    SyncStepState = "Failed"
)

// DataSyncLog is the append-only audit trail of one fetch-and-notify cycle.
// It never drives control flow; steps are best-effort annotations and a
// missing log is tolerated everywhere.
type DataSyncLog struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CorrelationID string         `gorm:"index;type:varchar(100)" json:"correlation_id"`
	UserID        uint           `gorm:"index" json:"user_id"`
	PlatformID    uint           `gorm:"index" json:"platform_id"`
	Steps         []DataSyncStep `gorm:"foreignKey:SyncLogID" json:"steps,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// DataSyncStep is one appended entry in a sync log. Rows are never updated.
type DataSyncStep struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	SyncLogID   uint          `gorm:"index" json:"sync_log_id"`
	Type        SyncStepType  `gorm:"type:varchar(40)" json:"type"`
	State       SyncStepState `gorm:"type:varchar(20)" json:"state"`
	Message     string        `gorm:"type:text" json:"message,omitempty"`
	TargetAppID *uint         `gorm:"default:null" json:"target_app_id,omitempty"`
	TargetURL   string        `gorm:"type:varchar(500)" json:"target_url,omitempty"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// NewSyncStep builds a step ready for appending.
func NewSyncStep(stepType SyncStepType, state SyncStepState, message string) DataSyncStep {
	return DataSyncStep{
		Type:    stepType,
		State:   state,
		Message: message,
	}
}

// NewNotificationStep builds an app-notification step targeting one app.
func NewNotificationStep(state SyncStepState, appID uint, targetURL string, message string) DataSyncStep {
	id := appID
	return DataSyncStep{
		Type:        StepAppNotification,
		State:       state,
		Message:     message,
		TargetAppID: &id,
		TargetURL:   targetURL,
	}
}
