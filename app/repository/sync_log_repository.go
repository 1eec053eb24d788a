package repository

import (
	"github.com/gigfolio/gigfolio/app/models"
	"gorm.io/gorm"
)

// syncLogRepository implements the SyncLogRepository interface
type syncLogRepository struct {
	db *gorm.DB
}

// NewSyncLogRepository creates a new sync log repository instance
func NewSyncLogRepository(db *gorm.DB) SyncLogRepository {
	return &syncLogRepository{db: db}
}

// Create creates a new sync log with any initial steps
func (r *syncLogRepository) Create(log *models.DataSyncLog) error {
	return r.db.Create(log).Error
}

// GetByID retrieves a sync log with its steps in append order
func (r *syncLogRepository) GetByID(id uint) (*models.DataSyncLog, error) {
	var log models.DataSyncLog
	err := r.db.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("data_sync_steps.id ASC")
	}).First(&log, id).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// GetByCorrelationID retrieves a sync log by its external correlation id
func (r *syncLogRepository) GetByCorrelationID(correlationID string) (*models.DataSyncLog, error) {
	var log models.DataSyncLog
	err := r.db.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("data_sync_steps.id ASC")
	}).Where("correlation_id = ?", correlationID).First(&log).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// UpdateCorrelationID swaps in the platform's opaque request id
func (r *syncLogRepository) UpdateCorrelationID(syncLogID uint, correlationID string) error {
	return r.db.Model(&models.DataSyncLog{}).Where("id = ?", syncLogID).
		Update("correlation_id", correlationID).Error
}

// AppendStep appends one step to an existing log. Existing steps are never
// touched.
func (r *syncLogRepository) AppendStep(syncLogID uint, step models.DataSyncStep) error {
	step.SyncLogID = syncLogID
	return r.db.Create(&step).Error
}
