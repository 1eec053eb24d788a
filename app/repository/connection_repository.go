package repository

import (
	"time"

	"github.com/gigfolio/gigfolio/app/models"
	"gorm.io/gorm"
)

// connectionRepository implements the ConnectionRepository interface
type connectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new connection repository instance
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

// GetByID retrieves a connection by primary key with its subscriber list.
func (r *connectionRepository) GetByID(id uint) (*models.PlatformConnection, error) {
	var conn models.PlatformConnection
	err := r.db.Preload("Subscribers").First(&conn, id).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// GetByUserAndPlatform retrieves the connection for one (user, platform) pair
// with its subscriber list preloaded. Tombstoned rows are returned too.
func (r *connectionRepository) GetByUserAndPlatform(userID, platformID uint) (*models.PlatformConnection, error) {
	var conn models.PlatformConnection
	err := r.db.Preload("Subscribers").
		Where("user_id = ? AND platform_id = ?", userID, platformID).
		First(&conn).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// Save persists the connection and its subscriber list.
func (r *connectionRepository) Save(conn *models.PlatformConnection) error {
	return r.db.Session(&gorm.Session{FullSaveAssociations: true}).Save(conn).Error
}

// SaveBatch persists a scheduler cycle's marker mutations in one transaction.
func (r *connectionRepository) SaveBatch(conns []*models.PlatformConnection) error {
	if len(conns) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, conn := range conns {
			if err := tx.Model(conn).Select("last_attempt_started_at", "last_attempt_completed_at").
				Updates(map[string]interface{}{
					"last_attempt_started_at":   conn.LastAttemptStartedAt,
					"last_attempt_completed_at": conn.LastAttemptCompletedAt,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// HardDelete removes the connection row and its subscriber list.
func (r *connectionRepository) HardDelete(conn *models.PlatformConnection) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("connection_id = ?", conn.ID).Delete(&models.NotificationInfo{}).Error; err != nil {
			return err
		}
		return tx.Delete(conn).Error
	})
}

// MinPollInterval returns the smallest configured poll interval across
// non-deleted connections, nil when nothing is configured for polling.
func (r *connectionRepository) MinPollInterval() (*int, error) {
	var min *int
	err := r.db.Model(&models.PlatformConnection{}).
		Where("is_deleted = ? AND poll_interval_seconds IS NOT NULL", false).
		Select("MIN(poll_interval_seconds)").
		Scan(&min).Error
	if err != nil {
		return nil, err
	}
	return min, nil
}

// CandidateUserIDs returns users who might own a ripe connection: at least one
// pollable, non-deleted connection never completed or completed before cutoff.
func (r *connectionRepository) CandidateUserIDs(cutoff time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.PlatformConnection{}).
		Where("is_deleted = ? AND poll_interval_seconds IS NOT NULL", false).
		Where("last_attempt_completed_at IS NULL OR last_attempt_completed_at < ?", cutoff).
		Distinct().
		Pluck("user_id", &ids).Error
	return ids, err
}
