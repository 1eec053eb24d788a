package repository

import (
	"errors"

	"github.com/gigfolio/gigfolio/app/models"
	"gorm.io/gorm"
)

// platformDataRepository implements the PlatformDataRepository interface
type platformDataRepository struct {
	db *gorm.DB
}

// NewPlatformDataRepository creates a new platform data repository instance
func NewPlatformDataRepository(db *gorm.DB) PlatformDataRepository {
	return &platformDataRepository{db: db}
}

// GetByUserAndPlatform retrieves the latest snapshot for one (user, platform)
// pair, or nil when no fetch has completed yet.
func (r *platformDataRepository) GetByUserAndPlatform(userID, platformID uint) (*models.PlatformData, error) {
	var data models.PlatformData
	err := r.db.Where("user_id = ? AND platform_id = ?", userID, platformID).First(&data).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// Upsert writes the snapshot, replacing any previous one for the pair.
func (r *platformDataRepository) Upsert(data *models.PlatformData) error {
	if data.ID != 0 {
		return r.db.Save(data).Error
	}
	existing, err := r.GetByUserAndPlatform(data.UserID, data.PlatformID)
	if err != nil {
		return err
	}
	if existing != nil {
		data.ID = existing.ID
		data.CreatedAt = existing.CreatedAt
		return r.db.Save(data).Error
	}
	return r.db.Create(data).Error
}
