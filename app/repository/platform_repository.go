package repository

import (
	"github.com/gigfolio/gigfolio/app/models"
	"gorm.io/gorm"
)

// platformRepository implements the PlatformRepository interface
type platformRepository struct {
	db *gorm.DB
}

// NewPlatformRepository creates a new platform repository instance
func NewPlatformRepository(db *gorm.DB) PlatformRepository {
	return &platformRepository{db: db}
}

// Create creates a new platform in the database
func (r *platformRepository) Create(platform *models.Platform) error {
	return r.db.Create(platform).Error
}

// GetByID retrieves a platform by its ID
func (r *platformRepository) GetByID(id uint) (*models.Platform, error) {
	var platform models.Platform
	err := r.db.First(&platform, id).Error
	if err != nil {
		return nil, err
	}
	return &platform, nil
}

// GetByExternalID retrieves a platform by its external GUID
func (r *platformRepository) GetByExternalID(externalID string) (*models.Platform, error) {
	var platform models.Platform
	err := r.db.Where("external_id = ?", externalID).First(&platform).Error
	if err != nil {
		return nil, err
	}
	return &platform, nil
}

// GetByName retrieves a platform by its unique name
func (r *platformRepository) GetByName(name string) (*models.Platform, error) {
	var platform models.Platform
	err := r.db.Where("name = ?", name).First(&platform).Error
	if err != nil {
		return nil, err
	}
	return &platform, nil
}

// List retrieves all platforms
func (r *platformRepository) List() ([]models.Platform, error) {
	var platforms []models.Platform
	err := r.db.Order("name ASC").Find(&platforms).Error
	return platforms, err
}

// Update saves changes to an existing platform
func (r *platformRepository) Update(platform *models.Platform) error {
	return r.db.Save(platform).Error
}
