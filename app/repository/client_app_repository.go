package repository

import (
	"github.com/gigfolio/gigfolio/app/models"
	"gorm.io/gorm"
)

// clientAppRepository implements the ClientAppRepository interface
type clientAppRepository struct {
	db *gorm.DB
}

// NewClientAppRepository creates a new client app repository instance
func NewClientAppRepository(db *gorm.DB) ClientAppRepository {
	return &clientAppRepository{db: db}
}

// Create creates a new subscriber app in the database
func (r *clientAppRepository) Create(app *models.ClientApp) error {
	return r.db.Create(app).Error
}

// GetByID retrieves an app by its ID
func (r *clientAppRepository) GetByID(id uint) (*models.ClientApp, error) {
	var app models.ClientApp
	err := r.db.First(&app, id).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// GetByExternalID retrieves an app by its external GUID
func (r *clientAppRepository) GetByExternalID(externalID string) (*models.ClientApp, error) {
	var app models.ClientApp
	err := r.db.Where("external_id = ?", externalID).First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// GetBySecret retrieves an app by its shared secret
func (r *clientAppRepository) GetBySecret(secret string) (*models.ClientApp, error) {
	var app models.ClientApp
	err := r.db.Where("secret = ?", secret).First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// List retrieves apps with pagination
func (r *clientAppRepository) List(offset, limit int) ([]models.ClientApp, error) {
	var apps []models.ClientApp
	err := r.db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&apps).Error
	return apps, err
}

// Update saves changes to an existing app
func (r *clientAppRepository) Update(app *models.ClientApp) error {
	return r.db.Save(app).Error
}
