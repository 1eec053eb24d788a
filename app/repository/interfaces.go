package repository

import (
	"time"

	"github.com/gigfolio/gigfolio/app/models"
)

// UserRepository defines user-related database operations.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByExternalID(externalID string) (*models.User, error)
	// GetWithConnections loads the user with connections and their subscriber
	// lists preloaded.
	GetWithConnections(id uint) (*models.User, error)
	Update(user *models.User) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// PlatformRepository defines platform-related database operations.
type PlatformRepository interface {
	Create(platform *models.Platform) error
	GetByID(id uint) (*models.Platform, error)
	GetByExternalID(externalID string) (*models.Platform, error)
	GetByName(name string) (*models.Platform, error)
	List() ([]models.Platform, error)
	Update(platform *models.Platform) error
}

// ClientAppRepository defines subscriber-app database operations.
type ClientAppRepository interface {
	Create(app *models.ClientApp) error
	GetByID(id uint) (*models.ClientApp, error)
	GetByExternalID(externalID string) (*models.ClientApp, error)
	GetBySecret(secret string) (*models.ClientApp, error)
	List(offset, limit int) ([]models.ClientApp, error)
	Update(app *models.ClientApp) error
}

// ConnectionRepository defines platform-connection database operations,
// including the scheduler's coarse index queries. Connections are owned by
// the User aggregate; this repository exists so the scheduler can query the
// connection table without loading every user.
type ConnectionRepository interface {
	GetByID(id uint) (*models.PlatformConnection, error)
	GetByUserAndPlatform(userID, platformID uint) (*models.PlatformConnection, error)
	Save(conn *models.PlatformConnection) error
	// SaveBatch persists a scheduler cycle's marker mutations in one transaction.
	SaveBatch(conns []*models.PlatformConnection) error
	// HardDelete removes the connection row and its subscriber list.
	HardDelete(conn *models.PlatformConnection) error
	// MinPollInterval returns the globally smallest configured poll interval
	// across non-deleted connections, or nil when none is configured.
	MinPollInterval() (*int, error)
	// CandidateUserIDs returns ids of users owning at least one pollable,
	// non-deleted connection whose last completion is unset or older than
	// cutoff. A cheap over-approximation of ripeness; callers re-check
	// precisely per connection.
	CandidateUserIDs(cutoff time.Time) ([]uint, error)
}

// SyncLogRepository defines sync-log database operations. Appends are
// best-effort; callers log failures and continue.
type SyncLogRepository interface {
	Create(log *models.DataSyncLog) error
	GetByID(id uint) (*models.DataSyncLog, error)
	GetByCorrelationID(correlationID string) (*models.DataSyncLog, error)
	// UpdateCorrelationID swaps in the platform's opaque request id once an
	// async fetch has been initiated.
	UpdateCorrelationID(syncLogID uint, correlationID string) error
	AppendStep(syncLogID uint, step models.DataSyncStep) error
}

// PlatformDataRepository defines snapshot database operations.
type PlatformDataRepository interface {
	GetByUserAndPlatform(userID, platformID uint) (*models.PlatformData, error)
	Upsert(data *models.PlatformData) error
}
