package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Repositories bundles all repository instances sharing one database handle.
type Repositories struct {
	User         UserRepository
	Platform     PlatformRepository
	ClientApp    ClientAppRepository
	Connection   ConnectionRepository
	SyncLog      SyncLogRepository
	PlatformData PlatformDataRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Platform:     NewPlatformRepository(db),
		ClientApp:    NewClientAppRepository(db),
		Connection:   NewConnectionRepository(db),
		SyncLog:      NewSyncLogRepository(db),
		PlatformData: NewPlatformDataRepository(db),
	}
}

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetUserRepository returns the user repository instance
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

// GetPlatformRepository returns the platform repository instance
func (f *Factory) GetPlatformRepository() PlatformRepository {
	return f.GetRepositories().Platform
}

// GetClientAppRepository returns the client app repository instance
func (f *Factory) GetClientAppRepository() ClientAppRepository {
	return f.GetRepositories().ClientApp
}

// GetConnectionRepository returns the connection repository instance
func (f *Factory) GetConnectionRepository() ConnectionRepository {
	return f.GetRepositories().Connection
}

// GetSyncLogRepository returns the sync log repository instance
func (f *Factory) GetSyncLogRepository() SyncLogRepository {
	return f.GetRepositories().SyncLog
}

// GetPlatformDataRepository returns the platform data repository instance
func (f *Factory) GetPlatformDataRepository() PlatformDataRepository {
	return f.GetRepositories().PlatformData
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
