// Package platformapi defines the contract between the sync engine and the
// integration-specific platform fetchers. Fetchers are external collaborators;
// the engine only decides when to call them and what to do with the outcome.
package platformapi

import (
	"context"
	"fmt"
	"sync"

	"github.com/gigfolio/gigfolio/app/models"
)

// Outcome is what a fetcher hands back for one fetch attempt.
type Outcome struct {
	// RequestID is set by asynchronous integrations: the platform will echo
	// it in a later callback and the engine correlates the two.
	RequestID string
	// Result is set by synchronous integrations.
	Result *models.PlatformDataFetchResult
	// AuthorizationRevoked means the platform rejected our credentials.
	// Non-retryable; the connection gets removed with a typed reason.
	AuthorizationRevoked bool
	// Malformed means the upstream payload was unusable. Treated as a
	// successful fetch with empty data so a permanently broken upstream
	// cannot loop retries forever.
	Malformed bool
}

// Fetcher retrieves platform data on behalf of one connection.
type Fetcher interface {
	Fetch(ctx context.Context, user *models.User, conn *models.PlatformConnection) (*Outcome, error)
}

var (
	mu       sync.RWMutex
	fetchers = make(map[string]Fetcher)
)

// Register installs the fetcher for a platform name, replacing any previous
// registration.
func Register(platformName string, f Fetcher) {
	mu.Lock()
	defer mu.Unlock()
	fetchers[platformName] = f
}

// Get returns the fetcher registered for a platform name.
func Get(platformName string) (Fetcher, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := fetchers[platformName]
	if !ok {
		return nil, fmt.Errorf("no fetcher registered for platform %q", platformName)
	}
	return f, nil
}
