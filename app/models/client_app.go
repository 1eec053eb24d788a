package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DataClaim is the authorization level governing how much platform data a
// subscriber app receives in webhook payloads.
type DataClaim string

const (
	// DataClaimAggregated yields gig-count and rating summaries only.
	DataClaimAggregated DataClaim = "aggregated"
	// DataClaimFull additionally includes individual reviews and achievements.
	DataClaimFull DataClaim = "full"
)

// DefaultDataClaim is applied when a subscription does not specify a claim.
// Least privilege: summaries only.
const DefaultDataClaim = DataClaimAggregated

// ValidClaim reports whether c is a known claim level.
func ValidClaim(c DataClaim) bool {
	return c == DataClaimAggregated || c == DataClaimFull
}

// ClientApp is a subscriber application receiving webhook notifications.
type ClientApp struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ExternalID     string    `gorm:"uniqueIndex;type:varchar(36)" json:"external_id" validate:"required,uuid4"`
	Name           string    `gorm:"type:varchar(150)" json:"name" validate:"required,min=2,max=150"`
	Secret         string    `gorm:"type:varchar(100)" json:"-"`
	WebhookURL     string    `gorm:"type:varchar(500)" json:"webhook_url" validate:"omitempty,url,max=500"`
	DefaultClaim   DataClaim `gorm:"type:varchar(20);default:'aggregated'" json:"default_claim" validate:"oneof=aggregated full"`
	DeliveredCount int64     `gorm:"default:0" json:"delivered_count"`
	FailedCount    int64     `gorm:"default:0" json:"failed_count"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *ClientApp) Validate() error {
	v := validator.New()

	return v.Struct(a)
}

// CreateClientApp builds an app record with a fresh external GUID and a random
// shared secret the app uses to authenticate incoming webhooks.
func CreateClientApp(name string, webhookURL string, claim DataClaim) (*ClientApp, error) {
	if !ValidClaim(claim) {
		claim = DefaultDataClaim
	}

	secret, err := generateAppSecret()
	if err != nil {
		return nil, err
	}

	a := &ClientApp{
		ExternalID:   uuid.New().String(),
		Name:         name,
		Secret:       secret,
		WebhookURL:   webhookURL,
		DefaultClaim: claim,
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}

	return a, nil
}

func generateAppSecret() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
