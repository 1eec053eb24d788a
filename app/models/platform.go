package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// AuthMechanism describes how users authenticate against an external platform.
type AuthMechanism string

const (
	AuthMechanismOAuth        AuthMechanism = "oauth"
	AuthMechanismEmail        AuthMechanism = "email"
	AuthMechanismOAuthOrEmail AuthMechanism = "oauth_or_email"
)

// Platform is one external gig-economy platform users can connect to.
type Platform struct {
	ID                         uint          `gorm:"primaryKey" json:"id"`
	ExternalID                 string        `gorm:"uniqueIndex;type:varchar(36)" json:"external_id" validate:"required,uuid4"`
	Name                       string        `gorm:"uniqueIndex;type:varchar(100)" json:"name" validate:"required,min=2,max=100"`
	AuthMechanism              AuthMechanism `gorm:"type:varchar(20)" json:"auth_mechanism" validate:"oneof=oauth email oauth_or_email"`
	DefaultPollIntervalSeconds *int          `gorm:"default:null" json:"default_poll_interval_seconds,omitempty"`
	CreatedAt                  time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                  time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Platform) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// CreatePlatform builds a platform record with a fresh external GUID.
func CreatePlatform(name string, mechanism AuthMechanism, defaultPollSeconds *int) (*Platform, error) {
	p := &Platform{
		ExternalID:                 uuid.New().String(),
		Name:                       name,
		AuthMechanism:              mechanism,
		DefaultPollIntervalSeconds: defaultPollSeconds,
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// AcceptsOAuth reports whether the platform can be connected with OAuth tokens.
func (p *Platform) AcceptsOAuth() bool {
	return p.AuthMechanism == AuthMechanismOAuth || p.AuthMechanism == AuthMechanismOAuthOrEmail
}

// AcceptsEmail reports whether the platform can be connected with a verified email.
func (p *Platform) AcceptsEmail() bool {
	return p.AuthMechanism == AuthMechanismEmail || p.AuthMechanism == AuthMechanismOAuthOrEmail
}
