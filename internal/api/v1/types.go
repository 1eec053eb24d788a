package apiv1

import (
	"time"

	"github.com/gigfolio/gigfolio/app/models"
)

// Pong is the health check response.
type Pong struct {
	Ping string `json:"ping"`
}

// CreateUserRequest registers a new end user.
type CreateUserRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=150"`
	Email string `json:"email" validate:"required,email"`
}

// CreatePlatformRequest registers an external gig platform.
type CreatePlatformRequest struct {
	Name                       string `json:"name" validate:"required,min=1,max=100"`
	AuthMechanism              string `json:"authMechanism" validate:"required,oneof=oauth email oauth_or_email"`
	DefaultPollIntervalSeconds *int   `json:"defaultPollIntervalSeconds" validate:"omitempty,min=60"`
}

// CreateAppRequest registers a subscriber app. The secret is generated server
// side and returned exactly once.
type CreateAppRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=100"`
	WebhookURL   string `json:"webhookUrl" validate:"required,url"`
	DefaultClaim string `json:"defaultClaim" validate:"omitempty,oneof=aggregated full"`
}

// ConnectRequest links a user to a platform on behalf of the authenticated
// subscriber app.
type ConnectRequest struct {
	PlatformID          string `json:"platformId" validate:"required,uuid4"`
	AuthKind            string `json:"authKind" validate:"required,oneof=oauth email"`
	AccessToken         string `json:"accessToken" validate:"omitempty,max=4096"`
	RefreshToken        string `json:"refreshToken" validate:"omitempty,max=4096"`
	Email               string `json:"email" validate:"omitempty,email"`
	PollIntervalSeconds *int   `json:"pollIntervalSeconds" validate:"omitempty,min=60"`
	Claim               string `json:"claim" validate:"omitempty,oneof=aggregated full"`
}

// OAuthCompleteRequest delivers the tokens obtained from the platform's OAuth
// flow for a pending connection.
type OAuthCompleteRequest struct {
	AccessToken  string     `json:"accessToken" validate:"required,max=4096"`
	RefreshToken string     `json:"refreshToken" validate:"omitempty,max=4096"`
	TokenExpiry  *time.Time `json:"tokenExpiry"`
}

// FetchCallbackRequest is the async completion a platform posts back after a
// fetch was initiated. Data stays raw so a broken body can still be accepted
// and flagged instead of bouncing the whole callback.
type FetchCallbackRequest struct {
	RequestID string                          `json:"requestId" validate:"required,min=1,max=200"`
	Data      *models.PlatformDataFetchResult `json:"data"`
}

// ConnectionResponse is the outward view of a platform connection.
type ConnectionResponse struct {
	PlatformID   string   `json:"platformId"`
	PlatformName string   `json:"platformName,omitempty"`
	State        string   `json:"state"`
	AuthKind     string   `json:"authKind"`
	IsDeleted    bool     `json:"isDeleted"`
	DeleteReason *string  `json:"deleteReason,omitempty"`
	Subscribers  []string `json:"subscribers,omitempty"`
}
