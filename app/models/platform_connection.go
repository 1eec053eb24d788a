package models

import (
	"time"
)

// ConnectionState is the lifecycle state of a platform connection.
type ConnectionState string

const (
	StateAwaitingOAuthAuthentication ConnectionState = "AwaitingOAuthAuthentication"
	StateAwaitingEmailVerification   ConnectionState = "AwaitingEmailVerification"
	StateConnected                   ConnectionState = "Connected"
	// StateSynced is a refinement of Connected, reached only after the first
	// successful data fetch.
	StateSynced  ConnectionState = "Synced"
	StateRemoved ConnectionState = "Removed"
)

// AuthKind tags the credential variant a connection carries. Every switch on
// AuthKind must handle the unknown case explicitly.
type AuthKind string

const (
	AuthKindOAuth AuthKind = "oauth"
	AuthKindEmail AuthKind = "email"
)

// DeleteReason tags a soft-deleted connection with why it was removed.
type DeleteReason string

const (
	DeleteReasonNotAuthorized   DeleteReason = "NotAuthorized"
	DeleteReasonUserDidNotExist DeleteReason = "UserDidNotExist"
	DeleteReasonUserRequest     DeleteReason = "UserRequest"
)

// PlatformConnection pairs one user with one external platform. The row is
// tombstoned (IsDeleted + DeleteReason) rather than removed when the deletion
// carries a reason; only explicit user/app removal deletes it physically.
//
// The attempt timestamps implement a best-effort "single fetch in flight"
// marker, not a lock: two concurrent scheduler runs can still both mark the
// same connection ripe. That risk is bounded and accepted.
type PlatformConnection struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	UserID     uint `gorm:"index;uniqueIndex:user_platform" json:"user_id"`
	PlatformID uint `gorm:"index;uniqueIndex:user_platform" json:"platform_id"`

	State    ConnectionState `gorm:"type:varchar(40)" json:"state"`
	AuthKind AuthKind        `gorm:"type:varchar(10)" json:"auth_kind"`

	// OAuth variant credentials.
	AccessToken  string     `gorm:"type:text" json:"-"`
	RefreshToken string     `gorm:"type:text" json:"-"`
	TokenExpiry  *time.Time `gorm:"default:null" json:"-"`

	// Email variant credentials.
	Email         string `gorm:"type:varchar(200)" json:"email,omitempty"`
	EmailVerified bool   `gorm:"default:false" json:"email_verified"`

	// Absent interval means the connection is never auto-polled.
	PollIntervalSeconds *int `gorm:"default:null" json:"poll_interval_seconds,omitempty"`

	LastAttemptStartedAt   *time.Time `gorm:"default:null" json:"last_attempt_started_at,omitempty"`
	LastAttemptCompletedAt *time.Time `gorm:"default:null" json:"last_attempt_completed_at,omitempty"`
	LastSuccessfulFetchAt  *time.Time `gorm:"default:null" json:"last_successful_fetch_at,omitempty"`

	IsDeleted    bool          `gorm:"default:false;index" json:"is_deleted"`
	DeleteReason *DeleteReason `gorm:"type:varchar(40);default:null" json:"delete_reason,omitempty"`

	Subscribers []NotificationInfo `gorm:"foreignKey:ConnectionID" json:"subscribers,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NotificationInfo subscribes one app to updates of one connection. The app
// reference is a weak edge (id + lookup), never ownership. An app appears at
// most once per connection.
type NotificationInfo struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ConnectionID uint      `gorm:"index;uniqueIndex:conn_app" json:"connection_id"`
	AppID        uint      `gorm:"uniqueIndex:conn_app" json:"app_id"`
	Claim        DataClaim `gorm:"type:varchar(20);default:'aggregated'" json:"claim"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Ripe reports whether the connection is due for its next scheduled fetch at
// the given instant. A started-but-never-completed attempt becomes eligible
// again after one full interval, recovering fetches dropped by a crashed
// worker.
func (c *PlatformConnection) Ripe(now time.Time) bool {
	if c.IsDeleted || c.PollIntervalSeconds == nil {
		return false
	}
	if c.LastAttemptStartedAt == nil {
		return true
	}

	interval := time.Duration(*c.PollIntervalSeconds) * time.Second
	if c.LastAttemptCompletedAt != nil {
		return now.Sub(*c.LastAttemptCompletedAt) >= interval
	}
	return now.Sub(*c.LastAttemptStartedAt) >= interval
}

// MarkAttemptStarted records the start of a fetch attempt and clears the
// completion marker so Ripe stays false until the attempt finishes or stalls.
func (c *PlatformConnection) MarkAttemptStarted(now time.Time) {
	started := now
	c.LastAttemptStartedAt = &started
	c.LastAttemptCompletedAt = nil
}

// MarkAttemptCompleted records the end of a fetch attempt. On success the
// connection advances to Synced and the successful-fetch marker moves forward.
func (c *PlatformConnection) MarkAttemptCompleted(now time.Time, success bool) {
	completed := now
	c.LastAttemptCompletedAt = &completed
	if success {
		fetched := now
		c.LastSuccessfulFetchAt = &fetched
		if c.State == StateConnected || c.State == StateSynced {
			c.State = StateSynced
		}
	}
}

// SoftDelete tombstones the connection with a typed reason. The row stays in
// the owning user's list and is excluded from ripeness evaluation.
func (c *PlatformConnection) SoftDelete(reason DeleteReason) {
	c.IsDeleted = true
	c.DeleteReason = &reason
	c.State = StateRemoved
}

// SameIdentity reports whether the given credentials denote the same
// connected account as the existing connection: the same verified email for
// the email variant, or any OAuth token for the OAuth variant.
func (c *PlatformConnection) SameIdentity(kind AuthKind, email string, accessToken string) bool {
	if c.AuthKind != kind {
		return false
	}
	switch kind {
	case AuthKindOAuth:
		return accessToken != ""
	case AuthKindEmail:
		return c.Email != "" && c.Email == email
	default:
		return false
	}
}

// HasSubscriber reports whether the app is already on the fan-out list.
func (c *PlatformConnection) HasSubscriber(appID uint) bool {
	for i := range c.Subscribers {
		if c.Subscribers[i].AppID == appID {
			return true
		}
	}
	return false
}

// SubscriberClaim returns the claim level the app subscribed with, or the
// default claim when the app is not on the list.
func (c *PlatformConnection) SubscriberClaim(appID uint) DataClaim {
	for i := range c.Subscribers {
		if c.Subscribers[i].AppID == appID {
			return c.Subscribers[i].Claim
		}
	}
	return DefaultDataClaim
}

// AddSubscriber appends the app to the fan-out list if absent and reports
// whether the list changed.
func (c *PlatformConnection) AddSubscriber(appID uint, claim DataClaim) bool {
	if c.HasSubscriber(appID) {
		return false
	}
	if !ValidClaim(claim) {
		claim = DefaultDataClaim
	}
	c.Subscribers = append(c.Subscribers, NotificationInfo{
		ConnectionID: c.ID,
		AppID:        appID,
		Claim:        claim,
	})
	return true
}

// InitialState determines where a fresh connection starts given the credential
// variant and, for email, whether the address is already verified.
func InitialState(kind AuthKind, emailVerified bool) ConnectionState {
	switch kind {
	case AuthKindOAuth:
		return StateAwaitingOAuthAuthentication
	case AuthKindEmail:
		if emailVerified {
			return StateConnected
		}
		return StateAwaitingEmailVerification
	default:
		return StateAwaitingOAuthAuthentication
	}
}
