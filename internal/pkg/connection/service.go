// Package connection implements the lifecycle of platform connections:
// creation, credential flows, subscription fan-in, and removal.
package connection

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio/app/models"
	"github.com/gigfolio/gigfolio/app/repository"
	"github.com/gigfolio/gigfolio/internal/pkg/cache"
	"github.com/gigfolio/gigfolio/internal/pkg/env"
	"github.com/gigfolio/gigfolio/internal/pkg/jobqueue"
	"github.com/gigfolio/gigfolio/internal/pkg/mail"
	"github.com/gigfolio/gigfolio/internal/pkg/webhook"
)

const (
	emailTokenPrefix          = "emailverify:"
	defaultEmailTokenTTLHours = 48
)

var (
	ErrConnectionNotFound   = errors.New("connection not found")
	ErrAuthKindNotSupported = errors.New("platform does not support this auth kind")
	ErrInvalidState         = errors.New("connection is not in a state that allows this operation")
	ErrTokenUnknown         = errors.New("verification token unknown or expired")
)

// RemoveEnqueuer dispatches connection removals to the background queue.
type RemoveEnqueuer interface {
	EnqueueRemoveConnectionJob(userID, platformID uint, hard bool, reason models.DeleteReason) (*jobqueue.Job, error)
}

// NotifyEnqueuer fans subscriber notifications out to the background queue.
type NotifyEnqueuer interface {
	EnqueueNotifyAppJob(payload jobqueue.NotifyAppJobPayload) (*jobqueue.Job, error)
}

// Enqueuer bundles the queue operations the lifecycle drives.
type Enqueuer interface {
	RemoveEnqueuer
	NotifyEnqueuer
}

// ConnectRequest carries everything a client app supplies when it connects a
// user to a platform on the user's behalf.
type ConnectRequest struct {
	AuthKind            models.AuthKind
	AccessToken         string
	RefreshToken        string
	TokenExpiry         *time.Time
	Email               string
	PollIntervalSeconds *int
	AppID               uint
	Claim               models.DataClaim
}

// Service owns connection state transitions. All mutations go through here so
// the subscriber list and credential variant stay consistent.
type Service struct {
	users    repository.UserRepository
	conns    repository.ConnectionRepository
	enqueuer Enqueuer
}

// NewService creates a connection service over the given repositories.
func NewService(users repository.UserRepository, conns repository.ConnectionRepository, enqueuer Enqueuer) *Service {
	return &Service{users: users, conns: conns, enqueuer: enqueuer}
}

// Connect links a user to a platform, or subscribes another app to an existing
// link. Connecting the same account twice is idempotent; connecting a
// different account replaces the credentials but keeps every subscriber, so no
// app silently loses its updates.
func (s *Service) Connect(user *models.User, platform *models.Platform, req ConnectRequest) (*models.PlatformConnection, error) {
	if err := s.checkAuthKind(platform, req.AuthKind); err != nil {
		return nil, err
	}

	conn, err := s.conns.GetByUserAndPlatform(user.ID, platform.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("could not load connection: %w", err)
	}

	stateChanged := true

	switch {
	case conn == nil:
		conn = &models.PlatformConnection{
			UserID:     user.ID,
			PlatformID: platform.ID,
		}
		s.applyCredentials(conn, platform, req)

	case !conn.IsDeleted && conn.SameIdentity(req.AuthKind, req.Email, req.AccessToken):
		// Same account again: only the subscription can change.
		stateChanged = false
		if req.PollIntervalSeconds != nil {
			conn.PollIntervalSeconds = req.PollIntervalSeconds
		}

	default:
		if conn.IsDeleted {
			log.Infof("[Connection] Reviving removed connection %d (user %d, platform %s)",
				conn.ID, user.ID, platform.Name)
		} else {
			log.Warnf("[Connection] Replacing credentials of connection %d (user %d, platform %s); subscribers are kept",
				conn.ID, user.ID, platform.Name)
		}
		conn.IsDeleted = false
		conn.DeleteReason = nil
		conn.LastAttemptStartedAt = nil
		conn.LastAttemptCompletedAt = nil
		conn.LastSuccessfulFetchAt = nil
		s.applyCredentials(conn, platform, req)
	}

	conn.AddSubscriber(req.AppID, req.Claim)

	if err := s.conns.Save(conn); err != nil {
		return nil, fmt.Errorf("could not save connection: %w", err)
	}

	if conn.State == models.StateAwaitingEmailVerification {
		if err := s.startEmailVerification(conn, platform); err != nil {
			log.Errorf("[Connection] Could not send verification mail for connection %d: %v", conn.ID, err)
		}
	}

	if stateChanged {
		// Create, replacement or revival: every subscriber learns the new state.
		s.notifySubscribers(conn)
	} else {
		// Idempotent re-subscribe: only the requesting app needs to catch up
		// on the current state.
		s.notifyApp(conn, req.AppID, conn.SubscriberClaim(req.AppID))
	}

	return conn, nil
}

// CompleteOAuth stores the tokens obtained from the platform's OAuth flow and
// moves the connection out of its pending state.
func (s *Service) CompleteOAuth(userID, platformID uint, accessToken, refreshToken string, expiry *time.Time) (*models.PlatformConnection, error) {
	conn, err := s.conns.GetByUserAndPlatform(userID, platformID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not load connection: %w", err)
	}
	if conn.IsDeleted {
		return nil, ErrConnectionNotFound
	}
	if conn.AuthKind != models.AuthKindOAuth || conn.State != models.StateAwaitingOAuthAuthentication {
		return nil, ErrInvalidState
	}

	conn.AccessToken = accessToken
	conn.RefreshToken = refreshToken
	conn.TokenExpiry = expiry
	conn.State = models.StateConnected

	if err := s.conns.Save(conn); err != nil {
		return nil, fmt.Errorf("could not save connection: %w", err)
	}

	log.Infof("[Connection] OAuth completed for connection %d", conn.ID)
	s.notifySubscribers(conn)
	return conn, nil
}

// ConfirmEmail consumes a verification token and marks the connection's email
// address as belonging to the user. Tokens are single use.
func (s *Service) ConfirmEmail(token string) (*models.PlatformConnection, error) {
	key := emailTokenPrefix + token
	raw, err := cache.GetClient().GetDel(context.Background(), key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenUnknown
	}
	if err != nil {
		return nil, fmt.Errorf("could not resolve verification token: %w", err)
	}

	connID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, ErrTokenUnknown
	}

	conn, err := s.conns.GetByID(uint(connID))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not load connection: %w", err)
	}
	if conn.IsDeleted {
		return nil, ErrConnectionNotFound
	}
	if conn.AuthKind != models.AuthKindEmail || conn.State != models.StateAwaitingEmailVerification {
		return nil, ErrInvalidState
	}

	conn.EmailVerified = true
	conn.State = models.StateConnected

	if err := s.conns.Save(conn); err != nil {
		return nil, fmt.Errorf("could not save connection: %w", err)
	}

	log.Infof("[Connection] Email verified for connection %d", conn.ID)
	s.notifySubscribers(conn)
	return conn, nil
}

// Remove asks the background queue to take the connection down. The deletion
// itself happens asynchronously so every subscriber gets notified before the
// row disappears.
func (s *Service) Remove(userID, platformID uint, hard bool) error {
	conn, err := s.conns.GetByUserAndPlatform(userID, platformID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrConnectionNotFound
	}
	if err != nil {
		return fmt.Errorf("could not load connection: %w", err)
	}
	if conn.IsDeleted {
		return ErrConnectionNotFound
	}

	if _, err := s.enqueuer.EnqueueRemoveConnectionJob(userID, platformID, hard, models.DeleteReasonUserRequest); err != nil {
		return fmt.Errorf("could not enqueue removal: %w", err)
	}
	return nil
}

// notifySubscribers enqueues one notification per subscriber app. Enqueue
// failures are logged but do not fail the lifecycle operation; the next fetch
// cycle delivers the state anyway.
func (s *Service) notifySubscribers(conn *models.PlatformConnection) {
	for _, sub := range conn.Subscribers {
		s.notifyApp(conn, sub.AppID, sub.Claim)
	}
}

func (s *Service) notifyApp(conn *models.PlatformConnection, appID uint, claim models.DataClaim) {
	payload := jobqueue.NotifyAppJobPayload{
		AppID:      appID,
		UserID:     conn.UserID,
		PlatformID: conn.PlatformID,
		State:      string(conn.State),
		Reason:     string(webhook.ReasonDataUpdate),
		Claim:      string(claim),
	}
	if _, err := s.enqueuer.EnqueueNotifyAppJob(payload); err != nil {
		log.Errorf("[Connection] Could not enqueue notification for app %d on connection %d: %v", appID, conn.ID, err)
	}
}

func (s *Service) checkAuthKind(platform *models.Platform, kind models.AuthKind) error {
	switch kind {
	case models.AuthKindOAuth:
		if !platform.AcceptsOAuth() {
			return ErrAuthKindNotSupported
		}
	case models.AuthKindEmail:
		if !platform.AcceptsEmail() {
			return ErrAuthKindNotSupported
		}
	default:
		return ErrAuthKindNotSupported
	}
	return nil
}

func (s *Service) applyCredentials(conn *models.PlatformConnection, platform *models.Platform, req ConnectRequest) {
	conn.AuthKind = req.AuthKind
	conn.AccessToken = ""
	conn.RefreshToken = ""
	conn.TokenExpiry = nil
	conn.Email = ""
	conn.EmailVerified = false

	switch req.AuthKind {
	case models.AuthKindOAuth:
		conn.AccessToken = req.AccessToken
		conn.RefreshToken = req.RefreshToken
		conn.TokenExpiry = req.TokenExpiry
		if req.AccessToken != "" {
			// Tokens handed over directly skip the pending OAuth state.
			conn.State = models.StateConnected
		} else {
			conn.State = models.StateAwaitingOAuthAuthentication
		}
	case models.AuthKindEmail:
		conn.Email = req.Email
		conn.State = models.InitialState(models.AuthKindEmail, false)
	}

	if req.PollIntervalSeconds != nil {
		conn.PollIntervalSeconds = req.PollIntervalSeconds
	} else if conn.PollIntervalSeconds == nil {
		conn.PollIntervalSeconds = platform.DefaultPollIntervalSeconds
	}
}

func (s *Service) startEmailVerification(conn *models.PlatformConnection, platform *models.Platform) error {
	token := uuid.New().String()
	ttl := time.Duration(env.GetEnvInt("EMAIL_VERIFY_TTL_HOURS", defaultEmailTokenTTLHours)) * time.Hour

	if err := cache.Set(emailTokenPrefix+token, strconv.FormatUint(uint64(conn.ID), 10), ttl); err != nil {
		return fmt.Errorf("could not store verification token: %w", err)
	}
	return mail.SendVerificationMail(conn.Email, platform.Name, token)
}
