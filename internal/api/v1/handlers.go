// Package apiv1 exposes the public HTTP surface: user, platform, and app
// registration, connection lifecycle, the async fetch callback, and the
// on-demand scheduler trigger.
package apiv1

import (
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio/app/models"
	"github.com/gigfolio/gigfolio/app/repository"
	"github.com/gigfolio/gigfolio/internal/pkg/connection"
	"github.com/gigfolio/gigfolio/internal/pkg/jobqueue"
	"github.com/gigfolio/gigfolio/internal/pkg/middleware"
	"github.com/gigfolio/gigfolio/internal/pkg/scheduler"
)

// APIServer implements the v1 handlers over the global repositories and the
// job queue.
type APIServer struct {
	validate *validator.Validate
	conns    *connection.Service
	sched    *scheduler.Scheduler
	queue    *jobqueue.Queue
}

// NewAPIServer creates a new API server instance wired to the global
// repository factory and the managed job queue.
func NewAPIServer() *APIServer {
	repos := repository.GetGlobalRepositories()
	queue := jobqueue.GetManager().GetQueue()

	return &APIServer{
		validate: validator.New(),
		conns:    connection.NewService(repos.User, repos.Connection, queue),
		sched:    scheduler.NewScheduler(repos.User, repos.Connection, queue),
		queue:    queue,
	}
}

// GetPing handles the health check endpoint.
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Pong{Ping: "pong"})
}

// PostUser registers a new end user.
func (s *APIServer) PostUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	user, err := models.CreateUser(req.Name, req.Email)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := repository.GetGlobalRepositories().User.Create(user); err != nil {
		return internalError(c, "could not create user", err)
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

// GetUser returns a user with all their connections, removed ones included.
func (s *APIServer) GetUser(c *fiber.Ctx) error {
	user, err := s.resolveUser(c)
	if err != nil {
		return err
	}

	connections, err := s.connectionViews(user)
	if err != nil {
		return internalError(c, "could not load connections", err)
	}

	return c.JSON(fiber.Map{
		"id":          user.ExternalID,
		"name":        user.Name,
		"email":       user.Email,
		"connections": connections,
	})
}

// PostPlatform registers an external gig platform.
func (s *APIServer) PostPlatform(c *fiber.Ctx) error {
	var req CreatePlatformRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	platform, err := models.CreatePlatform(req.Name, models.AuthMechanism(req.AuthMechanism), req.DefaultPollIntervalSeconds)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := repository.GetGlobalRepositories().Platform.Create(platform); err != nil {
		return internalError(c, "could not create platform", err)
	}

	return c.Status(fiber.StatusCreated).JSON(platform)
}

// GetPlatforms lists all registered platforms.
func (s *APIServer) GetPlatforms(c *fiber.Ctx) error {
	platforms, err := repository.GetGlobalRepositories().Platform.List()
	if err != nil {
		return internalError(c, "could not list platforms", err)
	}
	return c.JSON(platforms)
}

// PostApp registers a subscriber app. The generated secret is part of this
// response and is never returned again.
func (s *APIServer) PostApp(c *fiber.Ctx) error {
	var req CreateAppRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	claim := models.DataClaim(req.DefaultClaim)
	if req.DefaultClaim == "" {
		claim = models.DefaultDataClaim
	}

	app, err := models.CreateClientApp(req.Name, req.WebhookURL, claim)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := repository.GetGlobalRepositories().ClientApp.Create(app); err != nil {
		return internalError(c, "could not create app", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":           app.ExternalID,
		"name":         app.Name,
		"secret":       app.Secret,
		"webhookUrl":   app.WebhookURL,
		"defaultClaim": app.DefaultClaim,
	})
}

// PostConnection connects a user to a platform on behalf of a subscriber app.
func (s *APIServer) PostConnection(c *fiber.Ctx) error {
	user, err := s.resolveUser(c)
	if err != nil {
		return err
	}

	var req ConnectRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	platform, err := repository.GetGlobalRepositories().Platform.GetByExternalID(req.PlatformID)
	if err != nil {
		return notFound(c, "platform not found")
	}
	app := middleware.AppFromContext(c)
	if app == nil {
		return badRequest(c, "no authenticated app")
	}

	claim := models.DataClaim(req.Claim)
	if req.Claim == "" {
		claim = app.DefaultClaim
	}

	conn, err := s.conns.Connect(user, platform, connection.ConnectRequest{
		AuthKind:            models.AuthKind(req.AuthKind),
		AccessToken:         req.AccessToken,
		RefreshToken:        req.RefreshToken,
		Email:               req.Email,
		PollIntervalSeconds: req.PollIntervalSeconds,
		AppID:               app.ID,
		Claim:               claim,
	})
	if errors.Is(err, connection.ErrAuthKindNotSupported) {
		return badRequest(c, err.Error())
	}
	if err != nil {
		return internalError(c, "could not connect", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"platformId": platform.ExternalID,
		"state":      conn.State,
	})
}

// DeleteConnection schedules the removal of a connection. With ?hard=true the
// row is physically deleted after subscribers were notified.
func (s *APIServer) DeleteConnection(c *fiber.Ctx) error {
	user, err := s.resolveUser(c)
	if err != nil {
		return err
	}
	platform, err := repository.GetGlobalRepositories().Platform.GetByExternalID(c.Params("platformID"))
	if err != nil {
		return notFound(c, "platform not found")
	}

	hard := c.QueryBool("hard", false)
	if err := s.conns.Remove(user.ID, platform.ID, hard); err != nil {
		if errors.Is(err, connection.ErrConnectionNotFound) {
			return notFound(c, "connection not found")
		}
		return internalError(c, "could not schedule removal", err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// PostOAuthComplete stores the tokens from a finished platform OAuth flow.
func (s *APIServer) PostOAuthComplete(c *fiber.Ctx) error {
	user, err := s.resolveUser(c)
	if err != nil {
		return err
	}
	platform, err := repository.GetGlobalRepositories().Platform.GetByExternalID(c.Params("platformID"))
	if err != nil {
		return notFound(c, "platform not found")
	}

	var req OAuthCompleteRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	conn, err := s.conns.CompleteOAuth(user.ID, platform.ID, req.AccessToken, req.RefreshToken, req.TokenExpiry)
	if errors.Is(err, connection.ErrConnectionNotFound) {
		return notFound(c, "connection not found")
	}
	if errors.Is(err, connection.ErrInvalidState) {
		return conflict(c, "connection is not awaiting oauth authentication")
	}
	if err != nil {
		return internalError(c, "could not complete oauth", err)
	}

	return c.JSON(fiber.Map{"state": conn.State})
}

// GetVerifyEmail consumes an email verification token from the mailed link.
func (s *APIServer) GetVerifyEmail(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return badRequest(c, "token missing")
	}

	conn, err := s.conns.ConfirmEmail(token)
	if errors.Is(err, connection.ErrTokenUnknown) || errors.Is(err, connection.ErrConnectionNotFound) {
		return notFound(c, "verification token unknown or expired")
	}
	if errors.Is(err, connection.ErrInvalidState) {
		return conflict(c, "connection is not awaiting email verification")
	}
	if err != nil {
		return internalError(c, "could not verify email", err)
	}

	return c.JSON(fiber.Map{"state": conn.State})
}

// PostFetchCallback accepts the async completion a platform posts back after
// a fetch was initiated. A callback with an unusable data section is still
// accepted; the pipeline records it as an empty result rather than asking the
// platform to retry something it cannot fix.
func (s *APIServer) PostFetchCallback(c *fiber.Ctx) error {
	var req FetchCallbackRequest
	malformed := false

	if err := c.BodyParser(&req); err != nil {
		// Try to salvage at least the request id so the correlation entry
		// is not left to expire.
		var envelope struct {
			RequestID string `json:"requestId"`
		}
		if jerr := json.Unmarshal(c.Body(), &envelope); jerr != nil || envelope.RequestID == "" {
			return badRequest(c, "invalid request body")
		}
		req.RequestID = envelope.RequestID
		req.Data = nil
		malformed = true
		log.Warnf("[API] Fetch callback %s carried an unusable data section", req.RequestID)
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.Data == nil {
		malformed = true
	}

	if _, err := s.queue.EnqueueFetchCallbackJob(req.RequestID, req.Data, malformed); err != nil {
		return internalError(c, "could not enqueue callback", err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// PostTriggerFetch runs one scheduling cycle on demand.
func (s *APIServer) PostTriggerFetch(c *fiber.Ctx) error {
	if err := s.sched.RunOnce(c.Context()); err != nil {
		return internalError(c, "scheduling cycle failed", err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *APIServer) resolveUser(c *fiber.Ctx) (*models.User, error) {
	repos := repository.GetGlobalRepositories()
	user, err := repos.User.GetByExternalID(c.Params("userID"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(c, "user not found")
	}
	if err != nil {
		return nil, internalError(c, "could not load user", err)
	}
	return user, nil
}

// connectionViews builds the outward view of a user's connections, keeping
// removed ones visible with their reason.
func (s *APIServer) connectionViews(user *models.User) ([]ConnectionResponse, error) {
	repos := repository.GetGlobalRepositories()
	full, err := repos.User.GetWithConnections(user.ID)
	if err != nil {
		return nil, err
	}

	platforms, err := repos.Platform.List()
	if err != nil {
		return nil, err
	}
	platformByID := make(map[uint]*models.Platform, len(platforms))
	for i := range platforms {
		platformByID[platforms[i].ID] = &platforms[i]
	}

	views := make([]ConnectionResponse, 0, len(full.Connections))
	for i := range full.Connections {
		conn := &full.Connections[i]
		view := ConnectionResponse{
			State:     string(conn.State),
			AuthKind:  string(conn.AuthKind),
			IsDeleted: conn.IsDeleted,
		}
		if conn.DeleteReason != nil {
			reason := string(*conn.DeleteReason)
			view.DeleteReason = &reason
		}
		if p, ok := platformByID[conn.PlatformID]; ok {
			view.PlatformID = p.ExternalID
			view.PlatformName = p.Name
		}
		for _, sub := range conn.Subscribers {
			if app, err := repos.ClientApp.GetByID(sub.AppID); err == nil {
				view.Subscribers = append(view.Subscribers, app.ExternalID)
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": message})
}

func notFound(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": message})
}

func conflict(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": message})
}

func internalError(c *fiber.Ctx, message string, err error) error {
	log.Errorf("[API] %s: %v", message, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error", "message": message})
}
