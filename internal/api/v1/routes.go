package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gigfolio/gigfolio/internal/pkg/middleware"
)

// RegisterHandlers wires all v1 routes onto the given router group. Connection
// mutations require an authenticated subscriber app.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)

	router.Post("/users", s.PostUser)
	router.Get("/users/:userID", s.GetUser)

	router.Post("/platforms", s.PostPlatform)
	router.Get("/platforms", s.GetPlatforms)

	router.Post("/apps", s.PostApp)

	appAuth := middleware.AppSecretAuthMiddleware()
	router.Post("/users/:userID/connections", appAuth, s.PostConnection)
	router.Delete("/users/:userID/connections/:platformID", appAuth, s.DeleteConnection)
	router.Post("/users/:userID/connections/:platformID/oauth", appAuth, s.PostOAuthComplete)
	router.Get("/connections/verify-email", s.GetVerifyEmail)

	router.Post("/callbacks/fetch", s.PostFetchCallback)
	router.Post("/trigger/fetch", s.PostTriggerFetch)
}
