package middleware

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio/app/models"
	"github.com/gigfolio/gigfolio/app/repository"
	"github.com/gigfolio/gigfolio/internal/pkg/database"
)

// KeyClientApp is the Locals key under which the authenticated subscriber app
// is stored.
const KeyClientApp = "CLIENT_APP"

// AppSecretAuthMiddleware authenticates requests carrying a subscriber app
// secret header. The resolved app is placed in Locals for the handlers.
func AppSecretAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		secret := extractSecretFromHeader(c)
		if secret == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing app secret"})
		}

		if database.GetDB() == nil {
			log.Print("app secret middleware: database unavailable")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
		}

		repo := repository.GetGlobalFactory().GetClientAppRepository()
		app, err := repo.GetBySecret(secret)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid app secret"})
			}
			log.Printf("app secret lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "App verification failed"})
		}

		c.Locals(KeyClientApp, app)
		return c.Next()
	}
}

// AppFromContext returns the authenticated subscriber app, nil when the route
// was not protected.
func AppFromContext(c *fiber.Ctx) *models.ClientApp {
	app, _ := c.Locals(KeyClientApp).(*models.ClientApp)
	return app
}

func extractSecretFromHeader(c *fiber.Ctx) string {
	secret := strings.TrimSpace(c.Get("X-App-Secret"))
	if secret != "" {
		return secret
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
