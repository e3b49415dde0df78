package middleware

import (
	"errors"
	"log/slog"
	"strings"

	"authsimple/internal/common"
	"authsimple/internal/models"
	"authsimple/internal/services"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
)

const currentUserKey = "current_user"

// AuthRequired is a Fiber middleware that resolves the bearer access token
// to a user and stores it in the request context.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return unauthorized(c, "Not authenticated")
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return unauthorized(c, "Authorization header format must be 'Bearer <token>'")
		}

		user, err := authService.CurrentUser(c.UserContext(), strings.TrimSpace(parts[1]))
		if err != nil {
			switch {
			case errors.Is(err, common.ErrExpiredToken):
				return unauthorized(c, "Token has expired, please log in again")
			case errors.Is(err, common.ErrInvalidToken):
				return unauthorized(c, "Invalid token")
			case errors.Is(err, common.ErrUnauthorized):
				return unauthorized(c, "Could not validate credentials")
			}
			slog.ErrorContext(c.UserContext(), "failed to resolve current user", "path", c.Path(), "error", err)
			sentry.CaptureException(err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "internal server error",
			})
		}

		c.Locals(currentUserKey, user)
		return c.Next()
	}
}

// CurrentUser returns the user stored by AuthRequired, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(currentUserKey).(*models.User)
	return user
}

func unauthorized(c *fiber.Ctx, message string) error {
	c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"message": message,
	})
}
