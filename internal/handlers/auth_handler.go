package handlers

import (
	"errors"
	"log/slog"

	"authsimple/internal/common"
	"authsimple/internal/models"
	"authsimple/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    newValidator(),
	}
}

// RegisterRoutes registers the authentication routes. loginGuard runs in
// front of the login handler, typically a rate limiter.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, loginGuard ...fiber.Handler) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/login", append(loginGuard, h.HandleLogin)...)
	authRoutes.Post("/refresh", h.HandleRefresh)
	authRoutes.Get("/verify-email", h.HandleVerifyEmail)
}

// HandleLogin handles user login and issues a token pair. JSON and
// form-encoded bodies are both accepted.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidation(c, err)
	}

	tokens, err := h.authService.LoginUser(c.UserContext(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			slog.InfoContext(c.UserContext(), "login rejected", "username", req.Username, "ip", c.IP())
		}
		return respondError(c, err)
	}
	return c.JSON(tokens)
}

// HandleRefresh exchanges a refresh token for a new token pair.
func (h *AuthHandler) HandleRefresh(c *fiber.Ctx) error {
	var req models.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidation(c, err)
	}

	tokens, err := h.authService.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Could not validate credentials"})
		}
		return respondError(c, err)
	}
	return c.JSON(tokens)
}

// HandleVerifyEmail marks the email carried by the token as verified.
// Token problems are client errors here, not authentication failures.
func (h *AuthHandler) HandleVerifyEmail(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return badRequest(c, "Invalid token")
	}

	user, err := h.authService.VerifyEmail(c.UserContext(), token)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrExpiredToken):
			return badRequest(c, "Signature expired")
		case errors.Is(err, common.ErrInvalidToken):
			return badRequest(c, "Invalid token")
		}
		return respondError(c, err)
	}
	return c.JSON(user)
}
