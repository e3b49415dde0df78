package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"authsimple/internal/common"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// lettersPattern admits Latin and Cyrillic letters and hyphens.
var lettersPattern = regexp.MustCompile(`^[а-яА-Яa-zA-Z\-]+$`)

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("letters", func(fl validator.FieldLevel) bool {
		return lettersPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register letters validation: %v", err))
	}
	return v
}

// respondValidation reports struct validation failures per field.
func respondValidation(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return respondError(c, err)
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": message,
	})
}

// respondError translates service errors into safe client responses.
// Anything unrecognised is logged, reported and answered with an opaque 500.
func respondError(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return c.Status(fiberErr.Code).JSON(fiber.Map{"message": fiberErr.Message})
	case errors.Is(err, common.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found"})
	case errors.Is(err, common.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "User with this email or username already exists"})
	case errors.Is(err, common.ErrExpiredToken):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Token has expired, please log in again"})
	case errors.Is(err, common.ErrInvalidToken):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token"})
	case errors.Is(err, common.ErrUnauthorized):
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Incorrect username or password"})
	case errors.Is(err, common.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "Not enough permissions"})
	case errors.Is(err, common.ErrInvalidField):
		return badRequest(c, "Invalid lookup field")
	}

	slog.ErrorContext(c.UserContext(), "request failed", "method", c.Method(), "path", c.Path(), "error", err)
	sentry.CaptureException(err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "internal server error",
	})
}

// ErrorHandler is the fiber.Config error handler. It covers errors returned
// by middleware, unknown routes and recovered panics.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return respondError(c, err)
}
