// Package app assembles the HTTP application from its dependencies.
package app

import (
	"fmt"
	"time"

	"authsimple/internal/cache"
	"authsimple/internal/config"
	"authsimple/internal/handlers"
	"authsimple/internal/middleware"
	"authsimple/internal/repositories"
	"authsimple/internal/security"
	"authsimple/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// App bundles the fiber application with the services behind it.
type App struct {
	Fiber *fiber.App
	Users *services.UserService
	Auth  *services.AuthService
	Email *services.EmailService
	Codec *security.TokenCodec
}

// Options carries the infrastructure an App is built on. Sender may be nil,
// which disables verification emails. Clock overrides time.Now for tokens.
type Options struct {
	Config    config.Config
	Users     repositories.UserRepository
	Cache     cache.Store
	Sender    services.EmailSender
	Clock     func() time.Time
	AccessLog bool
}

// New wires services, handlers and middleware into a ready App.
func New(opts Options) (*App, error) {
	cfg := opts.Config

	codec, err := security.NewTokenCodec(security.TokenConfig{
		Secret:     cfg.JWTSecret,
		Algorithm:  cfg.JWTAlgorithm,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		VerifyTTL:  cfg.VerifyTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token codec: %w", err)
	}
	if opts.Clock != nil {
		codec = codec.WithClock(opts.Clock)
	}

	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	var userCache *services.UserCache
	if opts.Cache != nil {
		userCache = services.NewUserCache(opts.Cache, cfg.AuthCacheTTL)
	}

	userService := services.NewUserService(opts.Users, hasher, userCache)
	authService := services.NewAuthService(userService, codec, hasher, userCache).
		WithRefreshUserCheck(cfg.RefreshChecksUser)
	var emailService *services.EmailService
	if opts.Sender != nil {
		emailService = services.NewEmailService(opts.Sender, codec, cfg.AppBaseURL)
	}

	f := fiber.New(fiber.Config{
		AppName:      "authsimple",
		ErrorHandler: handlers.ErrorHandler,
	})
	f.Use(recover.New())
	f.Use(newCORS(cfg.CORSAllowOrigins))
	if opts.AccessLog {
		f.Use(logger.New())
	}

	f.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	limiter := middleware.NewLoginRateLimiter(cfg.LoginRateLimit, cfg.LoginRateBurst)
	handlers.NewAuthHandler(authService).RegisterRoutes(f, limiter.Handler())
	handlers.NewUserHandler(userService, emailService).RegisterRoutes(f, middleware.AuthRequired(authService))

	return &App{
		Fiber: f,
		Users: userService,
		Auth:  authService,
		Email: emailService,
		Codec: codec,
	}, nil
}

// newCORS answers browser preflights. Credentials stay off: clients send
// bearer tokens, and fiber rejects credentials with a wildcard origin.
func newCORS(origins string) fiber.Handler {
	if origins == "" {
		origins = "*"
	}
	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,OPTIONS,DELETE,PATCH,PUT",
		AllowHeaders: "Authorization,Content-Type,Set-Cookie,Access-Control-Allow-Headers,Access-Control-Allow-Origin",
		MaxAge:       600,
	})
}
