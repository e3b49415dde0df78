package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streadway/amqp"

	"authsimple/internal/app"
	"authsimple/internal/cache"
	"authsimple/internal/config"
	"authsimple/internal/observability"
	"authsimple/internal/services"
	"authsimple/pkg/mailer"
	"authsimple/pkg/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.AppEnv))

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		slog.Warn("sentry disabled", "error", err)
	}
	defer observability.FlushSentry()

	// --- Storage ---
	repo, closeDB, err := app.NewUserRepository(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	store, err := newCacheStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// --- Email delivery ---
	sender, closeSender, err := newEmailSender(cfg)
	if err != nil {
		return err
	}
	defer closeSender()

	// --- Application ---
	application, err := app.New(app.Options{
		Config:    cfg,
		Users:     repo,
		Cache:     store,
		Sender:    sender,
		AccessLog: true,
	})
	if err != nil {
		return err
	}

	if cfg.AdminUsername != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := application.Users.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to bootstrap admin: %w", err)
		}
	}

	// --- Start HTTP Server ---
	slog.Info("starting server", "port", cfg.AppPort, "database", cfg.DatabaseDriver, "redis", cfg.CacheEnabled())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- application.Fiber.Listen(cfg.AppPort)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server")
	if err := application.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("error during fiber shutdown", "error", err)
	}
	slog.Info("server gracefully stopped")
	return nil
}

// newCacheStore returns a Redis store when one is configured and an
// in-process store otherwise.
func newCacheStore(cfg config.Config) (cache.Store, error) {
	if !cfg.CacheEnabled() {
		slog.Info("no redis configured, using in-process auth cache")
		return cache.NewMemoryStore(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return cache.NewRedisStore(ctx, cache.RedisConfig{
		URL:      cfg.RedisURL,
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// newEmailSender picks the delivery path for verification emails. With
// RabbitMQ configured, messages are queued and a consumer in this process
// delivers them through the provider.
func newEmailSender(cfg config.Config) (services.EmailSender, func() error, error) {
	var provider services.EmailSender = mailer.LogMailer{}
	if cfg.SendGridAPIKey != "" {
		provider = mailer.NewSendGridMailer(cfg.SendGridAPIKey, cfg.EmailSender, cfg.EmailFromName)
	}

	if cfg.RabbitMQURL == "" {
		return provider, func() error { return nil }, nil
	}

	mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.RabbitMQQueue})
	if err != nil {
		return nil, nil, err
	}
	if err := mqClient.Consume(deliverQueuedEmail(provider)); err != nil {
		mqClient.Close()
		return nil, nil, err
	}
	return mailer.NewQueueMailer(mqClient), mqClient.Close, nil
}

// deliverQueuedEmail decodes a queued message and sends it through provider.
func deliverQueuedEmail(provider services.EmailSender) func(amqp.Delivery) error {
	return func(msg amqp.Delivery) error {
		email, err := mailer.DecodeMessage(msg.Body)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := provider.Send(ctx, email); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("email delivery to %s timed out: %w", email.To, err)
			}
			return err
		}
		slog.Info("queued email delivered", "to", email.To, "delivery_tag", msg.DeliveryTag)
		return nil
	}
}
