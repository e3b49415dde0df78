// Package config loads service settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full set of service settings.
type Config struct {
	AppPort    string
	AppEnv     string
	AppBaseURL string
	LogLevel   slog.Level

	DatabaseDriver string
	DatabaseDSN    string

	JWTSecret         string
	JWTAlgorithm      string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	VerifyTokenTTL    time.Duration
	RefreshChecksUser bool
	BcryptCost        int

	RedisURL      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	AuthCacheTTL  time.Duration

	RabbitMQURL   string
	RabbitMQQueue string

	SendGridAPIKey string
	EmailSender    string
	EmailFromName  string

	SentryDSN string

	LoginRateLimit float64
	LoginRateBurst int

	// CORSAllowOrigins is a comma separated origin list, "*" for any.
	CORSAllowOrigins string

	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("APP_PORT", ":8000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_BASE_URL", "http://localhost:8000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_DSN", "host=127.0.0.1 user=postgres password=postgres dbname=auth port=5432 sslmode=disable")
	v.SetDefault("JWT_ALGORITHM", "HS256")
	v.SetDefault("ACCESS_TOKEN_EXPIRES_MINUTES", 2)
	v.SetDefault("REFRESH_TOKEN_EXPIRES_MINUTES", 8)
	v.SetDefault("VERIFY_TOKEN_EXPIRES_MINUTES", 20)
	v.SetDefault("REFRESH_CHECKS_USER", true)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("AUTH_CACHE_TTL", "5m")
	v.SetDefault("RABBITMQ_QUEUE", "email_queue")
	v.SetDefault("EMAIL_FROM_NAME", "Auth Simple Server")
	v.SetDefault("LOGIN_RATE_LIMIT", 1.0)
	v.SetDefault("LOGIN_RATE_BURST", 10)
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		AppPort:           v.GetString("APP_PORT"),
		AppEnv:            v.GetString("APP_ENV"),
		AppBaseURL:        v.GetString("APP_BASE_URL"),
		DatabaseDriver:    strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseDSN:       v.GetString("DATABASE_DSN"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		JWTAlgorithm:      v.GetString("JWT_ALGORITHM"),
		AccessTokenTTL:    time.Duration(v.GetInt("ACCESS_TOKEN_EXPIRES_MINUTES")) * time.Minute,
		RefreshTokenTTL:   time.Duration(v.GetInt("REFRESH_TOKEN_EXPIRES_MINUTES")) * time.Minute,
		VerifyTokenTTL:    time.Duration(v.GetInt("VERIFY_TOKEN_EXPIRES_MINUTES")) * time.Minute,
		RefreshChecksUser: v.GetBool("REFRESH_CHECKS_USER"),
		BcryptCost:        v.GetInt("BCRYPT_COST"),
		RedisURL:          v.GetString("REDIS_URL"),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		AuthCacheTTL:      v.GetDuration("AUTH_CACHE_TTL"),
		RabbitMQURL:       v.GetString("RABBITMQ_URL"),
		RabbitMQQueue:     v.GetString("RABBITMQ_QUEUE"),
		SendGridAPIKey:    v.GetString("SENDGRID_API_KEY"),
		EmailSender:       v.GetString("EMAIL_SENDER"),
		EmailFromName:     v.GetString("EMAIL_FROM_NAME"),
		SentryDSN:         v.GetString("SENTRY_DSN"),
		LoginRateLimit:    v.GetFloat64("LOGIN_RATE_LIMIT"),
		LoginRateBurst:    v.GetInt("LOGIN_RATE_BURST"),
		CORSAllowOrigins:  v.GetString("CORS_ALLOW_ORIGINS"),
		AdminUsername:     v.GetString("ADMIN_USERNAME"),
		AdminEmail:        v.GetString("ADMIN_EMAIL"),
		AdminPassword:     v.GetString("ADMIN_PASSWORD"),
	}
	if host := v.GetString("REDIS_HOST"); host != "" {
		cfg.RedisAddr = host + ":" + v.GetString("REDIS_PORT")
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that have no safe default.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.VerifyTokenTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	return nil
}

// CacheEnabled reports whether a Redis server is configured.
func (c Config) CacheEnabled() bool {
	return c.RedisURL != "" || c.RedisAddr != ""
}
