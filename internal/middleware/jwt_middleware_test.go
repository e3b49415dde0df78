package middleware_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"authsimple/internal/middleware"
	"authsimple/internal/models"
	"authsimple/internal/repositories"
	"authsimple/internal/security"
	"authsimple/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func setupProtectedApp(t *testing.T) (*fiber.App, *security.TokenCodec, *services.UserService) {
	t.Helper()
	codec, err := security.NewTokenCodec(security.TokenConfig{
		Secret:     "test_jwt_secret",
		AccessTTL:  2 * time.Minute,
		RefreshTTL: 8 * time.Minute,
		VerifyTTL:  20 * time.Minute,
	})
	require.NoError(t, err)
	hasher := security.NewPasswordHasher(bcrypt.MinCost)
	users := services.NewUserService(repositories.NewInMemoryUserRepository(), hasher, nil)
	auth := services.NewAuthService(users, codec, hasher, nil)

	app := fiber.New()
	app.Get("/me", middleware.AuthRequired(auth), func(c *fiber.Ctx) error {
		return c.JSON(middleware.CurrentUser(c))
	})
	return app, codec, users
}

func get(t *testing.T, app *fiber.App, authorization string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestAuthRequired(t *testing.T) {
	app, codec, users := setupProtectedApp(t)
	user, err := users.AddUser(context.Background(), models.CreateUserRequest{
		Name: "Misha", Email: "misha@example.com", Username: "misha", Password: "secret1",
	})
	require.NoError(t, err)
	pair, err := codec.IssuePair("misha")
	require.NoError(t, err)

	resp, body := get(t, app, "Bearer "+pair.AccessToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, user.ID, body["user_id"])
	assert.NotContains(t, body, "password_hash")

	resp, body = get(t, app, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Not authenticated", body["message"])
	assert.Equal(t, "Bearer", resp.Header.Get(fiber.HeaderWWWAuthenticate))

	resp, _ = get(t, app, "Token "+pair.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = get(t, app, "Bearer "+pair.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid token", body["message"])

	resp, body = get(t, app, "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid token", body["message"])
}

func TestAuthRequired_ExpiredAndUnknown(t *testing.T) {
	app, codec, _ := setupProtectedApp(t)

	// No such user
	pair, err := codec.IssuePair("ghost")
	require.NoError(t, err)
	resp, body := get(t, app, "Bearer "+pair.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Could not validate credentials", body["message"])

	codec.WithClock(func() time.Time { return time.Now().Add(-time.Hour) })
	stale, err := codec.IssuePair("ghost")
	require.NoError(t, err)
	codec.WithClock(time.Now)

	resp, body = get(t, app, "Bearer "+stale.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token has expired, please log in again", body["message"])
}
