package services_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"authsimple/internal/cache"
	"authsimple/internal/models"
	"authsimple/internal/repositories"
	"authsimple/internal/security"
	"authsimple/internal/services"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// TestMain silences service logging for the whole package.
func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindOne(ctx context.Context, filter repositories.Filter) (*models.User, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindAll(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) UpdateOne(ctx context.Context, filter repositories.Filter, values map[string]interface{}) (*models.User, error) {
	args := m.Called(ctx, filter, values)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) DeleteOne(ctx context.Context, filter repositories.Filter) (*models.User, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// testClock is a settable time source at whole-second resolution.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fixture wires the services over an in-memory repository and cache.
type fixture struct {
	repo   *repositories.InMemoryUserRepository
	store  *cache.MemoryStore
	hasher *security.PasswordHasher
	codec  *security.TokenCodec
	clock  *testClock
	users  *services.UserService
	auth   *services.AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:   repositories.NewInMemoryUserRepository(),
		store:  cache.NewMemoryStore(),
		hasher: security.NewPasswordHasher(bcrypt.MinCost),
		clock:  &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
	codec, err := security.NewTokenCodec(security.TokenConfig{
		Secret:     "test_jwt_secret",
		AccessTTL:  2 * time.Minute,
		RefreshTTL: 8 * time.Minute,
		VerifyTTL:  20 * time.Minute,
	})
	require.NoError(t, err)
	f.codec = codec.WithClock(f.clock.Now)

	userCache := services.NewUserCache(f.store, 5*time.Minute)
	f.users = services.NewUserService(f.repo, f.hasher, userCache)
	f.auth = services.NewAuthService(f.users, f.codec, f.hasher, userCache)
	return f
}

func (f *fixture) register(t *testing.T, username, password string) *models.User {
	t.Helper()
	user, err := f.users.AddUser(context.Background(), models.CreateUserRequest{
		Name:     "Misha",
		Email:    username + "@example.com",
		Username: username,
		Password: password,
	})
	require.NoError(t, err)
	return user
}
