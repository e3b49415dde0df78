package services_test

import (
	"context"
	"errors"
	"testing"

	"authsimple/internal/common"
	"authsimple/internal/models"
	"authsimple/internal/repositories"
	"authsimple/internal/security"
	"authsimple/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newMockedUserService() (*services.UserService, *MockUserRepository, *security.PasswordHasher) {
	mockRepo := new(MockUserRepository)
	hasher := security.NewPasswordHasher(bcrypt.MinCost)
	return services.NewUserService(mockRepo, hasher, nil), mockRepo, hasher
}

func TestUserService_AddUser(t *testing.T) {
	userService, mockRepo, hasher := newMockedUserService()
	ctx := context.Background()

	mockRepo.On("FindOne", ctx, repositories.Filter{"username": "misha"}).Return(nil, common.ErrNotFound).Once()
	mockRepo.On("FindOne", ctx, repositories.Filter{"email": "misha@example.com"}).Return(nil, common.ErrNotFound).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil).Once()

	user, err := userService.AddUser(ctx, models.CreateUserRequest{
		Name:     "Misha",
		Email:    "misha@example.com",
		Username: "Misha",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "misha", user.Username, "usernames are stored lowercased")
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	ok, err := hasher.Verify("secret1", user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
	mockRepo.AssertExpectations(t)
}

func TestUserService_AddUserDuplicates(t *testing.T) {
	userService, mockRepo, _ := newMockedUserService()
	ctx := context.Background()
	req := models.CreateUserRequest{Name: "Misha", Email: "misha@example.com", Username: "misha", Password: "secret1"}

	// Username already taken
	mockRepo.On("FindOne", ctx, repositories.Filter{"username": "misha"}).Return(&models.User{ID: "1"}, nil).Once()
	_, err := userService.AddUser(ctx, req)
	assert.ErrorIs(t, err, common.ErrDuplicate)
	assert.Contains(t, err.Error(), "username 'misha' already taken")
	mockRepo.AssertExpectations(t)

	// Email already taken
	mockRepo.On("FindOne", ctx, repositories.Filter{"username": "misha"}).Return(nil, common.ErrNotFound).Once()
	mockRepo.On("FindOne", ctx, repositories.Filter{"email": "misha@example.com"}).Return(&models.User{ID: "1"}, nil).Once()
	_, err = userService.AddUser(ctx, req)
	assert.ErrorIs(t, err, common.ErrDuplicate)
	assert.Contains(t, err.Error(), "email 'misha@example.com' already taken")
	mockRepo.AssertExpectations(t)

	// Lost race against a concurrent insert
	mockRepo.On("FindOne", ctx, mock.Anything).Return(nil, common.ErrNotFound).Twice()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(common.ErrDuplicate).Once()
	_, err = userService.AddUser(ctx, req)
	assert.ErrorIs(t, err, common.ErrDuplicate)
	mockRepo.AssertExpectations(t)
}

func TestUserService_GetUserByField(t *testing.T) {
	userService, mockRepo, _ := newMockedUserService()
	ctx := context.Background()

	mockRepo.On("FindOne", ctx, repositories.Filter{"username": "misha"}).Return(&models.User{ID: "1", Username: "misha"}, nil).Once()
	user, err := userService.GetUserByField(ctx, "username", "Misha")
	require.NoError(t, err)
	assert.Equal(t, "1", user.ID)

	mockRepo.On("FindOne", ctx, repositories.Filter{"id": "2"}).Return(nil, common.ErrNotFound).Once()
	_, err = userService.GetUserByField(ctx, "id", "2")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = userService.GetUserByField(ctx, "password_hash", "x")
	assert.ErrorIs(t, err, common.ErrInvalidField)
	mockRepo.AssertExpectations(t)
}

func TestUserService_GetAllUsers(t *testing.T) {
	userService, mockRepo, _ := newMockedUserService()
	ctx := context.Background()

	mockRepo.On("FindAll", ctx).Return([]models.User{{ID: "1"}, {ID: "2"}}, nil).Once()
	users, err := userService.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	mockRepo.AssertExpectations(t)
}

func TestUserService_UpdateUser(t *testing.T) {
	userService, mockRepo, hasher := newMockedUserService()
	ctx := context.Background()

	name := "Mikhail"
	password := "secret2"
	role := models.RoleAdmin
	mockRepo.On("UpdateOne", ctx, repositories.Filter{"id": "1"}, mock.MatchedBy(func(values map[string]interface{}) bool {
		hash, _ := values["password_hash"].(string)
		ok, _ := hasher.Verify("secret2", hash)
		return ok && values["name"] == "Mikhail" && values["role"] == models.RoleAdmin && len(values) == 3
	})).Return(&models.User{ID: "1", Name: "Mikhail", Role: models.RoleAdmin}, nil).Once()

	user, err := userService.UpdateUser(ctx, repositories.Filter{"id": "1"}, models.UserUpdate{
		Name:     &name,
		Password: &password,
		Role:     &role,
	})
	require.NoError(t, err)
	assert.Equal(t, "Mikhail", user.Name)
	mockRepo.AssertExpectations(t)
}

func TestUserService_UpdateUserRejections(t *testing.T) {
	userService, mockRepo, _ := newMockedUserService()
	ctx := context.Background()

	name := "Mikhail"
	_, err := userService.UpdateUser(ctx, repositories.Filter{"name": "Misha"}, models.UserUpdate{Name: &name})
	assert.ErrorIs(t, err, common.ErrInvalidField)

	bogus := models.Role("ROOT")
	_, err = userService.UpdateUser(ctx, repositories.Filter{"id": "1"}, models.UserUpdate{Role: &bogus})
	assert.Error(t, err)

	mockRepo.On("UpdateOne", ctx, repositories.Filter{"id": "missing"}, mock.Anything).Return(nil, common.ErrNotFound).Once()
	_, err = userService.UpdateUser(ctx, repositories.Filter{"id": "missing"}, models.UserUpdate{Name: &name})
	assert.ErrorIs(t, err, common.ErrNotFound)
	mockRepo.AssertExpectations(t)
}

func TestUserService_DeleteUserByID(t *testing.T) {
	userService, mockRepo, _ := newMockedUserService()
	ctx := context.Background()

	mockRepo.On("DeleteOne", ctx, repositories.Filter{"id": "1"}).Return(&models.User{ID: "1", Username: "misha"}, nil).Once()
	deleted, err := userService.DeleteUserByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "misha", deleted.Username)

	mockRepo.On("DeleteOne", ctx, repositories.Filter{"id": "1"}).Return(nil, common.ErrNotFound).Once()
	_, err = userService.DeleteUserByID(ctx, "1")
	assert.ErrorIs(t, err, common.ErrNotFound)
	mockRepo.AssertExpectations(t)
}

func TestUserService_GetAuthUser(t *testing.T) {
	userService, mockRepo, hasher := newMockedUserService()
	ctx := context.Background()

	hash, err := hasher.Hash("secret1")
	require.NoError(t, err)
	active := &models.User{ID: "1", Username: "misha", PasswordHash: hash}
	disabled := &models.User{ID: "2", Username: "olga", PasswordHash: hash, Disabled: true}

	mockRepo.On("FindOne", ctx, repositories.Filter{"username": "misha"}).Return(active, nil)
	mockRepo.On("FindOne", ctx, repositories.Filter{"username": "olga"}).Return(disabled, nil)
	mockRepo.On("FindOne", ctx, repositories.Filter{"username": "nobody"}).Return(nil, common.ErrNotFound)

	user, err := userService.GetAuthUser(ctx, "misha", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "1", user.ID)

	for _, tc := range []struct{ username, password string }{
		{"misha", "wrong"},
		{"olga", "secret1"},
		{"nobody", "secret1"},
	} {
		user, err := userService.GetAuthUser(ctx, tc.username, tc.password)
		assert.NoError(t, err, tc.username)
		assert.Nil(t, user, tc.username)
	}

	mockRepo.On("FindOne", ctx, repositories.Filter{"username": "broken"}).Return(nil, errors.New("connection refused"))
	_, err = userService.GetAuthUser(ctx, "broken", "secret1")
	assert.Error(t, err)
}

func TestUserService_EnsureAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("NotConfigured", func(t *testing.T) {
		userService, mockRepo, _ := newMockedUserService()
		assert.NoError(t, userService.EnsureAdmin(ctx, "", "", ""))
		mockRepo.AssertNotCalled(t, "FindOne", mock.Anything, mock.Anything)
	})

	t.Run("Incomplete", func(t *testing.T) {
		userService, _, _ := newMockedUserService()
		assert.Error(t, userService.EnsureAdmin(ctx, "admin", "", "secret1"))
	})

	t.Run("Creates", func(t *testing.T) {
		userService, mockRepo, _ := newMockedUserService()
		mockRepo.On("FindOne", ctx, mock.Anything).Return(nil, common.ErrNotFound)
		mockRepo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
			return u.Username == "admin" && u.Role == models.RoleAdmin
		})).Return(nil).Once()

		require.NoError(t, userService.EnsureAdmin(ctx, "admin", "admin@example.com", "secret1"))
		mockRepo.AssertExpectations(t)
	})

	t.Run("Promotes", func(t *testing.T) {
		userService, mockRepo, _ := newMockedUserService()
		mockRepo.On("FindOne", ctx, repositories.Filter{"username": "admin"}).Return(&models.User{ID: "1", Username: "admin", Role: models.RoleUser}, nil).Once()
		mockRepo.On("UpdateOne", ctx, repositories.Filter{"id": "1"}, map[string]interface{}{"role": models.RoleAdmin}).
			Return(&models.User{ID: "1", Username: "admin", Role: models.RoleAdmin}, nil).Once()

		require.NoError(t, userService.EnsureAdmin(ctx, "admin", "admin@example.com", "secret1"))
		mockRepo.AssertExpectations(t)
	})

	t.Run("AlreadyAdmin", func(t *testing.T) {
		userService, mockRepo, _ := newMockedUserService()
		mockRepo.On("FindOne", ctx, repositories.Filter{"username": "admin"}).Return(&models.User{ID: "1", Username: "admin", Role: models.RoleAdmin}, nil).Once()

		require.NoError(t, userService.EnsureAdmin(ctx, "admin", "admin@example.com", "secret1"))
		mockRepo.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
		mockRepo.AssertExpectations(t)
	})
}
