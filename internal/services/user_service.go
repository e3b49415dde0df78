package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"authsimple/internal/common"
	"authsimple/internal/models"
	"authsimple/internal/repositories"
)

// PasswordHasher hashes credentials one way and verifies them.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) (bool, error)
}

// lookupFields are the columns a user may be fetched or filtered by.
var lookupFields = map[string]bool{"id": true, "username": true, "email": true}

// UserService is the user directory: it owns persistence of users and
// keeps the authentication cache consistent with it.
type UserService struct {
	repo   repositories.UserRepository
	hasher PasswordHasher
	cache  *UserCache
}

// NewUserService creates a new UserService. cache may be nil.
func NewUserService(repo repositories.UserRepository, hasher PasswordHasher, cache *UserCache) *UserService {
	return &UserService{
		repo:   repo,
		hasher: hasher,
		cache:  cache,
	}
}

// AddUser registers a new user with role USER. The username is stored
// lowercased and the password only as a hash.
func (s *UserService) AddUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	return s.addUser(ctx, req, models.RoleUser)
}

func (s *UserService) addUser(ctx context.Context, req models.CreateUserRequest, role models.Role) (*models.User, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	email := strings.TrimSpace(req.Email)

	// The unique indexes are authoritative; these checks only give a
	// clearer error in the common case.
	if err := s.ensureFree(ctx, "username", username); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, "email", email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

func (s *UserService) ensureFree(ctx context.Context, field, value string) error {
	_, err := s.repo.FindOne(ctx, repositories.Filter{field: value})
	switch {
	case err == nil:
		return fmt.Errorf("%s '%s' already taken: %w", field, value, common.ErrDuplicate)
	case errors.Is(err, common.ErrNotFound):
		return nil
	default:
		return err
	}
}

// GetUserByField looks a user up by id, username or email.
func (s *UserService) GetUserByField(ctx context.Context, field, value string) (*models.User, error) {
	if !lookupFields[field] {
		return nil, fmt.Errorf("%q: %w", field, common.ErrInvalidField)
	}
	if field == "username" {
		value = strings.ToLower(value)
	}
	return s.repo.FindOne(ctx, repositories.Filter{field: value})
}

// GetAllUsers returns every user. There is no pagination.
func (s *UserService) GetAllUsers(ctx context.Context) ([]models.User, error) {
	return s.repo.FindAll(ctx)
}

// UpdateUser applies the non-nil fields of upd to the user matching filter
// and drops that user's authentication cache entry.
func (s *UserService) UpdateUser(ctx context.Context, filter repositories.Filter, upd models.UserUpdate) (*models.User, error) {
	for field := range filter {
		if !lookupFields[field] {
			return nil, fmt.Errorf("%q: %w", field, common.ErrInvalidField)
		}
	}

	values := make(map[string]interface{})
	if upd.Name != nil {
		values["name"] = strings.TrimSpace(*upd.Name)
	}
	if upd.Email != nil {
		values["email"] = strings.TrimSpace(*upd.Email)
	}
	if upd.Password != nil {
		hash, err := s.hasher.Hash(*upd.Password)
		if err != nil {
			return nil, err
		}
		values["password_hash"] = hash
	}
	if upd.Role != nil {
		if !upd.Role.IsValid() {
			return nil, fmt.Errorf("unknown role %q", *upd.Role)
		}
		values["role"] = *upd.Role
	}
	if upd.Disabled != nil {
		values["disabled"] = *upd.Disabled
	}
	if upd.EmailVerified != nil {
		values["email_verified"] = *upd.EmailVerified
	}

	user, err := s.repo.UpdateOne(ctx, filter, values)
	if err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx, user.Username)
	return user, nil
}

// DeleteUserByID physically deletes a user and returns the deleted row.
func (s *UserService) DeleteUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.DeleteOne(ctx, repositories.Filter{"id": id})
	if err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx, user.Username)
	slog.InfoContext(ctx, "user deleted", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// GetAuthUser returns the user when username and password match an active
// account, and nil otherwise. Unknown user, wrong password and disabled
// account are deliberately indistinguishable. The returned user carries
// its password hash.
func (s *UserService) GetAuthUser(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.GetUserByField(ctx, "username", username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("stored hash for user %s: %w", user.ID, err)
	}
	if !ok || user.Disabled {
		return nil, nil
	}
	return user, nil
}

// EnsureAdmin makes sure an admin account with the given credentials
// exists. All three values empty is a no-op.
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	if username == "" && email == "" && password == "" {
		return nil
	}
	if username == "" || email == "" || password == "" {
		return errors.New("ADMIN_USERNAME, ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}

	existing, err := s.GetUserByField(ctx, "username", username)
	switch {
	case err == nil:
		if existing.IsAdmin() {
			return nil
		}
		role := models.RoleAdmin
		_, err = s.UpdateUser(ctx, repositories.Filter{"id": existing.ID}, models.UserUpdate{Role: &role})
		return err
	case errors.Is(err, common.ErrNotFound):
		_, err = s.addUser(ctx, models.CreateUserRequest{
			Name:     username,
			Email:    email,
			Username: username,
			Password: password,
		}, models.RoleAdmin)
		return err
	default:
		return err
	}
}
