package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"authsimple/internal/common"
	"authsimple/internal/models"

	"github.com/google/uuid"
)

// InMemoryUserRepository is an in-memory implementation of UserRepository.
// It enforces the same uniqueness rules as the SQL schema.
type InMemoryUserRepository struct {
	users map[string]models.User
	mu    sync.RWMutex
}

// NewInMemoryUserRepository creates a new instance of InMemoryUserRepository.
func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users: make(map[string]models.User),
	}
}

// Create adds a new user.
func (r *InMemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = time.Now().UTC()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if err := r.checkUnique(user.ID, user.Username, user.Email); err != nil {
		return err
	}
	r.users[user.ID] = *user
	return nil
}

// FindOne returns the first user matching filter.
func (r *InMemoryUserRepository) FindOne(_ context.Context, filter Filter) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, err := r.find(filter)
	if err != nil {
		return nil, err
	}
	found := *user
	return &found, nil
}

// FindAll returns all users ordered by registration time.
func (r *InMemoryUserRepository) FindAll(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userList := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		userList = append(userList, u)
	}
	sort.Slice(userList, func(i, j int) bool {
		return userList[i].RegisteredAt.Before(userList[j].RegisteredAt)
	})
	return userList, nil
}

// UpdateOne applies values to the user matching filter.
func (r *InMemoryUserRepository) UpdateOne(_ context.Context, filter Filter, values map[string]interface{}) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.find(filter)
	if err != nil {
		return nil, err
	}
	updated := *current
	for column, value := range values {
		if err := assign(&updated, column, value); err != nil {
			return nil, err
		}
	}
	if err := r.checkUnique(updated.ID, updated.Username, updated.Email); err != nil {
		return nil, err
	}
	r.users[updated.ID] = updated
	return &updated, nil
}

// DeleteOne removes the user matching filter.
func (r *InMemoryUserRepository) DeleteOne(_ context.Context, filter Filter) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, err := r.find(filter)
	if err != nil {
		return nil, err
	}
	deleted := *user
	delete(r.users, deleted.ID)
	return &deleted, nil
}

// find must be called with the lock held.
func (r *InMemoryUserRepository) find(filter Filter) (*models.User, error) {
	for id := range r.users {
		u := r.users[id]
		ok, err := matches(u, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user matching %v: %w", filter, common.ErrNotFound)
}

// checkUnique must be called with the lock held.
func (r *InMemoryUserRepository) checkUnique(id, username, email string) error {
	for _, u := range r.users {
		if u.ID == id {
			continue
		}
		if u.Username == username || u.Email == email {
			return fmt.Errorf("user %s: %w", username, common.ErrDuplicate)
		}
	}
	return nil
}

func matches(u models.User, filter Filter) (bool, error) {
	for column, value := range filter {
		var got interface{}
		switch column {
		case "id":
			got = u.ID
		case "username":
			got = u.Username
		case "email":
			got = u.Email
		default:
			return false, fmt.Errorf("unsupported filter column %q", column)
		}
		if got != value {
			return false, nil
		}
	}
	return true, nil
}

func assign(u *models.User, column string, value interface{}) error {
	var ok bool
	switch column {
	case "name":
		u.Name, ok = value.(string)
	case "email":
		u.Email, ok = value.(string)
	case "password_hash":
		u.PasswordHash, ok = value.(string)
	case "role":
		u.Role, ok = value.(models.Role)
	case "email_verified":
		u.EmailVerified, ok = value.(bool)
	case "disabled":
		u.Disabled, ok = value.(bool)
	default:
		return fmt.Errorf("unsupported update column %q", column)
	}
	if !ok {
		return fmt.Errorf("invalid value %v for column %q", value, column)
	}
	return nil
}
