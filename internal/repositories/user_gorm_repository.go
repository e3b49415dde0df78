package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"authsimple/internal/common"
	"authsimple/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
// The *gorm.DB should be opened with TranslateError so unique violations
// surface as gorm.ErrDuplicatedKey.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create inserts a new user, assigning id, registration time and role
// when they are unset.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = time.Now().UTC()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("user %s: %w", user.Username, common.ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindOne retrieves the first user matching filter.
func (r *GORMUserRepository) FindOne(ctx context.Context, filter Filter) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(map[string]interface{}(filter)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user matching %v: %w", filter, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find user by %v: %w", filter, err)
	}
	return &user, nil
}

// FindAll retrieves every user ordered by registration time.
func (r *GORMUserRepository) FindAll(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("registered_at").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to get all users: %w", err)
	}
	return users, nil
}

// UpdateOne updates the user matching filter inside one transaction.
func (r *GORMUserRepository) UpdateOne(ctx context.Context, filter Filter, values map[string]interface{}) (*models.User, error) {
	var updated models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.User
		if err := tx.Where(map[string]interface{}(filter)).First(&current).Error; err != nil {
			return err
		}
		if email, ok := values["email"]; ok {
			var clashes int64
			if err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", email, current.ID).Count(&clashes).Error; err != nil {
				return err
			}
			if clashes > 0 {
				return gorm.ErrDuplicatedKey
			}
		}
		if len(values) > 0 {
			if err := tx.Model(&current).Updates(values).Error; err != nil {
				return err
			}
		}
		// Re-read by id: the filter column may be among the updated ones.
		return tx.First(&updated, "id = ?", current.ID).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("user matching %v: %w", filter, common.ErrNotFound)
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, fmt.Errorf("update user matching %v: %w", filter, common.ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to update user matching %v: %w", filter, err)
	}
	return &updated, nil
}

// DeleteOne removes the user matching filter and returns the deleted row.
func (r *GORMUserRepository) DeleteOne(ctx context.Context, filter Filter) (*models.User, error) {
	var deleted models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(map[string]interface{}(filter)).First(&deleted).Error; err != nil {
			return err
		}
		return tx.Delete(&deleted).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user matching %v: %w", filter, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to delete user matching %v: %w", filter, err)
	}
	return &deleted, nil
}
