package repositories

import (
	"context"

	"authsimple/internal/models"
)

// Filter selects users by column equality, e.g. Filter{"email": "a@b.c"}.
type Filter map[string]interface{}

// UserRepository defines the interface for user data access. Each call is
// atomic on its own.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindOne(ctx context.Context, filter Filter) (*models.User, error)
	FindAll(ctx context.Context) ([]models.User, error)
	// UpdateOne applies values (column name to new value) to the single row
	// matching filter and returns the row as stored afterwards.
	UpdateOne(ctx context.Context, filter Filter, values map[string]interface{}) (*models.User, error)
	// DeleteOne physically removes the row matching filter and returns it.
	DeleteOne(ctx context.Context, filter Filter) (*models.User, error)
}
