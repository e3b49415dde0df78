package services

import (
	"fmt"

	"authsimple/internal/common"
	"authsimple/internal/models"
)

// Authorize permits an operation on the user identified by targetID when
// the caller is an admin or is that user.
func Authorize(caller *models.User, targetID string) error {
	if caller == nil {
		return common.ErrUnauthorized
	}
	if caller.IsAdmin() || caller.ID == targetID {
		return nil
	}
	return fmt.Errorf("user %s may not act on user %s: %w", caller.ID, targetID, common.ErrForbidden)
}

// RequireAdmin permits admin-only operations such as listing all users.
func RequireAdmin(caller *models.User) error {
	if caller == nil {
		return common.ErrUnauthorized
	}
	if !caller.IsAdmin() {
		return fmt.Errorf("user %s is not an admin: %w", caller.ID, common.ErrForbidden)
	}
	return nil
}
