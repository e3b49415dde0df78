package models

import "time"

// Role enumerates what a user may do beyond managing their own record.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a registered principal.
type User struct {
	ID            string    `json:"user_id" gorm:"primaryKey;type:varchar(36)"`
	Name          string    `json:"name" gorm:"type:varchar(100);not null"`
	Email         string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Username      string    `json:"username" gorm:"uniqueIndex;type:varchar(100);not null"`
	PasswordHash  string    `json:"-" gorm:"type:varchar(255);not null"` // never serialized
	RegisteredAt  time.Time `json:"register_at" gorm:"not null"`
	Role          Role      `json:"role" gorm:"type:varchar(16);not null;default:USER"`
	EmailVerified bool      `json:"email_verified" gorm:"not null;default:false"`
	Disabled      bool      `json:"disabled" gorm:"not null;default:false"`
}

// TableName pins the table name used by GORM.
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// CreateUserRequest is the registration payload.
type CreateUserRequest struct {
	Name     string `json:"name" form:"name" validate:"required,max=100,letters"`
	Email    string `json:"email" form:"email" validate:"required,email,max=255"`
	Username string `json:"username" form:"username" validate:"required,max=100,letters"`
	Password string `json:"password" form:"password" validate:"required,min=5,max=72"`
}

// UserUpdate carries a partial update. Nil fields are left untouched.
type UserUpdate struct {
	Name          *string `json:"name" validate:"omitempty,max=100,letters"`
	Email         *string `json:"email" validate:"omitempty,email,max=255"`
	Password      *string `json:"password" validate:"omitempty,min=5,max=72"`
	Role          *Role   `json:"role" validate:"omitempty,oneof=USER ADMIN"`
	Disabled      *bool   `json:"disabled"`
	EmailVerified *bool   `json:"-"`
}

// IsEmpty reports whether the update would change nothing.
func (u UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.Password == nil &&
		u.Role == nil && u.Disabled == nil && u.EmailVerified == nil
}

// TouchesPrivileges reports whether the update changes role or account state.
func (u UserUpdate) TouchesPrivileges() bool {
	return u.Role != nil || u.Disabled != nil
}
