// Package common holds the error taxonomy shared by repositories, services
// and handlers.
package common

import "errors"

var (
	// repository errors
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")

	// token errors, kept distinct so clients can tell "log in again" from
	// "malformed request"
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")

	// service errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidField = errors.New("invalid lookup field")
)
