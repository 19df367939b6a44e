// Package service provides business logic services for the HKids catalog.
package service

import "errors"

// Common service errors.
var (
	// User errors
	ErrInvalidUsername = errors.New("invalid username: must be 3-255 characters")
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrInvalidPassword = errors.New("invalid password: must be at least 6 characters")

	// General errors
	ErrInternalError = errors.New("internal server error")
)
