// Package domain contains the core business entities for the HKids catalog.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same username/email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ===========================================
	// Book Errors
	// ===========================================

	// ErrBookNotFound indicates the requested book does not exist.
	ErrBookNotFound = errors.New("book not found")

	// ErrMissingField indicates a required book field is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidAgeGroup indicates the age group is not one of 3-5, 6-8, 9-12.
	ErrInvalidAgeGroup = errors.New("invalid age group")

	// ErrInvalidFileType indicates the file type is not "pdf" or "images".
	ErrInvalidFileType = errors.New("invalid file type")

	// ===========================================
	// Authentication/Authorization Errors
	// ===========================================

	// ErrUnauthenticated indicates the request carried no usable credential.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrForbidden indicates the caller lacks the required role.
	ErrForbidden = errors.New("access denied: admin privileges required")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Field identifies the affected field (e.g. "title", "pages").
	Field string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Field)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, field string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
		Field:   field,
	}
}
