// Package domain contains the core business entities for the HKids catalog.
// These are pure Go structs with no external dependencies, representing
// the fundamental concepts of the book catalog system.
package domain

import (
	"time"
)

// Role identifies the privilege level of a user account.
type Role string

const (
	// RoleAdmin grants access to catalog management operations.
	RoleAdmin Role = "admin"

	// RoleUser is the default role for ordinary accounts.
	RoleUser Role = "user"
)

// IsValid reports whether the role is a known value.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents a registered account in the system.
// Admin users manage the catalog; ordinary users exist only so that
// authentication has something to resolve against.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Username is the unique username for login and display.
	Username string `json:"username"`

	// Email is the unique email address for the user.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This is never exposed in API responses.
	PasswordHash string `json:"-"`

	// Role determines whether the user may mutate the catalog.
	Role Role `json:"role"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new User with default values.
func NewUser(username, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Uploader is the reduced projection of a user attached to admin catalog
// listings. It deliberately carries no credential material.
type Uploader struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}
