package auth

import "errors"

// Authentication errors.
var (
	// ErrNoToken indicates the Authorization header was missing or malformed.
	ErrNoToken = errors.New("no bearer token provided")

	// ErrInvalidToken indicates the token failed signature or expiry checks.
	ErrInvalidToken = errors.New("invalid or expired token")
)
