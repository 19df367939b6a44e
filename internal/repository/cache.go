// Package repository defines data access interfaces for the HKids catalog.
package repository

import (
	"context"
	"time"
)

// Cache defines the interface for caching published-book listings.
// Implemented by Redis for shared deployments and by an in-process map
// for tests and cacheless configurations.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL.
	// If ttl is 0, the value doesn't expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key with the given prefix.
	// Used to invalidate all cached listings after a catalog mutation.
	DeletePrefix(ctx context.Context, prefix string) error

	// Close releases any resources held by the cache.
	Close() error
}
