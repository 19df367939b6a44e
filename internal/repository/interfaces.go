// Package repository defines data access interfaces for the HKids catalog.
// These interfaces abstract database operations, allowing for different
// implementations (SQLite, PostgreSQL, in-memory for testing) while keeping
// the service layer clean.
package repository

import (
	"context"

	"github.com/hkids/catalog/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// List returns all users ordered by creation time, newest first.
	List(ctx context.Context) ([]*domain.User, error)

	// ExistsByUsername checks if a user with the given username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// =============================================================================
// Book Repository
// =============================================================================

// BookFilter narrows published-book listings. Zero values match everything.
type BookFilter struct {
	// AgeGroup restricts results to an exact age bracket when non-empty.
	AgeGroup domain.AgeGroup

	// Category restricts results to an exact category when non-empty.
	Category string
}

// BookRepository defines the interface for book data access.
type BookRepository interface {
	// Create creates a new book and assigns its ID.
	Create(ctx context.Context, book *domain.Book) error

	// GetByID retrieves a book by ID with its uploader identity resolved
	// (nil uploader when the uploading user no longer exists).
	GetByID(ctx context.Context, id int64) (*domain.Book, error)

	// ListPublished returns published books matching the filter,
	// newest-created-first. Uploader identity is not resolved.
	ListPublished(ctx context.Context, filter BookFilter) ([]*domain.Book, error)

	// ListAll returns every book regardless of publish state,
	// newest-created-first, with uploader identities resolved.
	ListAll(ctx context.Context) ([]*domain.Book, error)

	// Update persists all mutable fields of an existing book.
	Update(ctx context.Context, book *domain.Book) error

	// Delete removes a book by ID.
	Delete(ctx context.Context, id int64) error

	// Count returns the total number of books.
	Count(ctx context.Context) (int64, error)
}

// =============================================================================
// Health
// =============================================================================

// DatabaseHealth is implemented by database handles and used by the health
// endpoint to probe store reachability.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Close() error
}
