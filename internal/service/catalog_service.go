// Package service provides business logic services for the HKids catalog.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hkids/catalog/internal/domain"
	"github.com/hkids/catalog/internal/repository"
)

// publishedCachePrefix namespaces cached published-book listings.
// Every catalog mutation invalidates the whole prefix.
const publishedCachePrefix = "books:published:"

// CatalogService handles book CRUD, publish-state visibility and the
// best-effort cleanup of superseded image files.
type CatalogService struct {
	bookRepo repository.BookRepository
	cache    repository.Cache // nil disables caching
	cacheTTL time.Duration
	cleanup  CleanupQueue
	logger   zerolog.Logger
}

// NewCatalogService creates a new CatalogService. cache may be nil to
// disable listing caching; cleanup must not be nil (use NopCleanup).
func NewCatalogService(
	bookRepo repository.BookRepository,
	cache repository.Cache,
	cacheTTL time.Duration,
	cleanup CleanupQueue,
	logger zerolog.Logger,
) *CatalogService {
	return &CatalogService{
		bookRepo: bookRepo,
		cache:    cache,
		cacheTTL: cacheTTL,
		cleanup:  cleanup,
		logger:   logger.With().Str("service", "catalog").Logger(),
	}
}

// =============================================================================
// Input Structs
// =============================================================================

// CreateBookInput contains the data needed to create a book.
type CreateBookInput struct {
	Title       string
	Description string
	AgeGroup    domain.AgeGroup
	Category    string
	CoverImage  string
	Pages       []string
	FileType    domain.FileType
	IsPublished bool
}

// UpdateBookInput contains a partial book update. Nil fields are left
// unchanged; Description and IsPublished are the only fields where an
// explicit empty/false value is still applied, which the pointer types
// distinguish from "not provided".
type UpdateBookInput struct {
	Title       *string
	Description *string
	AgeGroup    *domain.AgeGroup
	Category    *string
	CoverImage  *string
	Pages       []string
	FileType    *domain.FileType
	IsPublished *bool
}

// =============================================================================
// Public reads
// =============================================================================

// ListPublished returns published books matching the filter, newest first.
// Results are cached per filter when a cache is configured.
func (s *CatalogService) ListPublished(ctx context.Context, filter repository.BookFilter) ([]*domain.Book, error) {
	key := publishedCacheKey(filter)

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var books []*domain.Book
			if err := json.Unmarshal(data, &books); err == nil {
				return books, nil
			}
			// Corrupt entry: fall through to the store.
			_ = s.cache.Delete(ctx, key)
		} else if !errors.Is(err, repository.ErrCacheMiss) {
			// Cache trouble is not a reason to fail a public read.
			s.logger.Warn().Err(err).Msg("listing cache unavailable")
		}
	}

	books, err := s.bookRepo.ListPublished(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list published books")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if books == nil {
		books = []*domain.Book{}
	}

	if s.cache != nil {
		if data, err := json.Marshal(books); err == nil {
			if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
				s.logger.Warn().Err(err).Msg("failed to cache published listing")
			}
		}
	}

	return books, nil
}

func publishedCacheKey(filter repository.BookFilter) string {
	return publishedCachePrefix + string(filter.AgeGroup) + ":" + filter.Category
}

// =============================================================================
// Admin operations
// =============================================================================

// ListAll returns every book regardless of publish state, newest first,
// with uploader identities resolved.
func (s *CatalogService) ListAll(ctx context.Context) ([]*domain.Book, error) {
	books, err := s.bookRepo.ListAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list books")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if books == nil {
		books = []*domain.Book{}
	}
	return books, nil
}

// GetByID retrieves a single book.
func (s *CatalogService) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	book, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrBookNotFound
		}
		s.logger.Error().Err(err).Int64("book_id", id).Msg("failed to get book")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return book, nil
}

// Create validates and persists a new book owned by the calling admin.
// Books default to draft unless IsPublished is explicitly set.
func (s *CatalogService) Create(ctx context.Context, admin *domain.User, input CreateBookInput) (*domain.Book, error) {
	book := domain.NewBook(input.Title, input.Category, input.AgeGroup, admin.ID)
	book.Description = input.Description
	book.CoverImage = input.CoverImage
	book.Pages = input.Pages
	book.IsPublished = input.IsPublished
	if input.FileType != "" {
		book.FileType = input.FileType
	}

	if err := book.Validate(); err != nil {
		return nil, err
	}

	if err := s.bookRepo.Create(ctx, book); err != nil {
		s.logger.Error().Err(err).Str("title", book.Title).Msg("failed to create book")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.invalidateListings(ctx)

	s.logger.Info().
		Int64("book_id", book.ID).
		Str("title", book.Title).
		Int64("uploaded_by", admin.ID).
		Msg("book created")

	return book, nil
}

// Update applies a partial update. When cover or page references are
// replaced, the superseded owned files are queued for best-effort cleanup
// after the record write commits.
func (s *CatalogService) Update(ctx context.Context, id int64, input UpdateBookInput) (*domain.Book, error) {
	book, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrBookNotFound
		}
		s.logger.Error().Err(err).Int64("book_id", id).Msg("failed to get book for update")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	var superseded []string

	if input.Title != nil && *input.Title != "" {
		book.Title = *input.Title
	}
	if input.Description != nil {
		book.Description = *input.Description
	}
	if input.AgeGroup != nil && *input.AgeGroup != "" {
		if !input.AgeGroup.IsValid() {
			return nil, domain.NewDomainError(domain.ErrInvalidAgeGroup, string(*input.AgeGroup), "ageGroup")
		}
		book.AgeGroup = *input.AgeGroup
	}
	if input.Category != nil && *input.Category != "" {
		book.Category = *input.Category
	}
	if input.FileType != nil && *input.FileType != "" {
		if !input.FileType.IsValid() {
			return nil, domain.NewDomainError(domain.ErrInvalidFileType, string(*input.FileType), "fileType")
		}
		book.FileType = *input.FileType
	}
	if input.IsPublished != nil {
		book.IsPublished = *input.IsPublished
	}
	if input.CoverImage != nil && *input.CoverImage != "" && *input.CoverImage != book.CoverImage {
		superseded = append(superseded, book.CoverImage)
		book.CoverImage = *input.CoverImage
	}
	if input.Pages != nil {
		if len(input.Pages) == 0 {
			return nil, domain.NewDomainError(domain.ErrMissingField, "at least one page is required", "pages")
		}
		superseded = append(superseded, diffRefs(book.Pages, input.Pages)...)
		book.Pages = input.Pages
	}

	if err := s.bookRepo.Update(ctx, book); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrBookNotFound
		}
		s.logger.Error().Err(err).Int64("book_id", id).Msg("failed to update book")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	// Cleanup runs only after the record write committed, so a crash can
	// orphan a file but never a record pointer.
	s.cleanup.Enqueue(superseded...)
	s.invalidateListings(ctx)

	s.logger.Info().
		Int64("book_id", book.ID).
		Bool("is_published", book.IsPublished).
		Msg("book updated")

	return book, nil
}

// Delete removes a book and queues its owned images for cleanup.
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	book, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrBookNotFound
		}
		s.logger.Error().Err(err).Int64("book_id", id).Msg("failed to get book for delete")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.bookRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrBookNotFound
		}
		s.logger.Error().Err(err).Int64("book_id", id).Msg("failed to delete book")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.cleanup.Enqueue(book.ImageRefs()...)
	s.invalidateListings(ctx)

	s.logger.Info().Int64("book_id", id).Msg("book deleted")
	return nil
}

// invalidateListings drops every cached published listing.
func (s *CatalogService) invalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, publishedCachePrefix); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate listing cache")
	}
}

// diffRefs returns the references in old that are absent from updated.
func diffRefs(old, updated []string) []string {
	kept := make(map[string]struct{}, len(updated))
	for _, ref := range updated {
		kept[ref] = struct{}{}
	}
	var gone []string
	for _, ref := range old {
		if _, ok := kept[ref]; !ok {
			gone = append(gone, ref)
		}
	}
	return gone
}
