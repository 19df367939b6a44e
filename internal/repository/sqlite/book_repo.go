package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hkids/catalog/internal/domain"
	"github.com/hkids/catalog/internal/repository"
)

// bookRepository implements repository.BookRepository for SQLite.
//
// Page references are stored as a JSON array in a single TEXT column;
// the array order is the reading order.
type bookRepository struct {
	db *DB
}

// NewBookRepository creates a new SQLite book repository.
func NewBookRepository(db *DB) repository.BookRepository {
	return &bookRepository{db: db}
}

// boolToInt converts a boolean to an integer (SQLite has no native boolean).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Create creates a new book and assigns its ID.
func (r *bookRepository) Create(ctx context.Context, book *domain.Book) error {
	pages, err := json.Marshal(book.Pages)
	if err != nil {
		return fmt.Errorf("failed to encode pages: %w", err)
	}

	query := `
		INSERT INTO books (title, description, age_group, category, cover_image,
			pages, file_type, is_published, uploaded_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		book.Title,
		book.Description,
		string(book.AgeGroup),
		book.Category,
		book.CoverImage,
		string(pages),
		string(book.FileType),
		boolToInt(book.IsPublished),
		book.UploadedBy,
		book.CreatedAt.Format(time.RFC3339Nano),
		book.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	book.ID = id

	return nil
}

// bookWithUploaderColumns selects book fields plus the (nullable) uploader
// identity via a LEFT JOIN, so books survive their uploading user.
const bookWithUploaderColumns = `
	b.id, b.title, b.description, b.age_group, b.category, b.cover_image,
	b.pages, b.file_type, b.is_published, b.uploaded_by, b.created_at, b.updated_at,
	u.username, u.email
`

// GetByID retrieves a book by ID with its uploader identity resolved.
func (r *bookRepository) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	query := `
		SELECT ` + bookWithUploaderColumns + `
		FROM books b
		LEFT JOIN users u ON u.id = b.uploaded_by
		WHERE b.id = ?
	`

	book, err := scanBookWithUploader(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get book by ID: %w", err)
	}
	return book, nil
}

// ListPublished returns published books matching the filter, newest first.
func (r *bookRepository) ListPublished(ctx context.Context, filter repository.BookFilter) ([]*domain.Book, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, title, description, age_group, category, cover_image,
			pages, file_type, is_published, uploaded_by, created_at, updated_at
		FROM books
		WHERE is_published = 1
	`)

	var args []interface{}
	if filter.AgeGroup != "" {
		sb.WriteString(` AND age_group = ?`)
		args = append(args, string(filter.AgeGroup))
	}
	if filter.Category != "" {
		sb.WriteString(` AND category = ?`)
		args = append(args, filter.Category)
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC`)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list published books: %w", err)
	}
	defer rows.Close()

	return collectBooks(rows)
}

// ListAll returns every book regardless of publish state, newest first,
// with uploader identities resolved.
func (r *bookRepository) ListAll(ctx context.Context) ([]*domain.Book, error) {
	query := `
		SELECT ` + bookWithUploaderColumns + `
		FROM books b
		LEFT JOIN users u ON u.id = b.uploaded_by
		ORDER BY b.created_at DESC, b.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		book, err := scanBookWithUploader(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, book)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating books: %w", err)
	}

	return books, nil
}

// Update persists all mutable fields of an existing book.
func (r *bookRepository) Update(ctx context.Context, book *domain.Book) error {
	pages, err := json.Marshal(book.Pages)
	if err != nil {
		return fmt.Errorf("failed to encode pages: %w", err)
	}

	book.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE books
		SET title = ?, description = ?, age_group = ?, category = ?,
			cover_image = ?, pages = ?, file_type = ?, is_published = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		book.Title,
		book.Description,
		string(book.AgeGroup),
		book.Category,
		book.CoverImage,
		string(pages),
		string(book.FileType),
		boolToInt(book.IsPublished),
		book.UpdatedAt.Format(time.RFC3339Nano),
		book.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes a book by ID.
func (r *bookRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Count returns the total number of books.
func (r *bookRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return count, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBookWithUploader(s scanner) (*domain.Book, error) {
	book := &domain.Book{}
	var ageGroup, fileType, pages, createdAt, updatedAt string
	var isPublished int
	var username, email sql.NullString

	err := s.Scan(
		&book.ID,
		&book.Title,
		&book.Description,
		&ageGroup,
		&book.Category,
		&book.CoverImage,
		&pages,
		&fileType,
		&isPublished,
		&book.UploadedBy,
		&createdAt,
		&updatedAt,
		&username,
		&email,
	)
	if err != nil {
		return nil, err
	}

	if err := finishBook(book, ageGroup, fileType, pages, createdAt, updatedAt, isPublished); err != nil {
		return nil, err
	}
	if username.Valid {
		book.Uploader = &domain.Uploader{Username: username.String, Email: email.String}
	}

	return book, nil
}

func collectBooks(rows *sql.Rows) ([]*domain.Book, error) {
	var books []*domain.Book
	for rows.Next() {
		book := &domain.Book{}
		var ageGroup, fileType, pages, createdAt, updatedAt string
		var isPublished int

		err := rows.Scan(
			&book.ID,
			&book.Title,
			&book.Description,
			&ageGroup,
			&book.Category,
			&book.CoverImage,
			&pages,
			&fileType,
			&isPublished,
			&book.UploadedBy,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}

		if err := finishBook(book, ageGroup, fileType, pages, createdAt, updatedAt, isPublished); err != nil {
			return nil, err
		}
		books = append(books, book)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating books: %w", err)
	}

	return books, nil
}

func finishBook(book *domain.Book, ageGroup, fileType, pages, createdAt, updatedAt string, isPublished int) error {
	book.AgeGroup = domain.AgeGroup(ageGroup)
	book.FileType = domain.FileType(fileType)
	book.IsPublished = isPublished != 0
	if err := json.Unmarshal([]byte(pages), &book.Pages); err != nil {
		return fmt.Errorf("failed to decode pages: %w", err)
	}
	book.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	book.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return nil
}

// Ensure bookRepository implements repository.BookRepository.
var _ repository.BookRepository = (*bookRepository)(nil)
