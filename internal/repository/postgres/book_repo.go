package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hkids/catalog/internal/domain"
	"github.com/hkids/catalog/internal/repository"
)

// bookRepository implements repository.BookRepository for PostgreSQL.
// Page references are stored as a native text[] column in reading order.
type bookRepository struct {
	db *DB
}

// NewBookRepository creates a new PostgreSQL book repository.
func NewBookRepository(db *DB) repository.BookRepository {
	return &bookRepository{db: db}
}

// Create creates a new book and assigns its ID.
func (r *bookRepository) Create(ctx context.Context, book *domain.Book) error {
	query := `
		INSERT INTO books (title, description, age_group, category, cover_image,
			pages, file_type, is_published, uploaded_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		book.Title,
		book.Description,
		string(book.AgeGroup),
		book.Category,
		book.CoverImage,
		book.Pages,
		string(book.FileType),
		book.IsPublished,
		book.UploadedBy,
		book.CreatedAt,
		book.UpdatedAt,
	).Scan(&book.ID)
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}

	return nil
}

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
		WHERE b.id = $1
	`

	book, err := scanBookWithUploader(r.db.Pool.QueryRow(ctx, query, id))
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
		WHERE is_published = TRUE
	`)

	var args []interface{}
	if filter.AgeGroup != "" {
		args = append(args, string(filter.AgeGroup))
		fmt.Fprintf(&sb, ` AND age_group = $%d`, len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		fmt.Fprintf(&sb, ` AND category = $%d`, len(args))
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC`)

	rows, err := r.db.Pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list published books: %w", err)
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		book := &domain.Book{}
		var ageGroup, fileType string

		err := rows.Scan(
			&book.ID,
			&book.Title,
			&book.Description,
			&ageGroup,
			&book.Category,
			&book.CoverImage,
			&book.Pages,
			&fileType,
			&book.IsPublished,
			&book.UploadedBy,
			&book.CreatedAt,
			&book.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}

		book.AgeGroup = domain.AgeGroup(ageGroup)
		book.FileType = domain.FileType(fileType)
		books = append(books, book)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating books: %w", err)
	}

	return books, nil
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

	rows, err := r.db.Pool.Query(ctx, query)
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
	book.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE books
		SET title = $1, description = $2, age_group = $3, category = $4,
			cover_image = $5, pages = $6, file_type = $7, is_published = $8, updated_at = $9
		WHERE id = $10
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		book.Title,
		book.Description,
		string(book.AgeGroup),
		book.Category,
		book.CoverImage,
		book.Pages,
		string(book.FileType),
		book.IsPublished,
		book.UpdatedAt,
		book.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes a book by ID.
func (r *bookRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Count returns the total number of books.
func (r *bookRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM books`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return count, nil
}

func scanBookWithUploader(row pgx.Row) (*domain.Book, error) {
	book := &domain.Book{}
	var ageGroup, fileType string
	var username, email *string

	err := row.Scan(
		&book.ID,
		&book.Title,
		&book.Description,
		&ageGroup,
		&book.Category,
		&book.CoverImage,
		&book.Pages,
		&fileType,
		&book.IsPublished,
		&book.UploadedBy,
		&book.CreatedAt,
		&book.UpdatedAt,
		&username,
		&email,
	)
	if err != nil {
		return nil, err
	}

	book.AgeGroup = domain.AgeGroup(ageGroup)
	book.FileType = domain.FileType(fileType)
	if username != nil {
		book.Uploader = &domain.Uploader{Username: *username}
		if email != nil {
			book.Uploader.Email = *email
		}
	}

	return book, nil
}

// Ensure bookRepository implements repository.BookRepository.
var _ repository.BookRepository = (*bookRepository)(nil)
