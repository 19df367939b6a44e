// Package domain contains the core business entities for the HKids catalog.
package domain

import (
	"time"
)

// AgeGroup identifies the reader age bracket a book is intended for.
type AgeGroup string

const (
	AgeGroup3to5  AgeGroup = "3-5"
	AgeGroup6to8  AgeGroup = "6-8"
	AgeGroup9to12 AgeGroup = "9-12"
)

// IsValid reports whether the age group is a known bracket.
func (a AgeGroup) IsValid() bool {
	switch a {
	case AgeGroup3to5, AgeGroup6to8, AgeGroup9to12:
		return true
	}
	return false
}

// FileType identifies how a book's pages were sourced.
type FileType string

const (
	// FileTypeImages means pages are individual image files.
	FileTypeImages FileType = "images"

	// FileTypePDF means pages were extracted from a PDF document.
	FileTypePDF FileType = "pdf"
)

// IsValid reports whether the file type is a known value.
func (f FileType) IsValid() bool {
	return f == FileTypeImages || f == FileTypePDF
}

// Book represents an illustrated children's book in the catalog.
//
// CoverImage and Pages hold image references: either a served path owned by
// the configured image store, or an external URL. Page order is reading
// order and is significant.
type Book struct {
	// ID is the unique identifier for the book (auto-generated).
	ID int64 `json:"id"`

	// Title is the display title. Required.
	Title string `json:"title"`

	// Description is an optional synopsis shown to readers.
	Description string `json:"description"`

	// AgeGroup is the intended reader bracket. Required.
	AgeGroup AgeGroup `json:"ageGroup"`

	// Category is a free-text genre label (e.g. "Animals"). Required.
	Category string `json:"category"`

	// CoverImage is the reference to the cover illustration. Required.
	CoverImage string `json:"coverImage"`

	// Pages is the ordered sequence of page image references.
	// A book with zero pages is invalid.
	Pages []string `json:"pages"`

	// FileType records how the pages were produced.
	FileType FileType `json:"fileType"`

	// IsPublished controls reader visibility. Books start as drafts.
	IsPublished bool `json:"isPublished"`

	// UploadedBy is the ID of the admin who created the book.
	// Weak reference: deleting the user does not cascade.
	UploadedBy int64 `json:"uploadedBy"`

	// Uploader is the resolved uploader identity, populated only on
	// admin listings. Nil when the uploading user no longer exists.
	Uploader *Uploader `json:"uploader,omitempty"`

	// CreatedAt is the timestamp when the book was created.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the timestamp when the book was last updated.
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewBook creates a draft Book with default values.
func NewBook(title, category string, ageGroup AgeGroup, uploadedBy int64) *Book {
	now := time.Now().UTC()
	return &Book{
		Title:       title,
		Category:    category,
		AgeGroup:    ageGroup,
		FileType:    FileTypeImages,
		IsPublished: false,
		UploadedBy:  uploadedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks the creation invariants: title, ageGroup, category,
// coverImage and at least one page must be present.
func (b *Book) Validate() error {
	if b.Title == "" {
		return NewDomainError(ErrMissingField, "title is required", "title")
	}
	if b.AgeGroup == "" {
		return NewDomainError(ErrMissingField, "age group is required", "ageGroup")
	}
	if !b.AgeGroup.IsValid() {
		return NewDomainError(ErrInvalidAgeGroup, string(b.AgeGroup), "ageGroup")
	}
	if b.Category == "" {
		return NewDomainError(ErrMissingField, "category is required", "category")
	}
	if b.CoverImage == "" {
		return NewDomainError(ErrMissingField, "cover image is required", "coverImage")
	}
	if len(b.Pages) == 0 {
		return NewDomainError(ErrMissingField, "at least one page is required", "pages")
	}
	if b.FileType != "" && !b.FileType.IsValid() {
		return NewDomainError(ErrInvalidFileType, string(b.FileType), "fileType")
	}
	return nil
}

// ImageRefs returns every image reference owned by the book, cover first.
// Used when scheduling file cleanup on delete.
func (b *Book) ImageRefs() []string {
	refs := make([]string, 0, len(b.Pages)+1)
	refs = append(refs, b.CoverImage)
	refs = append(refs, b.Pages...)
	return refs
}
