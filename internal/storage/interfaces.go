// Package storage defines the image storage backends for book covers and
// pages. The catalog persists only references (served paths or URLs); the
// backend owns the bytes behind references it produced.
package storage

import (
	"context"
	"io"
)

// Kind distinguishes cover images from page images. Backends may use it
// to partition storage (separate directories or key prefixes).
type Kind string

const (
	// KindCover marks a book cover illustration.
	KindCover Kind = "covers"

	// KindPage marks a book page image.
	KindPage Kind = "pages"
)

// ImageStore persists uploaded book images and resolves the references
// stored in book records back to deletable resources.
type ImageStore interface {
	// Save stores the content and returns the reference to persist on the
	// book record. filename is the client-supplied name, used only for its
	// extension; the stored name is always generated.
	Save(ctx context.Context, kind Kind, filename string, r io.Reader) (ref string, err error)

	// Delete removes the content behind a reference previously returned by
	// Save. Deleting an unknown or already-deleted reference is an error
	// the caller treats as non-fatal.
	Delete(ctx context.Context, ref string) error

	// Owns reports whether the reference was produced by this store.
	// External URLs on book records are never owned and never deleted.
	Owns(ref string) bool
}
