package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FilesystemStore implements ImageStore on the local filesystem.
// Files are stored under <baseDir>/<kind>/<uuid><ext> and referenced as
// <publicPrefix>/<kind>/<uuid><ext>, which the HTTP layer serves statically.
type FilesystemStore struct {
	baseDir      string
	publicPrefix string
	logger       zerolog.Logger
}

// NewFilesystemStore creates a filesystem-backed image store and ensures
// the kind subdirectories exist.
func NewFilesystemStore(baseDir, publicPrefix string, logger zerolog.Logger) (*FilesystemStore, error) {
	for _, kind := range []Kind{KindCover, KindPage} {
		dir := filepath.Join(baseDir, string(kind))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
		}
	}

	return &FilesystemStore{
		baseDir:      baseDir,
		publicPrefix: strings.TrimSuffix(publicPrefix, "/"),
		logger:       logger.With().Str("component", "fs_store").Logger(),
	}, nil
}

// BaseDir returns the root directory, for static file serving.
func (s *FilesystemStore) BaseDir() string {
	return s.baseDir
}

// Save stores the content under a generated name and returns its served path.
func (s *FilesystemStore) Save(ctx context.Context, kind Kind, filename string, r io.Reader) (string, error) {
	name := uuid.NewString() + sanitizeExt(filename)
	dst := filepath.Join(s.baseDir, string(kind), name)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	ref := s.publicPrefix + "/" + string(kind) + "/" + name
	s.logger.Debug().Str("ref", ref).Msg("stored image")
	return ref, nil
}

// Delete removes the file behind a reference.
func (s *FilesystemStore) Delete(ctx context.Context, ref string) error {
	if !s.Owns(ref) {
		return fmt.Errorf("reference not owned by filesystem store: %s", ref)
	}

	rel := strings.TrimPrefix(ref, s.publicPrefix+"/")
	// Reject traversal attempts baked into stored references.
	rel = path.Clean(rel)
	if strings.HasPrefix(rel, "..") {
		return fmt.Errorf("invalid reference: %s", ref)
	}

	if err := os.Remove(filepath.Join(s.baseDir, filepath.FromSlash(rel))); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Owns reports whether the reference points into this store's public prefix.
func (s *FilesystemStore) Owns(ref string) bool {
	return strings.HasPrefix(ref, s.publicPrefix+"/")
}

// sanitizeExt returns a safe lowercase file extension from a client name.
func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".pdf":
		return ext
	}
	return ""
}

// Ensure FilesystemStore implements ImageStore.
var _ ImageStore = (*FilesystemStore)(nil)
