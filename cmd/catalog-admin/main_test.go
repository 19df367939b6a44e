package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hkids/catalog/internal/domain"
	"github.com/hkids/catalog/internal/repository"
	"github.com/hkids/catalog/internal/repository/sqlite"
)

func newSeedRepos(t *testing.T) (repository.UserRepository, repository.BookRepository) {
	t.Helper()

	db, err := sqlite.NewDB(context.Background(), sqlite.DefaultConfig(filepath.Join(t.TempDir(), "test.db")), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	return sqlite.NewUserRepository(db), sqlite.NewBookRepository(db)
}

func TestSeedDatabase_BootstrapsFreshDatabase(t *testing.T) {
	ctx := context.Background()
	userRepo, bookRepo := newSeedRepos(t)

	var out bytes.Buffer
	require.NoError(t, seedDatabase(ctx, userRepo, bookRepo, &out))

	admin, err := userRepo.GetByUsername(ctx, seedAdminUsername)
	require.NoError(t, err)
	require.Equal(t, seedAdminEmail, admin.Email)
	require.Equal(t, domain.RoleAdmin, admin.Role)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(seedAdminPassword)))

	books, err := bookRepo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, books, 3)
	for _, b := range books {
		require.Equal(t, admin.ID, b.UploadedBy)
	}
}

func TestSeedDatabase_ReusesExistingAdmin(t *testing.T) {
	ctx := context.Background()
	userRepo, bookRepo := newSeedRepos(t)

	existing := domain.NewUser(seedAdminUsername, seedAdminEmail, "already-hashed")
	existing.Role = domain.RoleAdmin
	require.NoError(t, userRepo.Create(ctx, existing))

	var out bytes.Buffer
	require.NoError(t, seedDatabase(ctx, userRepo, bookRepo, &out))

	users, err := userRepo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)

	admin, err := userRepo.GetByUsername(ctx, seedAdminUsername)
	require.NoError(t, err)
	require.Equal(t, "already-hashed", admin.PasswordHash)

	books, err := bookRepo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, books, 3)
	for _, b := range books {
		require.Equal(t, existing.ID, b.UploadedBy)
	}
}
