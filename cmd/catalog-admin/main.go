// Package main is the entry point for the HKids catalog admin CLI.
// This tool provides administrative commands that run against the catalog
// database directly: bootstrapping admin accounts, inspecting users, and
// seeding sample data.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/hkids/catalog/internal/config"
	"github.com/hkids/catalog/internal/domain"
	"github.com/hkids/catalog/internal/repository"
	"github.com/hkids/catalog/internal/repository/postgres"
	"github.com/hkids/catalog/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "create-admin":
		err = runCreateAdmin(args)

	case "list-users":
		err = runListUsers(args)

	case "seed":
		err = runSeed(args)

	case "version":
		fmt.Printf("HKids Catalog Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`HKids Catalog Admin CLI

Usage:
  catalog-admin <command> [arguments]

Commands:
  create-admin   Create an admin user account
  list-users     List registered users
  seed           Create the demo admin and sample books for local development
  version        Print version information
  help           Show this help message

Examples:
  catalog-admin create-admin --username admin --email admin@example.com --password secret123
  catalog-admin list-users --config ./configs/config.yaml
  catalog-admin seed --config ./configs/config.yaml

Use "catalog-admin <command> --help" for more information about a command.`)
}

// openRepos connects to the configured database and returns its repositories.
// The returned close function releases the connection.
func openRepos(ctx context.Context, configPath string) (repository.UserRepository, repository.BookRepository, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.Config{
			Path:            cfg.Database.Path,
			JournalMode:     cfg.Database.JournalMode,
			BusyTimeout:     cfg.Database.BusyTimeout,
			SynchronousMode: cfg.Database.SynchronousMode,
		}, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return sqlite.NewUserRepository(db), sqlite.NewBookRepository(db), func() { db.Close() }, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return postgres.NewUserRepository(db), postgres.NewBookRepository(db), func() { db.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

func runCreateAdmin(args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	username := fs.String("username", "", "admin username")
	email := fs.String("email", "", "admin email")
	password := fs.String("password", "", "admin password")
	fs.Parse(args)

	if *username == "" || *email == "" || *password == "" {
		return fmt.Errorf("--username, --email and --password are required")
	}
	if len(*password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	userRepo, _, closeDB, err := openRepos(ctx, *configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user := domain.NewUser(*username, *email, string(hash))
	user.Role = domain.RoleAdmin

	if err := userRepo.Create(ctx, user); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	fmt.Printf("Admin user created: id=%d username=%s\n", user.ID, user.Username)
	return nil
}

func runListUsers(args []string) error {
	fs := flag.NewFlagSet("list-users", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	userRepo, _, closeDB, err := openRepos(ctx, *configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	users, err := userRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLE\tCREATED")
	for _, u := range users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			u.ID, u.Username, u.Email, u.Role, u.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

// Demo admin credentials inserted by the seed command for local development.
const (
	seedAdminUsername = "admin"
	seedAdminEmail    = "admin@hkids.com"
	seedAdminPassword = "admin123"
)

func runSeed(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	userRepo, bookRepo, closeDB, err := openRepos(ctx, *configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	return seedDatabase(ctx, userRepo, bookRepo, os.Stdout)
}

// seedDatabase bootstraps a fresh database: it creates the demo admin
// account (reusing it when it already exists) and inserts sample books
// recorded against it.
func seedDatabase(ctx context.Context, userRepo repository.UserRepository, bookRepo repository.BookRepository, out io.Writer) error {
	admin, err := userRepo.GetByUsername(ctx, seedAdminUsername)
	switch {
	case err == nil:
		fmt.Fprintf(out, "Using existing admin: id=%d username=%s\n", admin.ID, admin.Username)

	case errors.Is(err, repository.ErrNotFound):
		hash, err := bcrypt.GenerateFromPassword([]byte(seedAdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		admin = domain.NewUser(seedAdminUsername, seedAdminEmail, string(hash))
		admin.Role = domain.RoleAdmin
		if err := userRepo.Create(ctx, admin); err != nil {
			return fmt.Errorf("creating admin user: %w", err)
		}
		fmt.Fprintf(out, "Created admin user: id=%d username=%s password=%s\n",
			admin.ID, admin.Username, seedAdminPassword)

	default:
		return fmt.Errorf("looking up admin user: %w", err)
	}

	samples := []struct {
		title, description, category, cover string
		ageGroup                            domain.AgeGroup
		pages                               []string
		published                           bool
	}{
		{
			title:       "The Sleepy Fox",
			description: "A bedtime story about a fox who cannot fall asleep.",
			category:    "Bedtime",
			ageGroup:    domain.AgeGroup3to5,
			cover:       "/uploads/covers/sample-fox-cover.jpg",
			pages:       []string{"/uploads/pages/sample-fox-1.jpg", "/uploads/pages/sample-fox-2.jpg"},
			published:   true,
		},
		{
			title:       "Counting Stars",
			description: "Learn numbers with the night sky.",
			category:    "Learning",
			ageGroup:    domain.AgeGroup6to8,
			cover:       "/uploads/covers/sample-stars-cover.jpg",
			pages:       []string{"/uploads/pages/sample-stars-1.jpg"},
			published:   true,
		},
		{
			title:       "The Hidden Map",
			description: "An adventure draft that is still being illustrated.",
			category:    "Adventure",
			ageGroup:    domain.AgeGroup9to12,
			cover:       "/uploads/covers/sample-map-cover.jpg",
			pages:       []string{"/uploads/pages/sample-map-1.jpg"},
			published:   false,
		},
	}

	for _, s := range samples {
		book := domain.NewBook(s.title, s.category, s.ageGroup, admin.ID)
		book.Description = s.description
		book.CoverImage = s.cover
		book.Pages = s.pages
		book.IsPublished = s.published

		if err := book.Validate(); err != nil {
			return fmt.Errorf("invalid sample %q: %w", s.title, err)
		}
		if err := bookRepo.Create(ctx, book); err != nil {
			return fmt.Errorf("inserting sample %q: %w", s.title, err)
		}
		fmt.Fprintf(out, "Seeded book: id=%d title=%q published=%v\n", book.ID, book.Title, book.IsPublished)
	}

	return nil
}
