// Package main is the entry point for the HKids catalog server.
// HKids serves a children's book catalog: admins manage books and their
// images, readers browse the published subset.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hkids/catalog/internal/auth"
	"github.com/hkids/catalog/internal/cache/redis"
	"github.com/hkids/catalog/internal/config"
	"github.com/hkids/catalog/internal/handler"
	"github.com/hkids/catalog/internal/metrics"
	"github.com/hkids/catalog/internal/repository"
	"github.com/hkids/catalog/internal/repository/postgres"
	"github.com/hkids/catalog/internal/repository/sqlite"
	"github.com/hkids/catalog/internal/service"
	"github.com/hkids/catalog/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	logger := newLogger(cfg.Logging)
	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("Starting HKids catalog server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server exited")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	// Database
	var (
		userRepo repository.UserRepository
		bookRepo repository.BookRepository
		dbHealth repository.DatabaseHealth
	)

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.Config{
			Path:            cfg.Database.Path,
			JournalMode:     cfg.Database.JournalMode,
			BusyTimeout:     cfg.Database.BusyTimeout,
			SynchronousMode: cfg.Database.SynchronousMode,
		}, logger)
		if err != nil {
			return fmt.Errorf("opening sqlite database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating sqlite database: %w", err)
		}
		userRepo = sqlite.NewUserRepository(db)
		bookRepo = sqlite.NewBookRepository(db)
		dbHealth = db

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating postgres database: %w", err)
		}
		userRepo = postgres.NewUserRepository(db)
		bookRepo = postgres.NewBookRepository(db)
		dbHealth = db

	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	// Listing cache (optional)
	var listingCache repository.Cache
	if cfg.Redis.Enabled {
		c, err := redis.NewCache(ctx, cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer c.Close()
		listingCache = c
	}

	// Image storage
	var (
		images     storage.ImageStore
		uploadsDir string
	)
	switch cfg.Storage.Backend {
	case "filesystem":
		fs, err := storage.NewFilesystemStore(cfg.Storage.UploadDir, cfg.Storage.PublicPrefix, logger)
		if err != nil {
			return fmt.Errorf("initializing filesystem storage: %w", err)
		}
		images = fs
		uploadsDir = fs.BaseDir()
	case "s3":
		s3s, err := storage.NewS3Store(ctx, cfg.Storage.S3, logger)
		if err != nil {
			return fmt.Errorf("initializing s3 storage: %w", err)
		}
		images = s3s
	default:
		return fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}

	// Background cleanup of superseded image files
	cleaner := service.NewCleaner(images, cfg.Cleanup.QueueSize, logger)
	cleaner.Start()
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Cleanup.DrainTimeout)
		defer cancel()
		if err := cleaner.Close(drainCtx); err != nil {
			logger.Warn().Err(err).Msg("cleanup queue did not drain before shutdown")
		}
	}()

	// Services
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := service.NewAuthService(userRepo, issuer, logger)
	catalogService := service.NewCatalogService(bookRepo, listingCache, cfg.Redis.TTL, cleaner, logger)

	// HTTP surface
	authMiddleware := auth.NewMiddleware(issuer, userRepo, logger)
	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler:   handler.NewAuthHandler(authService, logger),
		HealthHandler: handler.NewHealthHandler(dbHealth, logger),
		BookHandler: handler.NewBookHandler(handler.BookHandlerConfig{
			Catalog:       catalogService,
			Images:        images,
			Cleanup:       cleaner,
			MaxUploadSize: cfg.Server.MaxUploadSize,
			Logger:        logger,
		}),
		AuthMiddleware: authMiddleware,
		AllowedOrigin:  cfg.CORS.AllowedOrigin,
		UploadsDir:     uploadsDir,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info().Str("addr", metricsServer.Addr).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("metrics server shutdown failed")
		}
	}

	return nil
}

// newLogger builds the process logger from configuration.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: cfg.TimeFormat})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(level).With().Timestamp().Logger()
}
