// Package handler provides HTTP handlers for the HKids catalog API.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hkids/catalog/internal/auth"
	"github.com/hkids/catalog/internal/metrics"
)

// Router assembles the HTTP surface of the catalog service.
type Router struct {
	authHandler    *AuthHandler
	bookHandler    *BookHandler
	healthHandler  *HealthHandler
	authMiddleware *auth.Middleware
	allowedOrigin  string
	uploadsDir     string
	logger         zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	AuthHandler    *AuthHandler
	BookHandler    *BookHandler
	HealthHandler  *HealthHandler
	AuthMiddleware *auth.Middleware
	AllowedOrigin  string
	// UploadsDir, when non-empty, is served read-only under /uploads/.
	UploadsDir string
	Logger     zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		authHandler:    cfg.AuthHandler,
		bookHandler:    cfg.BookHandler,
		healthHandler:  cfg.HealthHandler,
		authMiddleware: cfg.AuthMiddleware,
		allowedOrigin:  cfg.AllowedOrigin,
		uploadsDir:     cfg.UploadsDir,
		logger:         cfg.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(rt.recoverer)
	r.Use(rt.cors)
	r.Use(rt.observe)

	r.Get("/health", rt.healthHandler.Check)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", rt.authHandler.Register)
		r.Post("/login", rt.authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)
			r.Get("/profile", rt.authHandler.Profile)
		})
	})

	r.Route("/books", func(r chi.Router) {
		r.Get("/published", rt.bookHandler.ListPublished)

		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)
			r.Use(rt.authMiddleware.RequireAdmin)

			r.Get("/", rt.bookHandler.ListAll)
			r.Post("/", rt.bookHandler.Create)
			r.Get("/{id}", rt.bookHandler.GetByID)
			r.Put("/{id}", rt.bookHandler.Update)
			r.Delete("/{id}", rt.bookHandler.Delete)
		})
	})

	if rt.uploadsDir != "" {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(rt.uploadsDir)))
		r.Get("/uploads/*", fs.ServeHTTP)
	}

	return r
}

// cors applies the configured cross-origin policy and answers preflights.
func (rt *Router) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", rt.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// observe records request logs and Prometheus metrics per route pattern.
func (rt *Router) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		rt.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", elapsed).
			Msg("request")
	})
}

// recoverer converts panics into 500 responses instead of dropped connections.
func (rt *Router) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				rt.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("panic recovered")
				writeMessage(w, http.StatusInternalServerError, "Server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
