package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hkids/catalog/internal/domain"
	"github.com/hkids/catalog/internal/repository"
)

// contextKey is a private type for request context values.
type contextKey struct{}

var userContextKey contextKey

// UserFromContext returns the authenticated user stored by Authenticate.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	return user, ok
}

// Middleware authenticates requests and enforces role requirements.
// It resolves the token subject against the user store so that revoked
// or deleted accounts stop working immediately.
type Middleware struct {
	issuer   *TokenIssuer
	userRepo repository.UserRepository
	logger   zerolog.Logger
}

// NewMiddleware creates authentication middleware.
func NewMiddleware(issuer *TokenIssuer, userRepo repository.UserRepository, logger zerolog.Logger) *Middleware {
	return &Middleware{
		issuer:   issuer,
		userRepo: userRepo,
		logger:   logger.With().Str("component", "auth").Logger(),
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrNoToken
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Authenticate verifies the bearer token, resolves the user and stores it
// in the request context. Responds 401 on any failure.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeUnauthorized(w, "Not authorized, no token")
			return
		}

		userID, err := m.issuer.Verify(token)
		if err != nil {
			m.logger.Debug().Err(err).Msg("token verification failed")
			writeUnauthorized(w, "Not authorized, token failed")
			return
		}

		user, err := m.userRepo.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeUnauthorized(w, "User not found")
				return
			}
			m.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to resolve token user")
			http.Error(w, `{"message":"Server error"}`, http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects authenticated callers that do not hold the admin
// role. Must be mounted after Authenticate.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeUnauthorized(w, "Not authorized, no token")
			return
		}

		if !user.IsAdmin() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"message":"Access denied. Admin privileges required."}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"message":"` + msg + `"}`))
}
