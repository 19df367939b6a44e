// Package handler provides the HTTP layer for the HKids catalog API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hkids/catalog/internal/domain"
	"github.com/hkids/catalog/internal/service"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// messageResponse is the `{"message": "..."}` body used for errors and
// simple confirmations, matching what frontend clients already parse.
type messageResponse struct {
	Message string `json:"message"`
}

// writeMessage writes a message-only JSON body.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// writeError maps a service/domain error to an HTTP status and safe body.
// Unexpected errors become a generic 500; their detail is logged by the
// caller, never leaked to the client.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingField),
		errors.Is(err, domain.ErrInvalidAgeGroup),
		errors.Is(err, domain.ErrInvalidFileType),
		errors.Is(err, domain.ErrUserAlreadyExists),
		errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidPassword):
		writeMessage(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, errUnsupportedFile):
		writeMessage(w, http.StatusBadRequest, "Only image files and PDFs are allowed")

	case errors.Is(err, errFileTooLarge):
		writeMessage(w, http.StatusBadRequest, "File too large")

	case errors.Is(err, errTooManyFiles):
		writeMessage(w, http.StatusBadRequest, "Too many files")

	case errors.Is(err, domain.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid username or password")

	case errors.Is(err, domain.ErrUnauthenticated):
		writeMessage(w, http.StatusUnauthorized, err.Error())

	case errors.Is(err, domain.ErrForbidden):
		writeMessage(w, http.StatusForbidden, err.Error())

	case errors.Is(err, domain.ErrBookNotFound):
		writeMessage(w, http.StatusNotFound, "Book not found")

	case errors.Is(err, domain.ErrUserNotFound):
		writeMessage(w, http.StatusNotFound, "User not found")

	default:
		logger.Error().Err(err).Msg("request failed")
		writeMessage(w, http.StatusInternalServerError, "Server error")
	}
}

// decodeJSON parses the JSON request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
