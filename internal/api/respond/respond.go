// Package respond centralizes JSON response encoding and error-shape
// conventions for the HTTP API.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/supahealth/supahealth/internal/model"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	// Field carries the offending field path on validation errors.
	Field string `json:"field,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteError writes a standardized error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    statusCode,
		Message: message,
	})
}

// WriteValidationError writes a 422 carrying the offending field path
// when err is a *model.FieldError.
func WriteValidationError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{
		Error:   http.StatusText(http.StatusUnprocessableEntity),
		Code:    http.StatusUnprocessableEntity,
		Message: err.Error(),
	}
	var fe *model.FieldError
	if errors.As(err, &fe) {
		resp.Field = fe.Field
		resp.Message = fe.Message
	}
	WriteJSON(w, http.StatusUnprocessableEntity, resp)
}

// WriteDomainError maps the model sentinel errors onto HTTP statuses.
// Unknown errors become opaque 500s; details go to the log, not the
// client.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrConflict):
		WriteError(w, http.StatusConflict, "already exists")
	case errors.Is(err, model.ErrValidation):
		WriteValidationError(w, err)
	case errors.Is(err, model.ErrUpstream):
		WriteError(w, http.StatusBadGateway, "upstream service unavailable")
	default:
		log.Error().Stack().Err(err).Msg("request failed")
		WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

// WriteUnauthorized writes the single uniform 401 used for every
// credential failure.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteError(w, http.StatusUnauthorized, "could not validate credentials")
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}
