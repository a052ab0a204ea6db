package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers missing rows and rows owned by another user.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness rule is violated,
	// e.g. signing up with an email that is already registered.
	ErrConflict = errors.New("conflict")
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("validation error")
	// ErrUpstream marks failures of the external completion provider.
	ErrUpstream = errors.New("upstream provider error")
)

// FieldError carries the field path for a validation failure so the
// handler can report it in the 422 body. It unwraps to ErrValidation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

// Fieldf builds a FieldError with a formatted message.
func Fieldf(field, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}
