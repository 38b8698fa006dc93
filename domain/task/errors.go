package task

import (
	"errors"
	"fmt"
)

// Sentinel errors for task operations.
var (
	// ErrNotFound is returned when a task does not exist or belongs to another user.
	ErrNotFound = errors.New("task not found")

	// ErrValidation is the class of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthenticated is returned when the caller's credential cannot be verified.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
