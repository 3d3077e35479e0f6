// Package services implements the control plane's business logic: the
// investigation lifecycle, the in-memory record store, and the watcher
// that tracks worker jobs to their terminal states.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the investigation id names no known record.
	ErrNotFound = errors.New("investigation not found")

	// ErrOrchestratorUnavailable wraps cluster failures the caller
	// cannot fix by changing the request.
	ErrOrchestratorUnavailable = errors.New("orchestrator unavailable")
)

// ValidationError reports a rejected request field. The API layer maps
// it to 400 with the field name in the body.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
