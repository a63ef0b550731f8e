// Package services implements the alert intake service sitting between the
// HTTP surface and the orchestration pipeline.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidAlert    = errors.New("invalid alert")
	ErrEmptyBatch      = errors.New("batch must contain at least one alert")
	ErrInvalidFilter   = errors.New("invalid list filter")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidVerdict  = errors.New("invalid verdict")
	ErrInvalidStatus   = errors.New("invalid alert status")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidAlert) ||
		errors.Is(err, ErrEmptyBatch) ||
		errors.Is(err, ErrInvalidFilter) ||
		errors.Is(err, ErrInvalidPriority) ||
		errors.Is(err, ErrInvalidVerdict) ||
		errors.Is(err, ErrInvalidStatus)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Message: message,
		Err:     err,
	}
}
