/*
errors.go - Centralized error types for the pricing and refund engine

PURPOSE:
  All error categories in one place for consistency and discoverability.
  Component packages wrap these with context; callers classify with
  errors.Is / errors.As.

ERROR CATEGORIES:
  1. Validation - bad input, rejected before any collaborator call
  2. Not found - nothing to act on (no reservation, no refundable charge)
  3. Partial failure - an allocation finished short of its target
  4. External service - a single collaborator call failed
  5. Tenant resolution - a new transaction has no owning tenant

RETRIES:
  Nothing in the engine retries automatically. A retry is a user-initiated
  re-save, so IsRetryable always reports false.

SEE ALSO:
  - refund/errors.go: Allocation-specific errors wrapping these
  - api/handlers.go: Maps categories to HTTP status codes
*/
package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input (amount <= 0, missing
	// card selection, negative quantity, malformed tier policy).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record or an eligible
	// transaction does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPartialFailure is returned when some allocation steps failed or were
	// skipped and the requested amount was not fully covered.
	ErrPartialFailure = errors.New("partial failure")

	// ErrExternalService is returned when a collaborator call fails.
	ErrExternalService = errors.New("external service error")

	// ErrTenantResolution is returned when the owning tenant of a new
	// transaction cannot be determined.
	ErrTenantResolution = errors.New("cannot resolve tenant")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ExternalServiceError wraps a failed collaborator call.
type ExternalServiceError struct {
	Op         string // e.g. "requestRefund"
	StatusCode int    // HTTP status when the call reached the server
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

// Is lets errors.Is match both the category and the wrapped cause.
func (e *ExternalServiceError) Is(target error) bool { return target == ErrExternalService }

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// TenantResolutionError reports the reservation whose tenant is unknown.
type TenantResolutionError struct {
	ReservationID string
}

func (e *TenantResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve tenant for reservation %s", e.ReservationID)
}

func (e *TenantResolutionError) Unwrap() error { return ErrTenantResolution }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrTenantResolution)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable always returns false; retries are user-initiated re-saves.
func IsRetryable(error) bool {
	return false
}
