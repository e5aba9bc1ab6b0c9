/*
errors.go - Centralized error types for the billing domain

PURPOSE:
  All error types in one place for consistency and discoverability.
  The store and API layers wrap these with additional context.

ERROR CATEGORIES:
  1. Not-found errors  - A referenced row does not exist
  2. Validation errors - Caller-side input problems
  3. Store errors      - Database-level failures, wrapped with %w

NOTE:
  An absent row from a point lookup (GetClient) is NOT an error: the store
  returns nil, nil. ErrClientNotFound is reserved for mutations that require
  the row to exist (UpdateClient).

USAGE:
  if errors.Is(err, billing.ErrClientNotFound) { ... }

  var verr *billing.ValidationError
  if errors.As(err, &verr) { ... }
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrClientNotFound is returned by mutations that target a client id
	// with no matching row (zero rows affected).
	ErrClientNotFound = errors.New("client not found")

	// ErrCredentialMissing is returned when the admin credential row is
	// absent, which indicates a broken or unseeded database.
	ErrCredentialMissing = errors.New("admin credential missing")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a caller-side input problem for a named field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound)
}

// IsValidation reports whether the error is a caller-side input problem.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
