/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error kinds the engine can surface, in one place. The HTTP layer maps
  each sentinel to a status code; callers match with errors.Is / errors.As.

ERROR KINDS:
  ErrValidation         missing or invalid input              -> 400
  ErrUnauthorized       identity missing or wrong tenant      -> 401
  ErrNotFound           referenced document does not exist    -> 404
  ErrConflict           already reversed, stale undo, dupes   -> 409
  ErrInsufficientStock  line quantity exceeds stock on hand   -> 400
  anything else         storage / unexpected                  -> 500

SEE ALSO:
  - api/handlers.go: errorStatus()
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized covers both a missing identity and an account used from
	// a company it does not belong to.
	ErrUnauthorized = errors.New("unauthorized")

	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the requested transition is not allowed
	// from the current state (already reversed, undo after newer entries).
	ErrConflict = errors.New("conflict")

	ErrInsufficientStock = errors.New("insufficient stock")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError identifies the missing document.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func notFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	ItemID    string
	ItemName  string
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	name := e.ItemName
	if name == "" {
		name = e.ItemID
	}
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", name, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInsufficientStock)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
