/*
errors.go - Centralized error types for the finance domain

PURPOSE:
  All error types in one place for consistency and discoverability.
  Service packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Validation errors - Malformed or out-of-policy input; fail fast,
     surfaced before any write is attempted
  2. Not-found errors - Entity missing or owned by someone else
  3. Conflict errors - Concurrent modification detected by the store
  4. Store errors - Infrastructure failure of an atomic commit; the
     operation either fully applied or did not apply at all

USAGE:
  if errors.Is(err, finance.ErrValidation) { ... }

  var nf *finance.NotFoundError
  if errors.As(err, &nf) { ... }

SEE ALSO:
  - validate.go: Produces ValidationError
  - store.go: Store implementations return ErrConflict / ErrStoreUnavailable
*/
package finance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all input-policy failures. No partial
	// write has occurred when it is returned.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced entity does not exist or
	// does not belong to the requesting owner. The two cases are not
	// distinguished to the caller.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a store detects concurrent modification
	// of the same document. The whole operation is safe to retry.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrStoreUnavailable is returned when an atomic commit failed for
	// infrastructure reasons. Either everything applied or nothing did,
	// so the operation is safe to retry in full.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInsufficientBalance is returned when a goal contribution or loan
	// payment exceeds the owner's spendable balance. Plain transaction
	// writes never return this; aggregate deficits there are clamped.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which field failed and why.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports what kind of entity was missing.
type NotFoundError struct {
	Kind string // "transaction", "goal", "loan", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientBalanceError reports the shortfall on a balance-checked
// operation (goal contribution, loan payment).
type InsufficientBalanceError struct {
	OwnerID   OwnerID
	Available Money
	Requested Money
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, requested %s",
		e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the whole operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrStoreUnavailable)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
