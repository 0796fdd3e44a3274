/*
errors.go - Centralized error types for the farm engine

PURPOSE:
  All error kinds in one place. Every mutating operation either fully
  succeeds or returns one of these with state unchanged.

ERROR CATEGORIES:
  1. Validation    - malformed input, unknown reference in a create call
  2. Not found     - operation targets an id that does not exist
  3. Inventory     - availability or FIFO allocation cannot cover a request
  4. Transition    - order is not in a state that allows the action
  5. Referenced    - catalog entry still used by live records

USAGE:
  if errors.Is(err, farm.ErrInsufficientInventory) {
      var inv *farm.InsufficientInventoryError
      errors.As(err, &inv)
      fmt.Printf("%s short by %s\n", inv.GradeName, inv.Shortfall())
  }

SEE ALSO:
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package farm

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation            = errors.New("validation failed")
	ErrNotFound              = errors.New("not found")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidTransition     = errors.New("invalid order transition")
	ErrReferenced            = errors.New("still referenced")

	// ErrNumberExhausted is returned when no free batch/order number could be drawn.
	ErrNumberExhausted = errors.New("could not generate a unique number")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }

type NotFoundError struct {
	Kind string // "grade", "order", ...
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(kind string, id any) error { return &NotFoundError{Kind: kind, ID: fmt.Sprint(id)} }

// InsufficientInventoryError names the short grade with requested vs available.
// ItemID is set when the failure comes from shipment allocation.
type InsufficientInventoryError struct {
	GradeID   GradeID
	GradeName string
	ItemID    OrderItemID
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for %s: requested %s, available %s",
		e.GradeName, e.Requested, e.Available)
}

func (e *InsufficientInventoryError) Unwrap() error { return ErrInsufficientInventory }

func (e *InsufficientInventoryError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

type TransitionError struct {
	OrderID OrderID
	From    OrderStatus
	Action  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s order %s in status %s", e.Action, e.OrderID, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

type ReferencedError struct {
	Kind string
	ID   string
	By   string // what still holds the reference
}

func (e *ReferencedError) Error() string {
	return fmt.Sprintf("%s %q is referenced by %s", e.Kind, e.ID, e.By)
}

func (e *ReferencedError) Unwrap() error { return ErrReferenced }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to caller input or state.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientInventory) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrReferenced)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
