package order

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for order validation and persistence.
var (
	// ErrEmptyCart indicates an order request with no line items.
	ErrEmptyCart = fmt.Errorf("cart items required")

	// ErrNotFound indicates no order matches the given identifier.
	ErrNotFound = fmt.Errorf("order not found")

	// ErrDuplicateIntent indicates an insert that would violate the
	// one-order-per-intent uniqueness invariant.
	ErrDuplicateIntent = fmt.Errorf("payment intent already has an order")

	// ErrStaleTransition indicates a compare-and-set transition whose
	// precondition no longer holds: the stored status differs from the
	// expected one. The record is left unchanged.
	ErrStaleTransition = fmt.Errorf("order status changed concurrently")

	// ErrSignatureMismatch indicates a payment confirmation whose signature
	// failed verification. No state change is made.
	ErrSignatureMismatch = fmt.Errorf("payment signature verification failed")

	// ErrStoreUnavailable wraps transient order-store failures. Callers may
	// retry with backoff; the service itself never retries.
	ErrStoreUnavailable = fmt.Errorf("order store unavailable")
)

// InvalidLineItemError indicates a cart line with a negative price or a
// non-positive quantity.
type InvalidLineItemError struct {
	ProductID string
	Reason    string
}

func (e *InvalidLineItemError) Error() string {
	return fmt.Sprintf("invalid line item for product %s: %s", e.ProductID, e.Reason)
}

// IllegalTransitionError indicates an administrative status change that is
// not the immediate successor of the order's current status.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}

// ReconciliationFailureError indicates that a payment intent was created at
// the processor but the corresponding order could not be persisted. The
// intent is orphaned and needs operator reconciliation; this error must
// never be swallowed.
type ReconciliationFailureError struct {
	IntentID string
	Amount   decimal.Decimal
	OwnerID  string
	Cause    error
}

func (e *ReconciliationFailureError) Error() string {
	return fmt.Sprintf("orphaned payment intent %s (amount %s, owner %s): %v",
		e.IntentID, e.Amount, e.OwnerID, e.Cause)
}

func (e *ReconciliationFailureError) Unwrap() error {
	return e.Cause
}
