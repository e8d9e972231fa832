package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the authoritative record of a checkout: line items snapshotted at
// creation time, the server-derived total, and the payment intent the order
// is reconciled against.
type Order struct {
	ID             string
	OwnerID        string
	Items          []LineItem
	Total          decimal.Decimal
	IntentID       string
	ConfirmationID string
	Status         Status
	CreatedAt      time.Time
}

// LineItem is a single cart entry frozen into the order. UnitPrice and Name
// are snapshots: later catalog changes never affect a stored order, and the
// total stays reproducible from the order's own rows.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns UnitPrice * Quantity for this line.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Repository defines persistence operations for orders. The stored record is
// owned exclusively by the repository; callers always receive copies, and
// the only mutation paths are Insert and the conditional Transition.
type Repository interface {
	// Insert persists a new order. Returns ErrDuplicateIntent when an order
	// with the same intent ID already exists.
	Insert(ctx context.Context, o *Order) error

	// FindByIntentID returns the order created for the given payment intent,
	// or ErrNotFound.
	FindByIntentID(ctx context.Context, intentID string) (*Order, error)

	// GetByID returns the order with the given ID, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Order, error)

	// List returns orders newest-first. An empty ownerID returns all orders;
	// otherwise only the given owner's orders are returned.
	List(ctx context.Context, ownerID string) ([]Order, error)

	// Transition atomically moves the order for intentID from one status to
	// another. The update applies only if the stored status still equals
	// from (compare-and-set); otherwise ErrStaleTransition is returned and
	// the record is left unchanged. A non-empty confirmationID is written
	// together with the status. Returns the updated order.
	Transition(ctx context.Context, intentID string, from, to Status, confirmationID string) (*Order, error)
}
