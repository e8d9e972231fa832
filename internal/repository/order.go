package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/karat-checkout/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, owner_id, items, total, intent_id, confirmation_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	orderColumns = `id, owner_id, items, total, intent_id, confirmation_id, status, created_at`

	findOrderByIntentIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE intent_id = $1`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`

	listOrdersByOwnerSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE owner_id = $1 ORDER BY created_at DESC`

	// The status precondition in the WHERE clause makes the transition a
	// single-row compare-and-set: a stale caller matches zero rows and the
	// record is untouched.
	transitionOrderSQL = `UPDATE orders
		SET status = $3, confirmation_id = CASE WHEN $4::text = '' THEN confirmation_id ELSE $4::text END
		WHERE intent_id = $1 AND status = $2
		RETURNING ` + orderColumns
)

// uniqueViolation is the postgres error code for unique constraint violations.
const uniqueViolation = "23505"

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Insert persists a new order. Line items are serialized to JSON for storage
// in the JSONB column. A duplicate intent ID maps to order.ErrDuplicateIntent.
func (r *OrderRepository) Insert(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, insertOrderSQL,
		o.ID, o.OwnerID, itemsJSON, o.Total, o.IntentID, o.ConfirmationID, string(o.Status), o.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return order.ErrDuplicateIntent
		}
		return storeErr(err, "inserting order %q", o.ID)
	}

	return nil
}

// FindByIntentID returns the order created for the given payment intent.
func (r *OrderRepository) FindByIntentID(ctx context.Context, intentID string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, findOrderByIntentIDSQL, intentID)
	if err != nil {
		return nil, storeErr(err, "finding order by intent %q", intentID)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, storeErr(err, "finding order by intent %q", intentID)
	}
	return &o, nil
}

// GetByID returns the order with the given ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, storeErr(err, "getting order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, storeErr(err, "getting order %q", id)
	}
	return &o, nil
}

// List returns orders newest-first, optionally filtered by owner.
func (r *OrderRepository) List(ctx context.Context, ownerID string) ([]order.Order, error) {
	var rows pgx.Rows
	var err error
	if ownerID == "" {
		rows, err = r.pool.Query(ctx, listOrdersSQL)
	} else {
		rows, err = r.pool.Query(ctx, listOrdersByOwnerSQL, ownerID)
	}
	if err != nil {
		return nil, storeErr(err, "listing orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Transition atomically moves the order for intentID from one status to
// another via a conditional single-row update. When the precondition fails it
// distinguishes a missing row (order.ErrNotFound) from a concurrent change
// (order.ErrStaleTransition).
func (r *OrderRepository) Transition(ctx context.Context, intentID string, from, to order.Status, confirmationID string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, transitionOrderSQL, intentID, string(from), string(to), confirmationID)
	if err != nil {
		return nil, storeErr(err, "transitioning order %q", intentID)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_, ferr := r.FindByIntentID(ctx, intentID)
			return nil, resolveFailedTransition(ferr)
		}
		return nil, storeErr(err, "transitioning order %q", intentID)
	}
	return &o, nil
}

// resolveFailedTransition maps the outcome of the post-CAS re-read to the
// caller's error: a missing row is ErrNotFound, a readable row means the
// precondition failed concurrently, and a store failure during the re-read
// is surfaced as-is rather than misreported as a stale transition.
func resolveFailedTransition(ferr error) error {
	switch {
	case errors.Is(ferr, order.ErrNotFound):
		return order.ErrNotFound
	case ferr != nil:
		return ferr
	default:
		return order.ErrStaleTransition
	}
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
		total     decimal.Decimal
		status    string
	)
	err := row.Scan(
		&o.ID, &o.OwnerID, &itemsJSON, &total,
		&o.IntentID, &o.ConfirmationID, &status, &o.CreatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling order items: %w", err)
	}
	o.Total = total
	o.Status = order.Status(status)
	return o, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// storeErr wraps infrastructure failures with order.ErrStoreUnavailable so
// callers can classify them as retryable.
func storeErr(err error, format string, args ...any) error {
	return fmt.Errorf(format+": %w: %w", append(args, order.ErrStoreUnavailable, err)...)
}
