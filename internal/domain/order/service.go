package order

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/karat-checkout/internal/domain/payment"
	"github.com/xenking/karat-checkout/internal/money"
)

// ServiceConfig holds the non-dependency knobs for the order service.
type ServiceConfig struct {
	// Currency is the ISO code sent to the processor (e.g. "INR").
	Currency string
	// WebhookSecret is the shared secret for confirmation signatures.
	WebhookSecret string
	// StoreTimeout bounds every order-store call.
	StoreTimeout time.Duration
	// ProcessorTimeout bounds the intent-creation call.
	ProcessorTimeout time.Duration
}

// Service is the order lifecycle controller. It owns the only mutation paths
// of an order: creation at checkout, payment confirmation, and
// administrative status advancement.
type Service struct {
	orders  Repository
	broker  payment.IntentBroker
	cfg     ServiceConfig
	metrics *Metrics

	// refCounter disambiguates references generated within the same
	// nanosecond.
	refCounter atomic.Uint64
}

// NewService creates an order Service with the required dependencies.
// metrics may be nil.
func NewService(orders Repository, broker payment.IntentBroker, cfg ServiceConfig, metrics *Metrics) *Service {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if cfg.ProcessorTimeout <= 0 {
		cfg.ProcessorTimeout = 10 * time.Second
	}
	return &Service{
		orders:  orders,
		broker:  broker,
		cfg:     cfg,
		metrics: metrics,
	}
}

// CreateOrderResult holds the output of a successfully created order.
type CreateOrderResult struct {
	Order            *Order
	AmountMinorUnits int64
	Currency         string
}

// CreateOrder validates the cart, snapshots the line items, derives the
// total server-side, creates a payment intent at the processor, and persists
// the order in Pending state.
//
// If the intent is created but the insert fails, the external intent is
// orphaned: CreateOrder surfaces a ReconciliationFailureError with full
// context so an operator-facing collaborator can reconcile it.
func (s *Service) CreateOrder(ctx context.Context, ownerID string, items []LineItem) (*CreateOrderResult, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	total := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, &InvalidLineItemError{ProductID: item.ProductID, Reason: "quantity must be greater than 0"}
		}
		if item.UnitPrice.IsNegative() {
			return nil, &InvalidLineItemError{ProductID: item.ProductID, Reason: "unit price must not be negative"}
		}
		total = total.Add(item.Subtotal())
	}

	amountMinor, err := money.ToMinorUnits(total)
	if err != nil {
		return nil, fmt.Errorf("normalize total: %w", err)
	}

	intentCtx, cancel := context.WithTimeout(ctx, s.cfg.ProcessorTimeout)
	defer cancel()

	intentID, err := s.broker.CreateIntent(intentCtx, amountMinor, s.cfg.Currency, s.newReference())
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	o := &Order{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Items:     items,
		Total:     total,
		IntentID:  intentID,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	insertCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	if err := s.orders.Insert(insertCtx, o); err != nil {
		rf := &ReconciliationFailureError{
			IntentID: intentID,
			Amount:   total,
			OwnerID:  ownerID,
			Cause:    err,
		}
		zctx.From(ctx).Error("orphaned payment intent, operator reconciliation required",
			zap.String("intent_id", intentID),
			zap.String("owner_id", ownerID),
			zap.String("amount", total.String()),
			zap.Error(err),
		)
		return nil, rf
	}

	s.metrics.orderCreated(ctx)

	return &CreateOrderResult{
		Order:            o,
		AmountMinorUnits: amountMinor,
		Currency:         s.cfg.Currency,
	}, nil
}

// ConfirmPaymentResult holds the outcome of applying a payment confirmation.
type ConfirmPaymentResult struct {
	Order *Order
	// AlreadyProcessed is true when the order had already left Pending: the
	// confirmation was a duplicate delivery and no state was changed.
	AlreadyProcessed bool
}

// ConfirmPayment applies the processor's asynchronous confirmation: it
// verifies the signature and transitions the order from Pending to Paid via
// the store's compare-and-set. Duplicate or concurrent deliveries are safe:
// the losing call observes the failed precondition and returns the current
// record as a no-op success.
func (s *Service) ConfirmPayment(ctx context.Context, intentID, confirmationID, signature string) (*ConfirmPaymentResult, error) {
	findCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	_, err := s.orders.FindByIntentID(findCtx, intentID)
	if err != nil {
		return nil, err
	}

	if !payment.VerifySignature(intentID, confirmationID, signature, s.cfg.WebhookSecret) {
		zctx.From(ctx).Warn("payment signature verification failed",
			zap.String("intent_id", intentID),
			zap.String("confirmation_id", confirmationID),
		)
		return nil, ErrSignatureMismatch
	}

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	updated, err := s.orders.Transition(txCtx, intentID, StatusPending, StatusPaid, confirmationID)
	switch {
	case err == nil:
		s.metrics.paymentConfirmed(ctx)
		return &ConfirmPaymentResult{Order: updated}, nil

	case errors.Is(err, ErrStaleTransition):
		// The order already left Pending (duplicate callback, or a
		// concurrent confirmation won the CAS). Re-read and report no-op.
		s.metrics.duplicateConfirmation(ctx)

		current, ferr := s.orders.FindByIntentID(txCtx, intentID)
		if ferr != nil {
			return nil, ferr
		}
		return &ConfirmPaymentResult{Order: current, AlreadyProcessed: true}, nil

	default:
		return nil, err
	}
}

// AdvanceStatus performs an administrative transition (Paid -> Shipped,
// Shipped -> Delivered, Pending -> Cancelled). Only the immediate successor
// of the current status is accepted; skipping states would break the
// auditable linear history. The Paid state is never reachable through this
// path: that edge belongs exclusively to ConfirmPayment.
func (s *Service) AdvanceStatus(ctx context.Context, orderID string, to Status) (*Order, error) {
	getCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	o, err := s.orders.GetByID(getCtx, orderID)
	if err != nil {
		return nil, err
	}

	if to == StatusPaid || !o.Status.CanTransitionTo(to) {
		return nil, &IllegalTransitionError{From: o.Status, To: to}
	}

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	updated, err := s.orders.Transition(txCtx, o.IntentID, o.Status, to, "")
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListOrders returns orders newest-first, optionally filtered to one owner.
func (s *Service) ListOrders(ctx context.Context, ownerID string) ([]Order, error) {
	listCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	return s.orders.List(listCtx, ownerID)
}

// newReference builds a processor reference unique per call: a monotonic
// counter plus a nanosecond timestamp. Reusing a reference would let the
// processor deduplicate two legitimate distinct orders.
func (s *Service) newReference() string {
	return fmt.Sprintf("rcpt_%d_%d", s.refCounter.Add(1), time.Now().UnixNano())
}
