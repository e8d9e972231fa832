package order

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the service-level counters. A nil *Metrics is valid and
// records nothing, which keeps tests and tooling free of a meter dependency.
type Metrics struct {
	ordersCreated     metric.Int64Counter
	paymentsConfirmed metric.Int64Counter
	duplicateConfirms metric.Int64Counter
}

// NewMetrics registers the order lifecycle counters on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	ordersCreated, err := meter.Int64Counter("orders_created_total",
		metric.WithDescription("Orders created in Pending state"))
	if err != nil {
		return nil, errors.Wrap(err, "orders_created_total")
	}

	paymentsConfirmed, err := meter.Int64Counter("payments_confirmed_total",
		metric.WithDescription("Payment confirmations that transitioned an order to Paid"))
	if err != nil {
		return nil, errors.Wrap(err, "payments_confirmed_total")
	}

	duplicateConfirms, err := meter.Int64Counter("payment_confirmations_duplicate_total",
		metric.WithDescription("Confirmation deliveries resolved as already-processed no-ops"))
	if err != nil {
		return nil, errors.Wrap(err, "payment_confirmations_duplicate_total")
	}

	return &Metrics{
		ordersCreated:     ordersCreated,
		paymentsConfirmed: paymentsConfirmed,
		duplicateConfirms: duplicateConfirms,
	}, nil
}

func (m *Metrics) orderCreated(ctx context.Context) {
	if m != nil {
		m.ordersCreated.Add(ctx, 1)
	}
}

func (m *Metrics) paymentConfirmed(ctx context.Context) {
	if m != nil {
		m.paymentsConfirmed.Add(ctx, 1)
	}
}

func (m *Metrics) duplicateConfirmation(ctx context.Context) {
	if m != nil {
		m.duplicateConfirms.Add(ctx, 1)
	}
}
