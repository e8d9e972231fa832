// Package payment defines the boundary to the external payment processor:
// the intent broker port and signature verification for the processor's
// asynchronous confirmation callbacks.
package payment

import (
	"context"
	"fmt"
)

// Sentinel errors for processor interactions.
var (
	// ErrProcessorUnavailable indicates a network failure, timeout, or 5xx
	// from the processor. Eligible for caller-driven retry; never retried
	// inside the engine, which would risk duplicate intent creation.
	ErrProcessorUnavailable = fmt.Errorf("payment processor unavailable")

	// ErrProcessorRejected indicates the processor refused the request
	// (4xx): amount too small, unsupported currency, bad credentials.
	ErrProcessorRejected = fmt.Errorf("payment processor rejected request")
)

// IntentBroker creates payment intents at the external processor.
type IntentBroker interface {
	// CreateIntent registers an intent for the given amount in minor units
	// and returns the processor's intent ID. The reference must be unique
	// per call so the processor does not deduplicate distinct orders.
	CreateIntent(ctx context.Context, amountMinorUnits int64, currency, reference string) (string, error)
}
