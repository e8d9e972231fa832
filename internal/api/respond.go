package api

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/karat-checkout/internal/domain/order"
	"github.com/xenking/karat-checkout/internal/domain/payment"
	"github.com/xenking/karat-checkout/internal/money"
)

// writeJSON encodes a response body with jx and writes it with the given
// status code.
func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the stable error envelope: {code, error, message}.
func writeError(w http.ResponseWriter, status int, errCode, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("error", func(e *jx.Encoder) { e.Str(errCode) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

// writeDomainError maps domain errors to the error envelope. Client-input and
// semantic errors surface verbatim with a stable code; infrastructure errors
// map to a retryable class; anything unrecognized is a logged 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		liErr *order.InvalidLineItemError
		itErr *order.IllegalTransitionError
		rfErr *order.ReconciliationFailureError
	)

	switch {
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.As(err, &liErr):
		writeError(w, http.StatusUnprocessableEntity, "invalid_line_item", liErr.Error())
	case errors.Is(err, money.ErrInvalidAmount):
		writeError(w, http.StatusUnprocessableEntity, "invalid_amount", err.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", "order not found")
	case errors.Is(err, order.ErrSignatureMismatch):
		writeError(w, http.StatusBadRequest, "signature_mismatch", "payment signature verification failed")
	case errors.As(err, &itErr):
		writeError(w, http.StatusUnprocessableEntity, "illegal_transition", itErr.Error())
	case errors.Is(err, order.ErrStaleTransition):
		writeError(w, http.StatusConflict, "stale_transition", "order status changed concurrently, retry not permitted")
	case errors.Is(err, order.ErrDuplicateIntent):
		writeError(w, http.StatusConflict, "duplicate_intent", "payment intent already has an order")
	case errors.Is(err, payment.ErrProcessorRejected):
		writeError(w, http.StatusUnprocessableEntity, "processor_rejected", err.Error())
	case errors.Is(err, payment.ErrProcessorUnavailable):
		writeError(w, http.StatusBadGateway, "processor_unavailable", "payment processor unavailable, retry later")
	case errors.Is(err, order.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "order store unavailable, retry later")
	case errors.As(err, &rfErr):
		// Already logged with full context by the service; never swallowed.
		writeError(w, http.StatusInternalServerError, "reconciliation_failure",
			"order could not be reconciled with the created payment intent")
	default:
		zctx.From(r.Context()).Error("unhandled API error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

// encodeOrder writes the JSON representation of an order. Monetary values
// are emitted as exact decimal numbers, never floats.
func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("ownerId", func(e *jx.Encoder) { e.Str(o.OwnerID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(item.ProductID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(item.Name) })
						e.Field("unitPrice", func(e *jx.Encoder) { e.Num(jx.Num(item.UnitPrice.String())) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
					})
				}
			})
		})
		e.Field("total", func(e *jx.Encoder) { e.Num(jx.Num(o.Total.String())) })
		e.Field("intentId", func(e *jx.Encoder) { e.Str(o.IntentID) })
		if o.ConfirmationID != "" {
			e.Field("confirmationId", func(e *jx.Encoder) { e.Str(o.ConfirmationID) })
		}
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status.String()) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339Nano)) })
	})
}
