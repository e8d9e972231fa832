package api

import (
	"net/http"

	"github.com/go-faster/jx"
)

// confirmPayment handles POST /api/payments/verify: the processor's
// asynchronous confirmation callback. Delivery is at-least-once, so a
// duplicate resolves to "already-processed" rather than an error.
func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	intentID, confirmationID, signature, err := decodeConfirmRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", err.Error())
		return
	}
	if intentID == "" || confirmationID == "" || signature == "" {
		writeError(w, http.StatusBadRequest, "malformed_request", "intentId, confirmationId and signature required")
		return
	}

	result, err := h.orders.ConfirmPayment(r.Context(), intentID, confirmationID, signature)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	status := "confirmed"
	if result.AlreadyProcessed {
		status = "already-processed"
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("status", func(e *jx.Encoder) { e.Str(status) })
			e.Field("order", func(e *jx.Encoder) { encodeOrder(e, result.Order) })
		})
	})
}

func decodeConfirmRequest(r *http.Request) (intentID, confirmationID, signature string, err error) {
	d := jx.Decode(r.Body, 1024)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var derr error
		switch key {
		case "intentId":
			intentID, derr = d.Str()
		case "confirmationId":
			confirmationID, derr = d.Str()
		case "signature":
			signature, derr = d.Str()
		default:
			derr = d.Skip()
		}
		return derr
	})
	return intentID, confirmationID, signature, err
}
