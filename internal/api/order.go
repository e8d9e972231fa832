package api

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/karat-checkout/internal/domain/order"
)

// createOrder handles POST /api/orders: it turns a client cart into a
// Pending order backed by a payment intent.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ownerID, items, err := decodeCreateOrderRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", err.Error())
		return
	}
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "malformed_request", "ownerId required")
		return
	}

	result, err := h.orders.CreateOrder(r.Context(), ownerID, items)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("orderId", func(e *jx.Encoder) { e.Str(result.Order.ID) })
			e.Field("intentId", func(e *jx.Encoder) { e.Str(result.Order.IntentID) })
			e.Field("amountMinorUnits", func(e *jx.Encoder) { e.Int64(result.AmountMinorUnits) })
			e.Field("currency", func(e *jx.Encoder) { e.Str(result.Currency) })
			e.Field("status", func(e *jx.Encoder) { e.Str(result.Order.Status.String()) })
		})
	})
}

// listOrders handles GET /api/orders with an optional ownerId filter.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), r.URL.Query().Get("ownerId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("orders", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for i := range orders {
						encodeOrder(e, &orders[i])
					}
				})
			})
		})
	})
}

// advanceStatus handles PUT /api/orders/{orderID}/status: the administrative
// one-step transition (Paid -> Shipped, Shipped -> Delivered,
// Pending -> Cancelled).
func (h *Handler) advanceStatus(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")

	statusStr, err := decodeStatusRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_request", err.Error())
		return
	}

	to, err := order.ParseStatus(statusStr)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "unknown_status", err.Error())
		return
	}

	updated, err := h.orders.AdvanceStatus(r.Context(), orderID, to)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order", func(e *jx.Encoder) { encodeOrder(e, updated) })
		})
	})
}

// decodeCreateOrderRequest parses {ownerId, items: [{productId, name,
// unitPrice, quantity}]}. Prices are decoded as exact decimals straight from
// the JSON number bytes.
func decodeCreateOrderRequest(r *http.Request) (string, []order.LineItem, error) {
	var (
		ownerID string
		items   []order.LineItem
	)

	d := jx.Decode(r.Body, 4096)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "ownerId":
			v, err := d.Str()
			ownerID = v
			return err
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeLineItem(d)
				if err != nil {
					return err
				}
				items = append(items, item)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return "", nil, err
	}
	return ownerID, items, nil
}

func decodeLineItem(d *jx.Decoder) (order.LineItem, error) {
	var item order.LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			v, err := d.Str()
			item.ProductID = v
			return err
		case "name":
			v, err := d.Str()
			item.Name = v
			return err
		case "unitPrice":
			num, err := d.Num()
			if err != nil {
				return err
			}
			price, err := decimal.NewFromString(num.String())
			if err != nil {
				return err
			}
			item.UnitPrice = price
			return nil
		case "quantity":
			v, err := d.Int()
			item.Quantity = v
			return err
		default:
			return d.Skip()
		}
	})
	return item, err
}

func decodeStatusRequest(r *http.Request) (string, error) {
	var status string
	d := jx.Decode(r.Body, 512)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key == "status" {
			v, err := d.Str()
			status = v
			return err
		}
		return d.Skip()
	})
	return status, err
}
