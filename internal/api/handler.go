// Package api exposes the order lifecycle over HTTP: checkout, payment
// confirmation, administrative status advancement, and order listing.
package api

import (
	"net/http"

	"github.com/xenking/karat-checkout/internal/domain/order"
)

// Handler serves the order and payment endpoints, delegating all business
// logic to the order service.
type Handler struct {
	orders *order.Service
}

// NewHandler constructs a Handler around the order service.
func NewHandler(orders *order.Service) *Handler {
	return &Handler{orders: orders}
}

// Routes returns a mux with all API endpoints registered under /api.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("PUT /api/orders/{orderID}/status", h.advanceStatus)
	mux.HandleFunc("POST /api/payments/verify", h.confirmPayment)
	return mux
}
