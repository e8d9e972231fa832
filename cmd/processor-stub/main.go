// Command processor-stub is a minimal stand-in for the payment processor's
// Orders API, used by the integration test stack. It accepts intent-creation
// requests and returns unique intent ids. Nothing is persisted.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
)

func main() {
	var addr string
	flag.StringVar(&addr, "addr", "0.0.0.0:9090", "listen address")
	flag.Parse()

	var counter atomic.Uint64

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/orders", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
			Receipt  string `json:"receipt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"code": "BAD_REQUEST_ERROR", "description": "malformed request body"},
			})
			return
		}
		if req.Amount < 100 {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"code": "BAD_REQUEST_ERROR", "description": "Order amount less than minimum amount allowed"},
			})
			return
		}

		id := fmt.Sprintf("order_stub%06d", counter.Add(1))
		slog.Info("intent created",
			slog.String("id", id),
			slog.Int64("amount", req.Amount),
			slog.String("currency", req.Currency),
			slog.String("receipt", req.Receipt),
		)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       id,
			"entity":   "order",
			"amount":   req.Amount,
			"currency": req.Currency,
			"receipt":  req.Receipt,
			"status":   "created",
		})
	})

	slog.Info("processor stub listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
