//go:build integration

package integration

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go/modules/compose"
	"github.com/testcontainers/testcontainers-go/wait"
)

// webhookSecret matches KARAT_PROCESSOR_WEBHOOK_SECRET in docker-compose.test.yml.
const webhookSecret = "integration-webhook-secret"

var (
	baseURL    string
	httpClient *http.Client
)

// Response types — defined locally to keep tests truly black-box (no internal imports).

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type lineItemRequest struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

type orderRequest struct {
	OwnerID string            `json:"ownerId"`
	Items   []lineItemRequest `json:"items"`
}

type createOrderResponse struct {
	OrderID          string `json:"orderId"`
	IntentID         string `json:"intentId"`
	AmountMinorUnits int64  `json:"amountMinorUnits"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
}

type orderResponse struct {
	ID             string             `json:"id"`
	OwnerID        string             `json:"ownerId"`
	Items          []lineItemResponse `json:"items"`
	Total          float64            `json:"total"`
	IntentID       string             `json:"intentId"`
	ConfirmationID string             `json:"confirmationId"`
	Status         string             `json:"status"`
	CreatedAt      string             `json:"createdAt"`
}

type lineItemResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

type listOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
}

type confirmRequest struct {
	IntentID       string `json:"intentId"`
	ConfirmationID string `json:"confirmationId"`
	Signature      string `json:"signature"`
}

type confirmResponse struct {
	Status string        `json:"status"`
	Order  orderResponse `json:"order"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type statusResponse struct {
	Order orderResponse `json:"order"`
}

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dc, err := tc.NewDockerCompose("docker-compose.test.yml")
	if err != nil {
		log.Fatalf("compose init: %v", err)
	}

	// Start postgres + processor stub + api, wait until the API health check passes.
	err = dc.
		WaitForService("api", wait.ForHTTP("/readyz").WithPort("8080/tcp")).
		Up(ctx, tc.Wait(true))
	if err != nil {
		log.Fatalf("compose up: %v", err)
	}

	apiContainer, err := dc.ServiceContainer(ctx, "api")
	if err != nil {
		log.Fatalf("api container: %v", err)
	}

	host, err := apiContainer.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}

	mappedPort, err := apiContainer.MappedPort(ctx, "8080/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	baseURL = fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
	httpClient = &http.Client{Timeout: 10 * time.Second}
	log.Printf("API available at %s", baseURL)

	result := m.Run()

	// Stop the API container gracefully. The compose file sets
	// stop_signal: SIGINT because app.Run handles SIGINT (not SIGTERM)
	// for graceful shutdown.
	stopTimeout := 30 * time.Second
	if err := apiContainer.Stop(ctx, &stopTimeout); err != nil {
		log.Printf("stop api container: %v", err)
	}

	if err := dc.Down(context.Background(), tc.RemoveOrphans(true)); err != nil {
		log.Printf("compose down: %v", err)
	}

	return result
}

// signConfirmation computes the confirmation signature the same way the
// processor's webhook does: HMAC-SHA256 over "<intentID>|<confirmationID>".
func signConfirmation(intentID, confirmationID string) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(intentID + "|" + confirmationID))
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTP helpers.

func doGet(t *testing.T, path string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, baseURL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}

	return resp
}

func doJSON(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, baseURL+path, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}

	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	return v
}
