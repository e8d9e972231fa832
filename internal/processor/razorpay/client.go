// Package razorpay implements the payment.IntentBroker port against the
// Razorpay Orders API. The processor is treated as opaque: one create call,
// basic auth, JSON in and out.
package razorpay

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/karat-checkout/internal/domain/payment"
)

// maxResponseBytes caps how much of a processor response is read; intent
// responses are small and anything larger is malformed.
const maxResponseBytes = 1 << 20

var _ payment.IntentBroker = (*Client)(nil)

// Config holds the processor connection settings.
type Config struct {
	// BaseURL is the API root, e.g. https://api.razorpay.com.
	BaseURL string
	// KeyID and KeySecret are the basic-auth API credentials.
	KeyID     string
	KeySecret string
	// Timeout bounds each HTTP request. Zero means 10s.
	Timeout time.Duration
}

// Client calls the Razorpay Orders API.
type Client struct {
	http    *http.Client
	baseURL string
	keyID   string
	secret  string
}

// NewClient creates a Client with a bounded-timeout HTTP client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		keyID:   cfg.KeyID,
		secret:  cfg.KeySecret,
	}
}

// CreateIntent registers a payment intent (a Razorpay "order") for the given
// amount in minor units and returns the processor's intent ID.
//
// Network failures, timeouts, and 5xx responses map to
// payment.ErrProcessorUnavailable; 4xx responses map to
// payment.ErrProcessorRejected with the processor's description preserved.
func (c *Client) CreateIntent(ctx context.Context, amountMinorUnits int64, currency, reference string) (string, error) {
	body := encodeIntentRequest(amountMinorUnits, currency, reference)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build intent request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrapf(payment.ErrProcessorUnavailable, "create intent: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.Wrapf(payment.ErrProcessorUnavailable, "read intent response: %v", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return "", errors.Wrapf(payment.ErrProcessorUnavailable, "processor returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		desc := decodeErrorDescription(raw)
		if desc == "" {
			desc = http.StatusText(resp.StatusCode)
		}
		return "", errors.Wrapf(payment.ErrProcessorRejected, "processor returned %d: %s", resp.StatusCode, desc)
	}

	intentID, err := decodeIntentID(raw)
	if err != nil {
		return "", errors.Wrap(err, "decode intent response")
	}
	if intentID == "" {
		return "", errors.New("processor response missing intent id")
	}
	return intentID, nil
}

func encodeIntentRequest(amount int64, currency, reference string) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("amount", func(e *jx.Encoder) { e.Int64(amount) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(currency) })
		e.Field("receipt", func(e *jx.Encoder) { e.Str(reference) })
	})
	return e.Bytes()
}

func decodeIntentID(raw []byte) (string, error) {
	var id string
	d := jx.DecodeBytes(raw)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key == "id" {
			v, err := d.Str()
			id = v
			return err
		}
		return d.Skip()
	}); err != nil {
		return "", err
	}
	return id, nil
}

// decodeErrorDescription pulls error.description out of a Razorpay error
// body. Best effort: a malformed body yields an empty string.
func decodeErrorDescription(raw []byte) string {
	var desc string
	d := jx.DecodeBytes(raw)
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		if key != "error" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key == "description" {
				v, err := d.Str()
				desc = v
				return err
			}
			return d.Skip()
		})
	})
	return desc
}
