// Package notify forwards verified-purchase events to a downstream
// internal service. Delivery is best-effort: failures are surfaced to
// the caller for logging, never to the storefront.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/photonvault/billing/internal/httpclient"
	"github.com/rs/zerolog"
)

// authHeader carries the shared secret that authenticates this service
// to the downstream receiver.
const authHeader = "X-Internal-Auth"

// VerifiedPurchaseEvent describes a storefront-confirmed purchase or
// renewal.
type VerifiedPurchaseEvent struct {
	EventID      string    `json:"event_id"`
	Email        string    `json:"email,omitempty"`
	ProductID    string    `json:"product_id"`
	Platform     string    `json:"platform"`
	AmountMicros int64     `json:"amount_micros,omitempty"`
	Currency     string    `json:"currency,omitempty"`
	PeriodEndMs  int64     `json:"period_end_ms,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Downstream posts verified-purchase events with retry and backoff.
type Downstream struct {
	baseURL    string
	secret     string
	client     *http.Client
	maxRetries int
	logger     zerolog.Logger
}

// Options configures a Downstream notifier.
type Options struct {
	// BaseURL is the downstream service root. An empty BaseURL
	// disables the notifier; Notify becomes a logged no-op.
	BaseURL string
	// Secret is the shared-secret header value.
	Secret string
	// Client is the HTTP client to use; a default with bounded timeout
	// is created when nil.
	Client *http.Client
	// MaxRetries caps delivery attempts (default 3).
	MaxRetries int
}

// NewDownstream creates a downstream notifier.
func NewDownstream(opts Options, logger zerolog.Logger) *Downstream {
	client := opts.Client
	if client == nil {
		client = httpclient.New(10 * time.Second)
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Downstream{
		baseURL:    opts.BaseURL,
		secret:     opts.Secret,
		client:     client,
		maxRetries: maxRetries,
		logger:     logger.With().Str("component", "downstream_notifier").Logger(),
	}
}

// Enabled reports whether a downstream target is configured.
func (d *Downstream) Enabled() bool { return d.baseURL != "" }

// Notify delivers the event, retrying with exponential backoff. The
// returned error is for the caller's log line only; callers on the
// push-notification path must not propagate it.
func (d *Downstream) Notify(ctx context.Context, event VerifiedPurchaseEvent) error {
	if !d.Enabled() {
		d.logger.Debug().Msg("downstream notifier not configured, dropping event")
		return nil
	}

	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal purchase event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			d.logger.Debug().Int("attempt", attempt+1).Msg("retrying downstream notification")
		}

		lastErr = d.post(ctx, body)
		if lastErr == nil {
			d.logger.Info().
				Str("event_id", event.EventID).
				Str("product_id", event.ProductID).
				Str("platform", event.Platform).
				Msg("verified-purchase event delivered")
			return nil
		}
	}

	return fmt.Errorf("downstream notification failed after %d attempts: %w", d.maxRetries, lastErr)
}

func (d *Downstream) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/internal/events/purchase-verified", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(authHeader, d.secret)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("downstream returned status %d", resp.StatusCode)
}
