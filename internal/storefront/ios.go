package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/photonvault/billing/internal/httpclient"
	"github.com/rs/zerolog"
)

const (
	// defaultIOSEndpoint is the production App Store receipt
	// verification endpoint.
	defaultIOSEndpoint = "https://buy.itunes.apple.com/verifyReceipt"

	// iosSandboxEndpoint is the sandbox verification endpoint used for
	// the 21007 fallback.
	iosSandboxEndpoint = "https://sandbox.itunes.apple.com/verifyReceipt"

	// statusSandboxReceipt is Apple's status code for a sandbox receipt
	// sent to the production endpoint.
	statusSandboxReceipt = 21007
)

// IOSVerifier posts receipts to the App Store verification endpoint,
// retrying once against the sandbox when production reports the
// receipt as sandbox-issued.
type IOSVerifier struct {
	client          *http.Client
	endpoint        string
	sandboxEndpoint string
	sharedSecret    string
	logger          zerolog.Logger
}

// IOSOptions configures an IOSVerifier.
type IOSOptions struct {
	// SharedSecret is the App Store shared secret. Verification fails
	// with ErrNotConfigured when empty.
	SharedSecret string
	// Endpoint overrides the production verification endpoint.
	Endpoint string
	// SandboxEndpoint overrides the sandbox endpoint, for tests.
	SandboxEndpoint string
	// Client is the HTTP client to use; a default with bounded timeout
	// is created when nil.
	Client *http.Client
}

// NewIOSVerifier creates a verifier for App Store receipts.
func NewIOSVerifier(opts IOSOptions, logger zerolog.Logger) *IOSVerifier {
	client := opts.Client
	if client == nil {
		client = httpclient.New(8 * time.Second)
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultIOSEndpoint
	}

	sandbox := opts.SandboxEndpoint
	if sandbox == "" {
		sandbox = iosSandboxEndpoint
	}

	return &IOSVerifier{
		client:          client,
		endpoint:        endpoint,
		sandboxEndpoint: sandbox,
		sharedSecret:    opts.SharedSecret,
		logger:          logger.With().Str("component", "ios_verifier").Logger(),
	}
}

// receiptResponse is the subset of Apple's verifyReceipt response we
// read.
type receiptResponse struct {
	Status            int           `json:"status"`
	LatestReceiptInfo []receiptItem `json:"latest_receipt_info"`
	Receipt           struct {
		InApp []receiptItem `json:"in_app"`
	} `json:"receipt"`
}

type receiptItem struct {
	ProductID    string `json:"product_id"`
	ExpiresDateMs millis `json:"expires_date_ms"`
}

// Verify posts the receipt for verification and selects the latest
// expiry among transactions matching productID. Repeated calls with
// the same receipt are idempotent.
func (v *IOSVerifier) Verify(ctx context.Context, productID, receiptData string) (*Result, error) {
	if v.sharedSecret == "" {
		return nil, fmt.Errorf("%w: APPLE_IAP_SHARED_SECRET is required for iOS verification", ErrNotConfigured)
	}

	resp, err := v.post(ctx, v.endpoint, receiptData)
	if err != nil {
		return nil, err
	}

	if resp.Status == statusSandboxReceipt {
		v.logger.Debug().Msg("sandbox receipt sent to production, retrying against sandbox")
		resp, err = v.post(ctx, v.sandboxEndpoint, receiptData)
		if err != nil {
			return nil, err
		}
	}

	if resp.Status != 0 {
		return nil, &UpstreamError{Service: "app-store", StatusCode: resp.Status}
	}

	items := resp.LatestReceiptInfo
	if len(items) == 0 {
		items = resp.Receipt.InApp
	}

	// Latest renewal wins over stale entries for the same product.
	var latest int64
	for _, item := range items {
		if item.ProductID != productID {
			continue
		}
		if exp := int64(item.ExpiresDateMs); exp > latest {
			latest = exp
		}
	}

	if latest == 0 || latest <= time.Now().UnixMilli() {
		v.logger.Debug().
			Str("product_id", productID).
			Int64("expiry_ms", latest).
			Msg("no active transaction in receipt")
		return nil, ErrExpired
	}

	return &Result{ExpiryMs: latest}, nil
}

func (v *IOSVerifier) post(ctx context.Context, endpoint, receiptData string) (*receiptResponse, error) {
	body, err := json.Marshal(map[string]any{
		"receipt-data":           receiptData,
		"password":               v.sharedSecret,
		"exclude-old-transactions": true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal receipt request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &UpstreamError{Service: "app-store", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := v.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Service: "app-store", Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Service: "app-store", StatusCode: httpResp.StatusCode}
	}

	var resp receiptResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &UpstreamError{Service: "app-store", Err: fmt.Errorf("decode response: %w", err)}
	}

	return &resp, nil
}
