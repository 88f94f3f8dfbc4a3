package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/photonvault/billing/internal/httpclient"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// androidPublisherScope is the OAuth scope for the Google Play
	// Developer API.
	androidPublisherScope = "https://www.googleapis.com/auth/androidpublisher"

	// defaultAndroidBaseURL is the Google Play Developer API endpoint.
	defaultAndroidBaseURL = "https://androidpublisher.googleapis.com"
)

// AndroidVerifier reads subscription purchases from the Google Play
// Developer API using service-account credentials.
type AndroidVerifier struct {
	client  *http.Client
	tokens  oauth2.TokenSource
	baseURL string
	logger  zerolog.Logger
}

// AndroidOptions configures an AndroidVerifier.
type AndroidOptions struct {
	// Tokens supplies access tokens for the Play Developer API. When
	// nil, application-default service-account credentials are used.
	Tokens oauth2.TokenSource
	// BaseURL overrides the Play API endpoint, for tests.
	BaseURL string
	// Client is the HTTP client to use; a default with bounded timeout
	// is created when nil.
	Client *http.Client
}

// NewAndroidVerifier creates a verifier for Google Play subscription
// purchases.
func NewAndroidVerifier(ctx context.Context, opts AndroidOptions, logger zerolog.Logger) (*AndroidVerifier, error) {
	tokens := opts.Tokens
	if tokens == nil {
		ts, err := google.DefaultTokenSource(ctx, androidPublisherScope)
		if err != nil {
			return nil, fmt.Errorf("google service-account credentials: %w", err)
		}
		tokens = ts
	}

	client := opts.Client
	if client == nil {
		client = httpclient.New(8 * time.Second)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultAndroidBaseURL
	}

	return &AndroidVerifier{
		client:  client,
		tokens:  tokens,
		baseURL: baseURL,
		logger:  logger.With().Str("component", "android_verifier").Logger(),
	}, nil
}

// subscriptionPurchase is the subset of the Play API resource we read.
type subscriptionPurchase struct {
	ExpiryTimeMillis  millis `json:"expiryTimeMillis"`
	PriceAmountMicros millis `json:"priceAmountMicros"`
	PriceCurrencyCode string `json:"priceCurrencyCode"`
}

// Verify performs one authenticated read of the subscription-purchase
// resource and checks that the subscription is currently active.
// Repeated calls with the same token are idempotent.
func (v *AndroidVerifier) Verify(ctx context.Context, productID, purchaseToken, packageName string) (*Result, error) {
	token, err := v.tokens.Token()
	if err != nil {
		return nil, &UpstreamError{Service: "google-play", Err: fmt.Errorf("access token: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/androidpublisher/v3/applications/%s/purchases/subscriptions/%s/tokens/%s",
		v.baseURL,
		url.PathEscape(packageName),
		url.PathEscape(productID),
		url.PathEscape(purchaseToken),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &UpstreamError{Service: "google-play", Err: err}
	}
	token.SetAuthHeader(req)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Service: "google-play", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Service: "google-play", StatusCode: resp.StatusCode}
	}

	var purchase subscriptionPurchase
	if err := json.NewDecoder(resp.Body).Decode(&purchase); err != nil {
		return nil, &UpstreamError{Service: "google-play", Err: fmt.Errorf("decode response: %w", err)}
	}

	exp := int64(purchase.ExpiryTimeMillis)
	if exp == 0 || exp <= time.Now().UnixMilli() {
		v.logger.Debug().
			Str("product_id", productID).
			Int64("expiry_ms", exp).
			Msg("subscription not active")
		return nil, ErrExpired
	}

	return &Result{
		ExpiryMs:          exp,
		PriceAmountMicros: int64(purchase.PriceAmountMicros),
		PriceCurrencyCode: purchase.PriceCurrencyCode,
	}, nil
}
