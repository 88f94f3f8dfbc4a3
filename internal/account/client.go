// Package account is the HTTP client for the external account system
// that owns user profiles and enforces storage quotas.
package account

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/photonvault/billing/internal/httpclient"
	"github.com/photonvault/billing/internal/storefront"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every account-system call.
const DefaultTimeout = 10 * time.Second

// Profile is the quota view of a user as reported by the account
// system. A nil QuotaLimitBytes means the user is unlimited.
type Profile struct {
	QuotaLimitBytes *int64 `json:"quota_limit_bytes"`
	QuotaUsedBytes  int64  `json:"quota_used_bytes"`
}

// Client talks to the account system's internal API.
type Client struct {
	baseURL      string
	serviceToken string
	client       *http.Client
	logger       zerolog.Logger
}

// Options configures an account Client.
type Options struct {
	// BaseURL is the account system's internal API root.
	BaseURL string
	// ServiceToken authenticates this service to the account system.
	ServiceToken string
	// Client is the HTTP client to use; a default with bounded timeout
	// is created when nil.
	Client *http.Client
}

// NewClient creates an account-system client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	client := opts.Client
	if client == nil {
		client = httpclient.New(DefaultTimeout)
	}

	return &Client{
		baseURL:      opts.BaseURL,
		serviceToken: opts.ServiceToken,
		client:       client,
		logger:       logger.With().Str("component", "account_client").Logger(),
	}
}

// updateQuotaRequest carries the new quota ceiling. A null quota means
// unlimited; zero blocks uploads immediately.
type updateQuotaRequest struct {
	QuotaSizeBytes *int64 `json:"quota_size_bytes"`
}

// UpdateQuota tells the account system the user's new byte ceiling.
// Callers treat this as at-least-once: a repeated call with the same
// arguments is harmless.
func (c *Client) UpdateQuota(ctx context.Context, userID string, quotaBytes *int64) error {
	body, err := json.Marshal(updateQuotaRequest{QuotaSizeBytes: quotaBytes})
	if err != nil {
		return fmt.Errorf("marshal quota update: %w", err)
	}

	endpoint := fmt.Sprintf("%s/internal/users/%s/quota", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return &storefront.UpstreamError{Service: "account-system", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return &storefront.UpstreamError{Service: "account-system", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &storefront.UpstreamError{Service: "account-system", StatusCode: resp.StatusCode}
	}

	c.logger.Debug().
		Str("user_id", userID).
		Interface("quota_bytes", quotaBytes).
		Msg("quota updated")
	return nil
}

// GetUserProfile reads the user's current quota limit and consumption.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (*Profile, error) {
	endpoint := fmt.Sprintf("%s/internal/users/%s/profile", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &storefront.UpstreamError{Service: "account-system", Err: err}
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &storefront.UpstreamError{Service: "account-system", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &storefront.UpstreamError{Service: "account-system", StatusCode: resp.StatusCode}
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, &storefront.UpstreamError{Service: "account-system", Err: fmt.Errorf("decode profile: %w", err)}
	}

	return &profile, nil
}

// Ping checks account-system reachability for health reporting.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/internal/health", nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("account system health returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	}
}
