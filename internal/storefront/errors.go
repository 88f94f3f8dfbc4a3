package storefront

import (
	"errors"
	"fmt"
)

// ErrExpired is returned when the storefront reports the subscription
// as absent, lapsed, or otherwise not currently active.
var ErrExpired = errors.New("subscription expired or not active")

// ErrNotConfigured is returned when a verification needs a secret that
// was not provided in the environment. It fails only the request that
// needed it.
var ErrNotConfigured = errors.New("storefront credentials not configured")

// UpstreamError wraps a transport or HTTP failure from a storefront
// verification API or another remote collaborator.
type UpstreamError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed: status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstream reports whether err originated from a storefront API
// failure rather than from the purchase itself.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
