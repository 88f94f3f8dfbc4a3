// Package storefront verifies purchase receipts against the two mobile
// storefront server APIs and normalizes the result into an expiry
// timestamp plus optional price information.
package storefront

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Platform tags which storefront issued a purchase proof.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

// Result is the normalized outcome of a successful verification.
type Result struct {
	// ExpiryMs is the subscription's expiry in Unix milliseconds. It is
	// always in the future when Verify returns nil error.
	ExpiryMs int64
	// PriceAmountMicros and PriceCurrencyCode carry the renewal price
	// when the storefront reports one; zero values otherwise.
	PriceAmountMicros int64
	PriceCurrencyCode string
}

// millis decodes a millisecond timestamp that storefront APIs encode
// inconsistently as either a JSON string or a number.
type millis int64

func (m *millis) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Some endpoints emit fractional numbers; fall back to float.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return err
		}
		n = int64(f)
	}
	*m = millis(n)
	return nil
}

var _ json.Unmarshaler = (*millis)(nil)
