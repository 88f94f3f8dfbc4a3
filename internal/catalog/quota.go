package catalog

import "math"

// GiB is the byte size of one gibibyte.
const GiB = 1024 * 1024 * 1024

// QuotaBytes translates a plan's storage limit in GB into the byte
// ceiling enforced by the account system. Non-finite and negative
// inputs clamp to 0; the limit is floored to whole GiB. A result of 0
// means uploads are blocked immediately.
func QuotaBytes(storageLimitGB float64) int64 {
	if math.IsNaN(storageLimitGB) || math.IsInf(storageLimitGB, 0) {
		return 0
	}

	limitGiB := math.Floor(storageLimitGB)
	if limitGiB <= 0 {
		return 0
	}

	return int64(limitGiB) * GiB
}
