package billing

import (
	"context"
	"fmt"
	"math"
)

// Usage states, ordered by severity.
const (
	StateOK       = "ok"
	StateWarn     = "warn"
	StateCritical = "critical"
	StateBlocked  = "blocked"
)

// UsageReport summarizes a user's storage consumption against their
// quota. LimitBytes and LimitGB are nil for unlimited accounts.
type UsageReport struct {
	UsedBytes  int64   `json:"used_bytes"`
	LimitBytes *int64  `json:"limit_bytes"`
	UsedGB     string  `json:"used_gb"`
	LimitGB    *string `json:"limit_gb"`
	Percent    int     `json:"percent"`
	State      string  `json:"state"`
}

// Usage fetches the user's profile from the account system and
// derives the consumption percentage and pressure state. Unlimited
// quotas always report percent 0 and state ok.
func (s *Service) Usage(ctx context.Context, userID string) (*UsageReport, error) {
	profile, err := s.account.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &UsageReport{
		UsedBytes:  profile.QuotaUsedBytes,
		LimitBytes: profile.QuotaLimitBytes,
		UsedGB:     formatGB(profile.QuotaUsedBytes, 2),
		State:      StateOK,
	}

	if profile.QuotaLimitBytes != nil && *profile.QuotaLimitBytes > 0 {
		limit := *profile.QuotaLimitBytes
		limitGB := formatGB(limit, 0)
		report.LimitGB = &limitGB

		percent := int(math.Round(float64(profile.QuotaUsedBytes) / float64(limit) * 100))
		if percent > 100 {
			percent = 100
		}
		report.Percent = percent

		switch {
		case percent >= 100:
			report.State = StateBlocked
		case percent >= 90:
			report.State = StateCritical
		case percent >= 80:
			report.State = StateWarn
		}
	}

	return report, nil
}

func formatGB(bytes int64, decimals int) string {
	return fmt.Sprintf("%.*f", decimals, float64(bytes)/float64(1<<30))
}
