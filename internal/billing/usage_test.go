package billing

import (
	"context"
	"testing"

	"github.com/photonvault/billing/internal/account"
	"github.com/photonvault/billing/internal/storefront"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitBytes(gb int64) *int64 {
	n := gb * 1024 * 1024 * 1024
	return &n
}

func TestUsageStates(t *testing.T) {
	limit := int64(1000) * 1024 * 1024 * 1024

	tests := []struct {
		name        string
		usedPercent int64
		percent     int
		state       string
	}{
		{"zero usage", 0, 0, StateOK},
		{"below warn", 79, 79, StateOK},
		{"warn threshold", 80, 80, StateWarn},
		{"critical threshold", 90, 90, StateCritical},
		{"near full", 95, 95, StateCritical},
		{"full", 100, 100, StateBlocked},
		{"over quota", 130, 100, StateBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			used := limit / 100 * tt.usedPercent
			acct := &fakeAccount{profile: &account.Profile{
				QuotaLimitBytes: &limit,
				QuotaUsedBytes:  used,
			}}
			svc, _ := newTestService(nil, nil, acct)

			report, err := svc.Usage(context.Background(), "user-1")
			require.NoError(t, err)
			assert.Equal(t, tt.percent, report.Percent)
			assert.Equal(t, tt.state, report.State)
			assert.Equal(t, used, report.UsedBytes)
			require.NotNil(t, report.LimitBytes)
			assert.Equal(t, limit, *report.LimitBytes)
		})
	}
}

func TestUsageUnlimitedQuota(t *testing.T) {
	acct := &fakeAccount{profile: &account.Profile{
		QuotaLimitBytes: nil,
		QuotaUsedBytes:  int64(750) * 1024 * 1024 * 1024,
	}}
	svc, _ := newTestService(nil, nil, acct)

	report, err := svc.Usage(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Percent)
	assert.Equal(t, StateOK, report.State)
	assert.Nil(t, report.LimitBytes)
	assert.Nil(t, report.LimitGB)
	assert.Equal(t, "750.00", report.UsedGB)
}

func TestUsageFormatsGigabytes(t *testing.T) {
	acct := &fakeAccount{profile: &account.Profile{
		QuotaLimitBytes: limitBytes(100),
		QuotaUsedBytes:  int64(50.5 * 1024 * 1024 * 1024),
	}}
	svc, _ := newTestService(nil, nil, acct)

	report, err := svc.Usage(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "50.50", report.UsedGB)
	require.NotNil(t, report.LimitGB)
	assert.Equal(t, "100", *report.LimitGB)
	assert.Equal(t, 51, report.Percent)
	assert.Equal(t, StateOK, report.State)
}

func TestUsagePropagatesAccountError(t *testing.T) {
	upstream := &storefront.UpstreamError{Service: "account-system", StatusCode: 500}
	svc, _ := newTestService(nil, nil, &fakeAccount{err: upstream})

	_, err := svc.Usage(context.Background(), "user-1")
	var ue *storefront.UpstreamError
	require.ErrorAs(t, err, &ue)
}
