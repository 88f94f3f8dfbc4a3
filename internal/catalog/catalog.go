// Package catalog holds the compiled-in storefront product catalog and
// the quota translation rules derived from it.
package catalog

// BillingPeriod is the renewal cadence of a subscription product.
type BillingPeriod string

const (
	PeriodMonthly BillingPeriod = "monthly"
	PeriodYearly  BillingPeriod = "yearly"
)

// Tier identifies the feature tier bundled with a plan.
type Tier string

const (
	TierFree     Tier = "free"
	TierPro      Tier = "pro"
	TierPriority Tier = "priority"
)

// Entry describes the plan attributes behind a storefront product ID.
type Entry struct {
	PlanCode       string
	StorageLimitGB float64
	Tier           Tier
	Seats          int
	ShareEnabled   bool
	Period         BillingPeriod
}

// products maps every storefront SKU to its plan attributes. Both
// storefronts publish the same SKU names, so one table serves both.
var products = map[string]Entry{
	// 100 GB
	"storage_100g_monthly": {PlanCode: "100G", StorageLimitGB: 100, Tier: TierPro, Seats: 1, ShareEnabled: true, Period: PeriodMonthly},
	"storage_100g_yearly":  {PlanCode: "100G", StorageLimitGB: 100, Tier: TierPro, Seats: 1, ShareEnabled: true, Period: PeriodYearly},

	// 200 GB
	"storage_200g_monthly": {PlanCode: "200G", StorageLimitGB: 200, Tier: TierPro, Seats: 1, ShareEnabled: true, Period: PeriodMonthly},
	"storage_200g_yearly":  {PlanCode: "200G", StorageLimitGB: 200, Tier: TierPro, Seats: 1, ShareEnabled: true, Period: PeriodYearly},

	// 2 TB
	"storage_2tb_monthly": {PlanCode: "2TB", StorageLimitGB: 2000, Tier: TierPriority, Seats: 5, ShareEnabled: true, Period: PeriodMonthly},
	"storage_2tb_yearly":  {PlanCode: "2TB", StorageLimitGB: 2000, Tier: TierPriority, Seats: 5, ShareEnabled: true, Period: PeriodYearly},
}

// Lookup returns the catalog entry for a storefront product ID.
func Lookup(productID string) (Entry, bool) {
	e, ok := products[productID]
	return e, ok
}

// ProductIDs returns all known storefront product IDs.
func ProductIDs() []string {
	ids := make([]string, 0, len(products))
	for id := range products {
		ids = append(ids, id)
	}
	return ids
}
