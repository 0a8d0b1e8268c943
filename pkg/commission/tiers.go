package commission

import (
	"sort"

	"github.com/platinummonkey/guidepost/pkg/resellers"
)

// PartnerRateBPS is the flat rate for partner subscriptions
const PartnerRateBPS = 2000

// PartnerTierCode is the tier label stored on partner commissions
const PartnerTierCode = "partner"

// Tier is one step of the sales-volume schedule
type Tier struct {
	Code            string `json:"code"`
	RateBPS         int    `json:"rate_bps"`
	MinQuarterSales int64  `json:"min_quarter_sales"`
}

// Schedule is the volume schedule for non-partner resellers, ordered by
// ascending threshold. The first tier is the base rate.
type Schedule []Tier

// DefaultSchedule returns the standard volume schedule
func DefaultSchedule() Schedule {
	return Schedule{
		{Code: resellers.DefaultCommissionTier, RateBPS: 1000, MinQuarterSales: 0},
		{Code: "silver", RateBPS: 1200, MinQuarterSales: 3_000_000},
		{Code: "gold", RateBPS: 1500, MinQuarterSales: 10_000_000},
	}
}

// Normalize sorts the schedule by threshold
func (s Schedule) Normalize() Schedule {
	out := append(Schedule(nil), s...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinQuarterSales < out[j].MinQuarterSales })
	return out
}

// Base returns the lowest tier
func (s Schedule) Base() Tier {
	return s[0]
}

// ForSales returns the highest tier whose threshold the sales reach
func (s Schedule) ForSales(sales int64) Tier {
	tier := s.Base()
	for _, t := range s {
		if sales >= t.MinQuarterSales {
			tier = t
		}
	}
	return tier
}

// ByCode looks up a tier code, falling back to the base tier
func (s Schedule) ByCode(code string) Tier {
	for _, t := range s {
		if t.Code == code {
			return t
		}
	}
	return s.Base()
}

// ResolveRate returns the rate and tier label in effect for a reseller now.
// Partner subscriptions earn the flat partner rate; everyone else follows
// the volume schedule by their current tier code.
func (s Schedule) ResolveRate(r *resellers.Reseller) (int, string) {
	if r.Subscription.Tier == resellers.TierPartner {
		return PartnerRateBPS, PartnerTierCode
	}
	t := s.ByCode(r.CommissionTier)
	return t.RateBPS, t.Code
}

// CeilAmount computes ceil(amount * bps / 10000) in integer yen
func CeilAmount(amount int64, bps int) int64 {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount*int64(bps) + 9999) / 10000
}
