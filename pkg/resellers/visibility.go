package resellers

import "time"

// IsSubscriptionActive reports whether the subscription currently entitles the
// reseller to a storefront and to attribution. A nil period end means the
// provider has not reported one and the status alone decides.
func IsSubscriptionActive(r *Reseller, now time.Time) bool {
	if r == nil || r.Subscription.Status != SubscriptionActive {
		return false
	}
	if r.Subscription.PeriodEnd != nil && !now.Before(*r.Subscription.PeriodEnd) {
		return false
	}
	return true
}

// CanServe is the single visibility predicate: approved and subscribed.
// Storefront config lookups and view attribution both go through it.
func CanServe(r *Reseller, now time.Time) bool {
	return r != nil && r.Status == StatusApproved && IsSubscriptionActive(r, now)
}
