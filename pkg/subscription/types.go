package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/guidepost/pkg/resellers"
)

var (
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrNoSubscription      = errors.New("provider has no subscription for reseller")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrSignatureExpired    = errors.New("webhook signature outside tolerance")
	ErrMalformedEvent      = errors.New("malformed webhook event")
)

// Trigger labels what started a sync
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerWebhook   Trigger = "webhook"
	TriggerScheduled Trigger = "scheduled"
)

// ProviderSubscription is the provider's view of one reseller's plan
type ProviderSubscription struct {
	ID               string     `json:"id"`
	CustomerID       string     `json:"customer"`
	Status           string     `json:"status"`
	Plan             string     `json:"plan"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}

// Provider reads subscription state from the payment provider
type Provider interface {
	// FetchSubscription returns ErrNoSubscription when the provider knows
	// nothing about the reseller.
	FetchSubscription(ctx context.Context, resellerID string) (*ProviderSubscription, error)
}

// Registry is the reseller store the syncer reads and writes. Reads must not
// be served from a cache.
type Registry interface {
	Get(ctx context.Context, id string) (*resellers.Reseller, error)
	ApplySubscription(ctx context.Context, id string, sub resellers.Subscription) error
}

// Invalidator drops cached copies of a reseller
type Invalidator interface {
	Invalidate(id string)
}

// Result is the outcome of one sync
type Result struct {
	ResellerID   string                 `json:"resellerId"`
	Subscription resellers.Subscription `json:"subscription"`
	Previous     resellers.Subscription `json:"previous"`
	Changed      bool                   `json:"changed"`
	CanServe     bool                   `json:"canServe"`
}

// MapStatus translates provider status strings. Anything unknown is
// inactive.
func MapStatus(status string) resellers.SubscriptionStatus {
	switch status {
	case "active", "trialing":
		return resellers.SubscriptionActive
	case "past_due", "unpaid":
		return resellers.SubscriptionPastDue
	case "canceled", "cancelled", "incomplete_expired":
		return resellers.SubscriptionCancelled
	default:
		return resellers.SubscriptionInactive
	}
}

// MapTier translates the provider plan code. Unknown plans are growth.
func MapTier(plan string) resellers.SubscriptionTier {
	if plan == string(resellers.TierPartner) {
		return resellers.TierPartner
	}
	return resellers.TierGrowth
}

// ToSubscription converts the provider view into the cached fields
func (p *ProviderSubscription) ToSubscription(syncedAt time.Time) resellers.Subscription {
	sub := resellers.Subscription{
		Status:         MapStatus(p.Status),
		Tier:           MapTier(p.Plan),
		CustomerID:     p.CustomerID,
		SubscriptionID: p.ID,
		SyncedAt:       &syncedAt,
	}
	if p.CurrentPeriodEnd != nil {
		end := p.CurrentPeriodEnd.UTC()
		sub.PeriodEnd = &end
	}
	return sub
}

func sameState(a, b resellers.Subscription) bool {
	if a.Status != b.Status || a.Tier != b.Tier || a.CustomerID != b.CustomerID || a.SubscriptionID != b.SubscriptionID {
		return false
	}
	switch {
	case a.PeriodEnd == nil && b.PeriodEnd == nil:
		return true
	case a.PeriodEnd == nil || b.PeriodEnd == nil:
		return false
	default:
		return a.PeriodEnd.Equal(*b.PeriodEnd)
	}
}
