package resellers

import (
	"context"
	"errors"
	"time"
)

// Status is the reseller's program approval state
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusSuspended Status = "suspended"
)

// SubscriptionStatus mirrors the payment provider's view of the reseller's plan
type SubscriptionStatus string

const (
	SubscriptionInactive  SubscriptionStatus = "inactive"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// SubscriptionTier is the paid plan
type SubscriptionTier string

const (
	TierGrowth  SubscriptionTier = "growth"
	TierPartner SubscriptionTier = "partner"
)

// DefaultCommissionTier is assigned to new resellers and to resellers with no
// trailing-quarter sales.
const DefaultCommissionTier = "standard"

var (
	ErrNotFound    = errors.New("reseller not found")
	ErrInvalidSlug = errors.New("invalid slug")
	ErrSlugTaken   = errors.New("slug already taken")
)

// Brand is what a visitor sees on a white-label storefront
type Brand struct {
	Name    string `json:"name"`
	Color   string `json:"color"`
	LogoURL string `json:"logo_url"`
	Tagline string `json:"tagline,omitempty"`
}

// Contact holds the channels a visitor can use to reach the guide
type Contact struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	LineID   string `json:"line_id,omitempty"`
	WhatsApp string `json:"whatsapp,omitempty"`
}

// Subscription is the locally cached subscription state
type Subscription struct {
	Status         SubscriptionStatus `json:"status"`
	Tier           SubscriptionTier   `json:"tier"`
	PeriodEnd      *time.Time         `json:"period_end,omitempty"`
	CustomerID     string             `json:"customer_id,omitempty"`
	SubscriptionID string             `json:"subscription_id,omitempty"`
	SyncedAt       *time.Time         `json:"synced_at,omitempty"`
}

// Reseller is a guide partner. Resellers are never hard-deleted.
type Reseller struct {
	ID             string       `json:"id"`
	Slug           string       `json:"slug"`
	Brand          Brand        `json:"brand"`
	Contact        Contact      `json:"contact"`
	Status         Status       `json:"status"`
	Subscription   Subscription `json:"subscription"`
	CommissionTier string       `json:"commission_tier"`
	ReferrerID     *string      `json:"referrer_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Lookup is the read side used on the request path
type Lookup interface {
	Get(ctx context.Context, id string) (*Reseller, error)
	GetBySlug(ctx context.Context, slug string) (*Reseller, error)
}

// Service defines reseller registry operations
type Service interface {
	Lookup

	Create(ctx context.Context, r *Reseller) error
	ListIDs(ctx context.Context) ([]string, error)
	SetStatus(ctx context.Context, id string, status Status) error

	// ApplySubscription overwrites the cached subscription fields. It is an
	// absolute write, so replaying it is harmless.
	ApplySubscription(ctx context.Context, id string, sub Subscription) error

	// SetCommissionTier updates only the tier code; stored commission
	// amounts are untouched.
	SetCommissionTier(ctx context.Context, id, tier string, at time.Time) error
}
