package attribution

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRateLimited        = errors.New("page view rate limit exceeded")
	ErrInvalidView        = errors.New("invalid page view")
	ErrLimiterUnavailable = errors.New("rate limiter unavailable")
)

const (
	maxPathLength      = 2048
	maxReferrerLength  = 2048
	maxSessionIDLength = 128
)

// PageView is one append-only storefront view. Tracked is false when the
// reseller could not accrue attribution at the time of the view.
type PageView struct {
	ID         string    `json:"id"`
	ResellerID string    `json:"reseller_id"`
	Path       string    `json:"path"`
	Referrer   string    `json:"referrer,omitempty"`
	SessionID  string    `json:"session_id"`
	Tracked    bool      `json:"tracked"`
	CreatedAt  time.Time `json:"created_at"`
}

// ViewStore persists page views. There is no update or delete.
type ViewStore interface {
	Insert(ctx context.Context, v *PageView) error
}

// OrderBinder binds an order to a reseller exactly once
type OrderBinder interface {
	BindReseller(ctx context.Context, orderID, resellerID string) error
}
