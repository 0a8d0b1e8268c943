package tenant

import (
	"context"

	"github.com/platinummonkey/guidepost/pkg/contextkeys"
	"github.com/platinummonkey/guidepost/pkg/resellers"
)

// Mode says whose branding a request is served under
type Mode string

const (
	ModeOfficial   Mode = "official"
	ModeWhiteLabel Mode = "white_label"
)

// Context is the resolved tenant for one request. It is produced once by
// Middleware; downstream code reads it from the request context and never
// looks at the raw cookie.
type Context struct {
	Mode       Mode              `json:"mode"`
	ResellerID string            `json:"reseller_id,omitempty"`
	Slug       string            `json:"slug,omitempty"`
	Brand      resellers.Brand   `json:"brand"`
	Contact    resellers.Contact `json:"contact"`
}

// IsWhiteLabel reports whether a reseller was resolved
func (c Context) IsWhiteLabel() bool {
	return c.Mode == ModeWhiteLabel && c.ResellerID != ""
}

// Official builds the official-mode context from configured branding
func Official(brand resellers.Brand, contact resellers.Contact) Context {
	return Context{Mode: ModeOfficial, Brand: brand, Contact: contact}
}

// WhiteLabel builds the context for a resolved reseller
func WhiteLabel(r *resellers.Reseller) Context {
	return Context{
		Mode:       ModeWhiteLabel,
		ResellerID: r.ID,
		Slug:       r.Slug,
		Brand:      r.Brand,
		Contact:    r.Contact,
	}
}

// FromContext returns the tenant stored by Middleware
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(contextkeys.TenantKey).(Context)
	return tc, ok
}

// WithContext stores the tenant on ctx
func WithContext(ctx context.Context, tc Context) context.Context {
	return contextkeys.WithTenant(ctx, tc)
}
