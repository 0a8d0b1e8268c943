package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/resellers"
)

// Resolution outcomes, used as the metrics label
const (
	outcomeResolved     = "resolved"
	outcomeOfficialHost = "official_host"
	outcomeNoCookie     = "no_cookie"
	outcomeBadCookie    = "bad_cookie"
	outcomeNotFound     = "not_found"
	outcomeInactive     = "inactive"
	outcomeLookupError  = "lookup_error"
)

// ResolverConfig configures a Resolver
type ResolverConfig struct {
	// WhiteLabelHostPattern selects hosts that may serve reseller branding.
	// Empty means every host.
	WhiteLabelHostPattern string
	Official              Context
}

// Resolver maps host and cookies to a tenant Context. Every failure path
// yields the official context; Resolve never returns an error.
type Resolver struct {
	lookup   resellers.Lookup
	signer   *CookieSigner
	hosts    *regexp.Regexp
	official Context
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewResolver creates a resolver
func NewResolver(cfg ResolverConfig, lookup resellers.Lookup, signer *CookieSigner, metrics *observability.Metrics) (*Resolver, error) {
	r := &Resolver{
		lookup:   lookup,
		signer:   signer,
		official: cfg.Official,
		metrics:  metrics,
		now:      time.Now,
	}
	r.official.Mode = ModeOfficial
	r.official.ResellerID = ""
	r.official.Slug = ""

	if cfg.WhiteLabelHostPattern != "" {
		re, err := regexp.Compile(cfg.WhiteLabelHostPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid white-label host pattern: %w", err)
		}
		r.hosts = re
	}
	return r, nil
}

// Official returns the official-mode context
func (r *Resolver) Official() Context {
	return r.official
}

// Resolve determines the tenant for a request
func (r *Resolver) Resolve(ctx context.Context, host string, cookies []*http.Cookie) Context {
	tc, outcome := r.resolve(ctx, host, cookies)
	r.metrics.RecordTenantResolution(string(tc.Mode), outcome)
	return tc
}

func (r *Resolver) resolve(ctx context.Context, host string, cookies []*http.Cookie) (Context, string) {
	if r.hosts != nil && !r.hosts.MatchString(host) {
		return r.official, outcomeOfficialHost
	}

	var raw string
	for _, c := range cookies {
		if c.Name == r.signer.Name() {
			raw = c.Value
			break
		}
	}
	if raw == "" {
		return r.official, outcomeNoCookie
	}

	logger := observability.FromContext(ctx)
	slug, err := r.signer.Verify(raw)
	if err != nil {
		logger.Warn("rejected tenant cookie")
		return r.official, outcomeBadCookie
	}

	reseller, err := r.lookup.GetBySlug(ctx, slug)
	switch {
	case errors.Is(err, resellers.ErrNotFound), errors.Is(err, resellers.ErrInvalidSlug):
		return r.official, outcomeNotFound
	case err != nil:
		logger.WithError(err).WithField("slug", slug).Error("tenant lookup failed")
		return r.official, outcomeLookupError
	}

	if !resellers.CanServe(reseller, r.now()) {
		return r.official, outcomeInactive
	}
	return WhiteLabel(reseller), outcomeResolved
}
