package attribution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/guidepost/pkg/audit"
	"github.com/platinummonkey/guidepost/pkg/middleware"
	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/orders"
	"github.com/platinummonkey/guidepost/pkg/resellers"
	"github.com/platinummonkey/guidepost/pkg/tenant"
)

// DefaultInsertTimeout bounds the synchronous page view write
const DefaultInsertTimeout = 2 * time.Second

// TrackerConfig tunes the tracker
type TrackerConfig struct {
	InsertTimeout time.Duration
	// FailOpen admits views when the limiter backend errors
	FailOpen bool
}

// Tracker records storefront views and binds orders to resellers. Views
// and conversions only accrue to resellers that can currently be served.
type Tracker struct {
	views   ViewStore
	limiter middleware.Limiter
	lookup  resellers.Lookup
	binder  OrderBinder
	config  TrackerConfig
	metrics *observability.Metrics
	audit   audit.Logger
	now     func() time.Time
}

// NewTracker creates a new Tracker
func NewTracker(views ViewStore, limiter middleware.Limiter, lookup resellers.Lookup, binder OrderBinder, config TrackerConfig, metrics *observability.Metrics, auditLogger audit.Logger) *Tracker {
	if config.InsertTimeout <= 0 {
		config.InsertTimeout = DefaultInsertTimeout
	}
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	return &Tracker{
		views:   views,
		limiter: limiter,
		lookup:  lookup,
		binder:  binder,
		config:  config,
		metrics: metrics,
		audit:   auditLogger,
		now:     time.Now,
	}
}

// RecordView stores one view for the tenant's reseller. The returned bool
// reports whether the view counts toward attribution. Official-mode views
// are not stored.
func (t *Tracker) RecordView(ctx context.Context, tc tenant.Context, path, referrer, sessionID string) (bool, error) {
	if err := validateView(path, sessionID); err != nil {
		t.metrics.RecordPageView("invalid")
		return false, err
	}
	if !tc.IsWhiteLabel() {
		t.metrics.RecordPageView("official")
		return false, nil
	}

	allowed, err := t.limiter.Allow(ctx, tc.ResellerID+":"+sessionID)
	if err != nil {
		observability.FromContext(ctx).WithError(err).Warn("page view limiter failed")
		if !t.config.FailOpen {
			t.metrics.RecordPageView("limiter_error")
			return false, ErrLimiterUnavailable
		}
		allowed = true
	}
	if !allowed {
		t.metrics.RecordPageView("rate_limited")
		return false, ErrRateLimited
	}

	view := &PageView{
		ResellerID: tc.ResellerID,
		Path:       path,
		Referrer:   truncate(referrer, maxReferrerLength),
		SessionID:  sessionID,
		Tracked:    t.accrues(ctx, tc.ResellerID),
	}

	insertCtx, cancel := context.WithTimeout(ctx, t.config.InsertTimeout)
	defer cancel()
	if err := t.views.Insert(insertCtx, view); err != nil {
		t.metrics.RecordPageView("error")
		return false, err
	}

	if view.Tracked {
		t.metrics.RecordPageView("tracked")
	} else {
		t.metrics.RecordPageView("untracked")
	}
	return view.Tracked, nil
}

// Attribute binds an order to the tenant's reseller. Official-mode orders
// and orders arriving while the reseller is not serveable stay unbound.
// A second binding to the same reseller is a no-op; a different one is
// orders.ErrAlreadyAttributed.
func (t *Tracker) Attribute(ctx context.Context, orderID string, tc tenant.Context) (bool, error) {
	if !tc.IsWhiteLabel() {
		return false, nil
	}
	if !t.accrues(ctx, tc.ResellerID) {
		event := audit.NewEvent(ctx, audit.EventTypeAttributionRejected, audit.EventStatusDenied)
		event.Actor = "system"
		event.ResellerID = tc.ResellerID
		event.ResourceType = audit.ResourceTypeOrder
		event.ResourceID = orderID
		event.Message = "order not attributed: reseller subscription inactive"
		audit.Record(ctx, t.audit, event)
		return false, nil
	}

	if err := t.binder.BindReseller(ctx, orderID, tc.ResellerID); err != nil {
		if errors.Is(err, orders.ErrAlreadyAttributed) {
			return false, err
		}
		return false, fmt.Errorf("failed to attribute order: %w", err)
	}
	return true, nil
}

// accrues re-reads the reseller so a subscription lapsing after the tenant
// was resolved stops attribution immediately
func (t *Tracker) accrues(ctx context.Context, resellerID string) bool {
	r, err := t.lookup.Get(ctx, resellerID)
	if err != nil {
		if !errors.Is(err, resellers.ErrNotFound) {
			observability.FromContext(ctx).WithError(err).WithField("reseller_id", resellerID).
				Warn("reseller lookup failed during attribution")
		}
		return false
	}
	return resellers.CanServe(r, t.now())
}

func validateView(path, sessionID string) error {
	if path == "" || !strings.HasPrefix(path, "/") || len(path) > maxPathLength {
		return fmt.Errorf("%w: pagePath must be an absolute path", ErrInvalidView)
	}
	if sessionID == "" || len(sessionID) > maxSessionIDLength {
		return fmt.Errorf("%w: sessionId is required", ErrInvalidView)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
