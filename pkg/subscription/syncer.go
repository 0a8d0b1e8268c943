package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/guidepost/pkg/audit"
	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/resellers"
)

// SyncerConfig configures provider calls
type SyncerConfig struct {
	// RequestTimeout bounds each provider attempt
	RequestTimeout time.Duration
	Retry          RetryConfig
}

// Syncer reconciles cached subscription state with the provider
type Syncer struct {
	provider Provider
	registry Registry
	cache    Invalidator
	retry    *RetryPolicy
	timeout  time.Duration
	metrics  *observability.Metrics
	audit    audit.Logger
	now      func() time.Time
}

// NewSyncer creates a syncer. cache may be nil.
func NewSyncer(provider Provider, registry Registry, cache Invalidator, config SyncerConfig, metrics *observability.Metrics, auditLogger audit.Logger) *Syncer {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	return &Syncer{
		provider: provider,
		registry: registry,
		cache:    cache,
		retry:    NewRetryPolicy(config.Retry),
		timeout:  config.RequestTimeout,
		metrics:  metrics,
		audit:    auditLogger,
		now:      time.Now,
	}
}

// Sync fetches the provider's view of a reseller and overwrites the cached
// subscription fields. When the provider cannot be reached the stored state
// is left as it was and the error wraps ErrProviderUnavailable.
func (s *Syncer) Sync(ctx context.Context, resellerID string, trigger Trigger) (result *Result, err error) {
	ctx, span := observability.Tracer("subscription").Start(ctx, "subscription.Sync")
	defer func() { observability.EndSpan(span, err) }()
	span.SetAttributes(
		attribute.String("reseller.id", resellerID),
		attribute.String("sync.trigger", string(trigger)),
	)
	logger := observability.FromContext(ctx).WithFields(map[string]interface{}{
		"reseller_id": resellerID,
		"trigger":     string(trigger),
	})

	current, err := s.registry.Get(ctx, resellerID)
	if err != nil {
		s.metrics.RecordSubscriptionSync(string(trigger), "not_found")
		return nil, err
	}

	remote, attempts, err := s.fetch(ctx, resellerID)
	if err != nil {
		s.metrics.RecordSubscriptionSync(string(trigger), "provider_error")
		logger.WithError(err).WithField("attempts", attempts).Warn("subscription sync failed, stored state kept")
		s.record(ctx, resellerID, trigger, audit.EventStatusFailure, err.Error(), nil)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	syncedAt := s.now().UTC()
	next := resellers.Subscription{
		Status:   resellers.SubscriptionInactive,
		Tier:     current.Subscription.Tier,
		SyncedAt: &syncedAt,
	}
	if next.Tier == "" {
		next.Tier = resellers.TierGrowth
	}
	if remote != nil {
		next = remote.ToSubscription(syncedAt)
	}

	if err := s.registry.ApplySubscription(ctx, resellerID, next); err != nil {
		s.metrics.RecordSubscriptionSync(string(trigger), "error")
		return nil, fmt.Errorf("failed to store subscription: %w", err)
	}
	if s.cache != nil {
		s.cache.Invalidate(resellerID)
	}

	updated := *current
	updated.Subscription = next
	result = &Result{
		ResellerID:   resellerID,
		Subscription: next,
		Previous:     current.Subscription,
		Changed:      !sameState(current.Subscription, next),
		CanServe:     resellers.CanServe(&updated, syncedAt),
	}

	s.metrics.RecordSubscriptionSync(string(trigger), "ok")
	if result.Changed {
		logger.WithFields(map[string]interface{}{
			"from_status": string(current.Subscription.Status),
			"to_status":   string(next.Status),
			"tier":        string(next.Tier),
		}).Info("subscription state changed")
	}
	s.record(ctx, resellerID, trigger, audit.EventStatusSuccess, "subscription synced", map[string]interface{}{
		"from_status": string(current.Subscription.Status),
		"to_status":   string(next.Status),
		"tier":        string(next.Tier),
		"changed":     result.Changed,
	})
	return result, nil
}

// fetch calls the provider with backoff. A nil subscription with a nil
// error means the provider has none.
func (s *Syncer) fetch(ctx context.Context, resellerID string) (*ProviderSubscription, int, error) {
	var remote *ProviderSubscription
	attempts, err := s.retry.Do(ctx, isPermanent, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		sub, err := s.provider.FetchSubscription(callCtx, resellerID)
		if err != nil {
			return err
		}
		remote = sub
		return nil
	})
	if errors.Is(err, ErrNoSubscription) {
		return nil, attempts, nil
	}
	return remote, attempts, err
}

func isPermanent(err error) bool {
	if errors.Is(err, ErrNoSubscription) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return !se.Temporary()
	}
	return false
}

func (s *Syncer) record(ctx context.Context, resellerID string, trigger Trigger, status audit.EventStatus, message string, meta map[string]interface{}) {
	event := audit.NewEvent(ctx, audit.EventTypeSubscriptionSynced, status)
	event.Actor = "sync:" + string(trigger)
	event.ResellerID = resellerID
	event.ResourceType = audit.ResourceTypeReseller
	event.ResourceID = resellerID
	event.Message = message
	for k, v := range meta {
		event.Metadata[k] = v
	}
	audit.Record(ctx, s.audit, event)
}
