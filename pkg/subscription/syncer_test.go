package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/resellers"
)

const testResellerID = "1f0e2d3c-4b5a-4978-8695-a4b3c2d1e0f9"

var syncNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type memRegistry struct {
	mu      sync.Mutex
	records map[string]*resellers.Reseller
	applies int
}

func newMemRegistry(rs ...*resellers.Reseller) *memRegistry {
	m := &memRegistry{records: make(map[string]*resellers.Reseller)}
	for _, r := range rs {
		m.records[r.ID] = r
	}
	return m
}

func (m *memRegistry) Get(_ context.Context, id string) (*resellers.Reseller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, resellers.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRegistry) ApplySubscription(_ context.Context, id string, sub resellers.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return resellers.ErrNotFound
	}
	m.applies++
	r.Subscription = sub
	return nil
}

type scriptedProvider struct {
	mu    sync.Mutex
	calls int
	steps []func() (*ProviderSubscription, error)
}

func (p *scriptedProvider) FetchSubscription(context.Context, string) (*ProviderSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	if i >= len(p.steps) {
		i = len(p.steps) - 1
	}
	return p.steps[i]()
}

func returns(sub *ProviderSubscription, err error) func() (*ProviderSubscription, error) {
	return func() (*ProviderSubscription, error) { return sub, err }
}

type invalidations []string

func (i *invalidations) Invalidate(id string) { *i = append(*i, id) }

func approvedReseller(status resellers.SubscriptionStatus) *resellers.Reseller {
	return &resellers.Reseller{
		ID:           testResellerID,
		Slug:         "golf-master",
		Status:       resellers.StatusApproved,
		Subscription: resellers.Subscription{Status: status, Tier: resellers.TierGrowth},
	}
}

func newTestSyncer(t *testing.T, provider Provider, registry Registry) (*Syncer, *invalidations, *observability.Metrics) {
	t.Helper()
	inv := &invalidations{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	s := NewSyncer(provider, registry, inv, SyncerConfig{Retry: RetryConfig{MaxAttempts: 3}}, metrics, nil)
	s.now = func() time.Time { return syncNow }
	s.retry.sleep = func(context.Context, time.Duration) error { return nil }
	return s, inv, metrics
}

func periodEnd() *time.Time {
	end := syncNow.Add(30 * 24 * time.Hour)
	return &end
}

func TestSyncer_ActivatesSubscription(t *testing.T) {
	registry := newMemRegistry(approvedReseller(resellers.SubscriptionInactive))
	provider := &scriptedProvider{steps: []func() (*ProviderSubscription, error){
		returns(&ProviderSubscription{ID: "sub_1", CustomerID: "cus_1", Status: "active", Plan: "partner", CurrentPeriodEnd: periodEnd()}, nil),
	}}
	s, inv, metrics := newTestSyncer(t, provider, registry)

	result, err := s.Sync(context.Background(), testResellerID, TriggerManual)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.True(t, result.CanServe)
	assert.Equal(t, resellers.SubscriptionActive, result.Subscription.Status)
	assert.Equal(t, resellers.TierPartner, result.Subscription.Tier)
	assert.Equal(t, resellers.SubscriptionInactive, result.Previous.Status)

	stored, _ := registry.Get(context.Background(), testResellerID)
	assert.Equal(t, resellers.SubscriptionActive, stored.Subscription.Status)
	assert.Equal(t, "sub_1", stored.Subscription.SubscriptionID)
	assert.Equal(t, []string{testResellerID}, []string(*inv))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SubscriptionSyncsTotal.WithLabelValues("manual", "ok")))
}

func TestSyncer_IdempotentReplay(t *testing.T) {
	registry := newMemRegistry(approvedReseller(resellers.SubscriptionInactive))
	remote := &ProviderSubscription{ID: "sub_1", Status: "past_due", Plan: "growth", CurrentPeriodEnd: periodEnd()}
	provider := &scriptedProvider{steps: []func() (*ProviderSubscription, error){returns(remote, nil)}}
	s, _, _ := newTestSyncer(t, provider, registry)
	ctx := context.Background()

	first, err := s.Sync(ctx, testResellerID, TriggerWebhook)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	afterFirst, _ := registry.Get(ctx, testResellerID)

	second, err := s.Sync(ctx, testResellerID, TriggerWebhook)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	afterSecond, _ := registry.Get(ctx, testResellerID)

	assert.Equal(t, afterFirst.Subscription, afterSecond.Subscription)
	assert.False(t, second.CanServe, "past_due does not serve")
}

func TestSyncer_ProviderOutageLeavesStateUntouched(t *testing.T) {
	registry := newMemRegistry(approvedReseller(resellers.SubscriptionActive))
	provider := &scriptedProvider{steps: []func() (*ProviderSubscription, error){
		returns(nil, errors.New("connection refused")),
	}}
	s, inv, metrics := newTestSyncer(t, provider, registry)

	_, err := s.Sync(context.Background(), testResellerID, TriggerManual)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 3, provider.calls, "retried up to MaxAttempts")
	assert.Equal(t, 0, registry.applies)
	assert.Empty(t, *inv)

	stored, _ := registry.Get(context.Background(), testResellerID)
	assert.Equal(t, resellers.SubscriptionActive, stored.Subscription.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SubscriptionSyncsTotal.WithLabelValues("manual", "provider_error")))
}

func TestSyncer_RecoversAfterTransientFailure(t *testing.T) {
	registry := newMemRegistry(approvedReseller(resellers.SubscriptionInactive))
	provider := &scriptedProvider{steps: []func() (*ProviderSubscription, error){
		returns(nil, &StatusError{StatusCode: 503}),
		returns(&ProviderSubscription{ID: "sub_1", Status: "active", Plan: "growth"}, nil),
	}}
	s, _, _ := newTestSyncer(t, provider, registry)

	result, err := s.Sync(context.Background(), testResellerID, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, resellers.SubscriptionActive, result.Subscription.Status)
	assert.Nil(t, result.Subscription.PeriodEnd)
}

func TestSyncer_PermanentProviderErrorNotRetried(t *testing.T) {
	registry := newMemRegistry(approvedReseller(resellers.SubscriptionActive))
	provider := &scriptedProvider{steps: []func() (*ProviderSubscription, error){
		returns(nil, &StatusError{StatusCode: 401}),
	}}
	s, _, _ := newTestSyncer(t, provider, registry)

	_, err := s.Sync(context.Background(), testResellerID, TriggerManual)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 1, provider.calls)
}

func TestSyncer_NoSubscriptionDeactivates(t *testing.T) {
	registry := newMemRegistry(approvedReseller(resellers.SubscriptionActive))
	provider := &scriptedProvider{steps: []func() (*ProviderSubscription, error){returns(nil, ErrNoSubscription)}}
	s, _, _ := newTestSyncer(t, provider, registry)

	result, err := s.Sync(context.Background(), testResellerID, TriggerWebhook)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, resellers.SubscriptionInactive, result.Subscription.Status)
	assert.Equal(t, resellers.TierGrowth, result.Subscription.Tier)
	assert.False(t, result.CanServe)
}

func TestSyncer_UnknownReseller(t *testing.T) {
	provider := &scriptedProvider{steps: []func() (*ProviderSubscription, error){returns(nil, nil)}}
	s, _, _ := newTestSyncer(t, provider, newMemRegistry())

	_, err := s.Sync(context.Background(), testResellerID, TriggerManual)
	assert.ErrorIs(t, err, resellers.ErrNotFound)
	assert.Equal(t, 0, provider.calls)
}

func TestMapStatus(t *testing.T) {
	tests := map[string]resellers.SubscriptionStatus{
		"active":             resellers.SubscriptionActive,
		"trialing":           resellers.SubscriptionActive,
		"past_due":           resellers.SubscriptionPastDue,
		"unpaid":             resellers.SubscriptionPastDue,
		"canceled":           resellers.SubscriptionCancelled,
		"incomplete_expired": resellers.SubscriptionCancelled,
		"incomplete":         resellers.SubscriptionInactive,
		"":                   resellers.SubscriptionInactive,
	}
	for in, want := range tests {
		assert.Equal(t, want, MapStatus(in), in)
	}
	assert.Equal(t, resellers.TierPartner, MapTier("partner"))
	assert.Equal(t, resellers.TierGrowth, MapTier("enterprise"))
}
