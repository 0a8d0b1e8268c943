// Package subscription reconciles reseller subscription state against the
// external payment provider.
//
// The provider is the source of truth. Every sync reads the provider's
// current view and overwrites the locally cached fields keyed by reseller
// id, so duplicate or out-of-order webhook deliveries converge on the same
// stored state:
//
//	syncer := subscription.NewSyncer(provider, registry, cache, subscription.SyncerConfig{}, metrics, auditLogger)
//	result, err := syncer.Sync(ctx, resellerID, subscription.TriggerManual)
//	if errors.Is(err, subscription.ErrProviderUnavailable) {
//		// stored state was not touched; retry later
//	}
//
// Webhooks are authenticated with an HMAC-SHA256 signature header of the
// form "t=<unix seconds>,v1=<hex digest>" computed over "<t>.<body>".
// Events are deduplicated by provider event id before they trigger a sync.
package subscription
