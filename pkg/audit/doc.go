// Package audit records the operator-facing trail for ledger and reseller
// changes.
//
// Commission calculations, releases, payouts and voids, quarterly tier
// changes, subscription syncs and storefront edits each emit one AuditEvent.
// Customers never see these failures; operators find them here and in the
// structured log.
//
//	logger := audit.NewMultiLogger(dbLogger, audit.NewLogLogger(appLogger))
//	event := audit.NewEvent(ctx, audit.EventTypeCommissionPaid, audit.EventStatusSuccess)
//	event.ResellerID = resellerID
//	audit.Record(ctx, logger, event)
//
// Record never returns an error: a failed audit write is logged and the
// business operation proceeds.
package audit
