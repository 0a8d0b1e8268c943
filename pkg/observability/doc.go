// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health probes and graceful shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("reseller_id", id).Info("commission released")
//
// Request-scoped loggers travel in the context; FromContext adds the request
// id, the reseller being served and the active trace/span ids.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//
// All Record* helpers tolerate a nil *Metrics.
//
// # Tracing
//
//	ctx, span := observability.Tracer("commission").Start(ctx, "commission.calculate")
//	defer func() { observability.EndSpan(span, err) }()
//
// # Health
//
// /healthz is a pure liveness probe. /readyz pings PostgreSQL and Redis.
package observability
