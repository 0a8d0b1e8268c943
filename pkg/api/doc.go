// Package api assembles the public HTTP surface.
//
// # Route groups
//
// Routes are grouped by who may call them. Each group is a gorilla/mux
// subrouter with its own middleware, tried in registration order:
//
//   - Public: GET /commission-tiers, GET /p/{slug}, POST /webhooks/payment
//   - Visitor: POST /track (tenant resolved from host and cookie)
//   - Orders: POST /orders, GET /orders/{id}, POST /orders/{id}/status
//     (bearer token with orders:write, tenant resolved for attribution)
//   - Subscription: POST /subscription/sync (bearer token with subscription:sync)
//   - Reseller: /reseller/... (bearer token bound to a reseller)
//   - Admin: /admin/... (bearer token with commission:admin)
//   - Pages: GET /, GET /{module}, GET /{module}/{item}
//
// Page routes are registered last because their patterns would otherwise
// shadow every single-segment GET route.
//
// # Middleware
//
// Outermost first: OpenTelemetry server spans, request id and request
// logger, access log, panic recovery, security headers, body size cap, then
// per-route Prometheus metrics labelled by route template.
//
// # Usage
//
//	handler := api.NewRouter(api.RouterConfig{...}, api.Handlers{...})
//	srv := &http.Server{Addr: ":8080", Handler: handler}
package api
