package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/guidepost/pkg/attribution"
	"github.com/platinummonkey/guidepost/pkg/audit"
	"github.com/platinummonkey/guidepost/pkg/auth"
	"github.com/platinummonkey/guidepost/pkg/commission"
	"github.com/platinummonkey/guidepost/pkg/httputil"
	"github.com/platinummonkey/guidepost/pkg/middleware"
	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/orders"
	"github.com/platinummonkey/guidepost/pkg/storefront"
	"github.com/platinummonkey/guidepost/pkg/subscription"
	"github.com/platinummonkey/guidepost/pkg/tenant"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured
const DefaultMaxBodyBytes = 1 << 20

// RouterConfig holds the cross-cutting pieces of the HTTP surface
type RouterConfig struct {
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Resolver *tenant.Resolver
	Auth     *middleware.AuthMiddleware

	// APILimiter throttles the authenticated groups per client address.
	// Nil disables it.
	APILimiter middleware.Limiter

	MaxBodyBytes int64

	// ServiceName names the OpenTelemetry server spans. Empty disables
	// otelhttp instrumentation.
	ServiceName string
}

// Handlers are the domain handler sets. Subscription and Audit are
// optional; their routes are omitted when nil.
type Handlers struct {
	Tenant       *tenant.Handlers
	Attribution  *attribution.Handlers
	Orders       *orders.Handlers
	Commission   *commission.Handlers
	Storefront   *storefront.Handlers
	Subscription *subscription.Handlers
	Audit        *audit.Handlers
}

// NewRouter builds the full handler tree
func NewRouter(cfg RouterConfig, h Handlers) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	router := mux.NewRouter()
	router.Use(observability.HTTPMetricsMiddleware(cfg.Metrics))

	resolveTenant := tenant.Middleware(cfg.Resolver)

	authenticated := []mux.MiddlewareFunc{cfg.Auth.Handler}
	if cfg.APILimiter != nil {
		limiter := middleware.NewRateLimitMiddleware(cfg.APILimiter, middleware.DefaultRateLimitConfig(), middleware.ByClientIP, true)
		authenticated = append(authenticated, limiter.Handler)
	}
	group := func(extra ...mux.MiddlewareFunc) *mux.Router {
		sub := router.NewRoute().Subrouter()
		sub.Use(authenticated...)
		sub.Use(extra...)
		return sub
	}

	// Public
	h.Commission.RegisterPublicRoutes(router)
	h.Tenant.RegisterRoutes(router)
	if h.Subscription != nil {
		h.Subscription.RegisterWebhookRoutes(router)
	}

	// Visitor
	visitor := router.NewRoute().Subrouter()
	visitor.Use(resolveTenant)
	h.Attribution.RegisterRoutes(visitor)

	// Orders
	h.Orders.RegisterRoutes(group(middleware.RequireScope(auth.ScopeOrdersWrite), resolveTenant))

	// Subscription
	if h.Subscription != nil {
		h.Subscription.RegisterRoutes(group(middleware.RequireScope(auth.ScopeSubscriptionSync)))
	}

	// Reseller
	reseller := group(middleware.RequireReseller)
	h.Commission.RegisterResellerRoutes(reseller)
	editor := group(middleware.RequireReseller, middleware.RequireScope(auth.ScopeStorefrontWrite))
	h.Storefront.RegisterResellerRoutes(editor)

	// Admin
	admin := group(middleware.RequireScope(auth.ScopeCommissionAdmin))
	h.Commission.RegisterAdminRoutes(admin)
	if h.Audit != nil {
		h.Audit.RegisterRoutes(admin)
	}

	// Pages last
	pages := router.NewRoute().Subrouter()
	pages.Use(resolveTenant)
	h.Storefront.RegisterPageRoutes(pages)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "not found")
	})

	var handler http.Handler = httputil.Chain(
		httputil.RequestIDMiddleware(cfg.Logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.SecurityHeadersMiddleware,
		httputil.MaxBytesMiddleware(cfg.MaxBodyBytes),
	)(router)

	if cfg.ServiceName != "" {
		handler = otelhttp.NewHandler(handler, cfg.ServiceName)
	}
	return handler
}
