package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Record* helpers are safe on a nil
// receiver so components can run without metrics wired.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Tenant resolution
	TenantResolutionsTotal *prometheus.CounterVec
	TenantCacheTotal       *prometheus.CounterVec

	// Storefront
	PagesRenderedTotal *prometheus.CounterVec

	// Tracking
	PageViewsTotal *prometheus.CounterVec

	// Commission ledger
	CommissionTransitionsTotal *prometheus.CounterVec
	CommissionReleasedYen      prometheus.Counter
	ReferralRewardsTotal       prometheus.Counter
	LedgerBatchErrorsTotal     *prometheus.CounterVec

	// Subscription sync
	SubscriptionSyncsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guidepost_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guidepost_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		TenantResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guidepost_tenant_resolutions_total",
				Help: "Tenant resolutions by resulting mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		TenantCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guidepost_tenant_cache_total",
				Help: "Reseller lookup cache hits and misses",
			},
			[]string{"result"},
		),
		PagesRenderedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guidepost_pages_rendered_total",
				Help: "Storefront pages rendered by category and mode",
			},
			[]string{"category", "mode"},
		),
		PageViewsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guidepost_page_views_total",
				Help: "Page view tracking results",
			},
			[]string{"result"},
		),
		CommissionTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guidepost_commission_transitions_total",
				Help: "Commission state transitions by target state",
			},
			[]string{"to"},
		),
		CommissionReleasedYen: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "guidepost_commission_released_yen_total",
				Help: "Commission amount moved to available balances, in yen",
			},
		),
		ReferralRewardsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "guidepost_referral_rewards_total",
				Help: "Referral rewards created",
			},
		),
		LedgerBatchErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guidepost_ledger_batch_errors_total",
				Help: "Per-record failures in ledger batch jobs",
			},
			[]string{"job"},
		),
		SubscriptionSyncsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guidepost_subscription_syncs_total",
				Help: "Subscription syncs by trigger and result",
			},
			[]string{"trigger", "result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TenantResolutionsTotal,
		m.TenantCacheTotal,
		m.PagesRenderedTotal,
		m.PageViewsTotal,
		m.CommissionTransitionsTotal,
		m.CommissionReleasedYen,
		m.ReferralRewardsTotal,
		m.LedgerBatchErrorsTotal,
		m.SubscriptionSyncsTotal,
	)

	return m
}

func (m *Metrics) RecordTenantResolution(mode, outcome string) {
	if m == nil {
		return
	}
	m.TenantResolutionsTotal.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) RecordTenantCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.TenantCacheTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordPageRendered(category, mode string) {
	if m == nil {
		return
	}
	m.PagesRenderedTotal.WithLabelValues(category, mode).Inc()
}

// RecordPageView records a tracking result: tracked, untracked, rate_limited or error
func (m *Metrics) RecordPageView(result string) {
	if m == nil {
		return
	}
	m.PageViewsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordCommissionTransition(to string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CommissionTransitionsTotal.WithLabelValues(to).Add(float64(n))
}

func (m *Metrics) RecordReleasedAmount(yen int64) {
	if m == nil || yen <= 0 {
		return
	}
	m.CommissionReleasedYen.Add(float64(yen))
}

func (m *Metrics) RecordReferralReward() {
	if m == nil {
		return
	}
	m.ReferralRewardsTotal.Inc()
}

func (m *Metrics) RecordBatchError(job string) {
	if m == nil {
		return
	}
	m.LedgerBatchErrorsTotal.WithLabelValues(job).Inc()
}

func (m *Metrics) RecordSubscriptionSync(trigger, result string) {
	if m == nil {
		return
	}
	m.SubscriptionSyncsTotal.WithLabelValues(trigger, result).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled by mux route template so reseller slugs and order ids
// do not explode label cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
