package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/guidepost/pkg/api"
	"github.com/platinummonkey/guidepost/pkg/attribution"
	"github.com/platinummonkey/guidepost/pkg/audit"
	"github.com/platinummonkey/guidepost/pkg/auth"
	"github.com/platinummonkey/guidepost/pkg/commission"
	"github.com/platinummonkey/guidepost/pkg/config"
	"github.com/platinummonkey/guidepost/pkg/middleware"
	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/orders"
	"github.com/platinummonkey/guidepost/pkg/resellers"
	"github.com/platinummonkey/guidepost/pkg/storage/postgres"
	"github.com/platinummonkey/guidepost/pkg/storefront"
	"github.com/platinummonkey/guidepost/pkg/subscription"
	"github.com/platinummonkey/guidepost/pkg/tenant"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const catalogTTL = time.Minute

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", cfg.Observability.OTelServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		fatal(logger, err, "failed to initialize OpenTelemetry")
	}

	// Storage
	conns, err := postgres.NewConnectionManager(ctx, postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: postgres.SplitReplicaURLs(cfg.Database.ReplicaURLs),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
	}, logger)
	if err != nil {
		fatal(logger, err, "failed to connect to database")
	}
	db := conns.Primary()

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			fatal(logger, err, "failed to run migrations")
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = postgres.NewRedisClient(ctx, postgres.RedisOptions{
			URL:        cfg.Redis.URL,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			MaxRetries: cfg.Redis.MaxRetries,
			PoolSize:   cfg.Redis.PoolSize,
		})
		if err != nil {
			fatal(logger, err, "failed to connect to redis")
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	// Audit
	dbAudit, err := audit.NewDBLogger(db)
	if err != nil {
		fatal(logger, err, "failed to create audit logger")
	}
	auditLogger := audit.NewMultiLogger(audit.NewLogLogger(logger), dbAudit)

	// Resellers and tenant resolution
	resellerStore := resellers.NewPostgresService(db)
	lookup := resellers.NewCachedLookup(resellerStore, cfg.Tenant.CacheSize, cfg.Tenant.CacheTTL, metrics)

	signer, err := tenant.NewCookieSigner([]byte(cfg.Tenant.CookieSecret), cfg.Tenant.CookieName, cfg.Tenant.CookieMaxAge, cfg.Tenant.CookieSecure)
	if err != nil {
		fatal(logger, err, "invalid tenant cookie settings")
	}
	official := tenant.Official(
		resellers.Brand{Name: cfg.Tenant.OfficialName, Color: cfg.Tenant.OfficialColor, LogoURL: cfg.Tenant.OfficialLogoURL},
		resellers.Contact{Email: cfg.Tenant.OfficialEmail, Phone: cfg.Tenant.OfficialPhone},
	)
	resolver, err := tenant.NewResolver(tenant.ResolverConfig{
		WhiteLabelHostPattern: cfg.Tenant.WhiteLabelHostPattern,
		Official:              official,
	}, lookup, signer, metrics)
	if err != nil {
		fatal(logger, err, "invalid tenant resolver settings")
	}

	// Storefront
	seed, err := loadSeed(cfg.Storefront.CatalogSeedPath)
	if err != nil {
		fatal(logger, err, "failed to load catalog seed")
	}
	if err := storefront.NewPostgresCatalog(db).ApplySeed(ctx, seed); err != nil {
		fatal(logger, err, "failed to import catalog seed")
	}
	catalog := storefront.NewCatalogSource(storefront.NewPostgresCatalog(conns.Replica()), catalogTTL)
	current, err := catalog.Get(ctx)
	if err != nil {
		fatal(logger, err, "failed to load catalog")
	}

	templates, err := storefront.NewTemplateSet(cfg.Storefront.TemplateDir)
	if err != nil {
		fatal(logger, err, "failed to load templates")
	}
	if err := templates.Watch(ctx, logger); err != nil {
		logger.WithError(err).Warn("template hot reload disabled")
	}
	renderers := storefront.NewRegistry()
	storefront.RegisterTemplateRenderers(renderers, templates, current.Categories())

	configStore := storefront.NewConfigStore(db, lookup, catalog)
	pages := storefront.NewPages(configStore, catalog, renderers, official, metrics)

	// Tracking and orders
	viewLimiter := newLimiter(ctx, cfg.Tracking.Limiter, redisClient, &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Tracking.ViewsPerWindow,
		WindowDuration:    cfg.Tracking.Window,
	}, "guidepost:views", cfg.Tracking.CleanupInterval)
	orderStore := orders.NewPostgresStore(db)
	tracker := attribution.NewTracker(attribution.NewPostgresViewStore(db), viewLimiter, lookup, orderStore,
		attribution.TrackerConfig{InsertTimeout: cfg.Tracking.InsertTimeout, FailOpen: cfg.Tracking.FailOpen},
		metrics, auditLogger)

	// Commission ledger
	engine := commission.NewEngine(commission.NewPostgresStore(db), resellerStore, commission.Config{
		MaturationWindow:       cfg.Commission.MaturationWindow,
		ReferralRewardBPS:      int(cfg.Commission.ReferralRewardBPS),
		DisableReferralRewards: cfg.Commission.ReferralRewardBPS == 0,
		ReleaseWorkers:         cfg.Commission.ReleaseWorkers,
		ResetWorkers:           cfg.Commission.ResetWorkers,
		Schedule:               commission.DefaultSchedule(),
	}, metrics, auditLogger, logger)

	// Subscription sync
	var subscriptionHandlers *subscription.Handlers
	if cfg.Subscription.ProviderBaseURL != "" {
		provider := subscription.NewHTTPProvider(cfg.Subscription.ProviderBaseURL, cfg.Subscription.ProviderAPIKey, cfg.Subscription.RequestTimeout)
		syncer := subscription.NewSyncer(provider, resellerStore, lookup, subscription.SyncerConfig{
			RequestTimeout: cfg.Subscription.RequestTimeout,
			Retry: subscription.RetryConfig{
				MaxAttempts:       cfg.Subscription.MaxAttempts,
				InitialDelay:      cfg.Subscription.InitialBackoff,
				MaxDelay:          cfg.Subscription.MaxBackoff,
				BackoffMultiplier: 2,
			},
		}, metrics, auditLogger)
		subscriptionHandlers = subscription.NewHandlers(syncer, subscription.NewPostgresEventStore(db), subscription.WebhookConfig{
			Secret:    cfg.Subscription.WebhookSecret,
			Tolerance: cfg.Subscription.WebhookTolerance,
		})
	} else {
		logger.Warn("payment provider not configured; subscription sync and webhooks disabled")
	}

	apiLimiter := newLimiter(ctx, cfg.Tracking.Limiter, redisClient, middleware.DefaultRateLimitConfig(), "guidepost:api", cfg.Tracking.CleanupInterval)

	handler := api.NewRouter(api.RouterConfig{
		Logger:       logger,
		Metrics:      metrics,
		Resolver:     resolver,
		Auth:         middleware.NewAuthMiddleware(auth.NewTokenManager(db), false),
		APILimiter:   apiLimiter,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		ServiceName:  otelServiceName(cfg),
	}, api.Handlers{
		Tenant:       tenant.NewHandlers(signer),
		Attribution:  attribution.NewHandlers(tracker),
		Orders:       orders.NewHandlers(orderStore, tracker, engine),
		Commission:   commission.NewHandlers(engine),
		Storefront:   storefront.NewHandlers(pages, configStore, catalog, auditLogger),
		Subscription: subscriptionHandlers,
		Audit:        audit.NewHandlers(dbAudit),
	})

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Probes and metrics on their own port
	checker := observability.NewHealthChecker(db, redisClient, version)
	if cfg.Tracking.Limiter == "redis" {
		checker.RequireRedis()
	}
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthSrv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, srv, healthSrv)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		cancel()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return conns.Close()
	})

	serve(logger, "api", srv)
	serve(logger, "health", healthSrv)

	logger.WithFields(map[string]interface{}{
		"version": version,
		"addr":    srv.Addr,
		"health":  healthSrv.Addr,
	}).Info("guidepost started")

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
		os.Exit(1)
	}
	logger.Info("guidepost stopped")
}

func serve(logger *observability.Logger, name string, srv *http.Server) {
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, err, name+" server failed")
		}
	}()
}

// newLimiter returns the Redis limiter when selected and available,
// otherwise an in-memory limiter swept until ctx is done
func newLimiter(ctx context.Context, kind string, client *redis.Client, cfg *middleware.RateLimitConfig, prefix string, sweep time.Duration) middleware.Limiter {
	if kind == "redis" && client != nil {
		return middleware.NewDistributedRateLimiter(client, cfg, prefix)
	}
	limiter := middleware.NewRateLimiter(cfg)
	limiter.StartCleanup(ctx, sweep)
	return limiter
}

func loadSeed(path string) (*storefront.Seed, error) {
	if path == "" {
		return storefront.DefaultSeed()
	}
	return storefront.LoadSeed(path)
}

func otelServiceName(cfg *config.Config) string {
	if !cfg.Observability.OTelEnabled {
		return ""
	}
	return cfg.Observability.OTelServiceName
}

func fatal(logger *observability.Logger, err error, msg string) {
	logger.WithError(err).Error(msg)
	os.Exit(1)
}
