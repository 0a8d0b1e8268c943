package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/guidepost/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Tenant resolution configuration
	Tenant TenantConfig

	// Page view tracking configuration
	Tracking TrackingConfig

	// Commission ledger configuration
	Commission CommissionConfig

	// Payment provider configuration
	Subscription SubscriptionConfig

	// Scheduled job configuration
	Jobs JobsConfig

	// Storefront rendering configuration
	Storefront StorefrontConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL          string
	ReplicaURLs  string // Comma-separated
	MaxConns     int
	MinConns     int
	Timeout      time.Duration
	AutoMigrate  bool
	QueryTimeout time.Duration
}

// RedisConfig holds Redis settings. An empty URL disables Redis.
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// TenantConfig holds white-label resolution settings
type TenantConfig struct {
	// WhiteLabelHostPattern is matched against the request host (port stripped)
	WhiteLabelHostPattern string
	CookieName            string
	CookieSecret          string
	CookieMaxAge          time.Duration
	CookieSecure          bool

	// Reseller lookup cache
	CacheSize int
	CacheTTL  time.Duration

	// Official branding used whenever no reseller applies
	OfficialName    string
	OfficialColor   string
	OfficialLogoURL string
	OfficialEmail   string
	OfficialPhone   string
}

// TrackingConfig holds page view tracking settings
type TrackingConfig struct {
	// Limiter is "memory" or "redis"
	Limiter         string
	ViewsPerWindow  int
	Window          time.Duration
	FailOpen        bool
	InsertTimeout   time.Duration
	CleanupInterval time.Duration
}

// CommissionConfig holds ledger settings
type CommissionConfig struct {
	MaturationWindow  time.Duration
	ReferralRewardBPS int64 // 0 disables referral rewards
	ReleaseWorkers    int
	ResetWorkers      int
}

// SubscriptionConfig holds payment provider settings
type SubscriptionConfig struct {
	ProviderBaseURL  string
	ProviderAPIKey   string
	WebhookSecret    string
	WebhookTolerance time.Duration
	RequestTimeout   time.Duration
	MaxAttempts      int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
}

// JobsConfig holds cron schedules for the background scheduler
type JobsConfig struct {
	ReleaseSchedule   string
	QuarterlySchedule string
	ReconcileSchedule string
	// Timezone the schedules and calendar quarters are evaluated in
	Timezone         string
	JobTimeout       time.Duration
	ReconcileWorkers int
}

// StorefrontConfig holds page rendering settings
type StorefrontConfig struct {
	// TemplateDir overrides the embedded templates; watched for changes when set
	TemplateDir string
	// CatalogSeedPath is a YAML file imported into the catalog tables at startup
	CatalogSeedPath string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Tenant:        loadTenantConfig(),
		Tracking:      loadTrackingConfig(),
		Commission:    loadCommissionConfig(),
		Subscription:  loadSubscriptionConfig(),
		Jobs:          loadJobsConfig(),
		Storefront:    loadStorefrontConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("GUIDEPOST_HOST", "0.0.0.0"),
		Port:            getEnv("GUIDEPOST_PORT", "8080"),
		ReadTimeout:     getEnvDuration("GUIDEPOST_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("GUIDEPOST_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("GUIDEPOST_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("GUIDEPOST_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("GUIDEPOST_MAX_BODY_BYTES", 1<<20),
		HealthPort:      getEnv("GUIDEPOST_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:          getEnv("GUIDEPOST_POSTGRES_URL", ""),
		ReplicaURLs:  getEnv("GUIDEPOST_POSTGRES_REPLICA_URLS", ""),
		MaxConns:     getEnvInt("GUIDEPOST_POSTGRES_MAX_CONNS", 20),
		MinConns:     getEnvInt("GUIDEPOST_POSTGRES_MIN_CONNS", 2),
		Timeout:      getEnvDuration("GUIDEPOST_POSTGRES_TIMEOUT", 10*time.Second),
		AutoMigrate:  getEnvBool("GUIDEPOST_POSTGRES_AUTO_MIGRATE", false),
		QueryTimeout: getEnvDuration("GUIDEPOST_POSTGRES_QUERY_TIMEOUT", 5*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:        getEnv("GUIDEPOST_REDIS_URL", ""),
		Password:   getEnv("GUIDEPOST_REDIS_PASSWORD", ""),
		DB:         getEnvInt("GUIDEPOST_REDIS_DB", 0),
		MaxRetries: getEnvInt("GUIDEPOST_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("GUIDEPOST_REDIS_POOL_SIZE", 10),
	}
}

func loadTenantConfig() TenantConfig {
	return TenantConfig{
		WhiteLabelHostPattern: getEnv("GUIDEPOST_WHITELABEL_HOST_PATTERN", `^guide\.`),
		CookieName:            getEnv("GUIDEPOST_TENANT_COOKIE", "wl_guide"),
		CookieSecret:          getEnv("GUIDEPOST_TENANT_COOKIE_SECRET", ""),
		CookieMaxAge:          getEnvDuration("GUIDEPOST_TENANT_COOKIE_MAX_AGE", 30*24*time.Hour),
		CookieSecure:          getEnvBool("GUIDEPOST_TENANT_COOKIE_SECURE", true),
		CacheSize:             getEnvInt("GUIDEPOST_TENANT_CACHE_SIZE", 1024),
		CacheTTL:              getEnvDuration("GUIDEPOST_TENANT_CACHE_TTL", time.Minute),
		OfficialName:          getEnv("GUIDEPOST_OFFICIAL_NAME", "Guidepost Medical Travel"),
		OfficialColor:         getEnv("GUIDEPOST_OFFICIAL_COLOR", "#0b5cab"),
		OfficialLogoURL:       getEnv("GUIDEPOST_OFFICIAL_LOGO_URL", "/static/logo.svg"),
		OfficialEmail:         getEnv("GUIDEPOST_OFFICIAL_EMAIL", "support@example.com"),
		OfficialPhone:         getEnv("GUIDEPOST_OFFICIAL_PHONE", ""),
	}
}

func loadTrackingConfig() TrackingConfig {
	return TrackingConfig{
		Limiter:         strings.ToLower(getEnv("GUIDEPOST_TRACK_LIMITER", "memory")),
		ViewsPerWindow:  getEnvInt("GUIDEPOST_TRACK_LIMIT", 30),
		Window:          getEnvDuration("GUIDEPOST_TRACK_WINDOW", time.Minute),
		FailOpen:        getEnvBool("GUIDEPOST_TRACK_FAIL_OPEN", true),
		InsertTimeout:   getEnvDuration("GUIDEPOST_TRACK_INSERT_TIMEOUT", 2*time.Second),
		CleanupInterval: getEnvDuration("GUIDEPOST_TRACK_CLEANUP_INTERVAL", 5*time.Minute),
	}
}

func loadCommissionConfig() CommissionConfig {
	return CommissionConfig{
		MaturationWindow:  getEnvDuration("GUIDEPOST_COMMISSION_MATURATION", 14*24*time.Hour),
		ReferralRewardBPS: getEnvInt64("GUIDEPOST_REFERRAL_REWARD_BPS", 1000),
		ReleaseWorkers:    getEnvInt("GUIDEPOST_RELEASE_WORKERS", 4),
		ResetWorkers:      getEnvInt("GUIDEPOST_RESET_WORKERS", 4),
	}
}

func loadSubscriptionConfig() SubscriptionConfig {
	return SubscriptionConfig{
		ProviderBaseURL:  getEnv("GUIDEPOST_PROVIDER_BASE_URL", ""),
		ProviderAPIKey:   getEnv("GUIDEPOST_PROVIDER_API_KEY", ""),
		WebhookSecret:    getEnv("GUIDEPOST_PROVIDER_WEBHOOK_SECRET", ""),
		WebhookTolerance: getEnvDuration("GUIDEPOST_PROVIDER_WEBHOOK_TOLERANCE", 5*time.Minute),
		RequestTimeout:   getEnvDuration("GUIDEPOST_PROVIDER_TIMEOUT", 10*time.Second),
		MaxAttempts:      getEnvInt("GUIDEPOST_PROVIDER_MAX_ATTEMPTS", 3),
		InitialBackoff:   getEnvDuration("GUIDEPOST_PROVIDER_INITIAL_BACKOFF", 500*time.Millisecond),
		MaxBackoff:       getEnvDuration("GUIDEPOST_PROVIDER_MAX_BACKOFF", 5*time.Second),
	}
}

func loadJobsConfig() JobsConfig {
	return JobsConfig{
		ReleaseSchedule:   getEnv("GUIDEPOST_RELEASE_SCHEDULE", "15 * * * *"),
		QuarterlySchedule: getEnv("GUIDEPOST_QUARTERLY_SCHEDULE", "30 0 1 1,4,7,10 *"),
		ReconcileSchedule: getEnv("GUIDEPOST_RECONCILE_SCHEDULE", "0 4 * * *"),
		Timezone:          getEnv("GUIDEPOST_JOBS_TIMEZONE", "Asia/Tokyo"),
		JobTimeout:        getEnvDuration("GUIDEPOST_JOB_TIMEOUT", 30*time.Minute),
		ReconcileWorkers:  getEnvInt("GUIDEPOST_RECONCILE_WORKERS", 4),
	}
}

func loadStorefrontConfig() StorefrontConfig {
	return StorefrontConfig{
		TemplateDir:     getEnv("GUIDEPOST_TEMPLATE_DIR", ""),
		CatalogSeedPath: getEnv("GUIDEPOST_CATALOG_SEED", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	cfg := ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("GUIDEPOST_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("GUIDEPOST_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("GUIDEPOST_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("GUIDEPOST_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("GUIDEPOST_OTEL_SERVICE_NAME", "guidepost"),
		OTelServiceVersion: getEnv("GUIDEPOST_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("GUIDEPOST_OTEL_INSECURE", true),
	}

	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if _, err := regexp.Compile(c.Tenant.WhiteLabelHostPattern); err != nil {
		return fmt.Errorf("invalid white-label host pattern: %w", err)
	}
	if len(c.Tenant.CookieSecret) < 32 {
		return fmt.Errorf("tenant cookie secret must be at least 32 bytes")
	}
	if c.Tenant.CookieName == "" {
		return fmt.Errorf("tenant cookie name is required")
	}

	switch c.Tracking.Limiter {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL is required for the redis tracking limiter")
		}
	default:
		return fmt.Errorf("invalid tracking limiter: %s (must be memory or redis)", c.Tracking.Limiter)
	}
	if c.Tracking.ViewsPerWindow <= 0 || c.Tracking.Window <= 0 {
		return fmt.Errorf("tracking limit and window must be positive")
	}

	if c.Commission.MaturationWindow <= 0 {
		return fmt.Errorf("commission maturation window must be positive")
	}
	if c.Commission.ReferralRewardBPS < 0 || c.Commission.ReferralRewardBPS > 10000 {
		return fmt.Errorf("referral reward must be between 0 and 10000 basis points")
	}

	if c.Subscription.MaxAttempts < 1 {
		return fmt.Errorf("provider max attempts must be at least 1")
	}

	if _, err := time.LoadLocation(c.Jobs.Timezone); err != nil {
		return fmt.Errorf("invalid jobs timezone: %w", err)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
