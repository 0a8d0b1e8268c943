package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/guidepost/pkg/audit"
	"github.com/platinummonkey/guidepost/pkg/commission"
	"github.com/platinummonkey/guidepost/pkg/config"
	"github.com/platinummonkey/guidepost/pkg/jobs"
	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/resellers"
	"github.com/platinummonkey/guidepost/pkg/storage/postgres"
	"github.com/platinummonkey/guidepost/pkg/subscription"
)

var (
	runOnce  = flag.String("run-once", "", "Run one job (release, quarterly-reset, reconcile) and exit")
	asOfDate = flag.String("as-of", "", "Evaluate the job as of this date (YYYY-MM-DD, jobs timezone). Only used with --run-once")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).WithField("service", "guidepost-jobs")
	cronLog := logrus.New()
	cronLog.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Observability.LogLevel == observability.DebugLevel {
		cronLog.SetLevel(logrus.DebugLevel)
	}

	loc, err := time.LoadLocation(cfg.Jobs.Timezone)
	if err != nil {
		log.Fatalf("Invalid jobs timezone: %v", err)
	}

	ctx := context.Background()
	conns, err := postgres.NewConnectionManager(ctx, postgres.ConnectionConfig{
		PrimaryURL: cfg.Database.URL,
		MaxConns:   cfg.Database.MaxConns,
		MinConns:   cfg.Database.MinConns,
		Timeout:    cfg.Database.Timeout,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conns.Close()
	db := conns.Primary()

	dbAudit, err := audit.NewDBLogger(db)
	if err != nil {
		log.Fatalf("Failed to create audit logger: %v", err)
	}
	auditLogger := audit.NewMultiLogger(audit.NewLogLogger(logger), dbAudit)

	resellerStore := resellers.NewPostgresService(db)
	engine := commission.NewEngine(commission.NewPostgresStore(db), resellerStore, commission.Config{
		MaturationWindow:       cfg.Commission.MaturationWindow,
		ReferralRewardBPS:      int(cfg.Commission.ReferralRewardBPS),
		DisableReferralRewards: cfg.Commission.ReferralRewardBPS == 0,
		ReleaseWorkers:         cfg.Commission.ReleaseWorkers,
		ResetWorkers:           cfg.Commission.ResetWorkers,
		Schedule:               commission.DefaultSchedule(),
	}, nil, auditLogger, logger)

	var syncer jobs.Reconciler
	if cfg.Subscription.ProviderBaseURL != "" {
		provider := subscription.NewHTTPProvider(cfg.Subscription.ProviderBaseURL, cfg.Subscription.ProviderAPIKey, cfg.Subscription.RequestTimeout)
		syncer = subscription.NewSyncer(provider, resellerStore, nil, subscription.SyncerConfig{
			RequestTimeout: cfg.Subscription.RequestTimeout,
			Retry: subscription.RetryConfig{
				MaxAttempts:       cfg.Subscription.MaxAttempts,
				InitialDelay:      cfg.Subscription.InitialBackoff,
				MaxDelay:          cfg.Subscription.MaxBackoff,
				BackoffMultiplier: 2,
			},
		}, nil, auditLogger)
	}

	runner := jobs.NewRunner(engine, syncer, resellerStore, jobs.Config{
		ReleaseSchedule:   cfg.Jobs.ReleaseSchedule,
		QuarterlySchedule: cfg.Jobs.QuarterlySchedule,
		ReconcileSchedule: cfg.Jobs.ReconcileSchedule,
		Location:          loc,
		JobTimeout:        cfg.Jobs.JobTimeout,
		ReconcileWorkers:  cfg.Jobs.ReconcileWorkers,
	}, nil, logger)

	// Run once mode (for backfills and manual recovery)
	if *runOnce != "" {
		if *asOfDate != "" {
			asOf, err := time.ParseInLocation("2006-01-02", *asOfDate, loc)
			if err != nil {
				log.Fatalf("Invalid date format: %v", err)
			}
			runner.SetClock(func() time.Time { return asOf })
		}
		if err := runner.RunOnce(ctx, *runOnce); err != nil {
			log.Fatalf("Job %s failed: %v", *runOnce, err)
		}
		log.Printf("Job %s completed successfully", *runOnce)
		return
	}

	// Scheduled mode
	c, err := jobs.NewScheduler(runner, cronLog)
	if err != nil {
		log.Fatalf("Failed to schedule jobs: %v", err)
	}
	c.Start()
	logger.WithField("timezone", loc.String()).Info("guidepost jobs started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down gracefully...")

	stopCtx := c.Stop()
	<-stopCtx.Done()

	logger.Info("guidepost jobs stopped")
}
