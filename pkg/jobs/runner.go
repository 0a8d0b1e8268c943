package jobs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/platinummonkey/guidepost/pkg/async"
	"github.com/platinummonkey/guidepost/pkg/commission"
	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/subscription"
)

// Job names accepted by RunOnce
const (
	JobRelease   = "release"
	JobQuarterly = "quarterly-reset"
	JobReconcile = "reconcile"
)

// Ledger is the commission engine surface the jobs drive
type Ledger interface {
	ReleaseMatured(ctx context.Context, now time.Time) (commission.ReleaseReport, error)
	SweepPending(ctx context.Context) (int, error)
	ResetQuarterlyTiers(ctx context.Context, now time.Time) (commission.ResetReport, error)
}

// Reconciler syncs one reseller's subscription
type Reconciler interface {
	Sync(ctx context.Context, resellerID string, trigger subscription.Trigger) (*subscription.Result, error)
}

// Lister enumerates resellers
type Lister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// Config holds schedules and limits
type Config struct {
	ReleaseSchedule   string
	QuarterlySchedule string
	ReconcileSchedule string
	Location          *time.Location
	JobTimeout        time.Duration
	ReconcileWorkers  int
}

// Runner executes the batch jobs. Each method is safe to run by hand.
type Runner struct {
	ledger   Ledger
	syncer   Reconciler
	lister   Lister
	config   Config
	logger   *observability.Logger
	metrics  *observability.Metrics
	now      func() time.Time
	perCall  time.Duration
	jobNames map[string]func(context.Context) error
}

// NewRunner creates a runner. syncer may be nil when no provider is
// configured; the reconcile job is then not registered.
func NewRunner(ledger Ledger, syncer Reconciler, lister Lister, config Config, metrics *observability.Metrics, logger *observability.Logger) *Runner {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 30 * time.Minute
	}
	if config.ReconcileWorkers < 1 {
		config.ReconcileWorkers = 4
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	r := &Runner{
		ledger:  ledger,
		syncer:  syncer,
		lister:  lister,
		config:  config,
		logger:  logger.WithField("component", "jobs"),
		metrics: metrics,
		now:     time.Now,
		perCall: 30 * time.Second,
	}
	r.jobNames = map[string]func(context.Context) error{
		JobRelease:   r.Release,
		JobQuarterly: r.QuarterlyReset,
	}
	if syncer != nil && lister != nil {
		r.jobNames[JobReconcile] = r.Reconcile
	}
	return r
}

// SetClock overrides the evaluation time, for backfills
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// Jobs lists the registered job names
func (r *Runner) Jobs() []string {
	names := make([]string, 0, len(r.jobNames))
	for name := range r.jobNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunOnce runs the named job under the job timeout
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	fn, ok := r.jobNames[name]
	if !ok {
		return fmt.Errorf("unknown job %q (known: %v)", name, r.Jobs())
	}
	return async.Run(ctx, r.logger, r.config.JobTimeout, name, fn)
}

// Release calculates any pending completed orders the request path missed,
// then releases matured commissions
func (r *Runner) Release(ctx context.Context) error {
	swept, err := r.ledger.SweepPending(ctx)
	if err != nil {
		r.metrics.RecordBatchError("sweep")
		r.logger.WithError(err).Error("pending sweep failed")
	}

	report, relErr := r.ledger.ReleaseMatured(ctx, r.now().In(r.config.Location))
	r.logger.WithFields(map[string]interface{}{
		"swept":       swept,
		"resellers":   report.Resellers,
		"commissions": report.Commissions,
		"rewards":     report.Rewards,
		"amount_yen":  report.Amount,
		"failures":    report.Failures,
	}).Info("release job finished")
	if relErr != nil {
		return fmt.Errorf("release failed: %w", relErr)
	}
	return err
}

// QuarterlyReset recomputes tier codes from the previous calendar quarter
// in the configured timezone
func (r *Runner) QuarterlyReset(ctx context.Context) error {
	report, err := r.ledger.ResetQuarterlyTiers(ctx, r.now().In(r.config.Location))
	r.logger.WithFields(map[string]interface{}{
		"resellers": report.Resellers,
		"changed":   report.Changed,
		"failures":  report.Failures,
	}).Info("quarterly tier reset finished")
	if err != nil {
		return fmt.Errorf("quarterly reset failed: %w", err)
	}
	return nil
}

// Reconcile re-syncs every reseller with the provider, so a lost webhook
// is repaired within one schedule period
func (r *Runner) Reconcile(ctx context.Context) error {
	if r.syncer == nil || r.lister == nil {
		return nil
	}
	ids, err := r.lister.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list resellers: %w", err)
	}
	errs := async.Batch(ctx, r.logger, ids, r.config.ReconcileWorkers, "subscription reconcile", r.perCall,
		func(ctx context.Context, id string) error {
			if _, err := r.syncer.Sync(ctx, id, subscription.TriggerScheduled); err != nil {
				return fmt.Errorf("reseller %s: %w", id, err)
			}
			return nil
		})
	for _, e := range errs {
		r.metrics.RecordBatchError("reconcile")
		r.logger.WithError(e).Warn("subscription reconcile failed for reseller")
	}
	r.logger.WithFields(map[string]interface{}{
		"resellers": len(ids),
		"failures":  len(errs),
	}).Info("subscription reconcile finished")
	return nil
}
