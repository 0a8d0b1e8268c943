package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// NewScheduler registers the runner's jobs on a cron scheduler evaluated in
// the runner's timezone. Panics are recovered and overlapping runs skipped.
// An empty schedule disables that job.
func NewScheduler(r *Runner, log *logrus.Logger) (*cron.Cron, error) {
	logger := NewCronLogger(log)
	c := cron.New(
		cron.WithLocation(r.config.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	schedules := map[string]string{
		JobRelease:   r.config.ReleaseSchedule,
		JobQuarterly: r.config.QuarterlySchedule,
		JobReconcile: r.config.ReconcileSchedule,
	}
	for _, name := range r.Jobs() {
		spec := schedules[name]
		if spec == "" {
			continue
		}
		name := name
		if _, err := c.AddFunc(spec, func() {
			if err := r.RunOnce(context.Background(), name); err != nil {
				r.logger.WithError(err).WithField("job", name).Error("scheduled job failed")
			}
		}); err != nil {
			return nil, fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
		}
		r.logger.WithFields(map[string]interface{}{"job": name, "schedule": spec}).Info("job scheduled")
	}
	return c, nil
}
