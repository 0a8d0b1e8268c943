// Package async runs background work with panic recovery and per-task
// timeouts.
//
// Run executes synchronously and converts a panic into an error, which is
// what the scheduler wraps every job in:
//
//	err := async.Run(ctx, logger, 10*time.Minute, "release", func(ctx context.Context) error {
//		_, err := engine.ReleaseMatured(ctx, time.Now())
//		return err
//	})
//
// SafeGo is the fire-and-forget form. Batch fans a slice out over a fixed
// number of workers and returns every error:
//
//	errs := async.Batch(ctx, logger, ids, 4, "subscription reconcile", 30*time.Second,
//		func(ctx context.Context, id string) error {
//			_, err := syncer.Sync(ctx, id, subscription.TriggerScheduled)
//			return err
//		})
package async
