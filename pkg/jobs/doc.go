// Package jobs schedules the ledger and subscription batch work.
//
// Every job is re-runnable: release and sweep only move rows still in their
// source state, the quarterly reset only rewrites tier codes, and the
// reconcile job is an idempotent provider sync per reseller. Overlapping
// runs of the same job are skipped.
//
//	runner := jobs.NewRunner(engine, syncer, registry, jobs.Config{...}, logger)
//	c, err := jobs.NewScheduler(runner, logrusLogger)
//	c.Start()
//	defer c.Stop()
package jobs
