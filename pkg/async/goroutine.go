package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/platinummonkey/guidepost/pkg/observability"
)

// PanicError is returned by Run when the task panicked
type PanicError struct {
	Task  string
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Task, e.Value)
}

// Run executes fn with a timeout derived from ctx. A panic is logged with
// its stack and returned as *PanicError.
func Run(ctx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) (err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			perr := &PanicError{Task: taskName, Value: r, Stack: string(debug.Stack())}
			logger.WithFields(map[string]interface{}{
				"task":  taskName,
				"panic": r,
				"stack": perr.Stack,
			}).Error("PANIC in background task")
			err = perr
		}
	}()
	return fn(ctx)
}

// SafeGo runs fn in a goroutine under Run. Errors are logged, never
// returned.
//
// Example:
//
//	async.SafeGo(ctx, logger, 5*time.Second, "cache warm", func(ctx context.Context) error {
//		return cache.Warm(ctx)
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		if err := Run(parentCtx, logger, timeout, taskName, fn); err != nil {
			logger.WithError(err).WithField("task", taskName).Warn("background task failed")
		}
	}()
}

// Batch processes items with at most workers concurrent calls, each under
// Run with its own timeout. It waits for every item and returns all errors.
// Items not yet started when ctx is done fail with ctx.Err().
func Batch[T any](ctx context.Context, logger *observability.Logger, items []T, workers int, taskName string, timeout time.Duration,
	fn func(context.Context, T) error) []error {
	if workers < 1 {
		workers = 1
	}

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	addErr := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	sem := make(chan struct{}, workers)
	for _, item := range items {
		select {
		case <-ctx.Done():
			addErr(ctx.Err())
			continue
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(item T) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := Run(ctx, logger, timeout, taskName, func(ctx context.Context) error {
				return fn(ctx, item)
			}); err != nil {
				addErr(err)
			}
		}(item)
	}
	wg.Wait()
	return errs
}
