package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/meridianvc/dealflow-backend/internal/logger"
)

// Runner executes submit-and-forget background work: alignment recomputes
// after ingestion, activity fan-out, anything whose failure must not surface
// to the request that spawned it.
type Runner struct {
	log     *logger.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewRunner(log *logger.Logger, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Runner{
		log:     log.With("service", "TaskRunner"),
		timeout: timeout,
	}
}

// Submit runs fn on its own goroutine with a fresh timeout context, detached
// from the caller's request lifetime. Panics and errors are logged and
// swallowed.
func (r *Runner) Submit(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("Background task panicked", "task", name, "panic", rec)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		start := time.Now()
		if err := fn(ctx); err != nil {
			r.log.Warn("Background task failed", "task", name, "duration", time.Since(start), "error", err)
			return
		}
		r.log.Debug("Background task finished", "task", name, "duration", time.Since(start))
	}()
}

// Wait blocks until all submitted tasks have finished. Used on shutdown and
// in tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}
