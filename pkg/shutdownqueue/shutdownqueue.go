// Package shutdownqueue provides a process-wide, init()-initialized
// LIFO shutdown queue for cleanup tasks.
//
// Register named tasks anywhere via Add, and drain them explicitly at the
// end of main with:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	defer shutdownqueue.Shutdown(ctx) // or linter-friendly wrapper
//
// Tasks run once, in reverse order of registration, and each run is logged
// with its name and duration. Panics are recovered. Shutdown is idempotent
// and returns an aggregated error via errors.Join.
package shutdownqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Task is a shutdown function. It should honor ctx and return an error
// if it can't finish (or ctx is canceled).
type Task func(ctx context.Context) error

type entry struct {
	name string
	task Task
}

type queue struct {
	mu      sync.Mutex
	entries []entry
	closed  bool
}

var (
	q         *queue
	onceSetup sync.Once
)

func init() {
	onceSetup.Do(func() {
		q = &queue{entries: make([]entry, 0, 8)}
	})
}

// Add registers a task under name to be run on Shutdown, in LIFO order.
// Safe to call from any goroutine, including in init().
// If t is nil or shutdown has already started, Add does nothing.
func Add(name string, t Task) {
	if t == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		slog.Warn("shutdown task registered too late", "task", name)
		return
	}

	q.entries = append(q.entries, entry{name: name, task: t})
}

// Shutdown drains all registered tasks in LIFO order.
// It is safe to call multiple times; after the first complete (or partial) run,
// subsequent calls are no-ops.
//
// If ctx is canceled or times out mid-drain, Shutdown stops early and returns
// an error that includes both the context error and any task errors so far,
// joined with errors.Join. Task errors are prefixed with the task name.
func Shutdown(ctx context.Context) error {
	// Atomically take ownership of tasks and mark closed.
	q.mu.Lock()

	if q.closed && len(q.entries) == 0 {
		q.mu.Unlock()

		return nil
	}

	q.closed = true

	entries := q.entries

	q.entries = nil

	q.mu.Unlock()

	var errs []error

	for i := len(entries) - 1; i >= 0; i-- {
		select {
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("shutdown canceled before %q: %w", entries[i].name, ctx.Err()))

			return errors.Join(errs...)
		default:
		}

		err := run(ctx, entries[i])
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func run(ctx context.Context, e entry) (err error) {
	start := time.Now()

	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("panic in shutdown task %q: %v", e.name, r)
		}

		if err != nil {
			slog.Error("shutdown task failed", "task", e.name, "took", time.Since(start), "error", err)
			return
		}

		slog.Info("shutdown task done", "task", e.name, "took", time.Since(start))
	}()

	err = e.task(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", e.name, err)
	}

	return nil
}
