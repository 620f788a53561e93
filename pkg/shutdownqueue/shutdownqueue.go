// Package shutdownqueue runs cleanup tasks in LIFO order at process exit.
//
// A Queue is safe for concurrent use. The package-level Add and Shutdown
// operate on a process-wide default queue so resources can register their
// cleanup where they are created:
//
//	defer func() {
//		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//		defer cancel()
//		_ = shutdownqueue.Shutdown(ctx)
//	}()
//
// Tasks run once. Panics are recovered and reported as errors. Shutdown is
// idempotent and returns an aggregated error via errors.Join.
package shutdownqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Task is a shutdown function. It should honor ctx and return an error
// if it can't finish (or ctx is canceled).
type Task func(ctx context.Context) error

type namedTask struct {
	name string
	run  Task
}

// Queue holds cleanup tasks until Shutdown drains them.
type Queue struct {
	mu     sync.Mutex
	tasks  []namedTask
	closed bool
	logger *slog.Logger
}

// New returns an empty queue. A nil logger falls back to slog.Default at
// drain time.
func New(logger *slog.Logger) *Queue {
	return &Queue{tasks: make([]namedTask, 0, 8), logger: logger}
}

var defaultQueue = New(nil)

// Add registers a named task on the default queue.
func Add(name string, t Task) {
	defaultQueue.Add(name, t)
}

// Shutdown drains the default queue.
func Shutdown(ctx context.Context) error {
	return defaultQueue.Shutdown(ctx)
}

// Add registers a task to be run on Shutdown, in LIFO order.
// If t is nil or shutdown has already started, Add does nothing.
func (q *Queue) Add(name string, t Task) {
	if t == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.tasks = append(q.tasks, namedTask{name: name, run: t})
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.tasks)
}

// Shutdown drains all registered tasks in LIFO order. Calls after the first
// one are no-ops.
//
// If ctx is canceled or times out mid-drain, Shutdown stops early and returns
// the context error joined with any task errors so far.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()

		return nil
	}

	q.closed = true
	tasks := q.tasks
	q.tasks = nil

	q.mu.Unlock()

	logger := q.logger
	if logger == nil {
		logger = slog.Default()
	}

	var errs []error

	for i := len(tasks) - 1; i >= 0; i-- {
		err := ctx.Err()
		if err != nil {
			errs = append(errs, fmt.Errorf("shutdown canceled before %q: %w", tasks[i].name, err))

			return errors.Join(errs...)
		}

		logger.Info("shutdown task", "task", tasks[i].name)

		err = runTask(ctx, tasks[i])
		if err != nil {
			logger.Error("shutdown task failed", "task", tasks[i].name, "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func runTask(ctx context.Context, t namedTask) (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("panic in shutdown task %q: %v", t.name, r)
		}
	}()

	err = t.run(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", t.name, err)
	}

	return nil
}
