package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is one periodic job.
type Task struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run; zero means Interval.
	Timeout time.Duration
	// Immediate runs the task once before the first tick.
	Immediate bool
	Run       func(ctx context.Context) error
}

// Runner drives a fixed set of tasks, each on its own ticker.
type Runner struct {
	tasks  []Task
	logger *slog.Logger
}

// NewRunner validates tasks. A nil logger uses slog.Default.
func NewRunner(logger *slog.Logger, tasks ...Task) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	seen := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if t.Name == "" {
			return nil, errors.New("jobs: task name is required")
		}
		if _, dup := seen[t.Name]; dup {
			return nil, fmt.Errorf("jobs: duplicate task %q", t.Name)
		}
		seen[t.Name] = struct{}{}
		if t.Interval <= 0 {
			return nil, fmt.Errorf("jobs: task %q: interval must be > 0", t.Name)
		}
		if t.Run == nil {
			return nil, fmt.Errorf("jobs: task %q: nil Run", t.Name)
		}
	}
	return &Runner{tasks: tasks, logger: logger}, nil
}

// Run blocks until ctx is cancelled. Task failures are logged and the task
// keeps its schedule; they never stop the runner.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range r.tasks {
		g.Go(func() error {
			r.loop(ctx, t)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) loop(ctx context.Context, t Task) {
	if t.Immediate {
		r.runOnce(ctx, t)
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runOnce(ctx, t)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, t Task) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = t.Interval
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := safeRun(ctx, t.Run)
	switch {
	case err == nil:
		r.logger.Debug("job finished", "job", t.Name, "took", time.Since(start))
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		// shutdown
	default:
		r.logger.Error("job failed", "job", t.Name, "error", err)
	}
}

func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("jobs: panic: %v", rec)
		}
	}()
	return fn(ctx)
}
