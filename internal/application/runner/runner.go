// Package runner supervises the long-lived background loops of the service:
// capture polling, drift scanning and drop-list refresh.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ahrav/aura-radar/pkg/common/logger"
)

// DefaultGrace bounds how long Stop waits for tasks to return.
const DefaultGrace = 5 * time.Second

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("runner already started")

// Task is a single long-lived loop. Names must be unique within a group.
// Run must return promptly once its context is canceled.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskResult records how one task ended.
type TaskResult struct {
	Name        string
	Err         error
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
}

// StopReport is the outcome of Stop.
type StopReport struct {
	Completed []TaskResult
	// TimedOut lists tasks still running when the grace period ended.
	TimedOut []string
}

// Clean reports whether every task stopped in time without error.
func (r StopReport) Clean() bool {
	if len(r.TimedOut) > 0 {
		return false
	}
	for _, res := range r.Completed {
		if res.Err != nil {
			return false
		}
	}
	return true
}

// Group runs tasks concurrently and stops them cooperatively.
type Group struct {
	tasks  []Task
	logger *logger.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    map[string]chan struct{}
	results map[string]TaskResult
}

// NewGroup creates a group for tasks. Nothing runs until Start.
func NewGroup(log *logger.Logger, tasks ...Task) *Group {
	return &Group{
		tasks:   tasks,
		logger:  log.With("component", "runner"),
		done:    make(map[string]chan struct{}, len(tasks)),
		results: make(map[string]TaskResult, len(tasks)),
	}
}

// Start launches every task in its own goroutine under a context derived
// from ctx.
func (g *Group) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return ErrAlreadyStarted
	}
	g.started = true

	ctx, g.cancel = context.WithCancel(ctx)
	for _, task := range g.tasks {
		done := make(chan struct{})
		g.done[task.Name] = done
		go g.run(ctx, task, done)
	}

	g.logger.Info(ctx, "background tasks started", "tasks", len(g.tasks))
	return nil
}

func (g *Group) run(ctx context.Context, task Task, done chan struct{}) {
	defer close(done)

	res := TaskResult{Name: task.Name, StartedAt: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("task %s panicked: %v", task.Name, r)
			g.logger.Error(ctx, "background task panicked", "task", task.Name, "panic", r)
		}
		res.CompletedAt = time.Now()
		res.Duration = res.CompletedAt.Sub(res.StartedAt)

		g.mu.Lock()
		g.results[task.Name] = res
		g.mu.Unlock()
	}()

	if err := task.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		res.Err = fmt.Errorf("task %s failed: %w", task.Name, err)
		g.logger.Error(ctx, "background task failed", "task", task.Name, "error", err)
	}
}

// Stop cancels every task and waits up to grace for them to return. Tasks
// that miss the deadline are reported, not abandoned silently.
func (g *Group) Stop(grace time.Duration) StopReport {
	if grace <= 0 {
		grace = DefaultGrace
	}

	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return StopReport{}
	}
	g.cancel()
	done := make(map[string]chan struct{}, len(g.done))
	for name, ch := range g.done {
		done[name] = ch
	}
	g.mu.Unlock()

	deadline := time.NewTimer(grace)
	defer deadline.Stop()

	var report StopReport
	for _, task := range g.tasks {
		select {
		case <-done[task.Name]:
		case <-deadline.C:
			// Drain what finished meanwhile, report the rest.
			for _, rest := range g.tasks {
				select {
				case <-done[rest.Name]:
				default:
					report.TimedOut = append(report.TimedOut, rest.Name)
				}
			}
			return g.finish(report)
		}
	}
	return g.finish(report)
}

func (g *Group) finish(report StopReport) StopReport {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, task := range g.tasks {
		if res, ok := g.results[task.Name]; ok {
			report.Completed = append(report.Completed, res)
		}
	}

	ctx := context.Background()
	if len(report.TimedOut) > 0 {
		g.logger.Warn(ctx, "background tasks did not stop within grace period", "tasks", report.TimedOut)
	} else {
		g.logger.Info(ctx, "background tasks stopped", "tasks", len(report.Completed))
	}
	return report
}
