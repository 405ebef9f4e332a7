package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/launchpal/launchpal/internal/db/models"
)

const launchExecutorBatch = 100

// LaunchRunner is the part of the launch service the executor drives.
type LaunchRunner interface {
	DueLaunches(ctx context.Context, limit int) ([]*models.Launch, error)
	ActiveLaunches(ctx context.Context) ([]*models.Launch, error)
	Execute(ctx context.Context, launchID string) error
	Complete(ctx context.Context, launchID string) error
}

// LaunchExecutor activates scheduled launches whose time has come and
// completes active launches once the completion window has passed.
type LaunchExecutor struct {
	launches LaunchRunner
	window   time.Duration
	now      func() time.Time
	*runner
}

// NewLaunchExecutor creates a new LaunchExecutor
func NewLaunchExecutor(launches LaunchRunner, interval, completionWindow time.Duration) *LaunchExecutor {
	if interval <= 0 {
		interval = time.Minute
	}
	if completionWindow <= 0 {
		completionWindow = 24 * time.Hour
	}
	e := &LaunchExecutor{launches: launches, window: completionWindow, now: time.Now}
	e.runner = newRunner("launch_executor", interval, e.RunOnce)
	return e
}

// Start begins the loop.
func (e *LaunchExecutor) Start(ctx context.Context) { e.start(ctx) }

// Stop ends the loop and waits for the current cycle.
func (e *LaunchExecutor) Stop() { e.stop() }

// RunOnce activates every due launch and completes expired active ones. One
// failing launch does not stop the others; their errors are joined.
func (e *LaunchExecutor) RunOnce(ctx context.Context) error {
	var errs []error

	due, err := e.launches.DueLaunches(ctx, launchExecutorBatch)
	if err != nil {
		return fmt.Errorf("list due launches: %w", err)
	}
	for _, l := range due {
		if err := e.launches.Execute(ctx, l.ID); err != nil {
			errs = append(errs, fmt.Errorf("execute launch %s: %w", l.ID, err))
			continue
		}
		slog.Info("launch activated", "launch_id", l.ID, "product_id", l.ProductID)
	}

	active, err := e.launches.ActiveLaunches(ctx)
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("list active launches: %w", err))...)
	}
	cutoff := e.now().Add(-e.window)
	for _, l := range active {
		started := l.ScheduledAt
		if l.StartedAt != nil {
			started = *l.StartedAt
		}
		if started.After(cutoff) {
			continue
		}
		if err := e.launches.Complete(ctx, l.ID); err != nil {
			errs = append(errs, fmt.Errorf("complete launch %s: %w", l.ID, err))
			continue
		}
		slog.Info("launch completed", "launch_id", l.ID)
	}
	return errors.Join(errs...)
}
