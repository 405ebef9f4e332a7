// Package jobs runs LaunchPal's periodic background work: activating due
// launches, polling metrics for live launches and sweeping expired OAuth codes.
// Each job is a ticker loop started with safego.Go and stopped through Stop or
// context cancellation; RunOnce executes a single cycle synchronously.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/launchpal/launchpal/internal/safego"
	"github.com/launchpal/launchpal/internal/telemetry"
)

// runner is the ticker loop shared by every job.
type runner struct {
	name     string
	interval time.Duration
	cycle    func(ctx context.Context) error

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

func newRunner(name string, interval time.Duration, cycle func(context.Context) error) *runner {
	return &runner{name: name, interval: interval, cycle: cycle}
}

// start launches the loop. It runs one cycle immediately, then on every tick.
// Calling start on a running job is a no-op.
func (r *runner) start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	stop, done := r.stopCh, r.doneCh

	slog.Info("background job started", "job", r.name, "interval", r.interval)
	safego.Go(r.name, func() {
		defer close(done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.runOnce(ctx)
		for {
			select {
			case <-ticker.C:
				r.runOnce(ctx)
			case <-stop:
				slog.Info("background job stopped", "job", r.name)
				return
			case <-ctx.Done():
				slog.Info("background job context cancelled", "job", r.name)
				return
			}
		}
	})
}

// stop signals the loop and waits for the in-flight cycle to finish.
func (r *runner) stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	done := r.doneCh
	r.mu.Unlock()
	<-done
}

func (r *runner) runOnce(ctx context.Context) error {
	err := r.cycle(ctx)
	outcome := "success"
	if err != nil {
		outcome = "error"
		slog.Error("background job cycle failed", "job", r.name, "error", err)
	}
	telemetry.BackgroundJobRunsTotal.WithLabelValues(r.name, outcome).Inc()
	return err
}
