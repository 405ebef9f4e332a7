package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/launchpal/launchpal/internal/db/models"
	"github.com/launchpal/launchpal/internal/platform"
)

// MetricsCollector fetches and stores metrics for a launch without metering.
type MetricsCollector interface {
	ActiveLaunches(ctx context.Context) ([]*models.Launch, error)
	CollectMetrics(ctx context.Context, l *models.Launch) (*platform.Metrics, error)
}

// MetricsPoller snapshots metrics of every active launch.
type MetricsPoller struct {
	launches MetricsCollector
	*runner
}

// NewMetricsPoller creates a new MetricsPoller
func NewMetricsPoller(launches MetricsCollector, interval time.Duration) *MetricsPoller {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	p := &MetricsPoller{launches: launches}
	p.runner = newRunner("metrics_poller", interval, p.RunOnce)
	return p
}

// Start begins the loop.
func (p *MetricsPoller) Start(ctx context.Context) { p.start(ctx) }

// Stop ends the loop and waits for the current cycle.
func (p *MetricsPoller) Stop() { p.stop() }

// RunOnce collects metrics for all active launches.
func (p *MetricsPoller) RunOnce(ctx context.Context) error {
	active, err := p.launches.ActiveLaunches(ctx)
	if err != nil {
		return fmt.Errorf("list active launches: %w", err)
	}
	var errs []error
	for _, l := range active {
		if l.PlatformLaunchID == nil {
			continue
		}
		if _, err := p.launches.CollectMetrics(ctx, l); err != nil {
			errs = append(errs, fmt.Errorf("collect metrics for launch %s: %w", l.ID, err))
		}
	}
	return errors.Join(errs...)
}
