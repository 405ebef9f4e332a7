package jobs

import (
	"context"
	"log/slog"
	"time"
)

// AuditStore deletes audit entries older than cutoff.
type AuditStore interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditPruner enforces the audit retention period.
type AuditPruner struct {
	store     AuditStore
	retention time.Duration
	now       func() time.Time
	*runner
}

// NewAuditPruner creates a pruner that keeps retention worth of entries.
func NewAuditPruner(store AuditStore, interval, retention time.Duration) *AuditPruner {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	p := &AuditPruner{store: store, retention: retention, now: time.Now}
	p.runner = newRunner("audit_pruner", interval, p.RunOnce)
	return p
}

// Start begins the loop.
func (p *AuditPruner) Start(ctx context.Context) { p.start(ctx) }

// Stop ends the loop and waits for the current cycle.
func (p *AuditPruner) Stop() { p.stop() }

// RunOnce deletes entries past retention.
func (p *AuditPruner) RunOnce(ctx context.Context) error {
	n, err := p.store.DeleteBefore(ctx, p.now().Add(-p.retention))
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("expired audit entries deleted", "count", n)
	}
	return nil
}
