package jobs

import (
	"context"
	"log/slog"
	"time"
)

// CodeStore deletes authorization codes that expired before cutoff.
type CodeStore interface {
	DeleteExpiredCodes(ctx context.Context, cutoff time.Time) (int64, error)
}

// CodeSweeper removes expired and consumed OAuth authorization codes.
type CodeSweeper struct {
	codes CodeStore
	grace time.Duration
	now   func() time.Time
	*runner
}

// NewCodeSweeper creates a sweeper that deletes codes expired for longer than grace.
func NewCodeSweeper(codes CodeStore, interval, grace time.Duration) *CodeSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	s := &CodeSweeper{codes: codes, grace: grace, now: time.Now}
	s.runner = newRunner("oauth_code_sweeper", interval, s.RunOnce)
	return s
}

// Start begins the loop.
func (s *CodeSweeper) Start(ctx context.Context) { s.start(ctx) }

// Stop ends the loop and waits for the current cycle.
func (s *CodeSweeper) Stop() { s.stop() }

// RunOnce deletes one batch of expired codes.
func (s *CodeSweeper) RunOnce(ctx context.Context) error {
	n, err := s.codes.DeleteExpiredCodes(ctx, s.now().Add(-s.grace))
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("expired oauth codes deleted", "count", n)
	}
	return nil
}
