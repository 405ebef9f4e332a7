package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/launchpal/launchpal/internal/db/models"
	"github.com/launchpal/launchpal/internal/platform"
	"github.com/launchpal/launchpal/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

type fakeLaunches struct {
	mu         sync.Mutex
	due        []*models.Launch
	active     []*models.Launch
	dueErr     error
	failIDs    map[string]bool
	executed   []string
	completed  []string
	collected  []string
	collectErr error
}

func (f *fakeLaunches) DueLaunches(context.Context, int) ([]*models.Launch, error) {
	return f.due, f.dueErr
}

func (f *fakeLaunches) ActiveLaunches(context.Context) ([]*models.Launch, error) {
	return f.active, nil
}

func (f *fakeLaunches) Execute(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[id] {
		return errors.New("platform down")
	}
	f.executed = append(f.executed, id)
	return nil
}

func (f *fakeLaunches) Complete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeLaunches) CollectMetrics(_ context.Context, l *models.Launch) (*platform.Metrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collectErr != nil {
		return nil, f.collectErr
	}
	f.collected = append(f.collected, l.ID)
	return &platform.Metrics{}, nil
}

func (f *fakeLaunches) executedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.executed)
}

func ptr[T any](v T) *T { return &v }

// ---------------------------------------------------------------------------
// LaunchExecutor
// ---------------------------------------------------------------------------

func TestLaunchExecutor_RunOnce(t *testing.T) {
	now := time.Date(2026, 5, 5, 12, 0, 0, 0, time.UTC)
	f := &fakeLaunches{
		due: []*models.Launch{{ID: "due-1"}, {ID: "due-2"}, {ID: "due-bad"}},
		active: []*models.Launch{
			{ID: "old", StartedAt: ptr(now.Add(-25 * time.Hour))},
			{ID: "fresh", StartedAt: ptr(now.Add(-time.Hour))},
			{ID: "no-start", ScheduledAt: now.Add(-48 * time.Hour)},
		},
		failIDs: map[string]bool{"due-bad": true},
	}
	e := NewLaunchExecutor(f, time.Minute, 24*time.Hour)
	e.now = func() time.Time { return now }

	err := e.RunOnce(context.Background())
	if err == nil {
		t.Fatal("RunOnce() should report the failed launch")
	}
	if len(f.executed) != 2 {
		t.Errorf("executed = %v, want due-1 and due-2", f.executed)
	}
	if len(f.completed) != 2 || f.completed[0] != "old" || f.completed[1] != "no-start" {
		t.Errorf("completed = %v, want [old no-start]", f.completed)
	}
}

func TestLaunchExecutor_ListError(t *testing.T) {
	f := &fakeLaunches{dueErr: errors.New("db down")}
	e := NewLaunchExecutor(f, 0, 0)
	if err := e.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if e.interval != time.Minute || e.window != 24*time.Hour {
		t.Errorf("defaults = %v, %v", e.interval, e.window)
	}
}

func TestLaunchExecutor_StartStop(t *testing.T) {
	f := &fakeLaunches{due: []*models.Launch{{ID: "due-1"}}}
	e := NewLaunchExecutor(f, 10*time.Millisecond, time.Hour)
	before := testutil.ToFloat64(telemetry.BackgroundJobRunsTotal.WithLabelValues("launch_executor", "success"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	e.Start(ctx) // second start is a no-op

	deadline := time.Now().Add(2 * time.Second)
	for f.executedCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	e.Stop()
	e.Stop()

	if f.executedCount() < 2 {
		t.Fatalf("executed %d times, want at least 2", f.executedCount())
	}
	after := testutil.ToFloat64(telemetry.BackgroundJobRunsTotal.WithLabelValues("launch_executor", "success"))
	if after-before < 2 {
		t.Errorf("job run metric delta = %v, want >= 2", after-before)
	}
	stopped := f.executedCount()
	time.Sleep(30 * time.Millisecond)
	if f.executedCount() != stopped {
		t.Error("job kept running after Stop")
	}
}

// ---------------------------------------------------------------------------
// MetricsPoller
// ---------------------------------------------------------------------------

func TestMetricsPoller_RunOnce(t *testing.T) {
	f := &fakeLaunches{active: []*models.Launch{
		{ID: "a", PlatformLaunchID: ptr("ph_1")},
		{ID: "b"},
		{ID: "c", PlatformLaunchID: ptr("ph_2")},
	}}
	p := NewMetricsPoller(f, 0)
	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(f.collected) != 2 {
		t.Errorf("collected = %v, want launches with a platform id", f.collected)
	}
	if p.interval != 30*time.Minute {
		t.Errorf("default interval = %v", p.interval)
	}

	f.collectErr = errors.New("rate limited")
	if err := p.RunOnce(context.Background()); err == nil {
		t.Error("collection errors should be reported")
	}
}

// ---------------------------------------------------------------------------
// CodeSweeper
// ---------------------------------------------------------------------------

type fakeCodes struct {
	cutoff time.Time
	n      int64
}

func (f *fakeCodes) DeleteExpiredCodes(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.n, nil
}

func TestCodeSweeper_RunOnce(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	codes := &fakeCodes{n: 3}
	s := NewCodeSweeper(codes, 0, time.Hour)
	s.now = func() time.Time { return now }

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !codes.cutoff.Equal(now.Add(-time.Hour)) {
		t.Errorf("cutoff = %v", codes.cutoff)
	}
}

// ---------------------------------------------------------------------------
// AuditPruner
// ---------------------------------------------------------------------------

type fakeAudit struct {
	cutoff time.Time
	err    error
}

func (f *fakeAudit) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 2, f.err
}

func TestAuditPruner_RunOnce(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeAudit{}
	p := NewAuditPruner(store, 0, 30*24*time.Hour)
	p.now = func() time.Time { return now }

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if want := now.AddDate(0, 0, -30); !store.cutoff.Equal(want) {
		t.Errorf("cutoff = %v, want %v", store.cutoff, want)
	}

	store.err = errors.New("db down")
	if err := p.RunOnce(context.Background()); err == nil {
		t.Error("expected store error to propagate")
	}
}
