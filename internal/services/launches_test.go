package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/launchpal/launchpal/internal/db/models"
	"github.com/launchpal/launchpal/internal/platform"
)

type recordedMetric struct {
	launchID string
	votes    int
}

type fakeRecorder struct{ got []recordedMetric }

func (r *fakeRecorder) Record(_ context.Context, l *models.Launch, m *models.LaunchMetric) error {
	r.got = append(r.got, recordedMetric{launchID: l.ID, votes: m.Votes})
	return nil
}

func scheduledLaunch(t *testing.T, f *fixture) *models.Launch {
	t.Helper()
	f.connect(t)
	p := f.createProduct(t)
	l, err := f.launchS.Schedule(context.Background(), testUserID, ScheduleLaunchInput{
		ProductID:   p.ID,
		ScheduledAt: time.Now().Add(-time.Minute),
		Options:     map[string]any{"hunter": "me"},
	})
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	return l
}

func TestScheduleLaunch(t *testing.T) {
	f := newFixture(t, newTestUser(models.PlanFree))
	l := scheduledLaunch(t, f)

	if l.Status != models.LaunchScheduled || l.PlatformLaunchID == nil || *l.PlatformLaunchID != "ph_launch_1" {
		t.Errorf("Schedule() = %+v", l)
	}
	if len(f.adapter.scheduled) != 1 || f.adapter.scheduled[0] != "ph-post-1" {
		t.Errorf("adapter scheduled %v, want the product's platform id", f.adapter.scheduled)
	}
	var scheduleRecords int
	for _, r := range f.usage.records {
		if r.Endpoint == EndpointLaunchesSchedule {
			scheduleRecords++
		}
	}
	if scheduleRecords != 1 {
		t.Errorf("launches.schedule records = %d, want 1", scheduleRecords)
	}
}

func TestScheduleLaunch_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing product", func(t *testing.T) {
		f := newFixture(t, newTestUser(models.PlanFree))
		f.connect(t)
		_, err := f.launchS.Schedule(ctx, testUserID, ScheduleLaunchInput{ProductID: "nope", ScheduledAt: time.Now()})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("missing date", func(t *testing.T) {
		f := newFixture(t, newTestUser(models.PlanFree))
		_, err := f.launchS.Schedule(ctx, testUserID, ScheduleLaunchInput{ProductID: "p"})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("platform disconnected", func(t *testing.T) {
		f := newFixture(t, newTestUser(models.PlanFree))
		f.connect(t)
		p := f.createProduct(t)
		if err := f.credS.Disconnect(ctx, testUserID, platform.ProductHunt); err != nil {
			t.Fatal(err)
		}
		_, err := f.launchS.Schedule(ctx, testUserID, ScheduleLaunchInput{ProductID: p.ID, ScheduledAt: time.Now()})
		if !errors.Is(err, ErrPlatformNotConnected) {
			t.Errorf("err = %v, want ErrPlatformNotConnected", err)
		}
	})
}

func TestDraftLifecycle(t *testing.T) {
	f := newFixture(t, newTestUser(models.PlanFree))
	f.connect(t)
	p := f.createProduct(t)
	ctx := context.Background()
	when := time.Now().Add(48 * time.Hour)

	before := f.usage.count()
	draft, err := f.launchS.CreateDraft(ctx, testUserID, ScheduleLaunchInput{ProductID: p.ID, ScheduledAt: when})
	if err != nil {
		t.Fatalf("CreateDraft() error = %v", err)
	}
	if draft.Status != models.LaunchDraft || len(f.adapter.scheduled) != 0 || f.usage.count() != before {
		t.Errorf("draft = %+v, adapter calls %d, metered %d", draft, len(f.adapter.scheduled), f.usage.count()-before)
	}

	l, err := f.launchS.UpdateStatus(ctx, testUserID, draft.ID, models.LaunchScheduled)
	if err != nil {
		t.Fatalf("UpdateStatus(scheduled) error = %v", err)
	}
	if l.Status != models.LaunchScheduled || l.PlatformLaunchID == nil || !l.ScheduledAt.Equal(when) {
		t.Errorf("scheduled draft = %+v", l)
	}

	if _, err := f.launchS.ScheduleDraft(ctx, testUserID, draft.ID, time.Time{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ScheduleDraft() on scheduled launch err = %v, want ErrInvalidTransition", err)
	}
}

func TestLaunchTransitions(t *testing.T) {
	tests := []struct {
		name    string
		steps   []string
		wantErr bool
	}{
		{"scheduled to active to completed", []string{models.LaunchActive, models.LaunchCompleted}, false},
		{"scheduled to failed", []string{models.LaunchFailed}, false},
		{"active to failed", []string{models.LaunchActive, models.LaunchFailed}, false},
		{"scheduled to completed", []string{models.LaunchCompleted}, true},
		{"completed is terminal", []string{models.LaunchActive, models.LaunchCompleted, models.LaunchActive}, true},
		{"back to draft", []string{models.LaunchDraft}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, newTestUser(models.PlanFree))
			l := scheduledLaunch(t, f)
			var err error
			for _, s := range tt.steps {
				if _, err = f.launchS.UpdateStatus(context.Background(), testUserID, l.ID, s); err != nil {
					break
				}
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("err = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	f := newFixture(t, newTestUser(models.PlanFree))
	l := scheduledLaunch(t, f)
	if _, err := f.launchS.UpdateStatus(context.Background(), testUserID, l.ID, "paused"); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestExecuteCompleteFail(t *testing.T) {
	f := newFixture(t, newTestUser(models.PlanFree))
	l := scheduledLaunch(t, f)
	ctx := context.Background()

	if err := f.launchS.Execute(ctx, l.ID); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if f.launches.status(l.ID) != models.LaunchActive {
		t.Fatalf("status = %s, want active", f.launches.status(l.ID))
	}
	if err := f.launchS.Execute(ctx, l.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Execute() err = %v, want ErrInvalidTransition", err)
	}
	if err := f.launchS.Complete(ctx, l.ID); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if err := f.launchS.Fail(ctx, l.ID, "late"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fail() after completion err = %v, want ErrInvalidTransition", err)
	}
	if err := f.launchS.Execute(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Execute(missing) err = %v, want ErrNotFound", err)
	}
}

func TestGetMetrics(t *testing.T) {
	f := newFixture(t, newTestUser(models.PlanFree))
	rec := &fakeRecorder{}
	f.launchS = NewLaunchService(f.launches, f.products, f.credS, f.meter, rec)
	l := scheduledLaunch(t, f)
	ctx := context.Background()

	m, err := f.launchS.GetMetrics(ctx, testUserID, l.ID)
	if err != nil {
		t.Fatalf("GetMetrics() error = %v", err)
	}
	if m.Votes != 120 || m.Comments != 15 || m.Engagement != 1.5 {
		t.Errorf("metrics = %+v", m)
	}

	history, err := f.launchS.MetricsHistory(ctx, testUserID, l.ID)
	if err != nil || len(history) != 1 || history[0].Votes != 120 {
		t.Errorf("MetricsHistory() = %+v, %v", history, err)
	}
	if len(rec.got) != 1 || rec.got[0].launchID != l.ID {
		t.Errorf("recorder got %+v", rec.got)
	}

	if _, err := f.launchS.GetMetrics(ctx, testUserID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMetrics(missing) err = %v, want ErrNotFound", err)
	}
}

func TestGetMetrics_PlatformError(t *testing.T) {
	f := newFixture(t, newTestUser(models.PlanFree))
	l := scheduledLaunch(t, f)
	f.adapter.metricsErr = platform.NewRemoteError(platform.ProductHunt, 404, "post not found", nil)

	_, err := f.launchS.GetMetrics(context.Background(), testUserID, l.ID)
	if !errors.Is(err, platform.ErrPlatformAPI) {
		t.Errorf("err = %v, want ErrPlatformAPI", err)
	}
	if len(f.launches.metrics) != 0 {
		t.Error("no snapshot should be stored on failure")
	}
}

func TestCollectMetrics_DraftHasNoPlatformLaunch(t *testing.T) {
	f := newFixture(t, newTestUser(models.PlanFree))
	f.connect(t)
	p := f.createProduct(t)
	draft, err := f.launchS.CreateDraft(context.Background(), testUserID, ScheduleLaunchInput{ProductID: p.ID, ScheduledAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.launchS.CollectMetrics(context.Background(), draft); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestDueAndActiveLaunches(t *testing.T) {
	f := newFixture(t, newTestUser(models.PlanFree))
	l := scheduledLaunch(t, f)
	ctx := context.Background()

	due, err := f.launchS.DueLaunches(ctx, 10)
	if err != nil || len(due) != 1 || due[0].ID != l.ID {
		t.Fatalf("DueLaunches() = %v, %v", due, err)
	}
	if err := f.launchS.Execute(ctx, l.ID); err != nil {
		t.Fatal(err)
	}
	active, err := f.launchS.ActiveLaunches(ctx)
	if err != nil || len(active) != 1 {
		t.Errorf("ActiveLaunches() = %v, %v", active, err)
	}
	if list, _ := f.launchS.List(ctx, testUserID, models.LaunchActive); len(list) != 1 {
		t.Errorf("List(active) = %v", list)
	}
	if _, err := f.launchS.List(ctx, testUserID, "bogus"); !errors.Is(err, ErrValidation) {
		t.Errorf("List(bogus) err = %v, want ErrValidation", err)
	}
}

func TestComments(t *testing.T) {
	f := newFixture(t, newTestUser(models.PlanFree))
	l := scheduledLaunch(t, f)
	f.adapter.comments = []platform.Comment{{ID: "c1", Body: "Nice", Votes: 3}}
	before := f.usage.count()

	got, err := f.launchS.Comments(context.Background(), testUserID, l.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Body != "Nice" {
		t.Errorf("Comments() = %+v", got)
	}
	if f.adapter.commentPostID != "ph-post-1" || f.adapter.commentLimit != 10 {
		t.Errorf("asked for %q/%d, want the product's post", f.adapter.commentPostID, f.adapter.commentLimit)
	}
	if f.usage.count() != before {
		t.Error("comments are not metered")
	}

	if _, err := f.launchS.Comments(context.Background(), "someone-else", l.ID, 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign launch err = %v, want ErrNotFound", err)
	}
	if _, err := f.launchS.Comments(context.Background(), testUserID, l.ID, -1); !errors.Is(err, ErrValidation) {
		t.Errorf("negative limit err = %v, want ErrValidation", err)
	}
}

func TestMarket(t *testing.T) {
	f := newFixture(t, newTestUser(models.PlanFree))
	l := scheduledLaunch(t, f)
	f.adapter.trending = []platform.TrendingProduct{{ID: "other", Votes: 90}, {ID: "ph-post-1", Votes: 40}}

	snap, err := f.launchS.Market(context.Background(), l)
	if err != nil {
		t.Fatal(err)
	}
	if snap.PostID != "ph-post-1" || len(snap.Trending) != 2 {
		t.Errorf("Market() = %+v", snap)
	}
}
