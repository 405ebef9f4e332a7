package launches

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/launchpal/launchpal/internal/analytics"
	"github.com/launchpal/launchpal/internal/db/models"
	"github.com/launchpal/launchpal/internal/middleware"
	"github.com/launchpal/launchpal/internal/platform"
	"github.com/launchpal/launchpal/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

type fakeLaunches struct {
	launches  map[string]*models.Launch
	metered   int
	market    *services.MarketSnapshot
	marketErr error
}

func newFake() *fakeLaunches {
	return &fakeLaunches{launches: map[string]*models.Launch{
		"l1": {ID: "l1", UserID: "user-1", ProductID: "p1", Status: models.LaunchScheduled},
		"d1": {ID: "d1", UserID: "user-1", ProductID: "p1", Status: models.LaunchDraft},
	}}
}

func (f *fakeLaunches) Schedule(_ context.Context, userID string, in services.ScheduleLaunchInput) (*models.Launch, error) {
	if in.ProductID == "missing" {
		return nil, fmt.Errorf("%w: product missing", services.ErrNotFound)
	}
	return &models.Launch{ID: "new", UserID: userID, ProductID: in.ProductID, ScheduledAt: in.ScheduledAt, Status: models.LaunchScheduled}, nil
}

func (f *fakeLaunches) CreateDraft(_ context.Context, userID string, in services.ScheduleLaunchInput) (*models.Launch, error) {
	return &models.Launch{ID: "draft", UserID: userID, ProductID: in.ProductID, ScheduledAt: in.ScheduledAt, Status: models.LaunchDraft}, nil
}

func (f *fakeLaunches) ScheduleDraft(ctx context.Context, userID, id string, when time.Time) (*models.Launch, error) {
	l, err := f.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if l.Status != models.LaunchDraft {
		return nil, fmt.Errorf("%w: launch is no longer a draft", services.ErrInvalidTransition)
	}
	l.Status, l.ScheduledAt = models.LaunchScheduled, when
	return l, nil
}

func (f *fakeLaunches) Get(_ context.Context, userID, id string) (*models.Launch, error) {
	l, ok := f.launches[id]
	if !ok || l.UserID != userID {
		return nil, fmt.Errorf("%w: launch %s", services.ErrNotFound, id)
	}
	return l, nil
}

func (f *fakeLaunches) List(_ context.Context, _, status string) ([]*models.Launch, error) {
	var out []*models.Launch
	for _, l := range f.launches {
		if status == "" || l.Status == status {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLaunches) UpdateStatus(ctx context.Context, userID, id, status string) (*models.Launch, error) {
	l, err := f.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if l.Status == models.LaunchDraft && status == models.LaunchActive {
		return nil, fmt.Errorf("%w: draft -> active", services.ErrInvalidTransition)
	}
	l.Status = status
	return l, nil
}

func (f *fakeLaunches) GetMetrics(ctx context.Context, userID, id string) (*platform.Metrics, error) {
	if _, err := f.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	f.metered++
	rank := 3
	return &platform.Metrics{Votes: 120, Comments: 15, Rank: &rank, Engagement: 1.5}, nil
}

func (f *fakeLaunches) MetricsHistory(ctx context.Context, userID, id string) ([]*models.LaunchMetric, error) {
	if _, err := f.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *fakeLaunches) Comments(ctx context.Context, userID, id string, limit int) ([]platform.Comment, error) {
	if _, err := f.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	if limit == 0 {
		return nil, nil
	}
	return []platform.Comment{{ID: "c1", Body: fmt.Sprintf("limit %d", limit)}}, nil
}

func (f *fakeLaunches) Market(context.Context, *models.Launch) (*services.MarketSnapshot, error) {
	if f.marketErr != nil {
		return nil, f.marketErr
	}
	if f.market == nil {
		return &services.MarketSnapshot{}, nil
	}
	return f.market, nil
}

func newTracker(t *testing.T, l *models.Launch) *analytics.Tracker {
	t.Helper()
	tr := analytics.NewTracker(analytics.NewMemoryStore())
	start := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	for i, votes := range []int{10, 40, 90} {
		m := &models.LaunchMetric{Votes: votes, Comments: votes / 10, CollectedAt: start.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, tr.Record(context.Background(), l, m))
	}
	return tr
}

func newRouter(f *fakeLaunches, tr Analytics) *gin.Engine {
	h := NewHandlers(f, tr)
	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) { c.Set(middleware.UserIDKey, "user-1") })
	api.POST("/launches", h.Create)
	api.GET("/launches", h.List)
	api.GET("/launches/:id", h.Get)
	api.POST("/launches/:id/status", h.UpdateStatus)
	api.POST("/launches/:id/schedule", h.Schedule)
	api.GET("/launches/:id/metrics", h.Metrics)
	api.GET("/launches/:id/analytics", h.Analytics)
	api.GET("/launches/:id/analytics/export", h.Export)
	api.GET("/launches/:id/comments", h.Comments)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// tests
// ---------------------------------------------------------------------------

func TestCreate(t *testing.T) {
	f := newFake()
	r := newRouter(f, analytics.NewTracker(analytics.NewMemoryStore()))

	w := do(r, http.MethodPost, "/api/launches", `{"productId":"p1","scheduledAt":"2026-04-01T07:01:00.000Z"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var l models.Launch
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &l))
	assert.Equal(t, models.LaunchScheduled, l.Status)
	assert.Equal(t, 7, l.ScheduledAt.Hour())

	w = do(r, http.MethodPost, "/api/launches", `{"productId":"p1","scheduledAt":"2026-04-01T07:01:00Z","draft":true}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"draft"`)

	w = do(r, http.MethodPost, "/api/launches", `{"productId":"missing","scheduledAt":"2026-04-01T07:01:00Z"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/launches", `{"productId":"p1","scheduledAt":"next tuesday"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusAndSchedule(t *testing.T) {
	r := newRouter(newFake(), analytics.NewTracker(analytics.NewMemoryStore()))

	w := do(r, http.MethodPost, "/api/launches/d1/status", `{"status":"active"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/launches/d1/status", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/launches/d1/schedule", `{"scheduledAt":"2026-05-05T08:00:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"scheduled"`)

	w = do(r, http.MethodPost, "/api/launches/d1/schedule", `{"scheduledAt":"2026-05-05T08:00:00Z"}`)
	assert.Equal(t, http.StatusConflict, w.Code, "a scheduled launch cannot be scheduled again")
}

func TestListAndGet(t *testing.T) {
	r := newRouter(newFake(), analytics.NewTracker(analytics.NewMemoryStore()))

	w := do(r, http.MethodGet, "/api/launches?status=draft", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Launch
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "d1", list[0].ID)

	w = do(r, http.MethodGet, "/api/launches?status=failed", "")
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/launches/nope", "").Code)
}

func TestMetrics(t *testing.T) {
	f := newFake()
	r := newRouter(f, analytics.NewTracker(analytics.NewMemoryStore()))

	w := do(r, http.MethodGet, "/api/launches/l1/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"votes":120`)
	assert.Contains(t, w.Body.String(), `"rank":3`)
	assert.Equal(t, 1, f.metered)

	w = do(r, http.MethodGet, "/api/launches/l1/metrics?history=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
	assert.Equal(t, 1, f.metered, "history must not call the platform")
}

func TestAnalytics(t *testing.T) {
	f := newFake()
	r := newRouter(f, newTracker(t, f.launches["l1"]))

	w := do(r, http.MethodGet, "/api/launches/l1/analytics?hoursAhead=2", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report analytics.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 90, report.Votes)
	assert.Len(t, report.Timeline, 3)
	assert.Greater(t, report.Prediction.PredictedVotes, 90)

	assert.Equal(t, analytics.UnrankedPosition, report.Rank)
	assert.Equal(t, "below average", report.Historical.Rating)
	assert.Empty(t, report.Competitors)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/launches/l1/analytics?hoursAhead=-1", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/launches/l1/analytics?includeCompetitors=maybe", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/launches/nope/analytics", "").Code)
}

func TestAnalytics_MarketPosition(t *testing.T) {
	f := newFake()
	f.market = &services.MarketSnapshot{PostID: "ph-1", Trending: []platform.TrendingProduct{
		{ID: "x", Name: "X", Votes: 400},
		{ID: "ph-1", Name: "Mine", Votes: 90},
		{ID: "y", Name: "Y", Votes: 60},
	}}
	r := newRouter(f, newTracker(t, f.launches["l1"]))

	tests := []struct {
		query       string
		competitors int
	}{
		{"", 0},
		{"?includeCompetitors=false", 0},
		{"?includeCompetitors=true", 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := do(r, http.MethodGet, "/api/launches/l1/analytics"+tt.query, "")
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var report analytics.Report
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
			assert.Equal(t, 2, report.Rank)
			assert.Len(t, report.Competitors, tt.competitors)
		})
	}

	f.marketErr = fmt.Errorf("%w: not connected", services.ErrPlatformNotConnected)
	w := do(r, http.MethodGet, "/api/launches/l1/analytics?includeCompetitors=true", "")
	require.Equal(t, http.StatusOK, w.Code, "the report survives a missing leaderboard")
	assert.Contains(t, w.Body.String(), `"rank":999`)
}

func TestComments(t *testing.T) {
	r := newRouter(newFake(), analytics.NewTracker(analytics.NewMemoryStore()))

	w := do(r, http.MethodGet, "/api/launches/l1/comments?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"body":"limit 5"`)

	w = do(r, http.MethodGet, "/api/launches/l1/comments", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/launches/l1/comments?limit=zero", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/launches/nope/comments", "").Code)
}

func TestExport(t *testing.T) {
	f := newFake()
	r := newRouter(f, newTracker(t, f.launches["l1"]))

	w := do(r, http.MethodGet, "/api/launches/l1/analytics/export?format=csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "launch-l1-metrics.csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Len(t, lines, 4)
	assert.Equal(t, "Timestamp,Votes,Comments,Velocity,Engagement", strings.TrimSpace(lines[0]))

	w = do(r, http.MethodGet, "/api/launches/l1/analytics/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/launches/l1/analytics/export?format=xml", "").Code)
}
