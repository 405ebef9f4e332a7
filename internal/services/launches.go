package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/launchpal/launchpal/internal/db/models"
	"github.com/launchpal/launchpal/internal/platform"
	"github.com/launchpal/launchpal/internal/telemetry"
)

// ScheduleLaunchInput is the data for a new launch.
type ScheduleLaunchInput struct {
	ProductID   string         `json:"productId"`
	ScheduledAt time.Time      `json:"scheduledAt"`
	Options     map[string]any `json:"options"`
}

func (in *ScheduleLaunchInput) validate() error {
	if strings.TrimSpace(in.ProductID) == "" {
		return fmt.Errorf("%w: productId is required", ErrValidation)
	}
	if in.ScheduledAt.IsZero() {
		return fmt.Errorf("%w: scheduledAt is required", ErrValidation)
	}
	return nil
}

// MetricsRecorder receives every stored metrics snapshot. The analytics
// tracker implements it.
type MetricsRecorder interface {
	Record(ctx context.Context, launch *models.Launch, m *models.LaunchMetric) error
}

// LaunchService runs the launch state machine.
type LaunchService struct {
	launches LaunchStore
	products ProductStore
	creds    *CredentialService
	meter    *Meter
	recorder MetricsRecorder
	now      func() time.Time
}

// NewLaunchService creates a new LaunchService. recorder may be nil.
func NewLaunchService(launches LaunchStore, products ProductStore, creds *CredentialService, meter *Meter, recorder MetricsRecorder) *LaunchService {
	return &LaunchService{
		launches: launches,
		products: products,
		creds:    creds,
		meter:    meter,
		recorder: recorder,
		now:      time.Now,
	}
}

// Schedule meters the call, asks the product's platform to schedule it and
// stores the launch as scheduled.
func (s *LaunchService) Schedule(ctx context.Context, userID string, in ScheduleLaunchInput) (*models.Launch, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.meter.Track(ctx, userID, EndpointLaunchesSchedule); err != nil {
		return nil, err
	}
	product, err := s.ownedProduct(ctx, userID, in.ProductID)
	if err != nil {
		return nil, err
	}
	scheduled, err := s.scheduleOnPlatform(ctx, userID, product, in.ScheduledAt)
	if err != nil {
		return nil, err
	}

	id := scheduled.PlatformLaunchID
	l := &models.Launch{
		UserID:           userID,
		ProductID:        product.ID,
		Platform:         product.Platform,
		PlatformLaunchID: &id,
		ScheduledAt:      scheduled.ScheduledAt,
		Status:           models.LaunchScheduled,
		Options:          models.JSONMap(in.Options),
	}
	if l.Options == nil {
		l.Options = models.JSONMap{}
	}
	if err := s.launches.Create(ctx, l); err != nil {
		slog.Error("launch scheduled on platform but not stored", "user_id", userID,
			"product_id", product.ID, "platform_launch_id", id, "error", err)
		return nil, fmt.Errorf("store launch: %w", err)
	}
	telemetry.LaunchTransitionsTotal.WithLabelValues(models.LaunchScheduled).Inc()
	return l, nil
}

// CreateDraft stores a draft launch without contacting the platform.
func (s *LaunchService) CreateDraft(ctx context.Context, userID string, in ScheduleLaunchInput) (*models.Launch, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	product, err := s.ownedProduct(ctx, userID, in.ProductID)
	if err != nil {
		return nil, err
	}
	l := &models.Launch{
		UserID:      userID,
		ProductID:   product.ID,
		Platform:    product.Platform,
		ScheduledAt: in.ScheduledAt,
		Status:      models.LaunchDraft,
		Options:     models.JSONMap(in.Options),
	}
	if l.Options == nil {
		l.Options = models.JSONMap{}
	}
	if err := s.launches.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("store launch: %w", err)
	}
	telemetry.LaunchTransitionsTotal.WithLabelValues(models.LaunchDraft).Inc()
	return l, nil
}

// ScheduleDraft moves a draft to scheduled through the platform adapter. A
// zero when keeps the draft's date.
func (s *LaunchService) ScheduleDraft(ctx context.Context, userID, id string, when time.Time) (*models.Launch, error) {
	l, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if l.Status != models.LaunchDraft {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.Status, models.LaunchScheduled)
	}
	if err := s.meter.Track(ctx, userID, EndpointLaunchesSchedule); err != nil {
		return nil, err
	}
	if when.IsZero() {
		when = l.ScheduledAt
	}
	product, err := s.ownedProduct(ctx, userID, l.ProductID)
	if err != nil {
		return nil, err
	}
	scheduled, err := s.scheduleOnPlatform(ctx, userID, product, when)
	if err != nil {
		return nil, err
	}

	ok, err := s.launches.MarkScheduled(ctx, l.ID, scheduled.PlatformLaunchID, scheduled.ScheduledAt)
	if err != nil {
		return nil, fmt.Errorf("schedule launch: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: launch is no longer a draft", ErrInvalidTransition)
	}
	telemetry.LaunchTransitionsTotal.WithLabelValues(models.LaunchScheduled).Inc()
	return s.Get(ctx, userID, id)
}

func (s *LaunchService) scheduleOnPlatform(ctx context.Context, userID string, product *models.Product, when time.Time) (*platform.ScheduledLaunch, error) {
	adapter, err := s.creds.ActiveAdapter(ctx, userID, product.Platform)
	if err != nil {
		return nil, err
	}
	if err := adapter.Authenticate(ctx); err != nil {
		return nil, err
	}
	return adapter.ScheduleLaunch(ctx, product.PlatformID, when)
}

func (s *LaunchService) ownedProduct(ctx context.Context, userID, productID string) (*models.Product, error) {
	p, err := s.products.GetForOwner(ctx, productID, userID)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: Product not found", ErrNotFound)
	}
	return p, nil
}

// Get returns a launch owned by userID.
func (s *LaunchService) Get(ctx context.Context, userID, id string) (*models.Launch, error) {
	l, err := s.launches.GetForOwner(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("load launch: %w", err)
	}
	if l == nil {
		return nil, fmt.Errorf("%w: Launch not found", ErrNotFound)
	}
	return l, nil
}

// List returns the user's launches, optionally filtered by status.
func (s *LaunchService) List(ctx context.Context, userID, status string) ([]*models.Launch, error) {
	if status != "" && !models.IsLaunchStatus(status) {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}
	return s.launches.List(ctx, userID, status)
}

// UpdateStatus applies a user-requested status change. Moving a draft to
// scheduled goes through ScheduleDraft so the platform is involved.
func (s *LaunchService) UpdateStatus(ctx context.Context, userID, id, status string) (*models.Launch, error) {
	if !models.IsLaunchStatus(status) {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}
	l, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if l.Status == models.LaunchDraft && status == models.LaunchScheduled {
		return s.ScheduleDraft(ctx, userID, id, time.Time{})
	}
	if err := s.transition(ctx, l, status); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

// Execute activates a scheduled launch. It is called by the launch executor
// job or any external trigger; nothing runs it implicitly.
func (s *LaunchService) Execute(ctx context.Context, launchID string) error {
	return s.transitionByID(ctx, launchID, models.LaunchActive)
}

// Complete marks an active launch completed.
func (s *LaunchService) Complete(ctx context.Context, launchID string) error {
	return s.transitionByID(ctx, launchID, models.LaunchCompleted)
}

// Fail marks a scheduled or active launch failed.
func (s *LaunchService) Fail(ctx context.Context, launchID, reason string) error {
	if err := s.transitionByID(ctx, launchID, models.LaunchFailed); err != nil {
		return err
	}
	slog.Warn("launch failed", "launch_id", launchID, "reason", reason)
	return nil
}

func (s *LaunchService) transitionByID(ctx context.Context, launchID, to string) error {
	l, err := s.launches.GetByID(ctx, launchID)
	if err != nil {
		return fmt.Errorf("load launch: %w", err)
	}
	if l == nil {
		return fmt.Errorf("%w: Launch not found", ErrNotFound)
	}
	return s.transition(ctx, l, to)
}

func (s *LaunchService) transition(ctx context.Context, l *models.Launch, to string) error {
	if !models.CanTransition(l.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.Status, to)
	}
	ok, err := s.launches.Transition(ctx, l.ID, l.Status, to, s.now())
	if err != nil {
		return fmt.Errorf("update launch status: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: launch is no longer %s", ErrInvalidTransition, l.Status)
	}
	telemetry.LaunchTransitionsTotal.WithLabelValues(to).Inc()
	slog.Info("launch status changed", "launch_id", l.ID, "from", l.Status, "to", to)
	l.Status = to
	return nil
}

// GetMetrics meters the call, fetches live metrics from the platform and
// stores a snapshot.
func (s *LaunchService) GetMetrics(ctx context.Context, userID, id string) (*platform.Metrics, error) {
	if err := s.meter.Track(ctx, userID, EndpointLaunchesGetMetric); err != nil {
		return nil, err
	}
	l, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.CollectMetrics(ctx, l)
}

// CollectMetrics fetches and stores metrics for a launch without metering.
// The metrics poller uses it for active launches.
func (s *LaunchService) CollectMetrics(ctx context.Context, l *models.Launch) (*platform.Metrics, error) {
	if l.PlatformLaunchID == nil || *l.PlatformLaunchID == "" {
		return nil, fmt.Errorf("%w: launch has not been scheduled on %s", ErrValidation, l.Platform)
	}
	adapter, err := s.creds.ActiveAdapter(ctx, l.UserID, l.Platform)
	if err != nil {
		return nil, err
	}
	if err := adapter.Authenticate(ctx); err != nil {
		return nil, err
	}
	m, err := adapter.GetLaunchMetrics(ctx, *l.PlatformLaunchID)
	if err != nil {
		return nil, err
	}

	row := &models.LaunchMetric{
		LaunchID:      l.ID,
		Votes:         m.Votes,
		Comments:      m.Comments,
		Rank:          m.Rank,
		Engagement:    m.Engagement,
		CustomMetrics: models.JSONMap{},
		CollectedAt:   s.now(),
	}
	if err := s.launches.InsertMetric(ctx, row); err != nil {
		return nil, fmt.Errorf("store metrics: %w", err)
	}
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, l, row); err != nil {
			slog.Warn("analytics record failed", "launch_id", l.ID, "error", err)
		}
	}
	return m, nil
}

// MetricsHistory returns every stored snapshot for a launch, oldest first.
func (s *LaunchService) MetricsHistory(ctx context.Context, userID, id string) ([]*models.LaunchMetric, error) {
	l, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.launches.ListMetrics(ctx, l.ID)
}

// DueLaunches returns scheduled launches whose time has come.
func (s *LaunchService) DueLaunches(ctx context.Context, limit int) ([]*models.Launch, error) {
	return s.launches.ListDue(ctx, s.now(), limit)
}

// ActiveLaunches returns every active launch across all users.
func (s *LaunchService) ActiveLaunches(ctx context.Context) ([]*models.Launch, error) {
	return s.launches.ListActive(ctx)
}

// Comments returns up to limit comments on a launch's product. The launch
// must belong to userID. Reading comments is not metered.
func (s *LaunchService) Comments(ctx context.Context, userID, id string, limit int) ([]platform.Comment, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrValidation)
	}
	l, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	p, err := s.ownedProduct(ctx, userID, l.ProductID)
	if err != nil {
		return nil, err
	}
	adapter, err := authenticated(ctx, s.creds, userID, l.Platform)
	if err != nil {
		return nil, err
	}
	src, ok := adapter.(platform.CommentSource)
	if !ok {
		return nil, fmt.Errorf("%w: comments are not available for %s", platform.ErrUnsupportedPlatform, l.Platform)
	}
	return src.Comments(ctx, p.PlatformID, limit)
}

// MarketSnapshot is today's leaderboard on a launch's platform together
// with the id the launch's product has on it.
type MarketSnapshot struct {
	PostID   string
	Trending []platform.TrendingProduct
}

// Market fetches today's leaderboard for l, in order.
func (s *LaunchService) Market(ctx context.Context, l *models.Launch) (*MarketSnapshot, error) {
	p, err := s.ownedProduct(ctx, l.UserID, l.ProductID)
	if err != nil {
		return nil, err
	}
	list, err := trending(ctx, s.creds, l.UserID, l.Platform, "day", marketDepth)
	if err != nil {
		return nil, err
	}
	return &MarketSnapshot{PostID: p.PlatformID, Trending: list}, nil
}
