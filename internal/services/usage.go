package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/launchpal/launchpal/internal/db/models"
	"github.com/launchpal/launchpal/internal/db/repositories"
	"github.com/launchpal/launchpal/internal/telemetry"
)

// Metered endpoints.
const (
	EndpointProductsCreate    = "products.create"
	EndpointLaunchesSchedule  = "launches.schedule"
	EndpointLaunchesGetMetric = "launches.getMetrics"
	EndpointPlatformsConnect  = "platforms.connect"
)

const defaultCost = 0.01

var endpointCosts = map[string]float64{
	EndpointProductsCreate:    0.10,
	EndpointLaunchesSchedule:  0.05,
	EndpointLaunchesGetMetric: 0.02,
	EndpointPlatformsConnect:  0.01,
}

// CostFor returns the cost charged for one call to endpoint.
func CostFor(endpoint string) float64 {
	if c, ok := endpointCosts[endpoint]; ok {
		return c
	}
	return defaultCost
}

// MonthStart returns local midnight on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// UsageStats summarizes a user's usage over a window.
type UsageStats struct {
	TotalRequests int                          `json:"totalRequests"`
	TotalCost     float64                      `json:"totalCost"`
	Remaining     int                          `json:"remaining"`
	Subscription  string                       `json:"subscription"`
	Limits        models.PlanLimits            `json:"limits"`
	From          time.Time                    `json:"from"`
	To            time.Time                    `json:"to"`
	Endpoints     []repositories.EndpointUsage `json:"endpoints"`
}

// Meter records usage and enforces the monthly request quota.
type Meter struct {
	users UserStore
	usage UsageStore
	now   func() time.Time
}

// NewMeter creates a new Meter
func NewMeter(users UserStore, usage UsageStore) *Meter {
	return &Meter{users: users, usage: usage, now: time.Now}
}

// Track records one call to endpoint at its table cost.
func (m *Meter) Track(ctx context.Context, userID, endpoint string) error {
	return m.TrackWithCost(ctx, userID, endpoint, CostFor(endpoint))
}

// TrackWithCost appends a usage record, then fails with ErrQuotaExceeded if
// the month's request total is over the user's limit. The record that crossed
// the limit stays stored. Concurrent calls are not serialized, so the limit
// can be overshot by in-flight requests.
func (m *Meter) TrackWithCost(ctx context.Context, userID, endpoint string, cost float64) error {
	user, err := m.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	now := m.now()
	rec := &models.UsageRecord{
		UserID:    userID,
		Endpoint:  endpoint,
		Method:    "CALL",
		Requests:  1,
		Cost:      cost,
		Metadata:  models.JSONMap{},
		CreatedAt: now,
	}
	if err := m.usage.Insert(ctx, rec); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	telemetry.UsageRecordsTotal.WithLabelValues(endpoint).Inc()

	totals, err := m.usage.Totals(ctx, userID, MonthStart(now), now.Add(time.Second))
	if err != nil {
		return fmt.Errorf("sum usage: %w", err)
	}
	if totals.Requests > user.MonthlyRequests {
		telemetry.QuotaDenialsTotal.Inc()
		slog.Info("monthly quota exceeded", "user_id", userID, "endpoint", endpoint,
			"requests", totals.Requests, "limit", user.MonthlyRequests)
		return fmt.Errorf("%w: monthly request limit exceeded (%d)", ErrQuotaExceeded, user.MonthlyRequests)
	}
	return nil
}

// Stats aggregates usage in [from, to). Zero bounds default to the current
// month up to now.
func (m *Meter) Stats(ctx context.Context, userID string, from, to time.Time) (*UsageStats, error) {
	user, err := m.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	now := m.now()
	if from.IsZero() {
		from = MonthStart(now)
	}
	if to.IsZero() {
		to = now.Add(time.Second)
	}
	if !to.After(from) {
		return nil, fmt.Errorf("%w: end date must be after start date", ErrValidation)
	}

	totals, err := m.usage.Totals(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("sum usage: %w", err)
	}
	endpoints, err := m.usage.ByEndpoint(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("usage by endpoint: %w", err)
	}

	remaining := user.MonthlyRequests - totals.Requests
	if remaining < 0 {
		remaining = 0
	}
	return &UsageStats{
		TotalRequests: totals.Requests,
		TotalCost:     totals.Cost,
		Remaining:     remaining,
		Subscription:  user.Subscription,
		Limits:        user.Limits(),
		From:          from,
		To:            to,
		Endpoints:     endpoints,
	}, nil
}
