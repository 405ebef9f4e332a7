package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/launchpal/launchpal/internal/db/models"
)

// EndpointUsage is the per-endpoint breakdown of a usage window.
type EndpointUsage struct {
	Endpoint string  `db:"endpoint" json:"endpoint"`
	Requests int     `db:"requests" json:"requests"`
	Cost     float64 `db:"cost" json:"cost"`
}

// UsageRepository appends and aggregates usage records
type UsageRepository struct {
	db *sqlx.DB
}

// NewUsageRepository creates a new UsageRepository
func NewUsageRepository(db *sqlx.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Insert appends a usage record.
func (r *UsageRepository) Insert(ctx context.Context, rec *models.UsageRecord) error {
	rec.ID = uuid.New().String()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO usage_records (id, user_id, endpoint, method, requests, cost, metadata, created_at)
		VALUES (:id, :user_id, :endpoint, :method, :requests, :cost, :metadata, :created_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, rec)
	return err
}

// Totals sums requests and cost for records created in [from, to).
func (r *UsageRepository) Totals(ctx context.Context, userID string, from, to time.Time) (models.UsageTotals, error) {
	var totals models.UsageTotals
	query := `
		SELECT COALESCE(SUM(requests), 0) AS requests, COALESCE(SUM(cost), 0) AS cost
		FROM usage_records
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
	`
	err := r.db.GetContext(ctx, &totals, query, userID, from, to)
	return totals, err
}

// ByEndpoint breaks usage in [from, to) down per endpoint.
func (r *UsageRepository) ByEndpoint(ctx context.Context, userID string, from, to time.Time) ([]EndpointUsage, error) {
	out := make([]EndpointUsage, 0)
	query := `
		SELECT endpoint, SUM(requests) AS requests, SUM(cost) AS cost
		FROM usage_records
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY endpoint
		ORDER BY endpoint
	`
	err := r.db.SelectContext(ctx, &out, query, userID, from, to)
	return out, err
}
