package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/launchpal/launchpal/internal/db/models"
)

const launchColumns = `id, user_id, product_id, platform, platform_launch_id, scheduled_at,
	status, options, started_at, completed_at, created_at, updated_at`

const metricColumns = `id, launch_id, votes, comments, views, rank, engagement, custom_metrics, collected_at`

// LaunchRepository handles launch and launch metric database operations
type LaunchRepository struct {
	db *sqlx.DB
}

// NewLaunchRepository creates a new LaunchRepository
func NewLaunchRepository(db *sqlx.DB) *LaunchRepository {
	return &LaunchRepository{db: db}
}

// Create inserts a launch.
func (r *LaunchRepository) Create(ctx context.Context, l *models.Launch) error {
	l.ID = uuid.New().String()
	l.CreatedAt = time.Now()
	l.UpdatedAt = l.CreatedAt

	query := `
		INSERT INTO launches (` + launchColumns + `)
		VALUES (:id, :user_id, :product_id, :platform, :platform_launch_id, :scheduled_at,
		        :status, :options, :started_at, :completed_at, :created_at, :updated_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, l)
	return err
}

func (r *LaunchRepository) get(ctx context.Context, query string, args ...any) (*models.Launch, error) {
	var l models.Launch
	err := r.db.GetContext(ctx, &l, query, args...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetForOwner returns the launch only when it belongs to userID.
func (r *LaunchRepository) GetForOwner(ctx context.Context, id, userID string) (*models.Launch, error) {
	return r.get(ctx, `SELECT `+launchColumns+` FROM launches WHERE id = $1 AND user_id = $2`, id, userID)
}

// GetByID returns a launch regardless of owner, for background execution.
func (r *LaunchRepository) GetByID(ctx context.Context, id string) (*models.Launch, error) {
	return r.get(ctx, `SELECT `+launchColumns+` FROM launches WHERE id = $1`, id)
}

// List returns the owner's launches, latest schedule first, optionally filtered by status.
func (r *LaunchRepository) List(ctx context.Context, userID, status string) ([]*models.Launch, error) {
	launches := make([]*models.Launch, 0)
	query := `SELECT ` + launchColumns + ` FROM launches
		WHERE user_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY scheduled_at DESC`
	err := r.db.SelectContext(ctx, &launches, query, userID, status)
	return launches, err
}

// CountByProduct counts launches of any status referencing the product.
func (r *LaunchRepository) CountByProduct(ctx context.Context, productID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM launches WHERE product_id = $1`, productID)
	return n, err
}

// Transition moves a launch from one status to another only if it is still in
// from. It stamps started_at on activation and completed_at on completion or
// failure, and reports whether the row changed.
func (r *LaunchRepository) Transition(ctx context.Context, id, from, to string, at time.Time) (bool, error) {
	query := `
		UPDATE launches
		SET status = $3,
		    started_at = CASE WHEN $3 = 'active' THEN $4 ELSE started_at END,
		    completed_at = CASE WHEN $3 IN ('completed', 'failed') THEN $4 ELSE completed_at END,
		    updated_at = $4
		WHERE id = $1 AND status = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, from, to, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkScheduled moves a draft to scheduled with its platform launch id and date.
func (r *LaunchRepository) MarkScheduled(ctx context.Context, id, platformLaunchID string, scheduledAt time.Time) (bool, error) {
	query := `
		UPDATE launches
		SET status = 'scheduled', platform_launch_id = $2, scheduled_at = $3, updated_at = $4
		WHERE id = $1 AND status = 'draft'
	`
	res, err := r.db.ExecContext(ctx, query, id, platformLaunchID, scheduledAt, time.Now())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListDue returns scheduled launches whose scheduled_at has passed.
func (r *LaunchRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Launch, error) {
	launches := make([]*models.Launch, 0)
	query := `SELECT ` + launchColumns + ` FROM launches
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at LIMIT $2`
	err := r.db.SelectContext(ctx, &launches, query, now, limit)
	return launches, err
}

// ListActive returns every active launch.
func (r *LaunchRepository) ListActive(ctx context.Context) ([]*models.Launch, error) {
	launches := make([]*models.Launch, 0)
	query := `SELECT ` + launchColumns + ` FROM launches WHERE status = 'active' ORDER BY started_at`
	err := r.db.SelectContext(ctx, &launches, query)
	return launches, err
}

// InsertMetric stores a metrics snapshot.
func (r *LaunchRepository) InsertMetric(ctx context.Context, m *models.LaunchMetric) error {
	m.ID = uuid.New().String()
	if m.CollectedAt.IsZero() {
		m.CollectedAt = time.Now()
	}
	query := `
		INSERT INTO launch_metrics (` + metricColumns + `)
		VALUES (:id, :launch_id, :votes, :comments, :views, :rank, :engagement, :custom_metrics, :collected_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, m)
	return err
}

// ListMetrics returns a launch's snapshots in collection order.
func (r *LaunchRepository) ListMetrics(ctx context.Context, launchID string) ([]*models.LaunchMetric, error) {
	metrics := make([]*models.LaunchMetric, 0)
	query := `SELECT ` + metricColumns + ` FROM launch_metrics WHERE launch_id = $1 ORDER BY collected_at`
	err := r.db.SelectContext(ctx, &metrics, query, launchID)
	return metrics, err
}
