package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/launchpal/launchpal/internal/db/models"
)

const auditColumns = `id, user_id, action, resource_type, resource_id, auth_method,
	status_code, ip_address, request_id, metadata, created_at`

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilters narrows ListForUser. Zero values match everything.
type AuditFilters struct {
	Action    string
	StartDate *time.Time
	EndDate   *time.Time
}

// Create inserts an entry, assigning its id. A zero CreatedAt is set to now.
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	log.ID = uuid.New().String()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO audit_logs (` + auditColumns + `)
		VALUES (:id, :user_id, :action, :resource_type, :resource_id, :auth_method,
		        :status_code, :ip_address, :request_id, :metadata, :created_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, log)
	return err
}

// ListForUser returns the user's entries, newest first, and the total count
// before pagination.
func (r *AuditRepository) ListForUser(ctx context.Context, userID string, f AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	where := ` WHERE user_id = $1 AND ($2 = '' OR action = $2)
		AND ($3::timestamptz IS NULL OR created_at >= $3)
		AND ($4::timestamptz IS NULL OR created_at <= $4)`
	args := []any{userID, f.Action, f.StartDate, f.EndDate}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM audit_logs`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	logs := make([]*models.AuditLog, 0)
	query := `SELECT ` + auditColumns + ` FROM audit_logs` + where + `
		ORDER BY created_at DESC LIMIT $5 OFFSET $6`
	if err := r.db.SelectContext(ctx, &logs, query, append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, total, nil
}

// DeleteBefore removes entries older than cutoff and reports how many went.
func (r *AuditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
