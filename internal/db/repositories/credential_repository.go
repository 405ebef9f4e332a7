package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/launchpal/launchpal/internal/db/models"
)

const credentialColumns = `id, user_id, platform, credentials, is_active, created_at, updated_at`

// CredentialRepository stores sealed platform credentials, one row per (user, platform).
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository creates a new CredentialRepository
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Upsert inserts the row or, when the user already has one for the platform,
// replaces its credentials and reactivates it. cred.ID and CreatedAt are
// refreshed from the stored row.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *models.PlatformCredential) error {
	now := time.Now()
	cred.IsActive = true
	cred.UpdatedAt = now

	query := `
		INSERT INTO platform_credentials (` + credentialColumns + `)
		VALUES ($1, $2, $3, $4, TRUE, $5, $5)
		ON CONFLICT (user_id, platform) DO UPDATE
		SET credentials = EXCLUDED.credentials, is_active = TRUE, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	return r.db.QueryRowxContext(ctx, query,
		uuid.New().String(), cred.UserID, cred.Platform, cred.Credentials, now,
	).Scan(&cred.ID, &cred.CreatedAt)
}

// Get returns the user's row for a platform, active or not.
func (r *CredentialRepository) Get(ctx context.Context, userID, platform string) (*models.PlatformCredential, error) {
	var cred models.PlatformCredential
	query := `SELECT ` + credentialColumns + ` FROM platform_credentials WHERE user_id = $1 AND platform = $2`
	err := r.db.GetContext(ctx, &cred, query, userID, platform)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// Deactivate marks the user's platform credentials inactive. Missing rows are not an error.
func (r *CredentialRepository) Deactivate(ctx context.Context, userID, platform string) error {
	query := `UPDATE platform_credentials SET is_active = FALSE, updated_at = $3 WHERE user_id = $1 AND platform = $2`
	_, err := r.db.ExecContext(ctx, query, userID, platform, time.Now())
	return err
}

// ListByUser returns every credential row the user has, active or not.
func (r *CredentialRepository) ListByUser(ctx context.Context, userID string) ([]*models.PlatformCredential, error) {
	creds := make([]*models.PlatformCredential, 0)
	query := `SELECT ` + credentialColumns + ` FROM platform_credentials WHERE user_id = $1 ORDER BY platform`
	err := r.db.SelectContext(ctx, &creds, query, userID)
	return creds, err
}

// CountActiveExcept counts the user's active platforms other than platform.
func (r *CredentialRepository) CountActiveExcept(ctx context.Context, userID, platform string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM platform_credentials WHERE user_id = $1 AND platform <> $2 AND is_active`
	err := r.db.GetContext(ctx, &n, query, userID, platform)
	return n, err
}
