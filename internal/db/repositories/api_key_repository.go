package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/launchpal/launchpal/internal/db/models"
)

const apiKeyColumns = `id, user_id, name, key_hash, key_prefix, scopes, expires_at, last_used_at, created_at`

// APIKeyRepository stores hashed API keys.
type APIKeyRepository struct {
	db *sqlx.DB
}

func NewAPIKeyRepository(db *sqlx.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// CreateAPIKey assigns the key an id and creation time and inserts it.
func (r *APIKeyRepository) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	key.ID = uuid.New().String()
	key.CreatedAt = time.Now()
	if key.Scopes == nil {
		key.Scopes = models.StringList{}
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO api_keys (`+apiKeyColumns+`)
		VALUES (:id, :user_id, :name, :key_hash, :key_prefix, :scopes, :expires_at, :last_used_at, :created_at)`,
		key)
	return err
}

// GetAPIKeysByPrefix returns the candidates for a presented key. Prefixes are
// not unique, so the caller bcrypt-compares against each hash.
func (r *APIKeyRepository) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	keys := make([]*models.APIKey, 0, 1)
	err := r.db.SelectContext(ctx, &keys, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1`, prefix)
	return keys, err
}

// ListAPIKeysByUser lists a user's keys, newest first.
func (r *APIKeyRepository) ListAPIKeysByUser(ctx context.Context, userID string) ([]*models.APIKey, error) {
	keys := make([]*models.APIKey, 0)
	err := r.db.SelectContext(ctx, &keys,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	return keys, err
}

func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, keyID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, keyID, time.Now())
	return err
}

// DeleteAPIKeysByUser revokes every key the user holds. Regenerating a key
// goes through here first.
func (r *APIKeyRepository) DeleteAPIKeysByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE user_id = $1`, userID)
	return err
}
