package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/launchpal/launchpal/internal/db/models"
)

const (
	oauthClientColumns  = `id, client_id, client_secret_hash, user_id, name, redirect_uris, scopes, created_at`
	oauthCodeColumns    = `code_hash, client_id, user_id, redirect_uri, scopes, code_challenge, code_challenge_method, expires_at, consumed_at, created_at`
	refreshTokenColumns = `token_hash, client_id, user_id, scopes, expires_at, revoked_at, created_at`
)

// OAuthRepository stores clients, authorization codes and refresh tokens
type OAuthRepository struct {
	db *sqlx.DB
}

// NewOAuthRepository creates a new OAuthRepository
func NewOAuthRepository(db *sqlx.DB) *OAuthRepository {
	return &OAuthRepository{db: db}
}

// CreateClient registers a client application.
func (r *OAuthRepository) CreateClient(ctx context.Context, c *models.OAuthClient) error {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()
	query := `
		INSERT INTO oauth_clients (` + oauthClientColumns + `)
		VALUES (:id, :client_id, :client_secret_hash, :user_id, :name, :redirect_uris, :scopes, :created_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, c)
	return err
}

// GetClient looks a client up by its public client_id.
func (r *OAuthRepository) GetClient(ctx context.Context, clientID string) (*models.OAuthClient, error) {
	var c models.OAuthClient
	err := r.db.GetContext(ctx, &c, `SELECT `+oauthClientColumns+` FROM oauth_clients WHERE client_id = $1`, clientID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListClientsByUser lists the clients a user registered.
func (r *OAuthRepository) ListClientsByUser(ctx context.Context, userID string) ([]*models.OAuthClient, error) {
	clients := make([]*models.OAuthClient, 0)
	query := `SELECT ` + oauthClientColumns + ` FROM oauth_clients WHERE user_id = $1 ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &clients, query, userID)
	return clients, err
}

// CreateCode stores an issued authorization code.
func (r *OAuthRepository) CreateCode(ctx context.Context, code *models.OAuthCode) error {
	code.CreatedAt = time.Now()
	query := `
		INSERT INTO oauth_codes (` + oauthCodeColumns + `)
		VALUES (:code_hash, :client_id, :user_id, :redirect_uri, :scopes, :code_challenge,
		        :code_challenge_method, :expires_at, :consumed_at, :created_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, code)
	return err
}

// ConsumeCode marks the code used and returns it. Only the first caller gets a
// row back; later or concurrent callers get (nil, nil). Expiry is checked by
// the caller so an expired code is still burnt.
func (r *OAuthRepository) ConsumeCode(ctx context.Context, codeHash string, now time.Time) (*models.OAuthCode, error) {
	var code models.OAuthCode
	query := `
		UPDATE oauth_codes SET consumed_at = $2
		WHERE code_hash = $1 AND consumed_at IS NULL
		RETURNING ` + oauthCodeColumns
	err := r.db.GetContext(ctx, &code, query, codeHash, now)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// CreateRefreshToken stores an issued refresh token.
func (r *OAuthRepository) CreateRefreshToken(ctx context.Context, t *models.OAuthRefreshToken) error {
	t.CreatedAt = time.Now()
	query := `
		INSERT INTO oauth_refresh_tokens (` + refreshTokenColumns + `)
		VALUES (:token_hash, :client_id, :user_id, :scopes, :expires_at, :revoked_at, :created_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, t)
	return err
}

// GetRefreshToken looks a refresh token up by hash.
func (r *OAuthRepository) GetRefreshToken(ctx context.Context, tokenHash string) (*models.OAuthRefreshToken, error) {
	var t models.OAuthRefreshToken
	err := r.db.GetContext(ctx, &t, `SELECT `+refreshTokenColumns+` FROM oauth_refresh_tokens WHERE token_hash = $1`, tokenHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// RevokeRefreshToken revokes a refresh token and reports whether this call
// did it. An unknown or already revoked token returns false.
func (r *OAuthRepository) RevokeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE oauth_refresh_tokens SET revoked_at = $2 WHERE token_hash = $1 AND revoked_at IS NULL`,
		tokenHash, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DeleteExpiredCodes removes codes that expired before cutoff.
func (r *OAuthRepository) DeleteExpiredCodes(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM oauth_codes WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
