// Package repositories is the data access layer. Handlers and services never
// issue SQL directly; every query lives here so it can be tested with sqlmock.
//
// Lookups return (nil, nil) when no row matches. Callers decide whether that
// is a not-found error.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/launchpal/launchpal/internal/db/models"
)

const userColumns = `id, email, name, password_hash, oidc_sub, subscription,
	monthly_requests, platform_limit, product_limit, billing_customer_id,
	last_login_at, created_at, updated_at`

// UserRepository handles user database operations
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.OIDCSub,
		&user.Subscription,
		&user.MonthlyRequests,
		&user.PlatformLimit,
		&user.ProductLimit,
		&user.BillingCustomerID,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser inserts a user. Subscription defaults to the free plan.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	if user.Subscription == "" {
		user.ApplyPlan(models.PlanFree)
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.OIDCSub,
		user.Subscription,
		user.MonthlyRequests,
		user.PlatformLimit,
		user.ProductLimit,
		user.BillingCustomerID,
		user.LastLoginAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return err
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, userID))
}

// GetUserByEmail retrieves a user by email (case-insensitive)
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetUserByOIDCSub retrieves a user by OIDC subject identifier
func (r *UserRepository) GetUserByOIDCSub(ctx context.Context, oidcSub string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE oidc_sub = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, oidcSub))
}

// UpdatePlan persists the user's subscription, limits and billing customer.
func (r *UserRepository) UpdatePlan(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	query := `
		UPDATE users
		SET subscription = $2, monthly_requests = $3, platform_limit = $4,
		    product_limit = $5, billing_customer_id = $6, updated_at = $7
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Subscription,
		user.MonthlyRequests,
		user.PlatformLimit,
		user.ProductLimit,
		user.BillingCustomerID,
		user.UpdatedAt,
	)
	return err
}

// TouchLastLogin records a successful sign-in.
func (r *UserRepository) TouchLastLogin(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = $2 WHERE id = $1`, userID, time.Now())
	return err
}

// GetOrCreateUserByOIDC resolves an SSO identity. An existing account with the
// same email is linked to the subject; otherwise a free-plan user is created.
func (r *UserRepository) GetOrCreateUserByOIDC(ctx context.Context, oidcSub, email, name string) (*models.User, error) {
	user, err := r.GetUserByOIDCSub(ctx, oidcSub)
	if err != nil || user != nil {
		return user, err
	}

	user, err = r.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		_, err = r.db.ExecContext(ctx,
			`UPDATE users SET oidc_sub = $2, updated_at = $3 WHERE id = $1`,
			user.ID, oidcSub, time.Now())
		if err != nil {
			return nil, err
		}
		user.OIDCSub = &oidcSub
		return user, nil
	}

	user = &models.User{Email: email, Name: name, OIDCSub: &oidcSub}
	if err := r.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
