package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/launchpal/launchpal/internal/db/models"
)

const productColumns = `id, user_id, platform, platform_id, name, tagline, description,
	website, url, media, topics, metadata, created_at, updated_at`

// ProductRepository handles product database operations. Every lookup that
// serves an API call is scoped by owner.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new ProductRepository
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts a product.
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES (:id, :user_id, :platform, :platform_id, :name, :tagline, :description,
		        :website, :url, :media, :topics, :metadata, :created_at, :updated_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, p)
	return err
}

// GetForOwner returns the product only when it belongs to userID.
func (r *ProductRepository) GetForOwner(ctx context.Context, id, userID string) (*models.Product, error) {
	var p models.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND user_id = $2`
	err := r.db.GetContext(ctx, &p, query, id, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns the owner's products, newest first, optionally filtered by platform.
func (r *ProductRepository) List(ctx context.Context, userID, platform string) ([]*models.Product, error) {
	products := make([]*models.Product, 0)
	query := `SELECT ` + productColumns + ` FROM products
		WHERE user_id = $1 AND ($2 = '' OR platform = $2)
		ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &products, query, userID, platform)
	return products, err
}

// CountByUser counts the owner's products.
func (r *ProductRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM products WHERE user_id = $1`, userID)
	return n, err
}

// Update writes the editable fields. platform and platform_id are never changed.
func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = time.Now()
	query := `
		UPDATE products
		SET name = :name, tagline = :tagline, description = :description, website = :website,
		    media = :media, topics = :topics, metadata = :metadata, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id
	`
	_, err := r.db.NamedExecContext(ctx, query, p)
	return err
}

// Delete removes the owner's product and reports whether a row was deleted.
func (r *ProductRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
