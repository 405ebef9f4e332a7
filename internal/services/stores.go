package services

import (
	"context"
	"time"

	"github.com/launchpal/launchpal/internal/db/models"
	"github.com/launchpal/launchpal/internal/db/repositories"
)

// The interfaces below are the slices of the repositories each service
// needs. *repositories.XRepository satisfies them.

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePlan(ctx context.Context, user *models.User) error
	TouchLastLogin(ctx context.Context, userID string) error
	GetOrCreateUserByOIDC(ctx context.Context, oidcSub, email, name string) (*models.User, error)
}

type UsageStore interface {
	Insert(ctx context.Context, rec *models.UsageRecord) error
	Totals(ctx context.Context, userID string, from, to time.Time) (models.UsageTotals, error)
	ByEndpoint(ctx context.Context, userID string, from, to time.Time) ([]repositories.EndpointUsage, error)
}

type CredentialStore interface {
	Upsert(ctx context.Context, cred *models.PlatformCredential) error
	Get(ctx context.Context, userID, platform string) (*models.PlatformCredential, error)
	Deactivate(ctx context.Context, userID, platform string) error
	ListByUser(ctx context.Context, userID string) ([]*models.PlatformCredential, error)
	CountActiveExcept(ctx context.Context, userID, platform string) (int, error)
}

type ProductStore interface {
	Create(ctx context.Context, p *models.Product) error
	GetForOwner(ctx context.Context, id, userID string) (*models.Product, error)
	List(ctx context.Context, userID, platform string) ([]*models.Product, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id, userID string) (bool, error)
}

type LaunchStore interface {
	Create(ctx context.Context, l *models.Launch) error
	GetForOwner(ctx context.Context, id, userID string) (*models.Launch, error)
	GetByID(ctx context.Context, id string) (*models.Launch, error)
	List(ctx context.Context, userID, status string) ([]*models.Launch, error)
	CountByProduct(ctx context.Context, productID string) (int, error)
	Transition(ctx context.Context, id, from, to string, at time.Time) (bool, error)
	MarkScheduled(ctx context.Context, id, platformLaunchID string, scheduledAt time.Time) (bool, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Launch, error)
	ListActive(ctx context.Context) ([]*models.Launch, error)
	InsertMetric(ctx context.Context, m *models.LaunchMetric) error
	ListMetrics(ctx context.Context, launchID string) ([]*models.LaunchMetric, error)
}

type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, apiKey *models.APIKey) error
	ListAPIKeysByUser(ctx context.Context, userID string) ([]*models.APIKey, error)
	DeleteAPIKeysByUser(ctx context.Context, userID string) error
}

type AuditLogStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
	ListForUser(ctx context.Context, userID string, f repositories.AuditFilters, limit, offset int) ([]*models.AuditLog, int, error)
}

var (
	_ UserStore       = (*repositories.UserRepository)(nil)
	_ UsageStore      = (*repositories.UsageRepository)(nil)
	_ CredentialStore = (*repositories.CredentialRepository)(nil)
	_ ProductStore    = (*repositories.ProductRepository)(nil)
	_ LaunchStore     = (*repositories.LaunchRepository)(nil)
	_ APIKeyStore     = (*repositories.APIKeyRepository)(nil)
	_ AuditLogStore   = (*repositories.AuditRepository)(nil)
)
