package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/launchpal/launchpal/internal/db/models"
)

var apiKeyCols = []string{"id", "user_id", "name", "key_hash", "key_prefix", "scopes", "expires_at", "last_used_at", "created_at"}

func newAPIKeyRepo(t *testing.T) (*APIKeyRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newSqlxMock(t)
	return NewAPIKeyRepository(db), mock
}

func TestAPIKeyRepository_Create(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectExec("INSERT INTO api_keys").
		WithArgs(sqlmock.AnyArg(), "user-1", "cli", "hash", "lp_abcdefg", []byte(`["read","write"]`), nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	key := &models.APIKey{UserID: "user-1", Name: "cli", KeyHash: "hash", KeyPrefix: "lp_abcdefg", Scopes: models.StringList{"read", "write"}}
	if err := repo.CreateAPIKey(context.Background(), key); err != nil {
		t.Fatalf("CreateAPIKey() error = %v", err)
	}
	if key.ID == "" || key.CreatedAt.IsZero() {
		t.Errorf("id/created_at not assigned: %+v", key)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAPIKeyRepository_Lookups(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		query string
		arg   string
		call  func(*APIKeyRepository) ([]*models.APIKey, error)
	}{
		{
			"by prefix", "FROM api_keys WHERE key_prefix", "lp_abcdefg",
			func(r *APIKeyRepository) ([]*models.APIKey, error) {
				return r.GetAPIKeysByPrefix(context.Background(), "lp_abcdefg")
			},
		},
		{
			"by user", "FROM api_keys WHERE user_id .* ORDER BY created_at DESC", "user-1",
			func(r *APIKeyRepository) ([]*models.APIKey, error) {
				return r.ListAPIKeysByUser(context.Background(), "user-1")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newAPIKeyRepo(t)
			mock.ExpectQuery(tt.query).WithArgs(tt.arg).
				WillReturnRows(sqlmock.NewRows(apiKeyCols).
					AddRow("key-1", "user-1", "cli", "hash", "lp_abcdefg", []byte(`["read"]`), nil, now, now))

			keys, err := tt.call(repo)
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if len(keys) != 1 || len(keys[0].Scopes) != 1 || keys[0].Scopes[0] != "read" || keys[0].LastUsedAt == nil {
				t.Errorf("keys = %+v", keys)
			}
		})
	}
}

func TestAPIKeyRepository_BadScopes(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectQuery("FROM api_keys").
		WillReturnRows(sqlmock.NewRows(apiKeyCols).
			AddRow("key-1", "user-1", "cli", "hash", "lp_abcdefg", []byte(`not json`), nil, nil, time.Now()))

	if _, err := repo.GetAPIKeysByPrefix(context.Background(), "lp_abcdefg"); err == nil {
		t.Error("expected a scan error for malformed scopes")
	}
}

func TestAPIKeyRepository_Writes(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectExec("UPDATE api_keys SET last_used_at").
		WithArgs("key-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM api_keys WHERE user_id").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.UpdateLastUsed(context.Background(), "key-1"); err != nil {
		t.Fatalf("UpdateLastUsed() error = %v", err)
	}
	if err := repo.DeleteAPIKeysByUser(context.Background(), "user-1"); err != nil {
		t.Fatalf("DeleteAPIKeysByUser() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
