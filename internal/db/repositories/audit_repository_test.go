package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/launchpal/launchpal/internal/db/models"
)

var auditCols = []string{
	"id", "user_id", "action", "resource_type", "resource_id", "auth_method",
	"status_code", "ip_address", "request_id", "metadata", "created_at",
}

func TestAuditCreate(t *testing.T) {
	db, mock := newSqlxMock(t)
	repo := NewAuditRepository(db)
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	uid := "user-1"
	log := &models.AuditLog{UserID: &uid, Action: "product.created", StatusCode: 201}
	if err := repo.Create(context.Background(), log); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if log.ID == "" || log.CreatedAt.IsZero() {
		t.Errorf("id and timestamp should be assigned: %+v", log)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAuditListForUser(t *testing.T) {
	db, mock := newSqlxMock(t)
	repo := NewAuditRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM audit_logs WHERE user_id = \\$1").
		WithArgs("user-1", "launch.scheduled", nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT .+ FROM audit_logs WHERE user_id = \\$1 .+ LIMIT \\$5 OFFSET \\$6").
		WithArgs("user-1", "launch.scheduled", nil, nil, 2, 0).
		WillReturnRows(sqlmock.NewRows(auditCols).
			AddRow("a1", "user-1", "launch.scheduled", "launch", "l1", "api_key", 201, "10.0.0.1", "req-1", []byte(`{"method":"POST"}`), time.Now()).
			AddRow("a2", "user-1", "launch.scheduled", "launch", "l2", "session", 201, nil, nil, []byte(`{}`), time.Now()))

	logs, total, err := repo.ListForUser(context.Background(), "user-1", AuditFilters{Action: "launch.scheduled"}, 2, 0)
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if total != 3 || len(logs) != 2 {
		t.Fatalf("total = %d, len = %d", total, len(logs))
	}
	if logs[0].Metadata["method"] != "POST" || *logs[0].ResourceID != "l1" {
		t.Errorf("first entry = %+v", logs[0])
	}
	if logs[1].IPAddress != nil {
		t.Errorf("NULL ip_address should scan as nil, got %v", *logs[1].IPAddress)
	}
}

func TestAuditListForUser_CountError(t *testing.T) {
	db, mock := newSqlxMock(t)
	repo := NewAuditRepository(db)
	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("boom"))

	if _, _, err := repo.ListForUser(context.Background(), "user-1", AuditFilters{}, 10, 0); err == nil {
		t.Error("expected error")
	}
}

func TestAuditDeleteBefore(t *testing.T) {
	db, mock := newSqlxMock(t)
	repo := NewAuditRepository(db)
	cutoff := time.Now().Add(-90 * 24 * time.Hour)
	mock.ExpectExec("DELETE FROM audit_logs WHERE created_at < \\$1").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.DeleteBefore(context.Background(), cutoff)
	if err != nil || n != 7 {
		t.Errorf("DeleteBefore() = %d, %v", n, err)
	}
}
