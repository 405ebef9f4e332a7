package services

import (
	"context"
	"time"

	"github.com/launchpal/launchpal/internal/audit"
	"github.com/launchpal/launchpal/internal/db/models"
	"github.com/launchpal/launchpal/internal/db/repositories"
)

const maxAuditPageSize = 100

// AuditService persists audit events and serves an account's own trail.
type AuditService struct {
	logs AuditLogStore
}

var _ audit.Store = (*AuditService)(nil)

// NewAuditService creates a new AuditService
func NewAuditService(logs AuditLogStore) *AuditService {
	return &AuditService{logs: logs}
}

// Save implements audit.Store.
func (s *AuditService) Save(ctx context.Context, e *audit.Event) error {
	return s.logs.Create(ctx, &models.AuditLog{
		UserID:       optional(e.UserID),
		Action:       e.Action,
		ResourceType: optional(e.ResourceType),
		ResourceID:   optional(e.ResourceID),
		AuthMethod:   optional(e.AuthMethod),
		StatusCode:   e.StatusCode,
		IPAddress:    optional(e.IPAddress),
		RequestID:    optional(e.RequestID),
		Metadata:     models.JSONMap(e.Metadata),
		CreatedAt:    e.Timestamp,
	})
}

// AuditPage is one page of an account's audit trail.
type AuditPage struct {
	Entries []*models.AuditLog `json:"entries"`
	Total   int                `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
}

// List returns the user's entries newest first. Zero times leave that bound
// open; limit is clamped to 1..100.
func (s *AuditService) List(ctx context.Context, userID, action string, from, to time.Time, limit, offset int) (*AuditPage, error) {
	if limit <= 0 || limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}
	offset = max(offset, 0)

	f := repositories.AuditFilters{Action: action}
	if !from.IsZero() {
		f.StartDate = &from
	}
	if !to.IsZero() {
		f.EndDate = &to
	}
	entries, total, err := s.logs.ListForUser(ctx, userID, f, limit, offset)
	if err != nil {
		return nil, err
	}
	return &AuditPage{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
