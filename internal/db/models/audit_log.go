package models

import "time"

// AuditLog records one authenticated action. UserID is nil for actions whose
// user has since been deleted.
type AuditLog struct {
	ID           string    `db:"id" json:"id"`
	UserID       *string   `db:"user_id" json:"userId,omitempty"`
	Action       string    `db:"action" json:"action"`
	ResourceType *string   `db:"resource_type" json:"resourceType,omitempty"`
	ResourceID   *string   `db:"resource_id" json:"resourceId,omitempty"`
	AuthMethod   *string   `db:"auth_method" json:"authMethod,omitempty"`
	StatusCode   int       `db:"status_code" json:"statusCode"`
	IPAddress    *string   `db:"ip_address" json:"ipAddress,omitempty"`
	RequestID    *string   `db:"request_id" json:"requestId,omitempty"`
	Metadata     JSONMap   `db:"metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}
