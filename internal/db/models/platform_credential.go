package models

import "time"

// PlatformCredential holds one user's sealed credentials for one platform.
// Disconnecting clears IsActive; the row is never deleted.
type PlatformCredential struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Platform    string    `db:"platform"`
	Credentials string    `db:"credentials"` // crypto.TokenCipher sealed JSON object
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}
