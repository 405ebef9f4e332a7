package models

import "time"

// APIKey is a long-lived bearer credential of the form lp_<32 chars>.
// Only the bcrypt hash and the lookup prefix are stored.
type APIKey struct {
	ID         string     `db:"id"`
	UserID     string     `db:"user_id"`
	Name       string     `db:"name"`
	KeyHash    string     `db:"key_hash"`
	KeyPrefix  string     `db:"key_prefix"` // first 10 chars, e.g. "lp_a1B2c3d"
	Scopes     StringList `db:"scopes"`
	ExpiresAt  *time.Time `db:"expires_at"`
	LastUsedAt *time.Time `db:"last_used_at"`
	CreatedAt  time.Time  `db:"created_at"`
}

// IsExpired reports whether the key has an expiry in the past.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}
