package models

import "time"

// Product is a local mirror of a product created on a launch platform.
// PlatformID is set once at creation and never updated.
type Product struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"userId"`
	Platform    string     `db:"platform" json:"platform"`
	PlatformID  string     `db:"platform_id" json:"platformId"`
	Name        string     `db:"name" json:"name"`
	Tagline     string     `db:"tagline" json:"tagline"`
	Description string     `db:"description" json:"description"`
	Website     string     `db:"website" json:"website"`
	URL         string     `db:"url" json:"url"`
	Media       StringList `db:"media" json:"media"`
	Topics      StringList `db:"topics" json:"topics"`
	Metadata    JSONMap    `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}
