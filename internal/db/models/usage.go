package models

import "time"

// UsageRecord is one metered call. Records are append-only.
type UsageRecord struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Endpoint  string    `db:"endpoint" json:"endpoint"`
	Method    string    `db:"method" json:"method"`
	Requests  int       `db:"requests" json:"requests"`
	Cost      float64   `db:"cost" json:"cost"`
	Metadata  JSONMap   `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// UsageTotals aggregates usage records over a window.
type UsageTotals struct {
	Requests int     `db:"requests"`
	Cost     float64 `db:"cost"`
}
