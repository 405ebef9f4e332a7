package models

import "time"

// Launch statuses.
const (
	LaunchDraft     = "draft"
	LaunchScheduled = "scheduled"
	LaunchActive    = "active"
	LaunchCompleted = "completed"
	LaunchFailed    = "failed"
)

var launchTransitions = map[string][]string{
	LaunchDraft:     {LaunchScheduled},
	LaunchScheduled: {LaunchActive, LaunchFailed},
	LaunchActive:    {LaunchCompleted, LaunchFailed},
}

// CanTransition reports whether a launch may move from one status to another.
// completed and failed are terminal.
func CanTransition(from, to string) bool {
	for _, s := range launchTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsLaunchStatus reports whether s is one of the five launch statuses.
func IsLaunchStatus(s string) bool {
	switch s {
	case LaunchDraft, LaunchScheduled, LaunchActive, LaunchCompleted, LaunchFailed:
		return true
	}
	return false
}

// Launch is a planned or running launch of a product on its platform.
type Launch struct {
	ID               string     `db:"id" json:"id"`
	UserID           string     `db:"user_id" json:"userId"`
	ProductID        string     `db:"product_id" json:"productId"`
	Platform         string     `db:"platform" json:"platform"`
	PlatformLaunchID *string    `db:"platform_launch_id" json:"platformLaunchId,omitempty"`
	ScheduledAt      time.Time  `db:"scheduled_at" json:"scheduledAt"`
	Status           string     `db:"status" json:"status"`
	Options          JSONMap    `db:"options" json:"options,omitempty"`
	StartedAt        *time.Time `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt      *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
}

// LaunchMetric is one snapshot of a launch's platform metrics.
type LaunchMetric struct {
	ID            string    `db:"id" json:"id"`
	LaunchID      string    `db:"launch_id" json:"launchId"`
	Votes         int       `db:"votes" json:"votes"`
	Comments      int       `db:"comments" json:"comments"`
	Views         int       `db:"views" json:"views"`
	Rank          *int      `db:"rank" json:"rank,omitempty"`
	Engagement    float64   `db:"engagement" json:"engagement"`
	CustomMetrics JSONMap   `db:"custom_metrics" json:"customMetrics,omitempty"`
	CollectedAt   time.Time `db:"collected_at" json:"collectedAt"`
}
