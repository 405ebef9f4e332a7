// Package platform defines the contract every launch platform integration
// implements, the registry that builds adapters from stored credentials and
// the catalog of platforms LaunchPal knows about.
package platform

import (
	"context"
	"time"
)

// Credentials is the decrypted credential blob a user stored for a platform.
// Keys are platform specific, e.g. clientId and clientSecret for Product Hunt.
type Credentials map[string]string

// ProductDraft is the product data sent to a platform on creation.
type ProductDraft struct {
	Name        string
	Tagline     string
	Description string
	Website     string
	Media       []string
	Topics      []string
}

// CreatedProduct identifies a product on its platform.
type CreatedProduct struct {
	PlatformID string
	URL        string
}

// ScheduledLaunch is a platform's acknowledgement of a scheduled launch.
type ScheduledLaunch struct {
	PlatformLaunchID string
	ScheduledAt      time.Time
}

// Metrics is a point-in-time engagement snapshot of a launch.
type Metrics struct {
	Votes      int     `json:"votes"`
	Comments   int     `json:"comments"`
	Rank       *int    `json:"rank,omitempty"`
	Engagement float64 `json:"engagement"`
}

// TrendingProduct is one entry of a platform's trending list.
type TrendingProduct struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Tagline     string   `json:"tagline"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url"`
	Votes       int      `json:"votes"`
	Comments    int      `json:"comments"`
	Featured    bool     `json:"featured"`
	Media       []string `json:"media,omitempty"`
}

// Hunter is a platform member who can submit products on a maker's behalf.
type Hunter struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Username   string `json:"username"`
	Followers  int    `json:"followers"`
	HuntsCount int    `json:"huntsCount"`
	ProfileURL string `json:"profileUrl"`
}

// CommentAuthor names the member who wrote a comment.
type CommentAuthor struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Comment is one comment on a launched product.
type Comment struct {
	ID        string        `json:"id"`
	Body      string        `json:"body"`
	Votes     int           `json:"votes"`
	Author    CommentAuthor `json:"author"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Adapter talks to one launch platform on behalf of one user.
type Adapter interface {
	// Authenticate obtains a platform token. It is idempotent.
	Authenticate(ctx context.Context) error
	CreateProduct(ctx context.Context, draft ProductDraft) (*CreatedProduct, error)
	ScheduleLaunch(ctx context.Context, platformProductID string, when time.Time) (*ScheduledLaunch, error)
	GetLaunchMetrics(ctx context.Context, platformLaunchID string) (*Metrics, error)
}

// TrendingSource is implemented by adapters that can list trending products.
// period is one of day, week or month.
type TrendingSource interface {
	Trending(ctx context.Context, period string, limit int) ([]TrendingProduct, error)
}

// HunterSource is implemented by adapters that can search for hunters in a
// topic. Results have at least minFollowers followers.
type HunterSource interface {
	FindHunters(ctx context.Context, topic string, minFollowers int) ([]Hunter, error)
}

// CommentSource is implemented by adapters that can read a launch's comments.
type CommentSource interface {
	Comments(ctx context.Context, platformLaunchID string, limit int) ([]Comment, error)
}

// EngagementScore weights comments double relative to votes.
func EngagementScore(votes, comments int) float64 {
	return float64(votes+comments*2) / 100
}
