package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Session is the reply to POST /auth/login.
type Session struct {
	Token string `json:"token"`
	User  struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		Subscription string `json:"subscription"`
		APIKey       string `json:"apiKey,omitempty"`
	} `json:"user"`
}

// Platform is one row of GET /api/platforms.
type Platform struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// Product is the reply to POST /api/products.
type Product struct {
	ID         string `json:"id"`
	PlatformID string `json:"platformId"`
	URL        string `json:"url"`
}

// Launch is the reply to POST /api/launches.
type Launch struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	ScheduledAt time.Time `json:"scheduledAt"`
}

// Metrics is the reply to GET /api/launches/:id/metrics.
type Metrics struct {
	Votes      int     `json:"votes"`
	Comments   int     `json:"comments"`
	Rank       *int    `json:"rank,omitempty"`
	Engagement float64 `json:"engagement"`
}

// TrendingProduct is one entry of GET /api/trending.
type TrendingProduct struct {
	Name    string `json:"name"`
	Tagline string `json:"tagline"`
	Votes   int    `json:"votes"`
}

// Hunter is one entry of GET /api/hunters.
type Hunter struct {
	Name       string `json:"name"`
	Username   string `json:"username"`
	Followers  int    `json:"followers"`
	HuntsCount int    `json:"huntsCount"`
	ProfileURL string `json:"profileUrl"`
}

// Comment is one entry of GET /api/launches/:id/comments.
type Comment struct {
	Body   string `json:"body"`
	Votes  int    `json:"votes"`
	Author struct {
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// LaunchReport is the reply to GET /api/launches/:id/analytics.
type LaunchReport struct {
	Votes      int    `json:"votes"`
	Comments   int    `json:"comments"`
	Rank       int    `json:"rank"`
	PeakHour   string `json:"peakHour"`
	Prediction struct {
		PredictedVotes int `json:"predictedVotes"`
		PredictedRank  int `json:"predictedRank"`
		Confidence     int `json:"confidence"`
	} `json:"prediction"`
	Historical struct {
		AverageVotes int    `json:"averageVotes"`
		Percentile   int    `json:"percentile"`
		Rating       string `json:"rating"`
	} `json:"historical"`
	Competitors []struct {
		Name  string `json:"name"`
		Votes int    `json:"votes"`
		Rank  int    `json:"rank"`
	} `json:"competitors"`
}

// Usage is the reply to GET /api/usage.
type Usage struct {
	TotalRequests int     `json:"totalRequests"`
	TotalCost     float64 `json:"totalCost"`
	Subscription  string  `json:"subscription"`
	Limits        struct {
		MonthlyRequests int `json:"monthlyRequests"`
	} `json:"limits"`
}

// Login exchanges email and password for a session and adopts its token.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	body := map[string]string{"email": email, "password": password}
	if err := c.Do(ctx, http.MethodPost, "/auth/login", nil, body, &s); err != nil {
		return nil, err
	}
	c.SetToken(s.Token)
	return &s, nil
}

// ConnectPlatform stores credentials for platform and returns the API's message.
func (c *Client) ConnectPlatform(ctx context.Context, platform string, credentials map[string]string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.Do(ctx, http.MethodPost, "/api/platforms/"+url.PathEscape(platform)+"/connect", nil, credentials, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ListPlatforms returns every platform with the caller's connection state.
func (c *Client) ListPlatforms(ctx context.Context) ([]Platform, error) {
	var out []Platform
	err := c.Do(ctx, http.MethodGet, "/api/platforms", nil, nil, &out)
	return out, err
}

// CreateProduct posts a product; fields are passed through as given.
func (c *Client) CreateProduct(ctx context.Context, product map[string]any) (*Product, error) {
	var out Product
	if err := c.Do(ctx, http.MethodPost, "/api/products", nil, product, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ScheduleLaunch posts a launch; fields are passed through as given.
func (c *Client) ScheduleLaunch(ctx context.Context, launch map[string]any) (*Launch, error) {
	var out Launch
	if err := c.Do(ctx, http.MethodPost, "/api/launches", nil, launch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LaunchMetrics fetches live metrics for a launch.
func (c *Client) LaunchMetrics(ctx context.Context, launchID string) (*Metrics, error) {
	var out Metrics
	if err := c.Do(ctx, http.MethodGet, "/api/launches/"+url.PathEscape(launchID)+"/metrics", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Trending lists trending products on platform for period.
func (c *Client) Trending(ctx context.Context, platform, period string, limit int) ([]TrendingProduct, error) {
	q := url.Values{"platform": {platform}, "period": {period}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []TrendingProduct
	err := c.Do(ctx, http.MethodGet, "/api/trending", q, nil, &out)
	return out, err
}

// FindHunters searches Product Hunt for hunters in category. A zero
// minFollowers leaves the floor to the API.
func (c *Client) FindHunters(ctx context.Context, category string, minFollowers int) ([]Hunter, error) {
	q := url.Values{"topic": {category}}
	if minFollowers > 0 {
		q.Set("minFollowers", strconv.Itoa(minFollowers))
	}
	var out []Hunter
	err := c.Do(ctx, http.MethodGet, "/api/hunters", q, nil, &out)
	return out, err
}

// Comments lists the comments on a launch.
func (c *Client) Comments(ctx context.Context, launchID string, limit int) ([]Comment, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []Comment
	err := c.Do(ctx, http.MethodGet, "/api/launches/"+url.PathEscape(launchID)+"/comments", q, nil, &out)
	return out, err
}

// LaunchReport fetches the analytics report of a launch.
func (c *Client) LaunchReport(ctx context.Context, launchID string, withCompetitors bool) (*LaunchReport, error) {
	q := url.Values{}
	if withCompetitors {
		q.Set("includeCompetitors", "true")
	}
	var out LaunchReport
	if err := c.Do(ctx, http.MethodGet, "/api/launches/"+url.PathEscape(launchID)+"/analytics", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Usage reports request counts and cost. Empty dates use the API's defaults.
func (c *Client) Usage(ctx context.Context, startDate, endDate string) (*Usage, error) {
	q := url.Values{}
	if startDate != "" {
		q.Set("startDate", startDate)
	}
	if endDate != "" {
		q.Set("endDate", endDate)
	}
	var out Usage
	if err := c.Do(ctx, http.MethodGet, "/api/usage", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
