package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/launchpal/launchpal/internal/platform"
)

const (
	defaultTrendingLimit = 10
	maxTrendingLimit     = 100

	// DefaultMinFollowers is the follower floor of a hunter search.
	DefaultMinFollowers = 1000

	// marketDepth is how much of today's leaderboard a launch is ranked in.
	marketDepth = 100
)

// TrendingService lists popular products using the caller's own platform
// credentials.
type TrendingService struct {
	creds *CredentialService
}

// NewTrendingService creates a new TrendingService
func NewTrendingService(creds *CredentialService) *TrendingService {
	return &TrendingService{creds: creds}
}

// Trending returns the top products on platformID for period (day, week or
// month; empty means day).
func (s *TrendingService) Trending(ctx context.Context, userID, platformID, period string, limit int) ([]platform.TrendingProduct, error) {
	if platformID == "" {
		platformID = platform.ProductHunt
	}
	if period == "" {
		period = "day"
	}
	switch period {
	case "day", "week", "month":
	default:
		return nil, fmt.Errorf("%w: period must be day, week or month", ErrValidation)
	}
	if limit <= 0 {
		limit = defaultTrendingLimit
	}
	if limit > maxTrendingLimit {
		limit = maxTrendingLimit
	}

	return trending(ctx, s.creds, userID, platformID, period, limit)
}

// Hunters searches platformID for hunters active in topic with at least
// minFollowers followers (0 means DefaultMinFollowers).
func (s *TrendingService) Hunters(ctx context.Context, userID, platformID, topic string, minFollowers int) ([]platform.Hunter, error) {
	if platformID == "" {
		platformID = platform.ProductHunt
	}
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		return nil, fmt.Errorf("%w: category is required", ErrValidation)
	}
	if minFollowers < 0 {
		return nil, fmt.Errorf("%w: minFollowers must not be negative", ErrValidation)
	}
	if minFollowers == 0 {
		minFollowers = DefaultMinFollowers
	}

	adapter, err := authenticated(ctx, s.creds, userID, platformID)
	if err != nil {
		return nil, err
	}
	src, ok := adapter.(platform.HunterSource)
	if !ok {
		return nil, fmt.Errorf("%w: hunter search is not available for %s", platform.ErrUnsupportedPlatform, platformID)
	}
	return src.FindHunters(ctx, topic, minFollowers)
}

// authenticated returns the caller's adapter for platformID with a token.
func authenticated(ctx context.Context, creds *CredentialService, userID, platformID string) (platform.Adapter, error) {
	adapter, err := creds.ActiveAdapter(ctx, userID, platformID)
	if err != nil {
		return nil, err
	}
	if err := adapter.Authenticate(ctx); err != nil {
		return nil, err
	}
	return adapter, nil
}

func trending(ctx context.Context, creds *CredentialService, userID, platformID, period string, limit int) ([]platform.TrendingProduct, error) {
	adapter, err := authenticated(ctx, creds, userID, platformID)
	if err != nil {
		return nil, err
	}
	src, ok := adapter.(platform.TrendingSource)
	if !ok {
		return nil, fmt.Errorf("%w: trending is not available for %s", platform.ErrUnsupportedPlatform, platformID)
	}
	return src.Trending(ctx, period, limit)
}
