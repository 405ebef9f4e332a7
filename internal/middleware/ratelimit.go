// ratelimit.go provides per-client rate limiting: an in-process token bucket for
// single-replica deployments and a Redis GCRA limiter shared across replicas.
package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// CleanupInterval is how often idle in-memory buckets are dropped
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns the limits applied to the API as a whole.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 200,
		BurstSize:         50,
		CleanupInterval:   5 * time.Minute,
	}
}

// AuthRateLimitConfig returns stricter limits for login, registration and
// the OAuth endpoints.
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

// UploadRateLimitConfig returns limits for media uploads
func UploadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 30,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

// LimitResult is the outcome of one rate limit check.
type LimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Take(ctx context.Context, key string) (LimitResult, error)
}

// ---------------------------------------------------------------------------
// In-memory token bucket
// ---------------------------------------------------------------------------

type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter implements a token bucket rate limiter
type RateLimiter struct {
	config  RateLimitConfig
	entries map[string]*rateLimitEntry
	mu      sync.RWMutex
	stopCh  chan struct{}
	once    sync.Once
}

// NewRateLimiter creates a new rate limiter with the given config
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, entry := range rl.entries {
				if now.Sub(entry.lastUpdate) > 10*time.Minute {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) refillRate() float64 {
	return float64(rl.config.RequestsPerMinute) / 60.0
}

// Allow checks if a request from the given key should be allowed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, exists := rl.entries[key]
	if !exists {
		rl.entries[key] = &rateLimitEntry{
			tokens:     float64(rl.config.BurstSize) - 1,
			lastUpdate: now,
		}
		return true
	}

	elapsed := now.Sub(entry.lastUpdate)
	entry.tokens = min(float64(rl.config.BurstSize), entry.tokens+elapsed.Seconds()*rl.refillRate())
	entry.lastUpdate = now

	if entry.tokens >= 1 {
		entry.tokens--
		return true
	}
	return false
}

// RemainingTokens returns how many tokens are left for a key
func (rl *RateLimiter) RemainingTokens(key string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	entry, exists := rl.entries[key]
	if !exists {
		return rl.config.BurstSize
	}
	elapsed := time.Since(entry.lastUpdate)
	return int(min(float64(rl.config.BurstSize), entry.tokens+elapsed.Seconds()*rl.refillRate()))
}

// Take implements Limiter.
func (rl *RateLimiter) Take(_ context.Context, key string) (LimitResult, error) {
	res := LimitResult{Limit: rl.config.RequestsPerMinute}
	res.Allowed = rl.Allow(key)
	res.Remaining = rl.RemainingTokens(key)
	if !res.Allowed {
		res.RetryAfter = time.Minute
		if rate := rl.refillRate(); rate > 0 {
			res.RetryAfter = time.Duration(math.Ceil(1/rate)) * time.Second
		}
	}
	return res, nil
}

// ---------------------------------------------------------------------------
// Redis-backed limiter
// ---------------------------------------------------------------------------

// RedisRateLimiter shares limits between replicas through Redis using the
// GCRA implementation in redis_rate.
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// NewRedisRateLimiter creates a limiter whose keys are namespaced by prefix
// so that several limiters can share one Redis database.
func NewRedisRateLimiter(rdb redis.UniversalClient, prefix string, config RateLimitConfig) *RedisRateLimiter {
	limit := redis_rate.PerMinute(config.RequestsPerMinute)
	if config.BurstSize > 0 {
		limit.Burst = config.BurstSize
	}
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit:   limit,
		prefix:  prefix,
	}
}

// Take implements Limiter.
func (rl *RedisRateLimiter) Take(ctx context.Context, key string) (LimitResult, error) {
	res, err := rl.limiter.Allow(ctx, rl.prefix+":"+key, rl.limit)
	if err != nil {
		return LimitResult{}, err
	}
	return LimitResult{
		Allowed:    res.Allowed > 0,
		Limit:      rl.limit.Rate,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// RateLimitMiddleware rejects requests over the limit with 429. A limiter
// error lets the request through; an unavailable Redis must not take the API
// down with it.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		res, err := limiter.Take(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
		if !res.Allowed {
			retry := int(math.Ceil(res.RetryAfter.Seconds()))
			if retry <= 0 {
				retry = 60
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded. Please upgrade your plan or wait.",
				"retry_after": retry,
			})
			return
		}
		c.Next()
	}
}

// getRateLimitKey picks the most specific identity available:
// user id, then api key id, then client IP.
func getRateLimitKey(c *gin.Context) string {
	if id := c.GetString(UserIDKey); id != "" {
		return "user:" + id
	}
	if id := c.GetString(APIKeyIDKey); id != "" {
		return "apikey:" + id
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
