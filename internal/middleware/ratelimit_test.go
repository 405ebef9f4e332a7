package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// ---------------------------------------------------------------------------
// Limit profiles
// ---------------------------------------------------------------------------

func TestRateLimitProfiles(t *testing.T) {
	tests := []struct {
		name  string
		cfg   RateLimitConfig
		rpm   int
		burst int
	}{
		{"api", DefaultRateLimitConfig(), 200, 50},
		{"auth", AuthRateLimitConfig(), 10, 5},
		{"upload", UploadRateLimitConfig(), 30, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cfg.RequestsPerMinute != tt.rpm || tt.cfg.BurstSize != tt.burst {
				t.Errorf("got %d rpm / %d burst, want %d / %d", tt.cfg.RequestsPerMinute, tt.cfg.BurstSize, tt.rpm, tt.burst)
			}
			if tt.cfg.CleanupInterval != 5*time.Minute {
				t.Errorf("CleanupInterval = %v", tt.cfg.CleanupInterval)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// In-memory bucket
// ---------------------------------------------------------------------------

func newBucket(t *testing.T, rpm, burst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: rpm, BurstSize: burst, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	return rl
}

func TestRateLimiter_Burst(t *testing.T) {
	tests := []struct {
		burst int
	}{{1}, {3}, {5}}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.burst), func(t *testing.T) {
			rl := newBucket(t, 60, tt.burst)
			allowed := 0
			for range tt.burst + 3 {
				if rl.Allow("owner-1") {
					allowed++
				}
			}
			if allowed != tt.burst {
				t.Errorf("allowed %d, want %d", allowed, tt.burst)
			}
			if !rl.Allow("owner-2") {
				t.Error("a second key must have its own bucket")
			}
		})
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := newBucket(t, 600, 1) // ten tokens a second
	rl.Allow("k")
	if rl.Allow("k") {
		t.Fatal("bucket should be empty")
	}
	time.Sleep(150 * time.Millisecond)
	if !rl.Allow("k") {
		t.Error("bucket should have refilled")
	}
}

func TestRateLimiter_RemainingTokens(t *testing.T) {
	rl := newBucket(t, 60, 4)
	if got := rl.RemainingTokens("new"); got != 4 {
		t.Errorf("unseen key = %d, want full burst", got)
	}
	rl.Allow("seen")
	rl.Allow("seen")
	if got := rl.RemainingTokens("seen"); got != 2 {
		t.Errorf("after two requests = %d, want 2", got)
	}
}

func TestRateLimiter_CleanupEvictsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 60, BurstSize: 2, CleanupInterval: 10 * time.Millisecond})
	defer rl.Stop()

	rl.Allow("idle")
	rl.mu.Lock()
	rl.entries["idle"].lastUpdate = time.Now().Add(-11 * time.Minute)
	rl.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		rl.mu.RLock()
		_, present := rl.entries["idle"]
		rl.mu.RUnlock()
		if !present {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("idle key was not evicted")
}

func TestRateLimiter_Take(t *testing.T) {
	rl := newBucket(t, 120, 1)

	res, err := rl.Take(context.Background(), "take")
	if err != nil || !res.Allowed || res.Limit != 120 {
		t.Fatalf("first Take() = %+v, %v", res, err)
	}
	res, _ = rl.Take(context.Background(), "take")
	if res.Allowed {
		t.Fatal("second Take() should be limited")
	}
	if res.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want 1s at two tokens per second", res.RetryAfter)
	}
}

// ---------------------------------------------------------------------------
// Rate limit key
// ---------------------------------------------------------------------------

func TestGetRateLimitKey(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		keyID  string
		want   string
	}{
		{"user wins", "user-1", "key-1", "user:user-1"},
		{"api key", "", "key-1", "apikey:key-1"},
		{"client ip", "", "", "ip:10.0.0.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/api/products", nil)
			c.Request.RemoteAddr = "10.0.0.7:5555"
			c.Set(UserIDKey, tt.userID)
			c.Set(APIKeyIDKey, tt.keyID)
			if got := getRateLimitKey(c); got != tt.want {
				t.Errorf("getRateLimitKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// RateLimitMiddleware
// ---------------------------------------------------------------------------

func limitedRouter(l Limiter) *gin.Engine {
	r := gin.New()
	r.Use(RateLimitMiddleware(l))
	r.GET("/api/trending", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r http.Handler, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/trending", nil)
	req.RemoteAddr = ip + ":1234"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware(t *testing.T) {
	r := limitedRouter(newBucket(t, 1, 1))

	w := hit(r, "10.0.0.2")
	if w.Code != http.StatusOK {
		t.Fatalf("first status = %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Limit") != "1" || w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("headers = %v", w.Header())
	}

	w = hit(r, "10.0.0.2")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	if !strings.Contains(w.Body.String(), "Rate limit exceeded. Please upgrade your plan or wait.") {
		t.Errorf("body = %s", w.Body)
	}

	if w := hit(r, "10.0.0.3"); w.Code != http.StatusOK {
		t.Errorf("other client status = %d", w.Code)
	}
}

func TestRedisRateLimiter_FailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()
	limiter := NewRedisRateLimiter(rdb, "launchpal:ratelimit:test", RateLimitConfig{RequestsPerMinute: 1, BurstSize: 1})

	if _, err := limiter.Take(context.Background(), "k"); err == nil {
		t.Fatal("Take() against an unreachable redis should fail")
	}

	r := limitedRouter(limiter)
	for i := range 3 {
		if w := hit(r, "10.0.0.9"); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200 when redis is down", i, w.Code)
		}
	}
}
