// Package analytics keeps the per-product metrics history used for launch
// velocity, predictions and exports. The history lives in a Store separate
// from the launch_metrics table so it can be kept in Redis with a retention
// window.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Point is one metrics snapshot with the derived rates.
type Point struct {
	Timestamp  time.Time `json:"timestamp"`
	Votes      int       `json:"votes"`
	Comments   int       `json:"comments"`
	Rank       *int      `json:"rank,omitempty"`
	Velocity   float64   `json:"velocity"`
	Engagement float64   `json:"engagement"`
}

// SeriesKey identifies the history of one product of one user.
type SeriesKey struct {
	OwnerID   string
	ProductID string
}

func (k SeriesKey) String() string {
	return "launchpal:analytics:" + k.OwnerID + ":" + k.ProductID
}

// Store appends to and reads back metrics series in insertion order.
type Store interface {
	Append(ctx context.Context, key SeriesKey, p Point) error
	Series(ctx context.Context, key SeriesKey) ([]Point, error)
	Clear(ctx context.Context, key SeriesKey) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu     sync.RWMutex
	series map[SeriesKey][]Point
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{series: make(map[SeriesKey][]Point)}
}

func (s *MemoryStore) Append(_ context.Context, key SeriesKey, p Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[key] = append(s.series[key], p)
	return nil
}

// Series returns a copy of the series.
func (s *MemoryStore) Series(_ context.Context, key SeriesKey) ([]Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Point(nil), s.series[key]...), nil
}

func (s *MemoryStore) Clear(_ context.Context, key SeriesKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.series, key)
	return nil
}

// RedisStore keeps each series as a Redis list of JSON points. Every append
// pushes the expiry out to now + retention.
type RedisStore struct {
	rdb       redis.UniversalClient
	retention time.Duration
}

// NewRedisStore creates a RedisStore. A zero retention keeps series forever.
func NewRedisStore(rdb redis.UniversalClient, retention time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, retention: retention}
}

func (s *RedisStore) Append(ctx context.Context, key SeriesKey, p Point) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key.String(), raw)
	if s.retention > 0 {
		pipe.Expire(ctx, key.String(), s.retention)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append analytics point: %w", err)
	}
	return nil
}

func (s *RedisStore) Series(ctx context.Context, key SeriesKey) ([]Point, error) {
	items, err := s.rdb.LRange(ctx, key.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read analytics series: %w", err)
	}
	out := make([]Point, 0, len(items))
	for _, item := range items {
		var p Point
		if err := json.Unmarshal([]byte(item), &p); err != nil {
			return nil, fmt.Errorf("decode analytics point: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *RedisStore) Clear(ctx context.Context, key SeriesKey) error {
	return s.rdb.Del(ctx, key.String()).Err()
}

// NewStore returns the store named by kind ("memory" or "redis").
func NewStore(kind string, rdb redis.UniversalClient, retention time.Duration) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("analytics store redis requires redis.enabled")
		}
		return NewRedisStore(rdb, retention), nil
	default:
		return nil, fmt.Errorf("unsupported analytics store: %s", kind)
	}
}
