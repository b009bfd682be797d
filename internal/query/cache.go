package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"forecast-service/internal/common/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// memo is a size-bounded LRU of rendered single-entity responses with a TTL.
type memo[V any] struct {
	cache *lru.Cache[string, memoEntry[V]]
	ttl   time.Duration
	mu    sync.Mutex
}

type memoEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func newMemo[V any](size int, ttl time.Duration) (*memo[V], error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.New[string, memoEntry[V]](size)
	if err != nil {
		return nil, err
	}
	return &memo[V]{cache: c, ttl: ttl}, nil
}

// get is nil-safe; a nil memo always misses.
func (m *memo[V]) get(key string) (V, bool) {
	var zero V
	if m == nil {
		return zero, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.cache.Get(key)
	if !ok {
		metrics.CacheRequests.WithLabelValues("memo", "miss").Inc()
		return zero, false
	}
	if m.ttl > 0 && time.Now().After(e.expiresAt) {
		m.cache.Remove(key)
		metrics.CacheRequests.WithLabelValues("memo", "expired").Inc()
		return zero, false
	}
	metrics.CacheRequests.WithLabelValues("memo", "hit").Inc()
	return e.value, true
}

func (m *memo[V]) set(key string, v V) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoEntry[V]{value: v}
	if m.ttl > 0 {
		e.expiresAt = time.Now().Add(m.ttl)
	}
	m.cache.Add(key, e)
}

// AggregateCache stores rendered aggregate price results per year.
type AggregateCache interface {
	Get(ctx context.Context, year int) ([]PriceItem, bool, error)
	Set(ctx context.Context, year int, items []PriceItem) error
}

// RedisAggregateCache keeps aggregate results in Redis under <prefix>:aggregate:<year>.
type RedisAggregateCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisAggregateCache(client redis.Cmdable, prefix string, ttl time.Duration) *RedisAggregateCache {
	return &RedisAggregateCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisAggregateCache) key(year int) string {
	return fmt.Sprintf("%s:aggregate:%d", c.prefix, year)
}

func (c *RedisAggregateCache) Get(ctx context.Context, year int) ([]PriceItem, bool, error) {
	raw, err := c.client.Get(ctx, c.key(year)).Bytes()
	if err == redis.Nil {
		metrics.CacheRequests.WithLabelValues("redis", "miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.CacheRequests.WithLabelValues("redis", "error").Inc()
		return nil, false, fmt.Errorf("redis get %s: %w", c.key(year), err)
	}

	var items []PriceItem
	if err := json.Unmarshal(raw, &items); err != nil {
		metrics.CacheRequests.WithLabelValues("redis", "error").Inc()
		return nil, false, fmt.Errorf("decode cached aggregate %d: %w", year, err)
	}
	metrics.CacheRequests.WithLabelValues("redis", "hit").Inc()
	return items, true, nil
}

func (c *RedisAggregateCache) Set(ctx context.Context, year int, items []PriceItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode aggregate %d: %w", year, err)
	}
	if err := c.client.Set(ctx, c.key(year), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.key(year), err)
	}
	return nil
}
