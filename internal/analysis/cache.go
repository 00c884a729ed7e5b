package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/textplot/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/resilience"
)

const keyPrefix = "analysis:"

// Store is the subset of the Redis client the cache needs. Get reports an
// absent key as pkgredis.ErrMiss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
	CountPrefix(ctx context.Context, prefix string) (int64, error)
}

// CacheStats is the body of GET /api/v1/cache/stats.
type CacheStats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Total   int64  `json:"total"`
	HitRate string `json:"hit_rate"`
	// Entries is nil when Redis could not be asked.
	Entries *int64                     `json:"entries,omitempty"`
	Breaker string                     `json:"breaker"`
	Circuit resilience.BreakerSnapshot `json:"circuit"`
	Pool    *pkgredis.PoolStats        `json:"pool,omitempty"`
}

type pooled interface {
	PoolStats() pkgredis.PoolStats
}

// ResultCache holds serialised analysis responses. Keys include the corpus
// version, so a response is never served for a corpus it was not computed
// on. Redis failures trip a circuit breaker and degrade to computing every
// request.
type ResultCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewResultCache caches responses in store for ttl. m may be nil.
func NewResultCache(store Store, ttl time.Duration, m *metrics.Metrics) *ResultCache {
	c := &ResultCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "result-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.BreakerConfig{
		Failures: 5,
		Cooldown: 30 * time.Second,
		Logger:   c.logger,
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// Key derives the cache key of one request against one corpus version.
func (c *ResultCache) Key(operation string, version uint64, req any) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding cache key: %w", err)
	}
	raw := fmt.Sprintf("%s|v%d|%s", operation, version, body)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, operation, hash[:16]), nil
}

func (c *ResultCache) get(ctx context.Context, key string) ([]byte, bool) {
	var data []byte
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.store.Get(ctx, key)
		if errors.Is(err, pkgredis.ErrMiss) {
			return nil
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	if data == nil {
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return data, true
}

func (c *ResultCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *ResultCache) set(ctx context.Context, key string, data []byte) {
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached bytes for key, or runs computeFn once per
// key across concurrent callers and stores its result.
func (c *ResultCache) GetOrCompute(ctx context.Context, key string, computeFn func() ([]byte, error)) ([]byte, bool, error) {
	if data, ok := c.get(ctx, key); ok {
		return data, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		data, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, data)
		return data, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]byte), false, nil
}

// Invalidate drops every cached response.
func (c *ResultCache) Invalidate(ctx context.Context) error {
	var deleted int64
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = c.store.DeletePrefix(ctx, keyPrefix)
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

// Stats reports hit counters of this process, the number of cached entries
// and the state of the breaker guarding Redis.
func (c *ResultCache) Stats(ctx context.Context) CacheStats {
	st := CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	st.Total = st.Hits + st.Misses
	var rate float64
	if st.Total > 0 {
		rate = float64(st.Hits) / float64(st.Total) * 100
	}
	st.HitRate = fmt.Sprintf("%.1f%%", rate)

	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		n, err := c.store.CountPrefix(ctx, keyPrefix)
		if err == nil {
			st.Entries = &n
		}
		return err
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn("counting cache entries failed", "error", err)
	}

	if p, ok := c.store.(pooled); ok {
		ps := p.PoolStats()
		st.Pool = &ps
	}
	st.Circuit = c.breaker.Snapshot()
	st.Breaker = st.Circuit.State.String()
	return st
}

// State reports the circuit breaker state guarding Redis.
func (c *ResultCache) State() resilience.State {
	return c.breaker.State()
}

var _ Store = (*pkgredis.Client)(nil)
