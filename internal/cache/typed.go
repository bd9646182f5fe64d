package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/metrics"
)

// Stats is a point-in-time snapshot of one typed cache.
type Stats struct {
	Name    string  `json:"name"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Entries int     `json:"entries"`
	Cap     int     `json:"capacity"`
	TTL     string  `json:"ttl"`
}

// Cache is a typed read-through cache over a Backend. Values are stored as
// JSON. Concurrent loads for the same key are collapsed with singleflight,
// and any backend failure degrades to calling the loader directly.
type Cache[T any] struct {
	name    string
	backend Backend
	ttl     time.Duration
	cap     int
	logger  *slog.Logger
	group   singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

func New[T any](name string, backend Backend, ttl time.Duration, capacity int, logger *slog.Logger) *Cache[T] {
	return &Cache[T]{
		name:    name,
		backend: backend,
		ttl:     ttl,
		cap:     capacity,
		logger:  logger.With("cache", name),
	}
}

// Get returns the cached value for key, calling load on a miss and storing
// the result. load runs at most once per key across concurrent callers.
func (c *Cache[T]) Get(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, error) {
	fullKey := c.name + ":" + key

	raw, err := c.backend.Get(ctx, fullKey)
	if err == nil {
		var value T
		if err := json.Unmarshal(raw, &value); err == nil {
			c.hits.Add(1)
			metrics.CacheHits.WithLabelValues(c.name).Inc()
			return value, nil
		}
		// Corrupt entry, drop it and fall through to the loader.
		_ = c.backend.Delete(ctx, fullKey)
	} else if err != ErrMiss {
		c.logger.Warn("cache backend failed, loading directly", "error", err)
		return load(ctx)
	}

	c.misses.Add(1)
	metrics.CacheMisses.WithLabelValues(c.name).Inc()

	result, err, _ := c.group.Do(fullKey, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return value, err
		}
		if raw, merr := json.Marshal(value); merr == nil {
			if serr := c.backend.Set(ctx, fullKey, raw, c.ttl); serr != nil {
				c.logger.Warn("cache store failed", "error", serr)
			}
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// Set writes through without a loader, for callers that already hold the
// fresh value after a mutation.
func (c *Cache[T]) Set(ctx context.Context, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return c.backend.Set(ctx, c.name+":"+key, raw, c.ttl)
}

func (c *Cache[T]) Invalidate(ctx context.Context, key string) {
	if err := c.backend.Delete(ctx, c.name+":"+key); err != nil {
		c.logger.Warn("cache invalidate failed", "key", key, "error", err)
	}
}

// InvalidatePattern removes every key of this cache matching the glob,
// e.g. "42:*" for all pages of one schedule.
func (c *Cache[T]) InvalidatePattern(ctx context.Context, pattern string) {
	if err := c.backend.DeletePattern(ctx, c.name+":"+pattern); err != nil {
		c.logger.Warn("cache invalidate pattern failed", "pattern", pattern, "error", err)
	}
}

func (c *Cache[T]) InvalidateAll(ctx context.Context) {
	c.InvalidatePattern(ctx, "*")
}

func (c *Cache[T]) Stats(ctx context.Context) Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	entries, _ := c.backend.Len(ctx)
	return Stats{
		Name:    c.name,
		Hits:    hits,
		Misses:  misses,
		HitRate: rate,
		Entries: entries,
		Cap:     c.cap,
		TTL:     c.ttl.String(),
	}
}

// Caches bundles every typed cache in the service with its tuned TTL and
// capacity. With Redis configured all caches share the one backend; without
// it each gets its own LRU so the capacities hold independently.
type Caches struct {
	EmployeeByEmail     *Cache[domain.Employee]
	DepartmentTree      *Cache[[]*domain.Department]
	Shift               *Cache[domain.Shift]
	ScheduleAssignments *Cache[AssignmentPage]
	RolePermissions     *Cache[[]string]
	Notifications       *Cache[NotificationPage]

	backends []Backend
	shared   bool
}

// NewCaches builds the cache set. redisURL may be empty; a non-empty URL that
// fails to connect falls back to in-process caches with a warning rather than
// failing startup.
func NewCaches(ctx context.Context, redisURL string, logger *slog.Logger) *Caches {
	var shared Backend
	if redisURL != "" {
		r, err := NewRedis(redisURL)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err = r.Ping(pingCtx)
			cancel()
		}
		if err != nil {
			logger.Warn("redis unavailable, using in-process caches", "error", err)
		} else {
			logger.Info("cache backend connected", "backend", "redis")
			shared = r
		}
	}

	c := &Caches{shared: shared != nil}
	pick := func(capacity int) Backend {
		if shared != nil {
			return shared
		}
		b := NewMemory(capacity)
		c.backends = append(c.backends, b)
		return b
	}
	if shared != nil {
		c.backends = append(c.backends, shared)
	}

	c.EmployeeByEmail = New[domain.Employee]("employee_by_email", pick(1000), 10*time.Minute, 1000, logger)
	c.DepartmentTree = New[[]*domain.Department]("department_tree", pick(200), 30*time.Minute, 200, logger)
	c.Shift = New[domain.Shift]("shift", pick(500), 10*time.Minute, 500, logger)
	c.ScheduleAssignments = New[AssignmentPage]("schedule_assignments", pick(500), 3*time.Minute, 500, logger)
	c.RolePermissions = New[[]string]("role_permissions", pick(20), 15*time.Minute, 20, logger)
	c.Notifications = New[NotificationPage]("notifications", pick(500), 1*time.Minute, 500, logger)
	return c
}

// Ping reports backend health for readiness checks. In-process caches are
// always healthy.
func (c *Caches) Ping(ctx context.Context) error {
	for _, b := range c.backends {
		if err := b.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Caches) Close() error {
	var first error
	for _, b := range c.backends {
		if err := b.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c *Caches) Stats(ctx context.Context) []Stats {
	return []Stats{
		c.EmployeeByEmail.Stats(ctx),
		c.DepartmentTree.Stats(ctx),
		c.Shift.Stats(ctx),
		c.ScheduleAssignments.Stats(ctx),
		c.RolePermissions.Stats(ctx),
		c.Notifications.Stats(ctx),
	}
}
