package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LimiterClass tunes one endpoint class of the rate limiter.
type LimiterClass struct {
	PerMinute int
	Burst     int
}

// RateLimiter keeps a token bucket per principal key (user id when
// authenticated, client IP otherwise). Idle buckets are dropped after a
// few minutes so the map does not grow with one-off clients.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	done    chan struct{}
	once    sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(class LimiterClass) *RateLimiter {
	burst := class.Burst
	if burst <= 0 {
		burst = class.PerMinute
	}
	l := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(float64(class.PerMinute) / 60.0),
		burst:   burst,
		done:    make(chan struct{}),
	}
	go l.evictIdle()
	return l
}

// Allow reports whether the keyed principal may proceed.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()
	return b.limiter.Allow()
}

func (l *RateLimiter) Close() {
	l.once.Do(func() { close(l.done) })
}

func (l *RateLimiter) evictIdle() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for key, b := range l.buckets {
				if now.Sub(b.lastSeen) > 5*time.Minute {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
