// Package cache provides the typed read-through caches backed by either an
// in-process LRU map or Redis. Callers never depend on cache availability:
// a failing backend degrades to the loader.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Backend.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Backend is the raw byte store beneath the typed caches.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeletePattern removes every key matching a glob-style pattern such as
	// "employee:*".
	DeletePattern(ctx context.Context, pattern string) error
	Len(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}
