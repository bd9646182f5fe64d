package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)

	require.NoError(t, m.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), 0))

	// Touch "a" so "b" becomes the eviction candidate.
	_, err := m.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "c", []byte("3"), 0))

	_, err = m.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrMiss)

	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryDeletePattern(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)

	require.NoError(t, m.Set(ctx, "shift:1", []byte("a"), 0))
	require.NoError(t, m.Set(ctx, "shift:2", []byte("b"), 0))
	require.NoError(t, m.Set(ctx, "employee:1", []byte("c"), 0))

	require.NoError(t, m.DeletePattern(ctx, "shift:*"))

	_, err := m.Get(ctx, "shift:1")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = m.Get(ctx, "shift:2")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = m.Get(ctx, "employee:1")
	assert.NoError(t, err)
}

func TestCacheReadThrough(t *testing.T) {
	ctx := context.Background()
	c := New[string]("test", NewMemory(10), time.Minute, 10, testLogger())

	var loads int
	load := func(context.Context) (string, error) {
		loads++
		return "loaded", nil
	}

	got, err := c.Get(ctx, "k", load)
	require.NoError(t, err)
	assert.Equal(t, "loaded", got)
	assert.Equal(t, 1, loads)

	got, err = c.Get(ctx, "k", load)
	require.NoError(t, err)
	assert.Equal(t, "loaded", got)
	assert.Equal(t, 1, loads, "second read should hit")

	stats := c.Stats(ctx)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
}

func TestCacheLoaderErrorNotCached(t *testing.T) {
	ctx := context.Background()
	c := New[int]("test", NewMemory(10), time.Minute, 10, testLogger())

	boom := errors.New("boom")
	_, err := c.Get(ctx, "k", func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	got, err := c.Get(ctx, "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestCacheInvalidatePattern(t *testing.T) {
	ctx := context.Background()
	c := New[string]("page", NewMemory(10), time.Minute, 10, testLogger())

	loads := map[string]int{}
	loader := func(key string) func(context.Context) (string, error) {
		return func(context.Context) (string, error) {
			loads[key]++
			return key, nil
		}
	}

	_, _ = c.Get(ctx, "42:p1", loader("42:p1"))
	_, _ = c.Get(ctx, "42:p2", loader("42:p2"))
	_, _ = c.Get(ctx, "43:p1", loader("43:p1"))

	c.InvalidatePattern(ctx, "42:*")

	_, _ = c.Get(ctx, "42:p1", loader("42:p1"))
	_, _ = c.Get(ctx, "43:p1", loader("43:p1"))

	assert.Equal(t, 2, loads["42:p1"], "invalidated key reloads")
	assert.Equal(t, 1, loads["43:p1"], "other key stays cached")
}

type failingBackend struct{}

func (failingBackend) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}
func (failingBackend) Delete(context.Context, string) error        { return errors.New("down") }
func (failingBackend) DeletePattern(context.Context, string) error { return errors.New("down") }
func (failingBackend) Len(context.Context) (int, error)            { return 0, errors.New("down") }
func (failingBackend) Ping(context.Context) error                  { return errors.New("down") }
func (failingBackend) Close() error                                { return nil }

func TestCacheDegradesWhenBackendFails(t *testing.T) {
	ctx := context.Background()
	c := New[string]("test", failingBackend{}, time.Minute, 10, testLogger())

	got, err := c.Get(ctx, "k", func(context.Context) (string, error) { return "direct", nil })
	require.NoError(t, err)
	assert.Equal(t, "direct", got)
}

func TestCacheCollapsesConcurrentLoads(t *testing.T) {
	ctx := context.Background()
	c := New[string]("test", NewMemory(10), time.Minute, 10, testLogger())

	var loads atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (string, error) {
		loads.Add(1)
		<-release
		return "v", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Get(ctx, "k", load)
			assert.NoError(t, err)
			assert.Equal(t, "v", got)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
}
