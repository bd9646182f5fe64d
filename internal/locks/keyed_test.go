package locks

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestKeyedSerializesSameKey(t *testing.T) {
	k := NewKeyed()
	ctx := context.Background()

	var mu sync.Mutex
	var inside int
	var maxInside int

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := k.Lock(ctx, "sched-1"); err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			k.Unlock("sched-1")
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInside)
	}
}

func TestKeyedIndependentKeys(t *testing.T) {
	k := NewKeyed()
	ctx := context.Background()

	if err := k.Lock(ctx, "sched-1"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer k.Unlock("sched-1")

	done := make(chan struct{})
	go func() {
		if err := k.Lock(ctx, "sched-2"); err != nil {
			t.Errorf("lock: %v", err)
		}
		k.Unlock("sched-2")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("other key blocked by held lock")
	}
}

func TestKeyedLockCancellation(t *testing.T) {
	k := NewKeyed()

	if err := k.Lock(context.Background(), "sched-1"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer k.Unlock("sched-1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := k.Lock(ctx, "sched-1"); err == nil {
		t.Fatal("expected context error while waiting on held lock")
	}
}

func TestKeyedCleansUpEntries(t *testing.T) {
	k := NewKeyed()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := k.Lock(ctx, "sched-1"); err != nil {
			t.Fatalf("lock: %v", err)
		}
		k.Unlock("sched-1")
	}

	k.mu.Lock()
	n := len(k.locks)
	k.mu.Unlock()
	if n != 0 {
		t.Errorf("entries = %d, want 0 after release", n)
	}
}
