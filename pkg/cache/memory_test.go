package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestMemory(t *testing.T, opts Options) (*Memory, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	opts.Now = clock.Now
	m := NewMemory(opts)
	t.Cleanup(func() { _ = m.Close() })
	return m, clock
}

func TestMemoryPutAndGet(t *testing.T) {
	m, _ := newTestMemory(t, Options{})
	ctx := context.Background()

	if _, ok, err := m.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if err := m.Put(ctx, "k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := m.Put(ctx, "k", "v2"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := m.Get(ctx, "k")
	if err != nil || !ok || v != "v2" {
		t.Fatalf("Get = %q, %v, %v; want v2", v, ok, err)
	}

	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 || stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	m, clock := newTestMemory(t, Options{MaxEntries: 2})
	ctx := context.Background()

	_ = m.Put(ctx, "a", "1")
	clock.Advance(time.Second)
	_ = m.Put(ctx, "b", "2")
	clock.Advance(time.Second)
	if _, ok, _ := m.Get(ctx, "a"); !ok {
		t.Fatal("expected hit for a")
	}
	clock.Advance(time.Second)
	_ = m.Put(ctx, "c", "3")

	if _, ok, _ := m.Get(ctx, "b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok, _ := m.Get(ctx, k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
	stats, _ := m.Stats(ctx)
	if stats.Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", stats.Evictions)
	}
}

func TestMemoryTTL(t *testing.T) {
	m, clock := newTestMemory(t, Options{TTL: time.Hour})
	ctx := context.Background()

	_ = m.Put(ctx, "old", "x")
	clock.Advance(2 * time.Hour)
	_ = m.Put(ctx, "new", "y")

	if _, ok, _ := m.Get(ctx, "old"); ok {
		t.Error("expected miss for expired entry")
	}
	n, err := m.Prune(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
	if _, ok, _ := m.Get(ctx, "new"); !ok {
		t.Error("fresh entry should survive prune")
	}
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory(Options{})
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	_, _, err := m.Get(context.Background(), "k")
	if !errors.Is(err, ErrStoreIO) || !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrStoreIO wrapping ErrClosed, got %v", err)
	}
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Op != "get" {
		t.Errorf("expected *Error with op get, got %#v", err)
	}
}

func TestMemoryConcurrentAccess(t *testing.T) {
	m, _ := newTestMemory(t, Options{MaxEntries: 50})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%20)
				_ = m.Put(ctx, key, fmt.Sprintf("%d-%d", i, j))
				_, _, _ = m.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 20 {
		t.Errorf("expected 20 entries, got %d", stats.Entries)
	}
}
