package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/akande-ai/akande/pkg/cache"
	"github.com/akande-ai/akande/pkg/models"
)

const testTimeout = 5 * time.Second

func newTestCache(t *testing.T, opts cache.Options) *Cache {
	t.Helper()
	dsn := os.Getenv("AKANDE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AKANDE_TEST_POSTGRES_DSN not set")
	}
	c, err := New(dsn, opts)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if err := c.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewWithoutDSN(t *testing.T) {
	_, err := New("", cache.Options{})
	if !errors.Is(err, ErrMissingDSN) {
		t.Errorf("expected ErrMissingDSN, got %v", err)
	}
	if !errors.Is(err, cache.ErrStoreInit) {
		t.Errorf("expected ErrStoreInit, got %v", err)
	}
}

func TestPutGetEvict(t *testing.T) {
	c := newTestCache(t, cache.Options{MaxEntries: 2})
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	_ = c.Put(ctx, "a", "1")
	time.Sleep(time.Millisecond)
	_ = c.Put(ctx, "b", "2")
	time.Sleep(time.Millisecond)
	if v, ok, err := c.Get(ctx, "a"); err != nil || !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v, %v", v, ok, err)
	}
	time.Sleep(time.Millisecond)
	if err := c.Put(ctx, "c", "3"); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := c.Get(ctx, "b"); ok {
		t.Error("b should have been evicted")
	}
	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 2 {
		t.Errorf("expected 2 entries, got %d", stats.Entries)
	}
}

func TestExpiredEntryIsNotTouched(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(t, cache.Options{TTL: time.Hour, Now: func() time.Time { return now }})
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if err := c.Put(ctx, "q", "a"); err != nil {
		t.Fatal(err)
	}
	written := now
	now = now.Add(2 * time.Hour)
	if _, ok, err := c.Get(ctx, "q"); err != nil || ok {
		t.Fatalf("expected expired miss, got ok=%v err=%v", ok, err)
	}

	var got []models.CacheEntry
	if err := c.Entries(ctx, func(e models.CacheEntry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].Hits != 0 || !got[0].AccessedAt.Equal(written) {
		t.Errorf("expired entry was touched: %+v", got[0])
	}
}
