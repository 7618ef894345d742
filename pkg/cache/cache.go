package cache

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/akande-ai/akande/pkg/models"
)

// DefaultMaxEntries bounds a store when no explicit limit is configured.
const DefaultMaxEntries = 1000

// Store is the contract the assistant relies on.
//
// Get reports a miss as ok == false with a nil error. Put stores or
// overwrites the value for key. Close releases the underlying handle and is
// safe to call more than once.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key, value string) error
	Close() error
}

// Admin is implemented by stores that support maintenance operations.
type Admin interface {
	Store
	// Delete removes a single key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Clear removes every entry.
	Clear(ctx context.Context) error
	// Prune removes expired entries and returns how many were removed.
	Prune(ctx context.Context) (int64, error)
	// Stats returns entry counts and this process's hit/miss counters.
	Stats(ctx context.Context) (models.CacheStats, error)
	// Entries calls fn for each entry, oldest first. Iteration stops at the
	// first error returned by fn.
	Entries(ctx context.Context, fn func(models.CacheEntry) error) error
	// Restore writes an entry with its original timestamps.
	Restore(ctx context.Context, entry models.CacheEntry) error
}

// Options configures a store.
type Options struct {
	// MaxEntries caps the number of entries. When a write grows the store
	// beyond it, the least recently accessed entries are evicted.
	// Zero means unbounded.
	MaxEntries int
	// TTL expires entries that were last written longer ago than TTL.
	// Zero means entries never expire.
	TTL time.Duration
	// Logger receives hit/miss and eviction events. Defaults to log.Default().
	Logger *log.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// WithDefaults fills unset fields.
func (o Options) WithDefaults() Options {
	if o.MaxEntries < 0 {
		o.MaxEntries = 0
	}
	if o.TTL < 0 {
		o.TTL = 0
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Expired reports whether an entry last written at updated has outlived the TTL.
func (o Options) Expired(updated, now time.Time) bool {
	return o.TTL > 0 && now.Sub(updated) > o.TTL
}
