package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/akande-ai/akande/pkg/cache"
	"github.com/akande-ai/akande/pkg/models"
)

// Cache is an exact-match answer cache backed by SQLite.
type Cache struct {
	db     *sql.DB
	opts   cache.Options
	mu     sync.Mutex // serializes writes with their eviction
	closed atomic.Bool

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	accessed_at INTEGER NOT NULL,
	hits INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_accessed ON cache_entries(accessed_at);
`

// New opens (creating if needed) the cache at dbPath. Failures are reported
// as cache.ErrStoreInit.
func New(dbPath string, opts cache.Options) (*Cache, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, cache.InitError("open", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, cache.InitError("migrate", fmt.Errorf("migrate cache db: %w", err))
	}

	return &Cache{db: db, opts: opts.WithDefaults()}, nil
}

// Open opens a SQLite database with WAL journaling and a busy timeout,
// creating the parent directory first. Tables in the same file may be
// shared by several stores.
func Open(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		return nil, errors.New("empty database path")
	}
	dsn := dbPath
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection keeps reads and writes on the same key linearizable.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// Get retrieves a cached answer. A missing or expired key is a miss.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	if c.closed.Load() {
		return "", false, cache.IOError("get", cache.ErrClosed)
	}
	start := time.Now()

	var value string
	var updatedAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT value, updated_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		c.miss(key, start)
		return "", false, nil
	}
	if err != nil {
		return "", false, cache.IOError("get", err)
	}

	now := c.opts.Now()
	if c.opts.Expired(time.Unix(0, updatedAt), now) {
		c.miss(key, start)
		return "", false, nil
	}

	if _, err := c.db.ExecContext(ctx,
		`UPDATE cache_entries SET accessed_at = ?, hits = hits + 1 WHERE key = ?`,
		now.UnixNano(), key,
	); err != nil {
		c.opts.Logger.Warn("cache touch failed", "key", key, "err", err)
	}

	c.hits.Add(1)
	c.opts.Logger.Debug("cache hit", "key", key, "latency", time.Since(start))
	return value, true, nil
}

func (c *Cache) miss(key string, start time.Time) {
	c.misses.Add(1)
	c.opts.Logger.Debug("cache miss", "key", key, "latency", time.Since(start))
}

// Put stores an answer, overwriting any previous value for key, then evicts
// least recently accessed entries beyond MaxEntries.
func (c *Cache) Put(ctx context.Context, key, value string) error {
	if c.closed.Load() {
		return cache.IOError("put", cache.ErrClosed)
	}
	now := c.opts.Now().UnixNano()
	return c.write(ctx, "put", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cache_entries (key, value, created_at, updated_at, accessed_at, hits)
			 VALUES (?, ?, ?, ?, ?, 0)
			 ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at,
				accessed_at = excluded.accessed_at`,
			key, value, now, now, now,
		)
		return err
	})
}

// Restore writes an entry with its original timestamps.
func (c *Cache) Restore(ctx context.Context, e models.CacheEntry) error {
	if c.closed.Load() {
		return cache.IOError("restore", cache.ErrClosed)
	}
	return c.write(ctx, "restore", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO cache_entries (key, value, created_at, updated_at, accessed_at, hits)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.Key, e.Value, unixNano(e.CreatedAt), unixNano(e.UpdatedAt), unixNano(e.AccessedAt), e.Hits,
		)
		return err
	})
}

func (c *Cache) write(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return cache.IOError(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return cache.IOError(op, err)
	}

	var evicted int64
	if c.opts.MaxEntries > 0 {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE key IN (
				SELECT key FROM cache_entries ORDER BY accessed_at DESC LIMIT -1 OFFSET ?
			)`, c.opts.MaxEntries,
		)
		if err != nil {
			return cache.IOError(op, fmt.Errorf("evict: %w", err))
		}
		evicted, _ = res.RowsAffected()
	}

	if err := tx.Commit(); err != nil {
		return cache.IOError(op, err)
	}
	if evicted > 0 {
		c.evictions.Add(evicted)
		c.opts.Logger.Debug("cache evict", "count", evicted, "max", c.opts.MaxEntries)
	}
	return nil
}

// Delete removes a single entry.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.exec(ctx, "delete", `DELETE FROM cache_entries WHERE key = ?`, key)
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	return c.exec(ctx, "clear", `DELETE FROM cache_entries`)
}

// Prune removes entries older than the TTL. It is a no-op without a TTL.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	if c.closed.Load() {
		return 0, cache.IOError("prune", cache.ErrClosed)
	}
	if c.opts.TTL <= 0 {
		return 0, nil
	}
	cutoff := c.opts.Now().Add(-c.opts.TTL).UnixNano()

	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, cache.IOError("prune", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (c *Cache) exec(ctx context.Context, op, query string, args ...any) error {
	if c.closed.Load() {
		return cache.IOError(op, cache.ErrClosed)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return cache.IOError(op, err)
	}
	return nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	if c.closed.Load() {
		return models.CacheStats{}, cache.IOError("stats", cache.ErrClosed)
	}
	var count, size int64
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) FROM cache_entries`,
	).Scan(&count, &size)
	if err != nil {
		return models.CacheStats{}, cache.IOError("stats", err)
	}
	return models.CacheStats{
		Entries:   count,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		SizeBytes: size,
	}, nil
}

// Entries calls fn for every entry in creation order.
func (c *Cache) Entries(ctx context.Context, fn func(models.CacheEntry) error) error {
	if c.closed.Load() {
		return cache.IOError("entries", cache.ErrClosed)
	}
	// Collect first: fn may call back into the cache, and the only
	// connection is held while rows are open.
	rows, err := c.db.QueryContext(ctx,
		`SELECT key, value, created_at, updated_at, accessed_at, hits
		 FROM cache_entries ORDER BY created_at, key`)
	if err != nil {
		return cache.IOError("entries", err)
	}
	var entries []models.CacheEntry
	for rows.Next() {
		var e models.CacheEntry
		var created, updated, accessed int64
		if err := rows.Scan(&e.Key, &e.Value, &created, &updated, &accessed, &e.Hits); err != nil {
			rows.Close()
			return cache.IOError("entries", err)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		e.UpdatedAt = time.Unix(0, updated).UTC()
		e.AccessedAt = time.Unix(0, accessed).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return cache.IOError("entries", err)
	}
	rows.Close()

	for _, e := range entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database connection. Calling it again is a no-op.
func (c *Cache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.db.Close()
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

var _ cache.Admin = (*Cache)(nil)
