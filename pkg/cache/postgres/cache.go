// Package postgres stores the answer cache in PostgreSQL, for deployments
// where several front ends share one cache.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq"

	"github.com/akande-ai/akande/pkg/cache"
	"github.com/akande-ai/akande/pkg/models"
)

// ErrMissingDSN is returned when no connection string is configured.
var ErrMissingDSN = errors.New("postgres: DSN is required")

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL,
	accessed_at BIGINT NOT NULL,
	hits BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_accessed ON cache_entries(accessed_at);
`

// Cache is a cache.Admin backed by PostgreSQL.
type Cache struct {
	db     *sql.DB
	opts   cache.Options
	mu     sync.Mutex
	closed atomic.Bool

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New connects to dsn, applies pool settings and creates the table.
// Failures are reported as cache.ErrStoreInit.
func New(dsn string, opts cache.Options) (*Cache, error) {
	if dsn == "" {
		return nil, cache.InitError("open", ErrMissingDSN)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, cache.InitError("open", fmt.Errorf("postgres: open: %w", err))
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, cache.InitError("open", fmt.Errorf("postgres: ping: %w", err))
	}
	if _, err := db.Exec(createCacheTable); err != nil {
		_ = db.Close()
		return nil, cache.InitError("migrate", fmt.Errorf("postgres: migrate: %w", err))
	}

	return &Cache{db: db, opts: opts.WithDefaults()}, nil
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	if c.closed.Load() {
		return "", false, cache.IOError("get", cache.ErrClosed)
	}
	start := time.Now()
	now := c.opts.Now()

	// Expired rows are neither returned nor touched.
	var cutoff int64
	if c.opts.TTL > 0 {
		cutoff = now.Add(-c.opts.TTL).UnixNano()
	}

	var value string
	err := c.db.QueryRowContext(ctx,
		`UPDATE cache_entries SET accessed_at = $2, hits = hits + 1
		 WHERE key = $1 AND ($3::BIGINT = 0 OR updated_at >= $3::BIGINT)
		 RETURNING value`,
		key, now.UnixNano(), cutoff,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		c.misses.Add(1)
		c.opts.Logger.Debug("cache miss", "key", key, "latency", time.Since(start))
		return "", false, nil
	}
	if err != nil {
		return "", false, cache.IOError("get", err)
	}

	c.hits.Add(1)
	c.opts.Logger.Debug("cache hit", "key", key, "latency", time.Since(start))
	return value, true, nil
}

func (c *Cache) Put(ctx context.Context, key, value string) error {
	if c.closed.Load() {
		return cache.IOError("put", cache.ErrClosed)
	}
	now := c.opts.Now().UnixNano()
	return c.write(ctx, "put", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cache_entries (key, value, created_at, updated_at, accessed_at, hits)
			 VALUES ($1, $2, $3, $3, $3, 0)
			 ON CONFLICT (key) DO UPDATE SET
				value = EXCLUDED.value,
				updated_at = EXCLUDED.updated_at,
				accessed_at = EXCLUDED.accessed_at`,
			key, value, now,
		)
		return err
	})
}

func (c *Cache) Restore(ctx context.Context, e models.CacheEntry) error {
	if c.closed.Load() {
		return cache.IOError("restore", cache.ErrClosed)
	}
	return c.write(ctx, "restore", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cache_entries (key, value, created_at, updated_at, accessed_at, hits)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (key) DO UPDATE SET
				value = EXCLUDED.value,
				created_at = EXCLUDED.created_at,
				updated_at = EXCLUDED.updated_at,
				accessed_at = EXCLUDED.accessed_at,
				hits = EXCLUDED.hits`,
			e.Key, e.Value, e.CreatedAt.UnixNano(), e.UpdatedAt.UnixNano(), e.AccessedAt.UnixNano(), e.Hits,
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
				SELECT key FROM cache_entries ORDER BY accessed_at DESC OFFSET $1
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
		c.opts.Logger.Debug("cache evict", "count", evicted)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.exec(ctx, "delete", `DELETE FROM cache_entries WHERE key = $1`, key)
}

func (c *Cache) Clear(ctx context.Context) error {
	return c.exec(ctx, "clear", `DELETE FROM cache_entries`)
}

func (c *Cache) exec(ctx context.Context, op, query string, args ...any) error {
	if c.closed.Load() {
		return cache.IOError(op, cache.ErrClosed)
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return cache.IOError(op, err)
	}
	return nil
}

func (c *Cache) Prune(ctx context.Context) (int64, error) {
	if c.closed.Load() {
		return 0, cache.IOError("prune", cache.ErrClosed)
	}
	if c.opts.TTL <= 0 {
		return 0, nil
	}
	cutoff := c.opts.Now().Add(-c.opts.TTL).UnixNano()
	res, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, cache.IOError("prune", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	if c.closed.Load() {
		return models.CacheStats{}, cache.IOError("stats", cache.ErrClosed)
	}
	var count, size int64
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(OCTET_LENGTH(key) + OCTET_LENGTH(value)), 0) FROM cache_entries`,
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

func (c *Cache) Entries(ctx context.Context, fn func(models.CacheEntry) error) error {
	if c.closed.Load() {
		return cache.IOError("entries", cache.ErrClosed)
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT key, value, created_at, updated_at, accessed_at, hits
		 FROM cache_entries ORDER BY created_at, key`)
	if err != nil {
		return cache.IOError("entries", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e models.CacheEntry
		var created, updated, accessed int64
		if err := rows.Scan(&e.Key, &e.Value, &created, &updated, &accessed, &e.Hits); err != nil {
			return cache.IOError("entries", err)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		e.UpdatedAt = time.Unix(0, updated).UTC()
		e.AccessedAt = time.Unix(0, accessed).UTC()
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return cache.IOError("entries", err)
	}
	return nil
}

// Close releases the connection pool. Calling it again is a no-op.
func (c *Cache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.db.Close()
}

var _ cache.Admin = (*Cache)(nil)
