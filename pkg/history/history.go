package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akande-ai/akande/pkg/cache/sqlite"
	"github.com/akande-ai/akande/pkg/models"
)

// Recorder stores interactions.
type Recorder interface {
	Record(ctx context.Context, it models.Interaction) error
}

// Log records and queries the interaction history.
type Log interface {
	Recorder
	// Recent returns the newest interactions first, optionally limited to a session.
	Recent(ctx context.Context, sessionID string, limit int) ([]models.Interaction, error)
	// CountGatewayCalls counts successful gateway answers since a given time.
	// An empty provider counts every provider.
	CountGatewayCalls(ctx context.Context, provider string, since time.Time) (int64, error)
	// Summary aggregates interactions per day since a given time.
	Summary(ctx context.Context, since time.Time) ([]models.HistorySummary, error)
	// StartSession creates a new session and returns its ID.
	StartSession(ctx context.Context) (string, error)
	// ResolveSession reuses explicitID when given, otherwise the latest session
	// active within gap, otherwise starts a new one.
	ResolveSession(ctx context.Context, explicitID string, gap time.Duration) (string, error)
	// ListSessions returns sessions, newest first.
	ListSessions(ctx context.Context) ([]models.Session, error)
	Close() error
}

// SQLite implements Log with a SQLite database.
type SQLite struct {
	db *sql.DB
}

const createInteractionsTable = `
CREATE TABLE IF NOT EXISTS interactions (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL DEFAULT '',
	question TEXT NOT NULL,
	key TEXT NOT NULL,
	answer TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	provider TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	latency_ms INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_time ON interactions(created_at);
CREATE INDEX IF NOT EXISTS idx_interactions_session ON interactions(session_id, created_at);
`

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	last_activity INTEGER NOT NULL,
	questions INTEGER NOT NULL DEFAULT 0
);
`

// New opens the history tables in the database at dbPath, which may be
// the same file as the cache.
func New(dbPath string) (*SQLite, error) {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec(createInteractionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	if _, err := db.Exec(createSessionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sessions table: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Record stores an interaction and bumps its session counters. A missing ID
// or timestamp is filled in.
func (h *SQLite) Record(ctx context.Context, it models.Interaction) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}

	_, err := h.db.ExecContext(ctx,
		`INSERT INTO interactions (id, session_id, question, key, answer, source, provider, model, latency_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.SessionID, it.Question, it.Key, it.Answer, string(it.Source),
		it.Provider, it.Model, it.Latency.Milliseconds(), it.Error, it.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}

	if it.SessionID != "" {
		_, err = h.db.ExecContext(ctx,
			`UPDATE sessions SET last_activity = ?, questions = questions + 1 WHERE id = ?`,
			it.CreatedAt.UnixNano(), it.SessionID,
		)
		if err != nil {
			return fmt.Errorf("update session counters: %w", err)
		}
	}
	return nil
}

func (h *SQLite) Recent(ctx context.Context, sessionID string, limit int) ([]models.Interaction, error) {
	query := `SELECT id, session_id, question, key, answer, source, provider, model, latency_ms, error, created_at
		FROM interactions`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []models.Interaction
	for rows.Next() {
		var it models.Interaction
		var source string
		var latencyMs, created int64
		if err := rows.Scan(&it.ID, &it.SessionID, &it.Question, &it.Key, &it.Answer, &source,
			&it.Provider, &it.Model, &latencyMs, &it.Error, &created); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		it.Source = models.AnswerSource(source)
		it.Latency = time.Duration(latencyMs) * time.Millisecond
		it.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, it)
	}
	return out, rows.Err()
}

func (h *SQLite) CountGatewayCalls(ctx context.Context, provider string, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM interactions WHERE source = ? AND error = '' AND created_at >= ?`
	args := []any{string(models.SourceGateway), since.UnixNano()}
	if provider != "" {
		query += ` AND provider = ?`
		args = append(args, provider)
	}

	var n int64
	if err := h.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count gateway calls: %w", err)
	}
	return n, nil
}

func (h *SQLite) Summary(ctx context.Context, since time.Time) ([]models.HistorySummary, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT strftime('%Y-%m-%d', created_at / 1000000000, 'unixepoch') AS day,
			COUNT(*),
			SUM(CASE WHEN source = 'cache' THEN 1 ELSE 0 END),
			SUM(CASE WHEN source = 'gateway' AND error = '' THEN 1 ELSE 0 END),
			SUM(CASE WHEN error != '' THEN 1 ELSE 0 END),
			COALESCE(AVG(latency_ms), 0)
		 FROM interactions WHERE created_at >= ?
		 GROUP BY day ORDER BY day DESC`,
		since.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var out []models.HistorySummary
	for rows.Next() {
		var s models.HistorySummary
		var avgMs float64
		if err := rows.Scan(&s.Day, &s.Questions, &s.CacheHits, &s.GatewayCalls, &s.Failures, &avgMs); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.AvgLatency = time.Duration(avgMs * float64(time.Millisecond))
		out = append(out, s)
	}
	return out, rows.Err()
}

func (h *SQLite) StartSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().UnixNano()
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, last_activity) VALUES (?, ?, ?)`,
		id, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (h *SQLite) ResolveSession(ctx context.Context, explicitID string, gap time.Duration) (string, error) {
	now := time.Now().UTC()

	if explicitID != "" {
		_, err := h.db.ExecContext(ctx,
			`INSERT INTO sessions (id, started_at, last_activity) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			explicitID, now.UnixNano(), now.UnixNano(),
		)
		if err != nil {
			return "", fmt.Errorf("ensure session: %w", err)
		}
		return explicitID, nil
	}

	var lastID string
	var lastActivity int64
	err := h.db.QueryRowContext(ctx,
		`SELECT id, last_activity FROM sessions ORDER BY last_activity DESC LIMIT 1`,
	).Scan(&lastID, &lastActivity)
	switch {
	case err == nil && now.Sub(time.Unix(0, lastActivity)) <= gap:
		return lastID, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("latest session: %w", err)
	}
	return h.StartSession(ctx)
}

func (h *SQLite) ListSessions(ctx context.Context) ([]models.Session, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, started_at, last_activity, questions FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		var started, last int64
		if err := rows.Scan(&s.ID, &started, &last, &s.Questions); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.StartedAt = time.Unix(0, started).UTC()
		s.LastActivity = time.Unix(0, last).UTC()
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Close releases the database connection.
func (h *SQLite) Close() error {
	return h.db.Close()
}

var _ Log = (*SQLite)(nil)
