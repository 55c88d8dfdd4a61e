// Package cache stores summaries in a local SQLite file so reruns over the
// same text skip the inference call.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pagedigest/internal/model"
)

// SQLite implements a TTL summary cache using modernc.org/sqlite.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the cache database at path and configures WAL mode.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	return &SQLite{db: db, now: time.Now}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS summaries (
	key        TEXT PRIMARY KEY,
	source_url TEXT NOT NULL,
	kind       TEXT NOT NULL,
	summary    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_summaries_expires_at ON summaries(expires_at);
`

// Migrate creates the cache schema if needed.
func (s *SQLite) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "cache: migrate")
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get returns the cached summary for key, or nil when absent or expired.
func (s *SQLite) Get(ctx context.Context, key string) (*model.Summary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT summary FROM summaries WHERE key = ? AND expires_at > ?`,
		key, s.now().Unix(),
	)

	var raw string
	err := row.Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: get")
	}

	var sum model.Summary
	if err := json.Unmarshal([]byte(raw), &sum); err != nil {
		return nil, eris.Wrap(err, "cache: unmarshal summary")
	}
	sum.Cached = true
	return &sum, nil
}

// Set stores sum under key for ttl, replacing any previous entry.
func (s *SQLite) Set(ctx context.Context, key, sourceURL, kind string, sum *model.Summary, ttl time.Duration) error {
	stored := *sum
	stored.Cached = false
	raw, err := json.Marshal(stored)
	if err != nil {
		return eris.Wrap(err, "cache: marshal summary")
	}

	now := s.now()
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO summaries (key, source_url, kind, summary, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		key, sourceURL, kind, string(raw), now.Unix(), now.Add(ttl).Unix(),
	)
	return eris.Wrap(err, "cache: set")
}

// Prune deletes expired entries and returns how many were removed.
func (s *SQLite) Prune(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM summaries WHERE expires_at <= ?`,
		s.now().Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "cache: prune")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "cache: rows affected")
}

// Key derives the cache key for one summarizer call. variant names the
// summarizer settings that change its output, such as the review pass.
func Key(provider, modelID, variant, kind, sourceURL, text string) string {
	h := sha256.New()
	for _, part := range []string{provider, modelID, variant, kind, sourceURL, text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
