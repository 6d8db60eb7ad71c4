package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/collectorvault/appraise/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// backend: a single file, no server, good enough for a workstation or a
// single-node deployment.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS valuation_cache (
	id         TEXT PRIMARY KEY,
	cache_key  TEXT NOT NULL UNIQUE,
	valuation  TEXT NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_valuation_cache_expires_at ON valuation_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*model.ValuationResult, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT valuation FROM valuation_cache
		 WHERE cache_key = ? AND expires_at > ?
		 LIMIT 1`,
		key, time.Now().UTC(),
	)

	var valJSON string
	err := row.Scan(&valJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get valuation")
	}

	var v model.ValuationResult
	if err := json.Unmarshal([]byte(valJSON), &v); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: unmarshal valuation")
	}
	return &v, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, val *model.ValuationResult, ttl time.Duration) error {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	id := uuid.New().String()
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	valJSON, err := json.Marshal(val)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal valuation")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO valuation_cache (id, cache_key, valuation, cached_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET valuation = excluded.valuation,
		   cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		id, key, string(valJSON), now, expiresAt,
	)
	return eris.Wrap(err, "sqlite: set valuation")
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM valuation_cache WHERE expires_at <= ?`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
