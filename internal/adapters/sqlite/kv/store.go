package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/cercia-labs/cercia-core/internal/platform/fanout"
	"github.com/cercia-labs/cercia-core/internal/ports/out/kv"
)

const schema = `
	CREATE TABLE IF NOT EXISTS cercia_kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	)
`

// Store is a single-file SQLite implementation of kv.Store. Change notification
// is in-process only: other processes opening the same file are not notified.
type Store struct {
	db      *sql.DB
	changes *fanout.Hub[kv.Change]
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer at a time avoids SQLITE_BUSY from the driver's pool.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		schema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}
	return &Store{db: db, changes: fanout.NewHub[kv.Change](64)}, nil
}

func (s *Store) Close() error {
	s.changes.Close()
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cercia_kv WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, mapErr(err)
	}
	return []byte(raw), true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cercia_kv (key, value, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, string(value))
	if err != nil {
		return mapErr(err)
	}
	s.changes.Publish(kv.Change{Key: key})
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cercia_kv WHERE key = ?`, key)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.changes.Publish(kv.Change{Key: key, Removed: true})
	}
	return nil
}

func (s *Store) Watch(ctx context.Context) (<-chan kv.Change, error) {
	return s.changes.SubscribeContext(ctx), nil
}

func mapErr(err error) error {
	if errors.Is(err, sql.ErrConnDone) || err.Error() == "sql: database is closed" {
		return kv.ErrClosed
	}
	return err
}
