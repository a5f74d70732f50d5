package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	postgres "github.com/cercia-labs/cercia-core/internal/adapters/postgres"
	"github.com/cercia-labs/cercia-core/internal/platform/jsonx"
	"github.com/cercia-labs/cercia-core/internal/ports/out/kv"
)

// ChangesChannel is the LISTEN/NOTIFY channel every write announces itself on.
const ChangesChannel = "cercia_kv_changes"

const schema = `
	CREATE TABLE IF NOT EXISTS cercia_kv (
		key        text PRIMARY KEY,
		value      jsonb NOT NULL,
		updated_at timestamptz NOT NULL DEFAULT now()
	)
`

// Store is a Postgres implementation of kv.Store. Writes and their change
// notification commit together, so every process sharing the database sees them.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewStore(pool *pgxpool.Pool, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: pool, log: log}
}

// EnsureSchema creates the backing table if it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return errors.New("nil postgres pool")
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create cercia_kv: %w", err)
	}
	return nil
}

type notification struct {
	Key     string `json:"key"`
	Removed bool   `json:"removed,omitempty"`
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.pool == nil {
		return nil, false, errors.New("nil postgres pool")
	}
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM cercia_kv WHERE key = $1`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, wrapSchemaErr(err)
	}
	return raw, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO cercia_kv (key, value, updated_at)
			VALUES ($1, $2::jsonb, now())
			ON CONFLICT (key) DO UPDATE SET
				value = EXCLUDED.value,
				updated_at = EXCLUDED.updated_at
		`, key, string(value))
		if err != nil {
			return wrapSchemaErr(err)
		}
		return notify(ctx, tx, notification{Key: key})
	})
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `DELETE FROM cercia_kv WHERE key = $1`, key)
		if err != nil {
			return wrapSchemaErr(err)
		}
		if ct.RowsAffected() == 0 {
			return nil
		}
		return notify(ctx, tx, notification{Key: key, Removed: true})
	})
}

// Watch holds a dedicated pool connection in LISTEN mode until ctx is done.
// The connection is closed afterwards rather than returned to the pool.
func (s *Store) Watch(ctx context.Context) (<-chan kv.Change, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+ChangesChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", ChangesChannel, err)
	}

	out := make(chan kv.Change, 16)
	go func() {
		defer close(out)
		defer func() {
			_ = conn.Conn().Close(context.Background())
			conn.Release()
		}()
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("kv watch stopped", zap.Error(err))
				}
				return
			}
			var msg notification
			if err := jsonx.Unmarshal([]byte(n.Payload), &msg); err != nil {
				s.log.Warn("kv watch: bad payload", zap.String("payload", n.Payload), zap.Error(err))
				continue
			}
			select {
			case out <- kv.Change{Key: msg.Key, Removed: msg.Removed}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func notify(ctx context.Context, tx pgx.Tx, n notification) error {
	payload, err := jsonx.Marshal(n)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, ChangesChannel, string(payload))
	return err
}

func wrapSchemaErr(err error) error {
	if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UndefinedTableCode {
		return fmt.Errorf("cercia_kv table missing (run with schema creation enabled): %w", err)
	}
	return err
}
