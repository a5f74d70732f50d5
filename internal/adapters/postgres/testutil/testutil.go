package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/cercia-labs/cercia-core/internal/adapters/postgres"
	pgkv "github.com/cercia-labs/cercia-core/internal/adapters/postgres/kv"
)

// EnvDSN names the variable holding the DSN of a disposable test database.
const EnvDSN = "CERCIA_TEST_POSTGRES_DSN"

// OpenPool connects to the test database and ensures the schema exists.
// The test is skipped when EnvDSN is unset.
func OpenPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s not set; skipping postgres tests", EnvDSN)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolOptions{MaxConns: 4})
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := pgkv.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return pool
}
