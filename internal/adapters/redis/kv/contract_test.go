package kv_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/cercia-labs/cercia-core/internal/adapters/contracttest"
	redisadapter "github.com/cercia-labs/cercia-core/internal/adapters/redis"
	rediskv "github.com/cercia-labs/cercia-core/internal/adapters/redis/kv"
	kvport "github.com/cercia-labs/cercia-core/internal/ports/out/kv"
)

func TestContract_RedisKVStore(t *testing.T) {
	url := os.Getenv("CERCIA_TEST_REDIS_URL")
	if url == "" {
		t.Skip("CERCIA_TEST_REDIS_URL not set; skipping redis tests")
	}
	client, err := redisadapter.NewClient(context.Background(), url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	contracttest.RunKVStore(t, func(t *testing.T) (kvport.Store, func()) {
		t.Helper()
		// A fresh prefix isolates runs sharing one server.
		return rediskv.NewStore(client, "cercia-test:"+uuid.NewString()+":", nil), nil
	})
}
