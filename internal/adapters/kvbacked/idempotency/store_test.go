package idempotency

import (
	"testing"

	"github.com/cercia-labs/cercia-core/internal/adapters/contracttest"
	memkv "github.com/cercia-labs/cercia-core/internal/adapters/memory/kv"
	idempotencyport "github.com/cercia-labs/cercia-core/internal/ports/out/idempotency"
)

func TestStore_Contract(t *testing.T) {
	contracttest.RunIdempotencyStore(t, func(t *testing.T) (idempotencyport.Store, contracttest.CleanupFunc) {
		return NewStore(memkv.NewStore()), nil
	})
}
