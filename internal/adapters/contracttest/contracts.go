package contracttest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	kvport "github.com/cercia-labs/cercia-core/internal/ports/out/kv"
	votestoreport "github.com/cercia-labs/cercia-core/internal/ports/out/votestore"
)

type CleanupFunc = func()

type KVStoreFactory func(t *testing.T) (kvport.Store, CleanupFunc)
type VoteStoreFactory func(t *testing.T) (votestoreport.Store, CleanupFunc)

// watchTimeout bounds how long a contract waits for a change notification; the
// network-backed stores deliver asynchronously.
const watchTimeout = 5 * time.Second

func RunKVStore(t *testing.T, newStore KVStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	// Keys are unique per run so shared databases do not leak state between runs.
	key := "contract:" + uuid.NewString()

	if _, ok, err := store.Get(ctx, key); err != nil || ok {
		t.Fatalf("Get missing: ok=%v err=%v, want ok=false", ok, err)
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	changes, err := store.Watch(watchCtx)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	doc := []byte(`{"post:p1":{"type":"up","votedAt":"2026-01-01T00:00:00Z"}}`)
	if err := store.Set(ctx, key, doc); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get after Set: ok=%v err=%v", ok, err)
	}
	if !jsonEqual(t, got, doc) {
		t.Fatalf("Get=%s, want %s", got, doc)
	}
	waitForChange(t, changes, key, false)

	// Overwrite semantics.
	doc2 := []byte(`{"nested":{"list":[1,2,3],"flag":true}}`)
	if err := store.Set(ctx, key, doc2); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, key)
	if err != nil || !ok || !jsonEqual(t, got, doc2) {
		t.Fatalf("expected overwritten value, got ok=%v err=%v value=%s", ok, err, got)
	}
	waitForChange(t, changes, key, false)

	if err := store.Remove(ctx, key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, err := store.Get(ctx, key); err != nil || ok {
		t.Fatalf("Get after Remove: ok=%v err=%v, want ok=false", ok, err)
	}
	waitForChange(t, changes, key, true)

	if err := store.Remove(ctx, key); err != nil {
		t.Fatalf("Remove missing: %v", err)
	}

	stopWatch()
	deadline := time.After(watchTimeout)
	for {
		select {
		case _, open := <-changes:
			if !open {
				return
			}
		case <-deadline:
			t.Fatalf("watch channel not closed after context cancel")
		}
	}
}

func waitForChange(t *testing.T, changes <-chan kvport.Change, key string, removed bool) {
	t.Helper()
	deadline := time.After(watchTimeout)
	for {
		select {
		case c, open := <-changes:
			if !open {
				t.Fatalf("watch channel closed while waiting for %s", key)
			}
			if c.Key == key && c.Removed == removed {
				return
			}
		case <-deadline:
			t.Fatalf("no change notification for key=%s removed=%v", key, removed)
		}
	}
}
