package kv

import (
	"context"
	"sync"

	"github.com/cercia-labs/cercia-core/internal/platform/fanout"
	"github.com/cercia-labs/cercia-core/internal/ports/out/kv"
)

// Store is an in-memory implementation of kv.Store.
// It is safe for concurrent use.
type Store struct {
	mu sync.RWMutex
	m  map[string][]byte

	changes *fanout.Hub[kv.Change]
}

func NewStore() *Store {
	return &Store{
		m:       make(map[string][]byte),
		changes: fanout.NewHub[kv.Change](64),
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_ = ctx
	s.mu.Lock()
	s.m[key] = cloneBytes(value)
	s.mu.Unlock()

	s.changes.Publish(kv.Change{Key: key})
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	_, existed := s.m[key]
	delete(s.m, key)
	s.mu.Unlock()

	if existed {
		s.changes.Publish(kv.Change{Key: key, Removed: true})
	}
	return nil
}

func (s *Store) Watch(ctx context.Context) (<-chan kv.Change, error) {
	return s.changes.SubscribeContext(ctx), nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
