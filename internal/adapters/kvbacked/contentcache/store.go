// Package contentcache records the posts and comments the user created, newest first.
package contentcache

import (
	"context"
	"sync"

	"github.com/cercia-labs/cercia-core/internal/ports/out/contentcache"
	"github.com/cercia-labs/cercia-core/internal/ports/out/kv"
)

const (
	PostsKey    = "cercia_my_posts"
	CommentsKey = "cercia_my_comments"
)

type Store struct {
	kv kv.Store
	mu sync.Mutex
}

func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

func (s *Store) AddPost(ctx context.Context, p contentcache.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return prepend(ctx, s.kv, PostsKey, p)
}

func (s *Store) Posts(ctx context.Context) ([]contentcache.Post, error) {
	return list[contentcache.Post](ctx, s.kv, PostsKey)
}

func (s *Store) AddComment(ctx context.Context, c contentcache.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return prepend(ctx, s.kv, CommentsKey, c)
}

func (s *Store) Comments(ctx context.Context) ([]contentcache.Comment, error) {
	return list[contentcache.Comment](ctx, s.kv, CommentsKey)
}

func list[T any](ctx context.Context, store kv.Store, key string) ([]T, error) {
	var items []T
	if _, err := kv.GetJSON(ctx, store, key, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func prepend[T any](ctx context.Context, store kv.Store, key string, item T) error {
	items, err := list[T](ctx, store, key)
	if err != nil {
		return err
	}
	items = append([]T{item}, items...)
	return kv.SetJSON(ctx, store, key, items)
}
