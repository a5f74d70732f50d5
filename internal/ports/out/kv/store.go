package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a store whose backing connection was closed.
var ErrClosed = errors.New("kv store closed")

// Change is emitted to watchers after a key was written or removed.
// Watchers re-read the key when they need the new value.
type Change struct {
	Key     string
	Removed bool
}

// Store is the durable key-value storage shared by every execution context of the
// extension. Values are JSON documents.
//
// There are no transactions: callers that read, modify and write a key back race
// with other writers and the last write wins.
type Store interface {
	// Get returns the stored document and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set creates or overwrites key.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Watch streams changes until ctx is done, then closes the channel.
	Watch(ctx context.Context) (<-chan Change, error)
}
