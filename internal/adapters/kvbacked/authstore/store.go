// Package authstore persists the logged-in agent's credentials in a kv.Store.
package authstore

import (
	"context"
	"errors"

	"github.com/cercia-labs/cercia-core/internal/ports/out/authstore"
	"github.com/cercia-labs/cercia-core/internal/ports/out/kv"
)

// StorageKey is the kv key holding the credentials document.
const StorageKey = "cercia_auth"

type Store struct {
	kv kv.Store
}

func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

func (s *Store) Get(ctx context.Context) (authstore.Credentials, bool, error) {
	var c authstore.Credentials
	ok, err := kv.GetJSON(ctx, s.kv, StorageKey, &c)
	if err != nil || !ok {
		return authstore.Credentials{}, false, err
	}
	// A document without a key is not a login.
	if c.APIKey == "" {
		return authstore.Credentials{}, false, nil
	}
	return c, true, nil
}

func (s *Store) Save(ctx context.Context, c authstore.Credentials) error {
	if c.APIKey == "" {
		return errors.New("credentials without api key")
	}
	return kv.SetJSON(ctx, s.kv, StorageKey, c)
}

func (s *Store) Clear(ctx context.Context) error {
	return s.kv.Remove(ctx, StorageKey)
}

// Watch relays changes of the credentials key, including those made by other
// processes sharing the same backend.
func (s *Store) Watch(ctx context.Context) (<-chan authstore.Event, error) {
	changes, err := s.kv.Watch(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan authstore.Event, 4)
	go func() {
		defer close(out)
		for c := range changes {
			if c.Key != StorageKey {
				continue
			}
			select {
			case out <- authstore.Event{LoggedOut: c.Removed}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
