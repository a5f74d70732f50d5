// Package idempotency keeps replayable bridge responses in the shared key-value store.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/cercia-labs/cercia-core/internal/ports/out/idempotency"
	"github.com/cercia-labs/cercia-core/internal/ports/out/kv"
)

// KeyPrefix namespaces idempotency records among the extension's other keys.
const KeyPrefix = "cercia_idem_"

type record struct {
	StatusCode  int       `json:"statusCode"`
	ContentType string    `json:"contentType"`
	Body        []byte    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store implements idempotency.Store on top of kv.Store.
type Store struct {
	kv kv.Store
}

func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	var r record
	ok, err := kv.GetJSON(ctx, s.kv, storageKey(fp), &r)
	if err != nil || !ok {
		return idempotency.Record{}, false, err
	}
	return idempotency.Record{
		StatusCode:  r.StatusCode,
		ContentType: r.ContentType,
		Body:        r.Body,
		CreatedAt:   r.CreatedAt.UTC(),
	}, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return kv.SetJSON(ctx, s.kv, storageKey(fp), record{
		StatusCode:  rec.StatusCode,
		ContentType: rec.ContentType,
		Body:        rec.Body,
		CreatedAt:   createdAt.UTC(),
	})
}

// storageKey folds the fingerprint into a fixed-length key so arbitrary header
// values never reach the backend's key space verbatim.
func storageKey(fp idempotency.Fingerprint) string {
	h := sha256.New()
	for _, part := range []string{string(fp.Key), fp.Subject, fp.Route, fp.BodyHash} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return KeyPrefix + hex.EncodeToString(h.Sum(nil))
}
