// Package votestore keeps the user's votes as a single JSON document in a kv.Store.
package votestore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cercia-labs/cercia-core/internal/domain"
	"github.com/cercia-labs/cercia-core/internal/ports/out/clock"
	"github.com/cercia-labs/cercia-core/internal/ports/out/kv"
	"github.com/cercia-labs/cercia-core/internal/ports/out/votestore"
)

// StorageKey is the kv key of the vote document.
const StorageKey = "cercia_votes"

type entry struct {
	Type    domain.Direction `json:"type"`
	VotedAt time.Time        `json:"votedAt"`
}

// document is keyed "<contentType>:<contentId>".
type document map[string]entry

// Store implements votestore.Store on top of a kv.Store.
//
// Each write reads the whole document, modifies one entry and writes it back. The
// mutex serializes writers within this process only; writers in other processes
// can still interleave and the last write wins.
type Store struct {
	kv    kv.Store
	clock clock.Clock
	mu    sync.Mutex
}

func NewStore(store kv.Store, clk clock.Clock) *Store {
	return &Store{kv: store, clock: clk}
}

func makeKey(t domain.ContentType, id string) string {
	return string(t) + ":" + id
}

func (s *Store) load(ctx context.Context) (document, error) {
	doc := document{}
	if _, err := kv.GetJSON(ctx, s.kv, StorageKey, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = document{}
	}
	return doc, nil
}

func (s *Store) Get(ctx context.Context, t domain.ContentType, id string) (domain.Direction, error) {
	if !t.Valid() {
		return domain.NoVote, votestore.ErrInvalidContentType
	}
	doc, err := s.load(ctx)
	if err != nil {
		return domain.NoVote, err
	}
	e, ok := doc[makeKey(t, id)]
	if !ok || !e.Type.Valid() {
		return domain.NoVote, nil
	}
	return e.Type, nil
}

func (s *Store) Set(ctx context.Context, t domain.ContentType, id string, dir domain.Direction) error {
	if !t.Valid() {
		return votestore.ErrInvalidContentType
	}
	if !dir.Valid() {
		return votestore.ErrInvalidDirection
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	doc[makeKey(t, id)] = entry{Type: dir, VotedAt: s.clock.Now().UTC()}
	return kv.SetJSON(ctx, s.kv, StorageKey, doc)
}

func (s *Store) Remove(ctx context.Context, t domain.ContentType, id string) error {
	if !t.Valid() {
		return votestore.ErrInvalidContentType
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	key := makeKey(t, id)
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return kv.SetJSON(ctx, s.kv, StorageKey, doc)
}

func (s *Store) GetMany(ctx context.Context, t domain.ContentType, ids []string) (map[string]domain.Direction, error) {
	if !t.Valid() {
		return nil, votestore.ErrInvalidContentType
	}
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Direction)
	for _, id := range ids {
		if e, ok := doc[makeKey(t, id)]; ok && e.Type.Valid() {
			out[id] = e.Type
		}
	}
	return out, nil
}

// All returns every record ordered by content type then id.
func (s *Store) All(ctx context.Context) ([]votestore.Record, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]votestore.Record, 0, len(doc))
	for key, e := range doc {
		typ, id, ok := strings.Cut(key, ":")
		ct, valid := domain.ParseContentType(typ)
		if !ok || !valid || !e.Type.Valid() {
			continue
		}
		out = append(out, votestore.Record{ContentType: ct, ContentID: id, State: e.Type, VotedAt: e.VotedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ContentType != out[j].ContentType {
			return out[i].ContentType < out[j].ContentType
		}
		return out[i].ContentID < out[j].ContentID
	})
	return out, nil
}
