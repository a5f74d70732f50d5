package votestore

import (
	"context"
	"time"

	"github.com/cercia-labs/cercia-core/internal/domain"
)

// Record is one persisted vote. A missing record means "no vote"; State is
// always domain.Up or domain.Down.
type Record struct {
	ContentType domain.ContentType
	ContentID   string
	State       domain.Direction
	VotedAt     time.Time
}

// Store keeps the user's own votes, since the remote API has no vote history.
// Writes are last-write-wins; the store does not make read-modify-write atomic
// across concurrent callers.
type Store interface {
	// Get returns the recorded direction, or domain.NoVote.
	Get(ctx context.Context, t domain.ContentType, id string) (domain.Direction, error)
	// Set creates or overwrites the record. dir must be domain.Up or domain.Down.
	Set(ctx context.Context, t domain.ContentType, id string, dir domain.Direction) error
	// Remove deletes the record; used for toggle-off.
	Remove(ctx context.Context, t domain.ContentType, id string) error
	// GetMany returns only the ids that have a record, in one storage round trip.
	GetMany(ctx context.Context, t domain.ContentType, ids []string) (map[string]domain.Direction, error)
	// All returns every record.
	All(ctx context.Context) ([]Record, error)
}
