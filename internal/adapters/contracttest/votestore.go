package contracttest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/cercia-labs/cercia-core/internal/domain"
	votestoreport "github.com/cercia-labs/cercia-core/internal/ports/out/votestore"
)

func RunVoteStore(t *testing.T, newStore VoteStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	id1, id2, id3 := uuid.NewString(), uuid.NewString(), uuid.NewString()

	got, err := store.Get(ctx, domain.ContentPost, id1)
	if err != nil || got != domain.NoVote {
		t.Fatalf("Get absent=(%q,%v), want no vote", got, err)
	}

	if err := store.Set(ctx, domain.ContentPost, id2, domain.Up); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, err := store.Get(ctx, domain.ContentPost, id2); err != nil || got != domain.Up {
		t.Fatalf("Get=(%q,%v), want up", got, err)
	}

	// Posts and comments are separate namespaces.
	if got, err := store.Get(ctx, domain.ContentComment, id2); err != nil || got != domain.NoVote {
		t.Fatalf("comment namespace leaked: (%q,%v)", got, err)
	}

	// Batch read returns only recorded ids.
	many, err := store.GetMany(ctx, domain.ContentPost, []string{id1, id2, id3})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if diff := cmp.Diff(map[string]domain.Direction{id2: domain.Up}, many); diff != "" {
		t.Fatalf("GetMany mismatch (-want +got):\n%s", diff)
	}

	// Overwrite on direction change.
	if err := store.Set(ctx, domain.ContentPost, id2, domain.Down); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if got, _ := store.Get(ctx, domain.ContentPost, id2); got != domain.Down {
		t.Fatalf("Get after overwrite=%q, want down", got)
	}

	// No null-state record is ever persisted.
	if err := store.Set(ctx, domain.ContentPost, id3, domain.NoVote); !errors.Is(err, votestoreport.ErrInvalidDirection) {
		t.Fatalf("Set(NoVote) err=%v, want ErrInvalidDirection", err)
	}
	if err := store.Set(ctx, domain.ContentType("user"), id3, domain.Up); !errors.Is(err, votestoreport.ErrInvalidContentType) {
		t.Fatalf("Set(user) err=%v, want ErrInvalidContentType", err)
	}

	if err := store.Set(ctx, domain.ContentComment, id1, domain.Up); err != nil {
		t.Fatalf("Set comment: %v", err)
	}
	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	seen := 0
	for _, r := range all {
		if (r.ContentID == id2 && r.ContentType == domain.ContentPost && r.State == domain.Down) ||
			(r.ContentID == id1 && r.ContentType == domain.ContentComment && r.State == domain.Up) {
			seen++
		}
		if r.VotedAt.IsZero() {
			t.Fatalf("record %+v has zero VotedAt", r)
		}
	}
	if seen != 2 {
		t.Fatalf("All missing records: %+v", all)
	}

	// Toggle-off removes the record entirely.
	if err := store.Remove(ctx, domain.ContentPost, id2); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got, _ := store.Get(ctx, domain.ContentPost, id2); got != domain.NoVote {
		t.Fatalf("Get after Remove=%q, want no vote", got)
	}
	if err := store.Remove(ctx, domain.ContentPost, id2); err != nil {
		t.Fatalf("Remove missing: %v", err)
	}
}
