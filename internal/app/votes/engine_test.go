package votes

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	votestoreadapter "github.com/cercia-labs/cercia-core/internal/adapters/kvbacked/votestore"
	memclock "github.com/cercia-labs/cercia-core/internal/adapters/memory/clock"
	memkv "github.com/cercia-labs/cercia-core/internal/adapters/memory/kv"
	"github.com/cercia-labs/cercia-core/internal/app/identity"
	"github.com/cercia-labs/cercia-core/internal/domain"
	"github.com/cercia-labs/cercia-core/internal/ports/out/remoteapi"
)

type fakeVotes struct {
	mu    sync.Mutex
	calls []string
	resp  remoteapi.Response[remoteapi.VoteAck]
	// block, when set, holds every call until closed or the context ends.
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeVotes) do(ctx context.Context, call string) remoteapi.Response[remoteapi.VoteAck] {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	resp := f.resp
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return remoteapi.Fail[remoteapi.VoteAck](0, ctx.Err().Error(), "")
		}
	}
	return resp
}

func (f *fakeVotes) UpvotePost(ctx context.Context, _ string, id domain.PostID) remoteapi.Response[remoteapi.VoteAck] {
	return f.do(ctx, "upvote_post:"+string(id))
}

func (f *fakeVotes) DownvotePost(ctx context.Context, _ string, id domain.PostID) remoteapi.Response[remoteapi.VoteAck] {
	return f.do(ctx, "downvote_post:"+string(id))
}

func (f *fakeVotes) UpvoteComment(ctx context.Context, _ string, id domain.CommentID) remoteapi.Response[remoteapi.VoteAck] {
	return f.do(ctx, "upvote_comment:"+string(id))
}

func (f *fakeVotes) DownvoteComment(ctx context.Context, _ string, id domain.CommentID) remoteapi.Response[remoteapi.VoteAck] {
	return f.do(ctx, "downvote_comment:"+string(id))
}

func (f *fakeVotes) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type staticKey string

func (k staticKey) APIKey(context.Context) (string, bool, error) {
	return string(k), k != "", nil
}

type mapResolver map[string]domain.CommentID

func (m mapResolver) Resolve(_ domain.PostID, author, snippet string) (domain.CommentID, identity.Source) {
	if id, ok := m[domain.BuildKey(author, snippet)]; ok {
		return id, identity.SourceIndex
	}
	return "", identity.SourceNone
}

var okAck = remoteapi.Response[remoteapi.VoteAck]{Success: true, Status: 200, Data: remoteapi.VoteAck{Success: true}}

type fixture struct {
	engine *Engine
	remote *fakeVotes
	store  *votestoreadapter.Store
}

func newFixture(t *testing.T, resp remoteapi.Response[remoteapi.VoteAck], opts Options) fixture {
	t.Helper()
	remote := &fakeVotes{resp: resp}
	store := votestoreadapter.NewStore(memkv.NewStore(), memclock.NewManualClock(time.Unix(1_700_000_000, 0).UTC()))
	resolver := mapResolver{domain.BuildKey("crab", "a fine comment"): "c1"}
	return fixture{
		engine: NewEngine(store, remote, staticKey("key"), resolver, opts),
		remote: remote,
		store:  store,
	}
}

func (f fixture) seed(t *testing.T, ct domain.ContentType, id string, dir domain.Direction) {
	t.Helper()
	require.NoError(t, f.store.Set(context.Background(), ct, id, dir))
}

func (f fixture) stored(t *testing.T, ct domain.ContentType, id string) domain.Direction {
	t.Helper()
	d, err := f.store.Get(context.Background(), ct, id)
	require.NoError(t, err)
	return d
}

func TestVote_UpFromNothingConfirms(t *testing.T) {
	t.Parallel()
	f := newFixture(t, okAck, Options{})
	rec := &Recorder{}

	res := f.engine.Vote(context.Background(), VoteRequest{
		ContentType: domain.ContentPost, ContentID: "p1", Direction: domain.Up, DisplayedCount: 10, Presenter: rec,
	})

	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, domain.Up, res.State)
	assert.Equal(t, 11, res.Count)
	assert.Equal(t, []Phase{PhaseIdle, PhasePending, PhaseConfirmed, PhaseIdle}, res.Transitions)
	assert.NotEmpty(t, res.ActionID)
	assert.Equal(t, domain.Up, f.stored(t, domain.ContentPost, "p1"))
	assert.Equal(t, []string{"upvote_post:p1"}, f.remote.Calls())
	assert.Equal(t, []bool{true, false}, rec.Busy())
	assert.Equal(t, []Frame{{State: domain.Up, Count: 11}}, rec.Frames())
}

func TestVote_ToggleOffRemovesRecord(t *testing.T) {
	t.Parallel()
	f := newFixture(t, okAck, Options{})
	f.seed(t, domain.ContentPost, "p1", domain.Up)

	res := f.engine.Vote(context.Background(), VoteRequest{
		ContentType: domain.ContentPost, ContentID: "p1", Direction: domain.Up, DisplayedCount: 10,
	})

	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, domain.NoVote, res.State)
	assert.Equal(t, 9, res.Count)
	assert.Equal(t, domain.NoVote, f.stored(t, domain.ContentPost, "p1"))
	all, err := f.store.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestVote_SwitchDirectionMovesCountByTwo(t *testing.T) {
	t.Parallel()
	f := newFixture(t, okAck, Options{})
	f.seed(t, domain.ContentPost, "p1", domain.Up)

	res := f.engine.Vote(context.Background(), VoteRequest{
		ContentType: domain.ContentPost, ContentID: "p1", Direction: domain.Down, DisplayedCount: 10,
	})

	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, domain.Up, res.Previous)
	assert.Equal(t, 8, res.Count)
	assert.Equal(t, domain.Down, f.stored(t, domain.ContentPost, "p1"))
	assert.Equal(t, []string{"downvote_post:p1"}, f.remote.Calls())
}

func TestVote_FailureRollsBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t, remoteapi.Fail[remoteapi.VoteAck](500, "Request failed (500)", ""), Options{})
	rec := &Recorder{}

	res := f.engine.Vote(context.Background(), VoteRequest{
		ContentType: domain.ContentPost, ContentID: "p1", Direction: domain.Down, DisplayedCount: 3, Presenter: rec,
	})

	assert.Equal(t, OutcomeRolledBack, res.Outcome)
	assert.Equal(t, domain.NoVote, res.State)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, "Request failed (500)", res.Error)
	assert.Equal(t, []Phase{PhaseIdle, PhasePending, PhaseRolledBack, PhaseIdle}, res.Transitions)
	assert.Equal(t, domain.NoVote, f.stored(t, domain.ContentPost, "p1"))
	assert.Equal(t, []Frame{{State: domain.NoVote, Count: 3}}, rec.Frames())
	assert.Equal(t, []bool{true, false}, rec.Busy())
}

func TestVote_AlreadyVotedIsAdopted(t *testing.T) {
	t.Parallel()
	f := newFixture(t, remoteapi.Fail[remoteapi.VoteAck](400, "You have ALREADY upvoted this post", ""), Options{})

	res := f.engine.Vote(context.Background(), VoteRequest{
		ContentType: domain.ContentPost, ContentID: "p1", Direction: domain.Up, DisplayedCount: 7,
	})

	assert.Equal(t, OutcomeAdopted, res.Outcome)
	assert.Equal(t, domain.Up, res.State)
	assert.Equal(t, 7, res.Count)
	assert.Equal(t, domain.Up, f.stored(t, domain.ContentPost, "p1"))
}

func TestVote_AlreadyOnToggleOffRollsBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t, remoteapi.Fail[remoteapi.VoteAck](400, "already voted", ""), Options{})
	f.seed(t, domain.ContentPost, "p1", domain.Up)

	res := f.engine.Vote(context.Background(), VoteRequest{
		ContentType: domain.ContentPost, ContentID: "p1", Direction: domain.Up, DisplayedCount: 7,
	})

	assert.Equal(t, OutcomeRolledBack, res.Outcome)
	assert.Equal(t, domain.Up, res.State)
	assert.Equal(t, 7, res.Count)
	assert.Equal(t, domain.Up, f.stored(t, domain.ContentPost, "p1"))
}

func TestVote_CommentDownvoteRefusedLocally(t *testing.T) {
	t.Parallel()
	f := newFixture(t, okAck, Options{})
	rec := &Recorder{}

	res := f.engine.Vote(context.Background(), VoteRequest{
		ContentType: domain.ContentComment, ContentID: "c1", Direction: domain.Down, DisplayedCount: 1, Presenter: rec,
	})

	assert.Equal(t, OutcomeRefused, res.Outcome)
	assert.Equal(t, ReasonCommentDownvote, rec.Disabled())
	assert.Empty(t, f.remote.Calls())
	assert.Empty(t, rec.Busy())
}

func TestVote_Unauthenticated(t *testing.T) {
	t.Parallel()
	f := newFixture(t, okAck, Options{})
	f.engine.keys = staticKey("")

	res := f.engine.Vote(context.Background(), VoteRequest{
		ContentType: domain.ContentPost, ContentID: "p1", Direction: domain.Up,
	})
	assert.Equal(t, OutcomeUnauthenticated, res.Outcome)
	assert.Empty(t, f.remote.Calls())
}

func TestVote_InvalidRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t, okAck, Options{})

	res := f.engine.Vote(context.Background(), VoteRequest{ContentType: "user", ContentID: "x", Direction: domain.Up})
	assert.Equal(t, OutcomeInvalid, res.Outcome)
	res = f.engine.Vote(context.Background(), VoteRequest{ContentType: domain.ContentPost, ContentID: "x"})
	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.Empty(t, f.remote.Calls())
}

func TestVote_SecondActionOnPendingItemIsBusy(t *testing.T) {
	t.Parallel()
	f := newFixture(t, okAck, Options{})
	f.remote.block = make(chan struct{})
	f.remote.entered = make(chan struct{}, 4)

	done := make(chan Result)
	go func() {
		done <- f.engine.Vote(context.Background(), VoteRequest{
			ContentType: domain.ContentPost, ContentID: "p1", Direction: domain.Up, DisplayedCount: 0,
		})
	}()
	<-f.remote.entered
	assert.True(t, f.engine.Pending(domain.ContentPost, "p1"))

	busy := f.engine.Vote(context.Background(), VoteRequest{
		ContentType: domain.ContentPost, ContentID: "p1", Direction: domain.Down,
	})
	assert.Equal(t, OutcomeBusy, busy.Outcome)

	close(f.remote.block)
	first := <-done
	assert.Equal(t, OutcomeConfirmed, first.Outcome)
	assert.False(t, f.engine.Pending(domain.ContentPost, "p1"))
	assert.Len(t, f.remote.Calls(), 1)
}

func TestVote_TimeoutRollsBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t, okAck, Options{Timeout: 20 * time.Millisecond})
	f.remote.block = make(chan struct{})
	rec := &Recorder{}

	res := f.engine.Vote(context.Background(), VoteRequest{
		ContentType: domain.ContentPost, ContentID: "p1", Direction: domain.Up, DisplayedCount: 5, Presenter: rec,
	})

	assert.Equal(t, OutcomeRolledBack, res.Outcome)
	assert.Equal(t, "vote timed out", res.Error)
	assert.Equal(t, 5, res.Count)
	assert.Equal(t, []bool{true, false}, rec.Busy())
	assert.False(t, f.engine.Pending(domain.ContentPost, "p1"))
}

func TestVoteComment_ResolvesThenVotes(t *testing.T) {
	t.Parallel()
	f := newFixture(t, okAck, Options{})

	res := f.engine.VoteComment(context.Background(), CommentVoteRequest{
		PostID: "p1", Author: "Crab", Snippet: "A fine comment!", Direction: domain.Up, DisplayedCount: 2,
	})

	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, "c1", res.ContentID)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, []string{"upvote_comment:c1"}, f.remote.Calls())
	assert.Equal(t, domain.Up, f.stored(t, domain.ContentComment, "c1"))
}

func TestVoteComment_UnresolvableDisables(t *testing.T) {
	t.Parallel()
	f := newFixture(t, okAck, Options{})
	rec := &Recorder{}

	res := f.engine.VoteComment(context.Background(), CommentVoteRequest{
		PostID: "p1", Author: "nobody", Snippet: "never seen", Direction: domain.Up, DisplayedCount: 2, Presenter: rec,
	})

	assert.Equal(t, OutcomeUnresolvable, res.Outcome)
	assert.Equal(t, ReasonUnresolvable, rec.Disabled())
	assert.Equal(t, 2, res.Count)
	assert.Empty(t, f.remote.Calls())
}

func TestVoteComment_DownvoteRefusedBeforeResolving(t *testing.T) {
	t.Parallel()
	f := newFixture(t, okAck, Options{})
	rec := &Recorder{}

	res := f.engine.VoteComment(context.Background(), CommentVoteRequest{
		PostID: "p1", Author: "crab", Snippet: "a fine comment", Direction: domain.Down, Presenter: rec,
	})
	assert.Equal(t, OutcomeRefused, res.Outcome)
	assert.Equal(t, ReasonCommentDownvote, rec.Disabled())
	assert.Empty(t, f.remote.Calls())
}

func TestRepaint_BatchRead(t *testing.T) {
	t.Parallel()
	f := newFixture(t, okAck, Options{})
	f.seed(t, domain.ContentPost, "id2", domain.Down)

	got, err := f.engine.Repaint(context.Background(), domain.ContentPost, []string{"id1", "id2", "id3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Direction{"id2": domain.Down}, got)
}

func TestAutoUpvote_PersistsUpEvenWhenRemoteFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t, remoteapi.Fail[remoteapi.VoteAck](500, "boom", ""), Options{})

	f.engine.AutoUpvote(context.Background(), "key", domain.ContentComment, "c9")

	assert.Equal(t, []string{"upvote_comment:c9"}, f.remote.Calls())
	assert.Equal(t, domain.Up, f.stored(t, domain.ContentComment, "c9"))
}

func TestIsAlreadyApplied(t *testing.T) {
	t.Parallel()
	for msg, want := range map[string]bool{
		"You have already upvoted this": true,
		"Already downvoted":             true,
		"ALREADY":                       true,
		"Post not found":                false,
		"":                              false,
	} {
		assert.Equal(t, want, isAlreadyApplied(msg), msg)
	}
}
