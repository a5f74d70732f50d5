package identity

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cercia-labs/cercia-core/internal/domain"
	"github.com/cercia-labs/cercia-core/internal/ports/out/remoteapi"
)

type fakeFetcher struct {
	calls atomic.Int32
	// release, when set, blocks every call until closed.
	release chan struct{}
	started chan struct{}
	resp    remoteapi.Response[remoteapi.PostDetail]
}

func (f *fakeFetcher) GetPost(ctx context.Context, id domain.PostID) remoteapi.Response[remoteapi.PostDetail] {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.resp
}

func okDetail(nodes ...domain.CommentNode) remoteapi.Response[remoteapi.PostDetail] {
	return remoteapi.Response[remoteapi.PostDetail]{
		Success: true,
		Status:  200,
		Data:    remoteapi.PostDetail{Success: true, Comments: nodes},
	}
}

func node(id, author, content string) domain.CommentNode {
	return domain.CommentNode{ID: domain.CommentID(id), Content: content, Author: &domain.AuthorRef{Name: author}}
}

func TestCache_FetchOncePerPost(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{resp: okDetail(node("c1", "crab", "hello"))}
	c := NewCache(f, nil, nil, nil)
	ctx := context.Background()

	m := c.Fetch(ctx, "p1")
	assert.Equal(t, LookupMap{"crab:hello": "c1"}, m)
	_ = c.Fetch(ctx, "p1")
	assert.Equal(t, int32(1), f.calls.Load())

	id, ok := c.Resolve("p1", "CRAB", "Hello!")
	require.True(t, ok)
	assert.Equal(t, domain.CommentID("c1"), id)
}

func TestCache_FailureCachesEmptyMap(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{resp: remoteapi.Fail[remoteapi.PostDetail](500, "boom", "")}
	c := NewCache(f, nil, nil, nil)
	ctx := context.Background()

	assert.Empty(t, c.Fetch(ctx, "p1"))
	assert.Empty(t, c.Fetch(ctx, "p1"))
	assert.Equal(t, int32(1), f.calls.Load())
	assert.True(t, c.Fetched("p1"))
}

func TestCache_SuccessFalseBodyIsFailure(t *testing.T) {
	t.Parallel()
	resp := okDetail(node("c1", "crab", "hello"))
	resp.Data.Success = false
	c := NewCache(&fakeFetcher{resp: resp}, nil, nil, nil)

	assert.Empty(t, c.Fetch(context.Background(), "p1"))
}

func TestCache_ResolveNeverFetches(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{resp: okDetail(node("c1", "crab", "hello"))}
	c := NewCache(f, nil, nil, nil)

	_, ok := c.Resolve("p1", "crab", "hello")
	assert.False(t, ok)
	assert.Equal(t, int32(0), f.calls.Load())
}

func TestCache_InsertIsIdempotent(t *testing.T) {
	t.Parallel()
	c := NewCache(&fakeFetcher{}, nil, nil, nil)

	c.Insert("p1", "crab", "new comment", "c9")
	c.Insert("p1", "crab", "new comment", "c9")

	c.mu.Lock()
	n := len(c.posts["p1"].m)
	c.mu.Unlock()
	assert.Equal(t, 1, n)

	id, ok := c.Resolve("p1", "crab", "new comment")
	require.True(t, ok)
	assert.Equal(t, domain.CommentID("c9"), id)
}

func TestCache_ClearDropsEverything(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{resp: okDetail(node("c1", "crab", "hello"))}
	c := NewCache(f, nil, nil, nil)
	ctx := context.Background()

	_ = c.Fetch(ctx, "p1")
	c.Insert("p2", "crab", "x", "c2")
	c.Clear()

	_, ok := c.Resolve("p1", "crab", "hello")
	assert.False(t, ok)
	_, ok = c.Resolve("p2", "crab", "x")
	assert.False(t, ok)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestCache_InsertOnlyMapStillFetches(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{resp: okDetail(node("c1", "crab", "hello"), node("old", "me", "my reply"))}
	c := NewCache(f, nil, nil, nil)

	c.Insert("p1", "me", "my reply", "c-new")
	m := c.Fetch(context.Background(), "p1")

	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, domain.CommentID("c1"), m["crab:hello"])
	assert.Equal(t, domain.CommentID("c-new"), m["me:myreply"], "speculative entry must survive the fetch")
}

func TestCache_ConcurrentFetchSharesOneCall(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{
		resp:    okDetail(node("c1", "crab", "hello")),
		release: make(chan struct{}),
		started: make(chan struct{}, 16),
	}
	c := NewCache(f, nil, nil, nil)

	var wg sync.WaitGroup
	results := make([]LookupMap, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Fetch(context.Background(), "p1")
		}(i)
	}
	<-f.started
	close(f.release)
	wg.Wait()

	for _, m := range results {
		assert.Equal(t, LookupMap{"crab:hello": "c1"}, m)
	}
	// Goroutines that arrive after the shared call finished hit the cache instead.
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestCache_FetchCompletingAfterClearIsNotStored(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{
		resp:    okDetail(node("c1", "crab", "hello")),
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	c := NewCache(f, nil, nil, nil)

	done := make(chan LookupMap)
	go func() { done <- c.Fetch(context.Background(), "p1") }()
	<-f.started
	c.Clear()
	close(f.release)

	m := <-done
	assert.Len(t, m, 1, "the in-flight caller still gets its result")
	_, ok := c.Resolve("p1", "crab", "hello")
	assert.False(t, ok, "stale fetch must not resurrect entries")
	assert.False(t, c.Fetched("p1"))
}

func TestCache_CanceledFetchIsNotCached(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{resp: remoteapi.Fail[remoteapi.PostDetail](0, "context canceled", "")}
	c := NewCache(f, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, c.Fetch(ctx, "p1"))
	assert.False(t, c.Fetched("p1"))
}

type fetcherFunc func(ctx context.Context, id domain.PostID) remoteapi.Response[remoteapi.PostDetail]

func (f fetcherFunc) GetPost(ctx context.Context, id domain.PostID) remoteapi.Response[remoteapi.PostDetail] {
	return f(ctx, id)
}

func TestCache_JoinedCallerRefetchesWhenStarterCancels(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	started := make(chan struct{})
	f := fetcherFunc(func(ctx context.Context, _ domain.PostID) remoteapi.Response[remoteapi.PostDetail] {
		if calls.Add(1) == 1 {
			close(started)
			<-ctx.Done()
			return remoteapi.Fail[remoteapi.PostDetail](0, ctx.Err().Error(), "")
		}
		return okDetail(node("c1", "crab", "hello"))
	})
	c := NewCache(f, nil, nil, nil)

	starterCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var (
		wg          sync.WaitGroup
		starterGot  LookupMap
		followerGot LookupMap
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		starterGot = c.Fetch(starterCtx, "p1")
	}()
	<-started

	wg.Add(1)
	go func() {
		defer wg.Done()
		followerGot = c.Fetch(context.Background(), "p1")
	}()
	// Give the second caller time to join the flight before the first one leaves.
	time.Sleep(20 * time.Millisecond)
	cancel()
	wg.Wait()

	assert.Empty(t, starterGot)
	assert.Equal(t, LookupMap{"crab:hello": "c1"}, followerGot)
	assert.True(t, c.Fetched("p1"))
	assert.Equal(t, int32(2), calls.Load())
}
