package intercept

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cercia-labs/cercia-core/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newInterceptor() *Interceptor {
	return New(NewIndex(nil), nil, nil)
}

func TestObservedResponse_SinglePostWithComments(t *testing.T) {
	t.Parallel()
	i := newInterceptor()

	body := []byte(`{
		"success": true,
		"id": "ab12",
		"title": "Hello reef",
		"upvotes": 4,
		"author": {"name": "crab"},
		"submolt": {"name": "general"},
		"comments": [
			{"id": "c1", "content": "First!", "author": {"name": "Lobster"}, "upvotes": 2,
			 "replies": [{"id": "c2", "content": "Second.", "author": {"name": "crab"}}]},
			{"id": 42, "content": "bad id"},
			{"content": "no id"}
		]
	}`)
	obs := i.ObservedResponse(context.Background(), "https://www.moltbook.com/api/v1/posts/ab12", body)

	assert.Equal(t, KindPost, obs.Kind)
	require.Len(t, obs.Posts, 1)
	assert.Equal(t, domain.PostSummary{ID: "ab12", Title: "Hello reef", Upvotes: 4, AuthorName: "crab", Submolt: "general"}, obs.Posts[0])
	require.Len(t, obs.Comments, 2)

	idx := i.Index()
	reply, ok := idx.Comment("c2")
	require.True(t, ok)
	assert.Equal(t, domain.CommentID("c1"), reply.ParentID)
	assert.Equal(t, domain.PostID("ab12"), reply.PostID)

	id, ok := idx.LookupCommentID("lobster", "first")
	require.True(t, ok)
	assert.Equal(t, domain.CommentID("c1"), id)

	assert.Len(t, idx.CommentsForPost("ab12"), 2)
}

func TestObservedResponse_MalformedCountsAndAuthorKeepComment(t *testing.T) {
	t.Parallel()
	i := newInterceptor()

	body := []byte(`{
		"success": true,
		"post": {"id": "ab34", "title": "Odd", "upvotes": "3", "author": "crab"},
		"comments": [
			{"id": "c1", "content": "Fractional", "author": "crab", "upvotes": 1.5,
			 "replies": [{"id": "c2", "content": "Nested reply", "author": {"name": "lobster"}, "upvotes": 2}]}
		]
	}`)
	obs := i.ObservedResponse(context.Background(), "https://www.moltbook.com/api/v1/posts/ab34", body)

	require.Len(t, obs.Posts, 1)
	assert.Equal(t, domain.PostSummary{ID: "ab34", Title: "Odd", Upvotes: 3}, obs.Posts[0])
	require.Len(t, obs.Comments, 2)
	assert.Equal(t, domain.CommentSummary{ID: "c1", PostID: "ab34", Content: "Fractional", Upvotes: 1}, obs.Comments[0])

	id, ok := i.Index().LookupCommentID("lobster", "Nested reply")
	require.True(t, ok)
	assert.Equal(t, domain.CommentID("c2"), id)
}

func TestObservedResponse_PostUnderPostKeyFallsBackToURLForID(t *testing.T) {
	t.Parallel()
	i := newInterceptor()

	obs := i.ObservedResponse(context.Background(), "/api/v1/posts/ff00",
		[]byte(`{"success":true,"post":{"id":"ff00","title":"t"},"comments":[{"id":"c1","content":"x","author":{"name":"a"}}]}`))
	require.Len(t, obs.Posts, 1)
	assert.Equal(t, domain.PostID("ff00"), obs.Comments[0].PostID)

	obs = i.ObservedResponse(context.Background(), "/api/v1/posts/ee11",
		[]byte(`{"comments":[{"id":"c9","content":"orphan","author":{"name":"a"}}]}`))
	assert.Empty(t, obs.Posts)
	require.Len(t, obs.Comments, 1)
	assert.Equal(t, domain.PostID("ee11"), obs.Comments[0].PostID)
}

func TestObservedResponse_SubmoltListRecordsSubmolt(t *testing.T) {
	t.Parallel()
	i := newInterceptor()

	body := []byte(`{"success":true,"posts":[
		{"id":"p1","title":"one","author":{"name":"a"}},
		{"id":"p2","title":"two","submolt":"other"},
		"garbage"
	]}`)
	obs := i.ObservedResponse(context.Background(), "/api/v1/submolts/crabs/posts?sort=new", body)

	assert.Equal(t, KindSubmoltPosts, obs.Kind)
	require.Len(t, obs.Posts, 2)
	for _, p := range i.Index().Posts() {
		assert.Equal(t, "crabs", p.Submolt, "URL submolt wins for %s", p.ID)
	}
}

func TestObservedResponse_ListAndUserPosts(t *testing.T) {
	t.Parallel()
	i := newInterceptor()
	ctx := context.Background()

	obs := i.ObservedResponse(ctx, "/api/v1/posts?sort=hot", []byte(`{"posts":[{"id":"p1","submolt":{"name":"general"}}]}`))
	assert.Equal(t, KindPostList, obs.Kind)
	obs = i.ObservedResponse(ctx, "/api/v1/users/crab/posts", []byte(`{"posts":[{"id":"p2"}]}`))
	assert.Equal(t, KindUserPosts, obs.Kind)

	p1, ok := i.Index().Post("p1")
	require.True(t, ok)
	assert.Equal(t, "general", p1.Submolt)
	assert.Len(t, i.Index().Posts(), 2)
}

func TestObservedResponse_SkipsBadBodies(t *testing.T) {
	t.Parallel()
	i := newInterceptor()
	ctx := context.Background()

	for name, tc := range map[string]struct{ url, body string }{
		"unsuccessful":   {"/api/v1/posts", `{"success":false,"posts":[{"id":"p1"}]}`},
		"not json":       {"/api/v1/posts", `<html>oops</html>`},
		"posts not list": {"/api/v1/posts", `{"posts":{"id":"p1"}}`},
		"outside prefix": {"https://example.com/posts", `{"posts":[{"id":"p1"}]}`},
		"unknown shape":  {"/api/v1/agents/me", `{"agent":{}}`},
	} {
		obs := i.ObservedResponse(ctx, tc.url, []byte(tc.body))
		assert.Equal(t, KindIgnored, obs.Kind, name)
	}
	assert.Empty(t, i.Index().Posts())
}

func TestObservedResponse_Broadcasts(t *testing.T) {
	i := newInterceptor()
	defer i.Close()

	ch, cancel := i.Subscribe()
	defer cancel()

	i.ObservedResponse(context.Background(), "/api/v1/agents/me", []byte(`{}`))
	i.ObservedResponse(context.Background(), "/api/v1/posts", []byte(`{"posts":[{"id":"p1"}]}`))

	select {
	case obs := <-ch:
		assert.Equal(t, KindPostList, obs.Kind)
		assert.Len(t, obs.Posts, 1)
	case <-time.After(time.Second):
		t.Fatal("no observation broadcast")
	}
	select {
	case obs := <-ch:
		t.Fatalf("unexpected observation %+v", obs)
	default:
	}
}

func TestIndex_Clear(t *testing.T) {
	t.Parallel()
	i := newInterceptor()
	i.ObservedResponse(context.Background(), "/api/v1/posts/ab",
		[]byte(`{"id":"ab","comments":[{"id":"c1","content":"x","author":{"name":"a"}}]}`))

	i.Index().Clear()

	_, ok := i.Index().Post("ab")
	assert.False(t, ok)
	_, ok = i.Index().LookupCommentID("a", "x")
	assert.False(t, ok)
	assert.Empty(t, i.Index().CommentsForPost("ab"))
}
