package identity

import (
	"context"

	"github.com/cercia-labs/cercia-core/internal/domain"
)

// Index is the live index fed by observed API traffic.
type Index interface {
	LookupCommentID(author, snippet string) (domain.CommentID, bool)
}

// Source says where a comment ID was resolved from.
type Source string

const (
	SourceNone  Source = ""
	SourceIndex Source = "index"
	SourceCache Source = "cache"
)

// Resolver resolves comment fingerprints against the live index first and the
// per-post lookup cache second.
type Resolver struct {
	index Index
	cache *Cache
}

func NewResolver(index Index, cache *Cache) *Resolver {
	return &Resolver{index: index, cache: cache}
}

// Resolve never triggers a fetch; call Prime when a post page is opened.
func (r *Resolver) Resolve(postID domain.PostID, author, snippet string) (domain.CommentID, Source) {
	if r.index != nil {
		if id, ok := r.index.LookupCommentID(author, snippet); ok {
			return id, SourceIndex
		}
	}
	if id, ok := r.cache.Resolve(postID, author, snippet); ok {
		return id, SourceCache
	}
	return "", SourceNone
}

// Prime fetches the post's lookup map so later lookups are answered locally.
func (r *Resolver) Prime(ctx context.Context, postID domain.PostID) int {
	return len(r.cache.Fetch(ctx, postID))
}

// Remember records a comment the user just created so it resolves immediately.
func (r *Resolver) Remember(postID domain.PostID, author, content string, id domain.CommentID) {
	r.cache.Insert(postID, author, content, id)
}

func (r *Resolver) Cache() *Cache { return r.cache }
