package intercept

import (
	"sort"
	"sync"

	"github.com/cercia-labs/cercia-core/internal/domain"
)

// Index holds what observed API traffic revealed about posts and comments in the
// current session. It is safe for concurrent use.
type Index struct {
	kb domain.KeyBuilder

	mu       sync.RWMutex
	posts    map[domain.PostID]domain.PostSummary
	comments map[domain.CommentID]domain.CommentSummary
	lookup   map[string]domain.CommentID
}

func NewIndex(kb domain.KeyBuilder) *Index {
	if kb == nil {
		kb = domain.LossyKeyBuilder{}
	}
	idx := &Index{kb: kb}
	idx.reset()
	return idx
}

func (x *Index) reset() {
	x.posts = make(map[domain.PostID]domain.PostSummary)
	x.comments = make(map[domain.CommentID]domain.CommentSummary)
	x.lookup = make(map[string]domain.CommentID)
}

func (x *Index) AddPost(p domain.PostSummary) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.posts[p.ID] = p
}

// AddComment stores c and makes it resolvable by fingerprint.
func (x *Index) AddComment(c domain.CommentSummary) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.comments[c.ID] = c
	x.lookup[x.kb.Key(c.AuthorName, c.Content)] = c.ID
}

func (x *Index) Post(id domain.PostID) (domain.PostSummary, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	p, ok := x.posts[id]
	return p, ok
}

func (x *Index) Comment(id domain.CommentID) (domain.CommentSummary, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	c, ok := x.comments[id]
	return c, ok
}

func (x *Index) LookupCommentID(author, snippet string) (domain.CommentID, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	id, ok := x.lookup[x.kb.Key(author, snippet)]
	return id, ok
}

// Posts returns every indexed post ordered by id.
func (x *Index) Posts() []domain.PostSummary {
	x.mu.RLock()
	out := make([]domain.PostSummary, 0, len(x.posts))
	for _, p := range x.posts {
		out = append(out, p)
	}
	x.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CommentsForPost returns the post's indexed comments ordered by id.
func (x *Index) CommentsForPost(postID domain.PostID) []domain.CommentSummary {
	x.mu.RLock()
	out := make([]domain.CommentSummary, 0)
	for _, c := range x.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	x.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.reset()
}
