// Package session follows the page the user is on and resets per-page state when it changes.
package session

import (
	"context"
	"net/url"
	"regexp"
	"sync"

	"go.uber.org/zap"

	"github.com/cercia-labs/cercia-core/internal/domain"
)

var postPathRe = regexp.MustCompile(`/post/([a-f0-9-]+)`)

// PostIDFromURL returns the post id of a /post/{id} page URL, or "".
func PostIDFromURL(rawURL string) domain.PostID {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	m := postPathRe.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return domain.PostID(m[1])
}

// Resettable is per-page state dropped on navigation.
type Resettable interface {
	Clear()
}

// Primer warms comment lookups for a post.
type Primer interface {
	Prime(ctx context.Context, postID domain.PostID) int
}

type Session struct {
	primer Primer
	resets []Resettable
	log    *zap.Logger

	mu     sync.Mutex
	url    string
	postID domain.PostID
}

func New(primer Primer, log *zap.Logger, resets ...Resettable) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{primer: primer, resets: resets, log: log.With(zap.String("module", "session"))}
}

// Navigation is the outcome of a Navigate call.
type Navigation struct {
	Changed bool
	PostID  domain.PostID
	// Primed is the number of comments loaded for the post page.
	Primed int
}

// Navigate records the page the user moved to. A different URL clears the
// per-page state; a post page is primed before Navigate returns.
func (s *Session) Navigate(ctx context.Context, rawURL string) Navigation {
	s.mu.Lock()
	if rawURL == s.url {
		postID := s.postID
		s.mu.Unlock()
		return Navigation{PostID: postID}
	}
	s.url = rawURL
	s.postID = PostIDFromURL(rawURL)
	postID := s.postID
	for _, r := range s.resets {
		r.Clear()
	}
	s.mu.Unlock()

	nav := Navigation{Changed: true, PostID: postID}
	if postID != "" && s.primer != nil {
		nav.Primed = s.primer.Prime(ctx, postID)
	}
	s.log.Debug("navigated", zap.String("post_id", string(postID)), zap.Int("primed", nav.Primed))
	return nav
}

// CurrentPostID returns the post of the current page, or "" off post pages.
func (s *Session) CurrentPostID() domain.PostID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postID
}
