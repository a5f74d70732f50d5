package intercept

import (
	"net/url"
	"regexp"
	"strings"
)

// APIPrefix marks the host page calls worth observing.
const APIPrefix = "/api/v1/"

// Kind is the shape of an observed response, derived from its URL.
type Kind string

const (
	KindIgnored      Kind = ""
	KindPostList     Kind = "post_list"
	KindPost         Kind = "post"
	KindUserPosts    Kind = "user_posts"
	KindSubmoltPosts Kind = "submolt_posts"
)

var (
	submoltPostsRe = regexp.MustCompile(`/submolts/([^/]+)/posts`)
	userPostsRe    = regexp.MustCompile(`/users/[^/]+/posts`)
	singlePostRe   = regexp.MustCompile(`/posts/([a-f0-9-]+)$`)
)

// Classification is the result of Classify.
type Classification struct {
	Kind Kind
	// Submolt is set for KindSubmoltPosts.
	Submolt string
	// PostID is the id in the URL for KindPost.
	PostID string
}

// Classify matches the URL path, query string excluded. The more specific shape
// wins when several match: submolt posts, then user posts, then a single post,
// then a post list.
func Classify(rawURL string) Classification {
	if !strings.Contains(rawURL, APIPrefix) {
		return Classification{}
	}
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	} else if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		path = rawURL[:i]
	}

	if m := submoltPostsRe.FindStringSubmatch(path); m != nil {
		name, err := url.PathUnescape(m[1])
		if err != nil {
			name = m[1]
		}
		return Classification{Kind: KindSubmoltPosts, Submolt: name}
	}
	if userPostsRe.MatchString(path) {
		return Classification{Kind: KindUserPosts}
	}
	if m := singlePostRe.FindStringSubmatch(path); m != nil {
		return Classification{Kind: KindPost, PostID: m[1]}
	}
	if strings.Contains(path, "/posts") && !strings.Contains(path, "/posts/") {
		return Classification{Kind: KindPostList}
	}
	return Classification{}
}
