package domain

// PostSummary is what the client knows about a post from observed API traffic.
type PostSummary struct {
	ID         PostID
	Title      string
	Upvotes    int
	Downvotes  int
	AuthorName string
	// Submolt is empty when the response did not say which community the post is in.
	Submolt string
}

// CommentSummary is what the client knows about a comment from observed API traffic.
type CommentSummary struct {
	ID         CommentID
	PostID     PostID
	Content    string
	AuthorName string
	Upvotes    int
	Downvotes  int
	// ParentID is empty for top-level comments.
	ParentID CommentID
}

// AuthorRef is the author object embedded in API comments and posts.
type AuthorRef struct {
	Name string `json:"name"`
}

// CommentNode is one comment of the nested comment tree returned by GET /posts/{id}.
// Author may be absent in malformed payloads.
type CommentNode struct {
	ID        CommentID     `json:"id"`
	Content   string        `json:"content"`
	Author    *AuthorRef    `json:"author,omitempty"`
	Upvotes   int           `json:"upvotes"`
	Downvotes int           `json:"downvotes"`
	Replies   []CommentNode `json:"replies,omitempty"`
}

// AuthorName returns the author's name or "" when the author is missing.
func (n CommentNode) AuthorName() string {
	if n.Author == nil {
		return ""
	}
	return n.Author.Name
}
