package domain

// PostID is the server-assigned identifier of a post. It is opaque to the client.
type PostID string

// CommentID is the server-assigned identifier of a comment or reply.
type CommentID string

// ContentType discriminates the two votable kinds of content.
type ContentType string

const (
	ContentPost    ContentType = "post"
	ContentComment ContentType = "comment"
)

func (t ContentType) Valid() bool {
	return t == ContentPost || t == ContentComment
}

// ParseContentType accepts "post" or "comment".
func ParseContentType(s string) (ContentType, bool) {
	t := ContentType(s)
	return t, t.Valid()
}
