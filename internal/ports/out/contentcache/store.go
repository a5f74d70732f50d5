package contentcache

import (
	"context"
	"time"
)

// Post is a post the user created through the extension.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Submolt   string    `json:"submolt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is a comment or reply the user created through the extension.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	ParentID  string    `json:"parentId,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store keeps the user's own creations; the remote API has no endpoint to list them.
// Lists are returned newest first.
type Store interface {
	AddPost(ctx context.Context, p Post) error
	Posts(ctx context.Context) ([]Post, error)
	AddComment(ctx context.Context, c Comment) error
	Comments(ctx context.Context) ([]Comment, error)
}
