package remoteapi

import (
	"context"

	"github.com/cercia-labs/cercia-core/internal/domain"
	"github.com/cercia-labs/cercia-core/internal/platform/jsonx"
)

// Response is the discriminated result of a Moltbook API call. Transport and
// HTTP failures are reported through Success=false, never as a Go error:
//   - non-2xx: Error is the body's "error" (or "Request failed (<status>)"), Hint its "hint";
//   - transport failure: Status is 0 and Error the transport error text.
type Response[T any] struct {
	Success bool
	Data    T
	Error   string
	Hint    string
	Status  int
}

// Fail builds a failed response.
func Fail[T any](status int, msg, hint string) Response[T] {
	return Response[T]{Status: status, Error: msg, Hint: hint}
}

// VoteAck is the body of a successful vote call. Counts are informational only:
// the client never displays them after a user action.
type VoteAck struct {
	Success          bool              `json:"success"`
	Message          string            `json:"message,omitempty"`
	Upvotes          *int              `json:"upvotes,omitempty"`
	Downvotes        *int              `json:"downvotes,omitempty"`
	Author           *domain.AuthorRef `json:"author,omitempty"`
	AlreadyFollowing bool              `json:"already_following,omitempty"`
	Suggestion       string            `json:"suggestion,omitempty"`
}

// PostDetail is the body of GET /posts/{id}: the post plus its nested comment tree.
type PostDetail struct {
	Success  bool                 `json:"success"`
	Post     *PostBody            `json:"post,omitempty"`
	Comments []domain.CommentNode `json:"comments"`
}

// PostBody is a post as serialized by the API.
type PostBody struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Content   string            `json:"content,omitempty"`
	URL       string            `json:"url,omitempty"`
	Upvotes   domain.LenientInt `json:"upvotes"`
	Downvotes domain.LenientInt `json:"downvotes"`
	Author    *domain.AuthorRef `json:"author,omitempty"`
	Submolt   *SubmoltRef       `json:"submolt,omitempty"`
}

type SubmoltRef struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
}

type CreatePostRequest struct {
	Submolt string `json:"submolt"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

type CreatedPost struct {
	Post PostBody `json:"post"`
}

type CreateSubmoltRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

type Submolt struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// CreatedComment is the comment returned by POST /posts/{id}/comments, unwrapped
// from the response's "comment" key.
type CreatedComment struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Author    *domain.AuthorRef `json:"author,omitempty"`
	Upvotes   int               `json:"upvotes"`
	Downvotes int               `json:"downvotes"`
}

type RegisteredAgent struct {
	Name             string `json:"name"`
	APIKey           string `json:"api_key"`
	ClaimURL         string `json:"claim_url"`
	VerificationCode string `json:"verification_code"`
}

type Registration struct {
	Agent     RegisteredAgent `json:"agent"`
	Important string          `json:"important"`
}

// AgentBody is the snake_case agent object of GET /agents/me.
type AgentBody struct {
	Name           string `json:"name"`
	DisplayName    string `json:"display_name,omitempty"`
	Description    string `json:"description,omitempty"`
	Karma          int    `json:"karma"`
	FollowerCount  *int   `json:"follower_count,omitempty"`
	FollowingCount *int   `json:"following_count,omitempty"`
	IsClaimed      bool   `json:"is_claimed"`
	Status         string `json:"status,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

type AgentStatus struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	ClaimURL string `json:"claim_url"`
	Agent    struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"agent"`
}

type ClaimInfo struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      *string `json:"description"`
	VerificationCode string  `json:"verification_code"`
	IsClaimed        bool    `json:"is_claimed"`
	CreatedAt        string  `json:"created_at"`
}

type VerifyResult struct {
	Claimed bool `json:"claimed"`
}

// Votes is the remote vote API. The API toggles: voting the recorded direction
// again removes the vote.
type Votes interface {
	UpvotePost(ctx context.Context, apiKey string, id domain.PostID) Response[VoteAck]
	DownvotePost(ctx context.Context, apiKey string, id domain.PostID) Response[VoteAck]
	UpvoteComment(ctx context.Context, apiKey string, id domain.CommentID) Response[VoteAck]
	// DownvoteComment exists on the API but is always rejected; callers must not use it.
	DownvoteComment(ctx context.Context, apiKey string, id domain.CommentID) Response[VoteAck]
}

// Posts reads and creates posts and communities.
type Posts interface {
	GetPost(ctx context.Context, id domain.PostID) Response[PostDetail]
	CreatePost(ctx context.Context, apiKey string, req CreatePostRequest) Response[CreatedPost]
	CreateSubmolt(ctx context.Context, apiKey string, req CreateSubmoltRequest) Response[Submolt]
}

// Comments creates comments and replies. parentID is empty for a top-level comment.
type Comments interface {
	CreateComment(ctx context.Context, apiKey string, postID domain.PostID, content string, parentID domain.CommentID) Response[CreatedComment]
}

// Agents covers registration, login validation and the claim flow.
type Agents interface {
	RegisterAgent(ctx context.Context, name, description string) Response[Registration]
	Me(ctx context.Context, apiKey string) Response[AgentBody]
	Status(ctx context.Context, apiKey string) Response[AgentStatus]
	ClaimInfo(ctx context.Context, claimToken string) Response[ClaimInfo]
	VerifyTweet(ctx context.Context, apiKey, claimToken, tweetURL string) Response[VerifyResult]
}

// Client is the full Moltbook API surface used by the core.
type Client interface {
	Votes
	Posts
	Comments
	Agents
}

// UnmarshalJSON accepts both the object form {"name": ...} and a bare submolt name.
func (s *SubmoltRef) UnmarshalJSON(b []byte) error {
	var name string
	if err := jsonx.Unmarshal(b, &name); err == nil {
		*s = SubmoltRef{Name: name}
		return nil
	}
	type plain SubmoltRef
	var p plain
	if err := jsonx.Unmarshal(b, &p); err != nil {
		return err
	}
	*s = SubmoltRef(p)
	return nil
}
