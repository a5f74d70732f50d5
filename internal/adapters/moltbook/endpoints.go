package moltbook

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cercia-labs/cercia-core/internal/domain"
	"github.com/cercia-labs/cercia-core/internal/ports/out/remoteapi"
)

func (c *Client) UpvotePost(ctx context.Context, apiKey string, id domain.PostID) remoteapi.Response[remoteapi.VoteAck] {
	return call[remoteapi.VoteAck](ctx, c, request{
		endpoint: "upvote_post", method: http.MethodPost, path: "/posts/" + escape(string(id)) + "/upvote", apiKey: apiKey,
	})
}

func (c *Client) DownvotePost(ctx context.Context, apiKey string, id domain.PostID) remoteapi.Response[remoteapi.VoteAck] {
	return call[remoteapi.VoteAck](ctx, c, request{
		endpoint: "downvote_post", method: http.MethodPost, path: "/posts/" + escape(string(id)) + "/downvote", apiKey: apiKey,
	})
}

func (c *Client) UpvoteComment(ctx context.Context, apiKey string, id domain.CommentID) remoteapi.Response[remoteapi.VoteAck] {
	return call[remoteapi.VoteAck](ctx, c, request{
		endpoint: "upvote_comment", method: http.MethodPost, path: "/comments/" + escape(string(id)) + "/upvote", apiKey: apiKey,
	})
}

func (c *Client) DownvoteComment(ctx context.Context, apiKey string, id domain.CommentID) remoteapi.Response[remoteapi.VoteAck] {
	return call[remoteapi.VoteAck](ctx, c, request{
		endpoint: "downvote_comment", method: http.MethodPost, path: "/comments/" + escape(string(id)) + "/downvote", apiKey: apiKey,
	})
}

// postDetailBody accepts the post either under "post" or flattened at the top level.
type postDetailBody struct {
	remoteapi.PostDetail
	remoteapi.PostBody
}

// GetPost is unauthenticated and the only call that is retried.
func (c *Client) GetPost(ctx context.Context, id domain.PostID) remoteapi.Response[remoteapi.PostDetail] {
	resp := withRetry(ctx, c.fetchRetries, func() remoteapi.Response[postDetailBody] {
		return call[postDetailBody](ctx, c, request{
			endpoint: "get_post", method: http.MethodGet, path: "/posts/" + escape(string(id)),
		})
	})
	return mapResponse(resp, func(b postDetailBody) remoteapi.PostDetail {
		d := b.PostDetail
		if d.Post == nil && b.PostBody.ID != "" {
			p := b.PostBody
			d.Post = &p
		}
		return d
	})
}

func (c *Client) CreatePost(ctx context.Context, apiKey string, req remoteapi.CreatePostRequest) remoteapi.Response[remoteapi.CreatedPost] {
	return call[remoteapi.CreatedPost](ctx, c, request{
		endpoint: "create_post", method: http.MethodPost, path: "/posts", apiKey: apiKey, body: req,
	})
}

func (c *Client) CreateSubmolt(ctx context.Context, apiKey string, req remoteapi.CreateSubmoltRequest) remoteapi.Response[remoteapi.Submolt] {
	type body struct {
		remoteapi.Submolt
		Wrapped *remoteapi.Submolt `json:"submolt"`
	}
	resp := call[body](ctx, c, request{
		endpoint: "create_submolt", method: http.MethodPost, path: "/submolts", apiKey: apiKey, body: req,
	})
	return mapResponse(resp, func(b body) remoteapi.Submolt {
		if b.Wrapped != nil {
			return *b.Wrapped
		}
		return b.Submolt
	})
}

type createCommentRequest struct {
	Content  string `json:"content"`
	ParentID string `json:"parent_id,omitempty"`
}

func (c *Client) CreateComment(ctx context.Context, apiKey string, postID domain.PostID, content string, parentID domain.CommentID) remoteapi.Response[remoteapi.CreatedComment] {
	type body struct {
		Comment remoteapi.CreatedComment `json:"comment"`
	}
	resp := call[body](ctx, c, request{
		endpoint: "create_comment", method: http.MethodPost, path: "/posts/" + escape(string(postID)) + "/comments",
		apiKey: apiKey, body: createCommentRequest{Content: content, ParentID: string(parentID)},
	})
	return mapResponse(resp, func(b body) remoteapi.CreatedComment { return b.Comment })
}

func (c *Client) RegisterAgent(ctx context.Context, name, description string) remoteapi.Response[remoteapi.Registration] {
	return call[remoteapi.Registration](ctx, c, request{
		endpoint: "register_agent", method: http.MethodPost, path: "/agents/register",
		body: map[string]string{"name": name, "description": description},
	})
}

// meBody accepts the agent either under "agent" or at the top level.
type meBody struct {
	remoteapi.AgentBody
	Agent *remoteapi.AgentBody `json:"agent"`
}

func (c *Client) Me(ctx context.Context, apiKey string) remoteapi.Response[remoteapi.AgentBody] {
	resp := call[meBody](ctx, c, request{
		endpoint: "agents_me", method: http.MethodGet, path: "/agents/me", apiKey: apiKey,
	})
	return mapResponse(resp, func(b meBody) remoteapi.AgentBody {
		if b.Agent != nil {
			return *b.Agent
		}
		return b.AgentBody
	})
}

func (c *Client) Status(ctx context.Context, apiKey string) remoteapi.Response[remoteapi.AgentStatus] {
	return call[remoteapi.AgentStatus](ctx, c, request{
		endpoint: "agents_status", method: http.MethodGet, path: "/agents/status", apiKey: apiKey,
	})
}

// ClaimInfo needs no API key; a 200 with success=false is still a failure.
func (c *Client) ClaimInfo(ctx context.Context, claimToken string) remoteapi.Response[remoteapi.ClaimInfo] {
	type body struct {
		Success bool                `json:"success"`
		Error   string              `json:"error"`
		Hint    string              `json:"hint"`
		Agent   remoteapi.ClaimInfo `json:"agent"`
	}
	resp := call[body](ctx, c, request{
		endpoint: "agents_claim", method: http.MethodGet, path: "/agents/claim?token=" + url.QueryEscape(claimToken),
	})
	if resp.Success && !resp.Data.Success {
		msg := resp.Data.Error
		if msg == "" {
			msg = "Failed to get claim info"
		}
		return remoteapi.Fail[remoteapi.ClaimInfo](resp.Status, msg, resp.Data.Hint)
	}
	return mapResponse(resp, func(b body) remoteapi.ClaimInfo { return b.Agent })
}

// VerifyTweet reports claimed=true unless the server says otherwise.
func (c *Client) VerifyTweet(ctx context.Context, apiKey, claimToken, tweetURL string) remoteapi.Response[remoteapi.VerifyResult] {
	type body struct {
		Claimed *bool `json:"claimed"`
	}
	resp := call[body](ctx, c, request{
		endpoint: "verify_tweet", method: http.MethodPost, path: "/agents/verify-tweet", apiKey: apiKey,
		body: map[string]string{"token": claimToken, "tweet_url": tweetURL},
	})
	return mapResponse(resp, func(b body) remoteapi.VerifyResult {
		return remoteapi.VerifyResult{Claimed: b.Claimed == nil || *b.Claimed}
	})
}
