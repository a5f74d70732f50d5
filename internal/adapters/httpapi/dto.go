package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"

	"github.com/cercia-labs/cercia-core/internal/app/accounts"
	"github.com/cercia-labs/cercia-core/internal/app/intercept"
	"github.com/cercia-labs/cercia-core/internal/app/session"
	"github.com/cercia-labs/cercia-core/internal/app/votes"
	"github.com/cercia-labs/cercia-core/internal/domain"
	"github.com/cercia-labs/cercia-core/internal/ports/out/contentcache"
	"github.com/cercia-labs/cercia-core/internal/ports/out/remoteapi"
)

type ObserveRequest struct {
	URL string `json:"url"`
	// Body is the response text as the page received it.
	Body string `json:"body"`
}

type ObserveResponse struct {
	Kind     nullable.Nullable[string] `json:"kind"`
	Posts    int                       `json:"posts"`
	Comments int                       `json:"comments"`
}

type NavigateRequest struct {
	URL string `json:"url"`
}

type NavigateResponse struct {
	Changed bool                      `json:"changed"`
	PostID  nullable.Nullable[string] `json:"postId"`
	Primed  int                       `json:"primed"`
}

type VoteRequest struct {
	ContentType    string `json:"contentType"`
	ContentID      string `json:"contentId"`
	Direction      string `json:"direction"`
	DisplayedCount int    `json:"displayedCount"`
}

type CommentVoteRequest struct {
	Author         string `json:"author"`
	Snippet        string `json:"snippet"`
	Direction      string `json:"direction"`
	DisplayedCount int    `json:"displayedCount"`
}

type VoteFrame struct {
	State nullable.Nullable[string] `json:"state"`
	Count int                       `json:"count"`
}

// VoteResponse reports a finished vote action. A null state means no vote.
type VoteResponse struct {
	ActionID    string                    `json:"actionId"`
	Outcome     string                    `json:"outcome"`
	ContentType string                    `json:"contentType"`
	ContentID   string                    `json:"contentId"`
	Previous    nullable.Nullable[string] `json:"previous"`
	State       nullable.Nullable[string] `json:"state"`
	Count       int                       `json:"count"`
	Error       nullable.Nullable[string] `json:"error"`
	Disabled    nullable.Nullable[string] `json:"disabled"`
	Transitions []string                  `json:"transitions"`
	Frames      []VoteFrame               `json:"frames"`
}

type VoteStatesResponse struct {
	States map[string]string `json:"states"`
}

type ResolveResponse struct {
	CommentID nullable.Nullable[string] `json:"commentId"`
	Source    string                    `json:"source"`
}

type CreateCommentRequest struct {
	Content  string `json:"content"`
	ParentID string `json:"parentId,omitempty"`
}

type Comment struct {
	ID         string                    `json:"id"`
	PostID     string                    `json:"postId"`
	ParentID   nullable.Nullable[string] `json:"parentId"`
	Content    string                    `json:"content"`
	AuthorName string                    `json:"authorName"`
	Upvotes    int                       `json:"upvotes"`
	Downvotes  int                       `json:"downvotes"`
}

type CreatePostRequest struct {
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

type Post struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Submolt    string `json:"submolt"`
	AuthorName string `json:"authorName"`
	Upvotes    int    `json:"upvotes"`
	Downvotes  int    `json:"downvotes"`
}

type CreateSubmoltRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
}

type Submolt struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

type SignUpRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LogInRequest struct {
	APIKey string `json:"apiKey"`
}

type VerifyTweetRequest struct {
	TweetURL string `json:"tweetUrl"`
}

type Agent struct {
	Name           string                    `json:"name"`
	DisplayName    nullable.Nullable[string] `json:"displayName"`
	Description    string                    `json:"description"`
	Karma          int                       `json:"karma"`
	FollowerCount  nullable.Nullable[int]    `json:"followerCount"`
	FollowingCount nullable.Nullable[int]    `json:"followingCount"`
	IsClaimed      bool                      `json:"isClaimed"`
	Status         string                    `json:"status,omitempty"`
	CreatedAt      time.Time                 `json:"createdAt"`
}

// SessionResponse is the logged-in agent. The claim fields are null once claimed.
type SessionResponse struct {
	Agent            Agent                     `json:"agent"`
	ClaimURL         nullable.Nullable[string] `json:"claimUrl"`
	VerificationCode nullable.Nullable[string] `json:"verificationCode"`
	ClaimTweetURL    nullable.Nullable[string] `json:"claimTweetUrl"`
}

type StatusResponse struct {
	Status           string                    `json:"status"`
	Message          string                    `json:"message"`
	AgentName        string                    `json:"agentName"`
	ClaimURL         nullable.Nullable[string] `json:"claimUrl"`
	VerificationCode nullable.Nullable[string] `json:"verificationCode"`
}

type MyPostsResponse struct {
	Posts []contentcache.Post `json:"posts"`
}

type MyCommentsResponse struct {
	Comments []contentcache.Comment `json:"comments"`
}

// Event is one server-sent event of GET /events.
type Event struct {
	URL      string   `json:"url"`
	Kind     string   `json:"kind"`
	PostIDs  []string `json:"postIds"`
	Comments int      `json:"comments"`
}

func optString(s string) nullable.Nullable[string] {
	if s == "" {
		return nullable.NewNullNullable[string]()
	}
	return nullable.NewNullableWithValue(s)
}

func optInt(p *int) nullable.Nullable[int] {
	if p == nil {
		return nullable.NewNullNullable[int]()
	}
	return nullable.NewNullableWithValue(*p)
}

func voteResponseFromResult(res votes.Result, rec *votes.Recorder) VoteResponse {
	out := VoteResponse{
		ActionID:    res.ActionID,
		Outcome:     string(res.Outcome),
		ContentType: string(res.ContentType),
		ContentID:   res.ContentID,
		Previous:    optString(string(res.Previous)),
		State:       optString(string(res.State)),
		Count:       res.Count,
		Error:       optString(res.Error),
		Disabled:    optString(rec.Disabled()),
		Transitions: make([]string, 0, len(res.Transitions)),
		Frames:      []VoteFrame{},
	}
	for _, p := range res.Transitions {
		out.Transitions = append(out.Transitions, string(p))
	}
	for _, f := range rec.Frames() {
		out.Frames = append(out.Frames, VoteFrame{State: optString(string(f.State)), Count: f.Count})
	}
	return out
}

func observeResponseFromObservation(obs intercept.Observation) ObserveResponse {
	return ObserveResponse{
		Kind:     optString(string(obs.Kind)),
		Posts:    len(obs.Posts),
		Comments: len(obs.Comments),
	}
}

func navigateResponseFromNavigation(nav session.Navigation) NavigateResponse {
	return NavigateResponse{Changed: nav.Changed, PostID: optString(string(nav.PostID)), Primed: nav.Primed}
}

func commentFromDomain(c domain.CommentSummary) Comment {
	return Comment{
		ID:         string(c.ID),
		PostID:     string(c.PostID),
		ParentID:   optString(string(c.ParentID)),
		Content:    c.Content,
		AuthorName: c.AuthorName,
		Upvotes:    c.Upvotes,
		Downvotes:  c.Downvotes,
	}
}

func postFromDomain(p domain.PostSummary) Post {
	return Post{
		ID:         string(p.ID),
		Title:      p.Title,
		Submolt:    p.Submolt,
		AuthorName: p.AuthorName,
		Upvotes:    p.Upvotes,
		Downvotes:  p.Downvotes,
	}
}

func submoltFromRemote(s remoteapi.Submolt) Submolt {
	return Submolt{Name: s.Name, DisplayName: s.DisplayName, Description: s.Description}
}

func sessionResponseFromSession(s accounts.Session) SessionResponse {
	out := SessionResponse{
		Agent: Agent{
			Name:           s.Agent.Name,
			DisplayName:    optString(s.Agent.DisplayName),
			Description:    s.Agent.Description,
			Karma:          s.Agent.Karma,
			FollowerCount:  optInt(s.Agent.FollowerCount),
			FollowingCount: optInt(s.Agent.FollowingCount),
			IsClaimed:      s.Agent.IsClaimed,
			Status:         s.Agent.Status,
			CreatedAt:      s.Agent.CreatedAt,
		},
		ClaimURL:         nullable.NewNullNullable[string](),
		VerificationCode: nullable.NewNullNullable[string](),
		ClaimTweetURL:    nullable.NewNullNullable[string](),
	}
	if s.Unclaimed() {
		out.ClaimURL = optString(s.ClaimURL)
		out.VerificationCode = optString(s.VerificationCode)
		if s.VerificationCode != "" {
			out.ClaimTweetURL = nullable.NewNullableWithValue(accounts.ClaimTweetURL(s.Agent.Name, s.VerificationCode))
		}
	}
	return out
}

func statusResponseFromInfo(st accounts.StatusInfo) StatusResponse {
	return StatusResponse{
		Status:           st.Status,
		Message:          st.Message,
		AgentName:        st.AgentName,
		ClaimURL:         optString(st.ClaimURL),
		VerificationCode: optString(st.VerificationCode),
	}
}

func eventFromObservation(obs intercept.Observation) Event {
	ev := Event{URL: obs.URL, Kind: string(obs.Kind), PostIDs: make([]string, 0, len(obs.Posts)), Comments: len(obs.Comments)}
	for _, p := range obs.Posts {
		ev.PostIDs = append(ev.PostIDs, string(p.ID))
	}
	return ev
}
