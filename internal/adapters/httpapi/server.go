package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/cercia-labs/cercia-core/internal/app/accounts"
	"github.com/cercia-labs/cercia-core/internal/app/apperr"
	"github.com/cercia-labs/cercia-core/internal/app/comments"
	"github.com/cercia-labs/cercia-core/internal/app/identity"
	"github.com/cercia-labs/cercia-core/internal/app/intercept"
	"github.com/cercia-labs/cercia-core/internal/app/posts"
	"github.com/cercia-labs/cercia-core/internal/app/session"
	"github.com/cercia-labs/cercia-core/internal/app/votes"
	"github.com/cercia-labs/cercia-core/internal/domain"
	"github.com/cercia-labs/cercia-core/internal/platform/jsonx"
	"github.com/cercia-labs/cercia-core/internal/ports/out/contentcache"
	"github.com/cercia-labs/cercia-core/internal/ports/out/idempotency"
)

// Server is the local bridge between the extension's page scripts and the core.
type Server struct {
	Interceptor *intercept.Interceptor
	Session     *session.Session
	Resolver    *identity.Resolver
	Votes       *votes.Engine
	Comments    *comments.Service
	Posts       *posts.Service
	Accounts    *accounts.Service
	Created     contentcache.Store
	// Idem replays create responses for retried requests; nil disables replay.
	Idem idempotency.Store
}

func (s *Server) observe(w http.ResponseWriter, r *http.Request) {
	var req ObserveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	obs := s.Interceptor.ObservedResponse(r.Context(), req.URL, []byte(req.Body))
	writeJSON(w, http.StatusOK, observeResponseFromObservation(obs))
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, r, http.StatusUnprocessableEntity, apperr.CodeValidation, "url is required", map[string]any{"url": "must be non-empty"})
		return
	}
	writeJSON(w, http.StatusOK, navigateResponseFromNavigation(s.Session.Navigate(r.Context(), req.URL)))
}

func (s *Server) vote(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec := &votes.Recorder{}
	res := s.Votes.Vote(r.Context(), votes.VoteRequest{
		ContentType:    domain.ContentType(req.ContentType),
		ContentID:      req.ContentID,
		Direction:      domain.Direction(req.Direction),
		DisplayedCount: req.DisplayedCount,
		Presenter:      rec,
	})
	writeJSON(w, http.StatusOK, voteResponseFromResult(res, rec))
}

func (s *Server) voteComment(w http.ResponseWriter, r *http.Request) {
	var postID string
	if !pathParam(w, r, "postId", &postID) {
		return
	}
	var req CommentVoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec := &votes.Recorder{}
	res := s.Votes.VoteComment(r.Context(), votes.CommentVoteRequest{
		PostID:         domain.PostID(postID),
		Author:         req.Author,
		Snippet:        req.Snippet,
		Direction:      domain.Direction(req.Direction),
		DisplayedCount: req.DisplayedCount,
		Presenter:      rec,
	})
	writeJSON(w, http.StatusOK, voteResponseFromResult(res, rec))
}

func (s *Server) voteStates(w http.ResponseWriter, r *http.Request) {
	var raw string
	if !pathParam(w, r, "contentType", &raw) {
		return
	}
	ct, ok := domain.ParseContentType(raw)
	if !ok {
		writeError(w, r, http.StatusUnprocessableEntity, apperr.CodeValidation, "unknown content type", map[string]any{"contentType": "must be post or comment"})
		return
	}
	var ids []string
	if !queryList(w, r, "ids", &ids) {
		return
	}
	states, err := s.Votes.Repaint(r.Context(), ct, ids)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	out := VoteStatesResponse{States: make(map[string]string, len(states))}
	for id, d := range states {
		out.States[id] = string(d)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	var postID, author, snippet string
	if !queryParam(w, r, "postId", true, &postID) ||
		!queryParam(w, r, "author", true, &author) ||
		!queryParam(w, r, "snippet", true, &snippet) {
		return
	}
	id, src := s.Resolver.Resolve(domain.PostID(postID), author, snippet)
	source := string(src)
	if src == identity.SourceNone {
		source = "none"
	}
	writeJSON(w, http.StatusOK, ResolveResponse{CommentID: optString(string(id)), Source: source})
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	var postID string
	if !pathParam(w, r, "postId", &postID) {
		return
	}
	var req CreateCommentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var (
		c   domain.CommentSummary
		err error
	)
	if req.ParentID != "" {
		c, err = s.Comments.Reply(r.Context(), domain.PostID(postID), domain.CommentID(req.ParentID), req.Content)
	} else {
		c, err = s.Comments.Create(r.Context(), domain.PostID(postID), req.Content)
	}
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, commentFromDomain(c))
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var submolt string
	if !pathParam(w, r, "name", &submolt) {
		return
	}
	var req CreatePostRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.Posts.CreatePost(r.Context(), posts.CreatePostInput{
		Submolt: submolt,
		Kind:    posts.Kind(req.Kind),
		Title:   req.Title,
		Content: req.Content,
		URL:     req.URL,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, postFromDomain(p))
}

func (s *Server) createSubmolt(w http.ResponseWriter, r *http.Request) {
	var req CreateSubmoltRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sm, err := s.Posts.CreateSubmolt(r.Context(), posts.CreateSubmoltInput{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, submoltFromRemote(sm))
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := s.Accounts.SignUp(r.Context(), req.Name, req.Description)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponseFromSession(sess))
}

func (s *Server) logIn(w http.ResponseWriter, r *http.Request) {
	var req LogInRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := s.Accounts.LogIn(r.Context(), req.APIKey)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponseFromSession(sess))
}

func (s *Server) logOut(w http.ResponseWriter, r *http.Request) {
	if err := s.Accounts.LogOut(r.Context()); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Accounts.Me(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponseFromSession(sess))
}

func (s *Server) verifyTweet(w http.ResponseWriter, r *http.Request) {
	var req VerifyTweetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := s.Accounts.VerifyTweet(r.Context(), req.TweetURL)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponseFromSession(sess))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	st, err := s.Accounts.Status(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponseFromInfo(st))
}

func (s *Server) myPosts(w http.ResponseWriter, r *http.Request) {
	ps, err := s.Created.Posts(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if ps == nil {
		ps = []contentcache.Post{}
	}
	writeJSON(w, http.StatusOK, MyPostsResponse{Posts: ps})
}

func (s *Server) myComments(w http.ResponseWriter, r *http.Request) {
	cs, err := s.Created.Comments(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if cs == nil {
		cs = []contentcache.Comment{}
	}
	writeJSON(w, http.StatusOK, MyCommentsResponse{Comments: cs})
}

// events streams every indexed observation as a server-sent event until the
// client goes away.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "streaming unsupported", nil)
		return
	}
	obs, cancel := s.Interceptor.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := LoggerFromContext(r.Context())
	for {
		select {
		case <-r.Context().Done():
			return
		case o, open := <-obs:
			if !open {
				return
			}
			b, err := jsonx.Marshal(eventFromObservation(o))
			if err != nil {
				log.Warn("encode event", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: observation\ndata: %s\n\n", b); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
