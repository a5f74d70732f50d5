// Package comments creates comments and replies as the logged-in agent.
package comments

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cercia-labs/cercia-core/internal/app/apperr"
	"github.com/cercia-labs/cercia-core/internal/domain"
	clockport "github.com/cercia-labs/cercia-core/internal/ports/out/clock"
	"github.com/cercia-labs/cercia-core/internal/ports/out/contentcache"
	"github.com/cercia-labs/cercia-core/internal/ports/out/remoteapi"
)

// MaxContentLength is the longest comment the API accepts, in characters.
const MaxContentLength = 40000

// Account is the logged-in agent.
type Account interface {
	APIKey(ctx context.Context) (string, bool, error)
	CachedAgent(ctx context.Context) (domain.CachedAgent, bool, error)
}

// Remembered makes a new comment resolvable on the current page.
type Remembered interface {
	Remember(postID domain.PostID, author, content string, id domain.CommentID)
}

// Upvoter casts the automatic upvote on new content.
type Upvoter interface {
	AutoUpvote(ctx context.Context, apiKey string, t domain.ContentType, id string)
}

type Service struct {
	account Account
	remote  remoteapi.Comments
	created contentcache.Store
	lookup  Remembered
	upvoter Upvoter
	clk     clockport.Clock
	log     *zap.Logger
}

type Deps struct {
	Account Account
	Remote  remoteapi.Comments
	Created contentcache.Store
	Lookup  Remembered
	Upvoter Upvoter
	Clock   clockport.Clock
	Logger  *zap.Logger
}

func NewService(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		account: d.Account,
		remote:  d.Remote,
		created: d.Created,
		lookup:  d.Lookup,
		upvoter: d.Upvoter,
		clk:     d.Clock,
		log:     log.With(zap.String("module", "comments")),
	}
}

// Create posts a top-level comment on postID.
func (s *Service) Create(ctx context.Context, postID domain.PostID, content string) (domain.CommentSummary, error) {
	return s.create(ctx, postID, "", content)
}

// Reply posts a reply to parentID on postID.
func (s *Service) Reply(ctx context.Context, postID domain.PostID, parentID domain.CommentID, content string) (domain.CommentSummary, error) {
	if parentID == "" {
		return domain.CommentSummary{}, apperr.Validation("invalid reply", "parentId", "must be non-empty")
	}
	return s.create(ctx, postID, parentID, content)
}

func (s *Service) create(ctx context.Context, postID domain.PostID, parentID domain.CommentID, content string) (domain.CommentSummary, error) {
	if postID == "" {
		return domain.CommentSummary{}, apperr.Validation("invalid comment", "postId", "must be non-empty")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.CommentSummary{}, apperr.Validation("Comment content is required.", "content", "must be non-empty")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return domain.CommentSummary{}, apperr.Validation("Comment is too long.", "content", "must be at most 40000 characters")
	}

	apiKey, ok, err := s.account.APIKey(ctx)
	if err != nil {
		return domain.CommentSummary{}, err
	}
	if !ok {
		return domain.CommentSummary{}, apperr.Unauthenticated()
	}

	resp := s.remote.CreateComment(ctx, apiKey, postID, content, parentID)
	if !resp.Success {
		return domain.CommentSummary{}, apperr.Upstream(resp.Status, resp.Error, resp.Hint)
	}
	id := domain.CommentID(resp.Data.ID)
	log := s.log.With(zap.String("post_id", string(postID)), zap.String("comment_id", string(id)))

	author := ""
	if resp.Data.Author != nil {
		author = resp.Data.Author.Name
	}
	if author == "" {
		if agent, ok, err := s.account.CachedAgent(ctx); err == nil && ok {
			author = agent.Name
		}
	}
	if author != "" {
		s.lookup.Remember(postID, author, content, id)
	} else {
		log.Warn("created comment has no known author; it will not resolve until the post is refetched")
	}

	if err := s.created.AddComment(ctx, contentcache.Comment{
		ID:        string(id),
		PostID:    string(postID),
		ParentID:  string(parentID),
		Content:   content,
		CreatedAt: s.clk.Now().UTC(),
	}); err != nil {
		log.Error("record created comment", zap.Error(err))
	}

	s.upvoter.AutoUpvote(ctx, apiKey, domain.ContentComment, string(id))
	log.Info("comment created", zap.Bool("reply", parentID != ""))

	return domain.CommentSummary{
		ID:         id,
		PostID:     postID,
		Content:    content,
		AuthorName: author,
		Upvotes:    resp.Data.Upvotes,
		Downvotes:  resp.Data.Downvotes,
		ParentID:   parentID,
	}, nil
}
