// Package posts creates posts and communities as the logged-in agent.
package posts

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cercia-labs/cercia-core/internal/app/apperr"
	"github.com/cercia-labs/cercia-core/internal/domain"
	clockport "github.com/cercia-labs/cercia-core/internal/ports/out/clock"
	"github.com/cercia-labs/cercia-core/internal/ports/out/contentcache"
	"github.com/cercia-labs/cercia-core/internal/ports/out/remoteapi"
)

const (
	MaxTitleLength       = 300
	MaxContentLength     = 40000
	MaxSubmoltNameLength = 50
)

var submoltNameRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

type Kind string

const (
	KindText Kind = "text"
	KindLink Kind = "link"
)

// KeySource supplies the API key of the logged-in agent.
type KeySource interface {
	APIKey(ctx context.Context) (string, bool, error)
}

// Upvoter casts the automatic upvote on new content.
type Upvoter interface {
	AutoUpvote(ctx context.Context, apiKey string, t domain.ContentType, id string)
}

type Service struct {
	keys    KeySource
	remote  remoteapi.Posts
	created contentcache.Store
	upvoter Upvoter
	clk     clockport.Clock
	log     *zap.Logger
}

func NewService(keys KeySource, remote remoteapi.Posts, created contentcache.Store, upvoter Upvoter, clk clockport.Clock, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		keys:    keys,
		remote:  remote,
		created: created,
		upvoter: upvoter,
		clk:     clk,
		log:     log.With(zap.String("module", "posts")),
	}
}

type CreatePostInput struct {
	Submolt string
	Kind    Kind
	Title   string
	// Content is used by text posts, URL by link posts.
	Content string
	URL     string
}

type CreateSubmoltInput struct {
	Name        string
	DisplayName string
	Description string
}

func (in CreatePostInput) validate() (remoteapi.CreatePostRequest, error) {
	req := remoteapi.CreatePostRequest{
		Submolt: strings.TrimSpace(in.Submolt),
		Title:   strings.TrimSpace(in.Title),
	}
	if req.Submolt == "" {
		return req, apperr.Validation("Submolt is required.", "submolt", "must be non-empty")
	}
	if req.Title == "" {
		return req, apperr.Validation("Title is required.", "title", "must be non-empty")
	}
	if utf8.RuneCountInString(req.Title) > MaxTitleLength {
		return req, apperr.Validation("Title must be 300 characters or fewer.", "title", "too long")
	}
	switch in.Kind {
	case KindText, "":
		req.Content = strings.TrimSpace(in.Content)
		if req.Content == "" {
			return req, apperr.Validation("Post content is required.", "content", "must be non-empty")
		}
		if utf8.RuneCountInString(req.Content) > MaxContentLength {
			return req, apperr.Validation("Post content is too long.", "content", "must be at most 40000 characters")
		}
	case KindLink:
		req.URL = strings.TrimSpace(in.URL)
		if req.URL == "" {
			return req, apperr.Validation("URL is required.", "url", "must be non-empty")
		}
	default:
		return req, apperr.Validation("Unknown post type.", "kind", "must be text or link")
	}
	return req, nil
}

// CreatePost publishes a text or link post, records it among the agent's posts
// and upvotes it.
func (s *Service) CreatePost(ctx context.Context, in CreatePostInput) (domain.PostSummary, error) {
	req, err := in.validate()
	if err != nil {
		return domain.PostSummary{}, err
	}
	apiKey, err := s.apiKey(ctx)
	if err != nil {
		return domain.PostSummary{}, err
	}

	resp := s.remote.CreatePost(ctx, apiKey, req)
	if !resp.Success {
		return domain.PostSummary{}, apperr.Upstream(resp.Status, resp.Error, resp.Hint)
	}
	p := resp.Data.Post
	if p.ID == "" {
		return domain.PostSummary{}, apperr.Upstream(resp.Status, "Failed to create post.", "")
	}
	submolt := req.Submolt
	if p.Submolt != nil && p.Submolt.Name != "" {
		submolt = p.Submolt.Name
	}
	title := p.Title
	if title == "" {
		title = req.Title
	}
	log := s.log.With(zap.String("post_id", p.ID), zap.String("submolt", submolt))

	if err := s.created.AddPost(ctx, contentcache.Post{
		ID:        p.ID,
		Title:     title,
		Submolt:   submolt,
		CreatedAt: s.clk.Now().UTC(),
	}); err != nil {
		log.Error("record created post", zap.Error(err))
	}
	s.upvoter.AutoUpvote(ctx, apiKey, domain.ContentPost, p.ID)
	log.Info("post created")

	out := domain.PostSummary{
		ID:        domain.PostID(p.ID),
		Title:     title,
		Upvotes:   int(p.Upvotes),
		Downvotes: int(p.Downvotes),
		Submolt:   submolt,
	}
	if p.Author != nil {
		out.AuthorName = p.Author.Name
	}
	return out, nil
}

// CreateSubmolt creates a community. An empty display name is derived from the name.
func (s *Service) CreateSubmolt(ctx context.Context, in CreateSubmoltInput) (remoteapi.Submolt, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return remoteapi.Submolt{}, apperr.Validation("Name is required.", "name", "must be non-empty")
	}
	if utf8.RuneCountInString(name) > MaxSubmoltNameLength {
		return remoteapi.Submolt{}, apperr.Validation("Name must be 50 characters or fewer.", "name", "too long")
	}
	if !submoltNameRe.MatchString(name) {
		return remoteapi.Submolt{}, apperr.Validation(
			"Name can only contain lowercase letters, numbers, hyphens, and underscores.", "name", "invalid characters")
	}
	req := remoteapi.CreateSubmoltRequest{
		Name:        name,
		DisplayName: domain.NormalizeHumanName(in.DisplayName),
		Description: strings.TrimSpace(in.Description),
	}
	if req.DisplayName == "" {
		req.DisplayName = domain.SubmoltDisplayName(name)
	}

	apiKey, err := s.apiKey(ctx)
	if err != nil {
		return remoteapi.Submolt{}, err
	}
	resp := s.remote.CreateSubmolt(ctx, apiKey, req)
	if !resp.Success {
		return remoteapi.Submolt{}, apperr.Upstream(resp.Status, resp.Error, resp.Hint)
	}
	out := resp.Data
	if out.Name == "" {
		out = remoteapi.Submolt{Name: req.Name, DisplayName: req.DisplayName, Description: req.Description}
	}
	s.log.Info("submolt created", zap.String("submolt", out.Name))
	return out, nil
}

func (s *Service) apiKey(ctx context.Context) (string, error) {
	key, ok, err := s.keys.APIKey(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperr.Unauthenticated()
	}
	return key, nil
}
