// Package intercept indexes the JSON responses the host page's own scripts
// receive from the Moltbook API.
package intercept

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cercia-labs/cercia-core/internal/domain"
	"github.com/cercia-labs/cercia-core/internal/platform/fanout"
	"github.com/cercia-labs/cercia-core/internal/platform/jsonx"
	"github.com/cercia-labs/cercia-core/internal/platform/metrics"
	"github.com/cercia-labs/cercia-core/internal/ports/out/remoteapi"
)

// Observation is broadcast after a recognized response was indexed.
type Observation struct {
	URL      string
	Kind     Kind
	Posts    []domain.PostSummary
	Comments []domain.CommentSummary
}

// Interceptor feeds observed responses into an Index. It never fails: bodies that
// are unsuccessful, not JSON or of an unexpected shape are logged and skipped.
type Interceptor struct {
	index   *Index
	hub     *fanout.Hub[Observation]
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(index *Index, log *zap.Logger, m *metrics.Metrics) *Interceptor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Interceptor{
		index:   index,
		hub:     fanout.NewHub[Observation](16),
		log:     log,
		metrics: m,
	}
}

func (i *Interceptor) Index() *Index { return i.index }

// Subscribe returns a stream of observations. Slow subscribers miss observations
// rather than delaying the caller.
func (i *Interceptor) Subscribe() (<-chan Observation, func()) {
	return i.hub.Subscribe()
}

// Close ends every subscription.
func (i *Interceptor) Close() { i.hub.Close() }

type envelope struct {
	Success  *bool            `json:"success"`
	Posts    jsonx.RawMessage `json:"posts"`
	Post     jsonx.RawMessage `json:"post"`
	Comments jsonx.RawMessage `json:"comments"`
}

type rawPost struct {
	ID        string                `json:"id"`
	Title     string                `json:"title"`
	Upvotes   domain.LenientInt     `json:"upvotes"`
	Downvotes domain.LenientInt     `json:"downvotes"`
	Author    *domain.AuthorRef     `json:"author"`
	Submolt   *remoteapi.SubmoltRef `json:"submolt"`
}

type rawComment struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Author    *domain.AuthorRef `json:"author"`
	Upvotes   domain.LenientInt `json:"upvotes"`
	Downvotes domain.LenientInt `json:"downvotes"`
	Replies   jsonx.RawMessage  `json:"replies"`
}

var errNotSuccessful = errors.New("success is false")

// ObservedResponse classifies the response by URL and indexes what it contains.
// The returned observation has KindIgnored when nothing was indexed.
func (i *Interceptor) ObservedResponse(ctx context.Context, url string, body []byte) (obs Observation) {
	_ = ctx
	defer func() {
		if r := recover(); r != nil {
			i.log.Error("panic while processing observed response", zap.String("url", url), zap.Any("panic", r))
			i.metrics.Observed("panic")
			obs = Observation{URL: url}
		}
	}()

	cls := Classify(url)
	if cls.Kind == KindIgnored {
		i.metrics.Observed("ignored")
		return Observation{URL: url}
	}

	obs, err := i.process(url, cls, body)
	if err != nil {
		i.log.Debug("skipping observed response", zap.String("url", url), zap.String("kind", string(cls.Kind)), zap.Error(err))
		i.metrics.Observed("skipped")
		return Observation{URL: url}
	}

	i.metrics.Observed(string(cls.Kind))
	i.log.Debug("indexed observed response",
		zap.String("kind", string(cls.Kind)), zap.Int("posts", len(obs.Posts)), zap.Int("comments", len(obs.Comments)))
	i.hub.Publish(obs)
	return obs
}

func (i *Interceptor) process(url string, cls Classification, body []byte) (Observation, error) {
	var env envelope
	if err := jsonx.Unmarshal(body, &env); err != nil {
		return Observation{}, fmt.Errorf("decode body: %w", err)
	}
	if env.Success != nil && !*env.Success {
		return Observation{}, errNotSuccessful
	}

	obs := Observation{URL: url, Kind: cls.Kind}
	switch cls.Kind {
	case KindPostList, KindUserPosts, KindSubmoltPosts:
		items, err := decodeList(env.Posts)
		if err != nil {
			return Observation{}, fmt.Errorf("posts: %w", err)
		}
		for _, item := range items {
			if p, ok := i.addPost(item, cls.Submolt); ok {
				obs.Posts = append(obs.Posts, p)
			}
		}
	case KindPost:
		// The post is the body itself or sits under "post".
		postRaw := jsonx.RawMessage(body)
		if len(env.Post) > 0 && string(env.Post) != "null" {
			postRaw = env.Post
		}
		postID := domain.PostID(cls.PostID)
		if p, ok := i.addPost(postRaw, ""); ok {
			obs.Posts = append(obs.Posts, p)
			postID = p.ID
		}
		comments, err := decodeList(env.Comments)
		if err != nil {
			return obs, nil
		}
		obs.Comments = i.addComments(comments, postID, "", obs.Comments)
	}
	return obs, nil
}

// decodeList decodes a JSON array into its elements; a missing value is an empty list.
func decodeList(raw jsonx.RawMessage) ([]jsonx.RawMessage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var items []jsonx.RawMessage
	if err := jsonx.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (i *Interceptor) addPost(raw jsonx.RawMessage, submolt string) (domain.PostSummary, bool) {
	var p rawPost
	if err := jsonx.Unmarshal(raw, &p); err != nil || p.ID == "" {
		return domain.PostSummary{}, false
	}
	s := domain.PostSummary{
		ID:        domain.PostID(p.ID),
		Title:     p.Title,
		Upvotes:   int(p.Upvotes),
		Downvotes: int(p.Downvotes),
		Submolt:   submolt,
	}
	if p.Author != nil {
		s.AuthorName = p.Author.Name
	}
	if s.Submolt == "" && p.Submolt != nil {
		s.Submolt = p.Submolt.Name
	}
	i.index.AddPost(s)
	return s, true
}

func (i *Interceptor) addComments(items []jsonx.RawMessage, postID domain.PostID, parent domain.CommentID, acc []domain.CommentSummary) []domain.CommentSummary {
	for _, item := range items {
		var c rawComment
		if err := jsonx.Unmarshal(item, &c); err != nil || c.ID == "" {
			continue
		}
		s := domain.CommentSummary{
			ID:        domain.CommentID(c.ID),
			PostID:    postID,
			Content:   c.Content,
			Upvotes:   int(c.Upvotes),
			Downvotes: int(c.Downvotes),
			ParentID:  parent,
		}
		if c.Author != nil {
			s.AuthorName = c.Author.Name
		}
		i.index.AddComment(s)
		acc = append(acc, s)

		if replies, err := decodeList(c.Replies); err == nil {
			acc = i.addComments(replies, postID, s.ID, acc)
		}
	}
	return acc
}
