// Package votes runs optimistic vote actions against the Moltbook API and keeps
// the local vote record in step with it.
package votes

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cercia-labs/cercia-core/internal/app/identity"
	"github.com/cercia-labs/cercia-core/internal/domain"
	"github.com/cercia-labs/cercia-core/internal/platform/metrics"
	"github.com/cercia-labs/cercia-core/internal/ports/out/remoteapi"
	"github.com/cercia-labs/cercia-core/internal/ports/out/votestore"
)

// KeySource supplies the API key of the logged-in agent.
type KeySource interface {
	APIKey(ctx context.Context) (string, bool, error)
}

// CommentResolver maps a rendered comment to its id.
type CommentResolver interface {
	Resolve(postID domain.PostID, author, snippet string) (domain.CommentID, identity.Source)
}

type VoteRequest struct {
	ContentType domain.ContentType
	ContentID   string
	Direction   domain.Direction
	// DisplayedCount is the score shown before the click; the result count is derived from it.
	DisplayedCount int
	Presenter      Presenter
}

// CommentVoteRequest identifies the comment by what the page renders.
type CommentVoteRequest struct {
	PostID         domain.PostID
	Author         string
	Snippet        string
	Direction      domain.Direction
	DisplayedCount int
	Presenter      Presenter
}

// Result describes a finished vote request. State and Count are what the control
// shows afterwards.
type Result struct {
	ActionID    string
	Outcome     Outcome
	ContentType domain.ContentType
	ContentID   string
	Previous    domain.Direction
	State       domain.Direction
	Count       int
	// Error is the remote or local failure text for rolled back and adopted actions.
	Error       string
	Transitions []Phase
}

type Options struct {
	// Timeout bounds the remote call; 0 waits as long as the call's context allows.
	Timeout time.Duration
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type Engine struct {
	store    votestore.Store
	remote   remoteapi.Votes
	keys     KeySource
	resolver CommentResolver
	timeout  time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics

	newActionID func() string

	mu      sync.Mutex
	pending map[string]string
}

func NewEngine(store votestore.Store, remote remoteapi.Votes, keys KeySource, resolver CommentResolver, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:       store,
		remote:      remote,
		keys:        keys,
		resolver:    resolver,
		timeout:     opts.Timeout,
		log:         log,
		metrics:     opts.Metrics,
		newActionID: uuid.NewString,
		pending:     make(map[string]string),
	}
}

// action tracks the phase of one vote request.
type action struct {
	id    string
	phase Phase
	path  []Phase
	log   *zap.Logger
}

func (a *action) transition(to Phase) {
	if !canTransition(a.phase, to) {
		a.log.Error("invalid vote transition", zap.String("from", string(a.phase)), zap.String("to", string(to)))
		return
	}
	a.log.Debug("vote transition", zap.String("from", string(a.phase)), zap.String("to", string(to)))
	a.phase = to
	a.path = append(a.path, to)
}

// Vote runs one vote action. Expected failures are reported through the result's
// Outcome; Vote does not return errors.
func (e *Engine) Vote(ctx context.Context, req VoteRequest) (res Result) {
	p := req.Presenter
	if p == nil {
		p = nopPresenter{}
	}
	res = Result{
		ActionID:    e.newActionID(),
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
		Count:       req.DisplayedCount,
	}
	log := e.log.With(
		zap.String("action_id", res.ActionID),
		zap.String("content_type", string(req.ContentType)),
		zap.String("content_id", req.ContentID),
		zap.String("direction", string(req.Direction)),
	)

	if !req.ContentType.Valid() || !req.Direction.Valid() || req.ContentID == "" {
		res.Outcome = OutcomeInvalid
		res.Error = "content type, content id and direction are required"
		return e.finish(log, res)
	}
	if req.ContentType == domain.ContentComment && req.Direction == domain.Down {
		p.Disable(ReasonCommentDownvote)
		res.Outcome = OutcomeRefused
		res.Error = ReasonCommentDownvote
		return e.finish(log, res)
	}

	apiKey, ok, err := e.keys.APIKey(ctx)
	if err != nil {
		log.Error("read credentials", zap.Error(err))
	}
	if !ok {
		res.Outcome = OutcomeUnauthenticated
		return e.finish(log, res)
	}

	lockKey := string(req.ContentType) + ":" + req.ContentID
	if !e.acquire(lockKey, res.ActionID) {
		res.Outcome = OutcomeBusy
		return e.finish(log, res)
	}
	defer e.release(lockKey)

	act := &action{id: res.ActionID, phase: PhaseIdle, path: []Phase{PhaseIdle}, log: log}
	defer func() {
		act.transition(PhaseIdle)
		res.Transitions = act.path
	}()

	// Pending.
	current, err := e.store.Get(ctx, req.ContentType, req.ContentID)
	if err != nil {
		log.Error("read vote state", zap.Error(err))
		res.Outcome = OutcomeRolledBack
		res.Error = err.Error()
		act.transition(PhasePending)
		act.transition(PhaseRolledBack)
		return e.finish(log, res)
	}
	next, toggleOff := domain.NextState(current, req.Direction)
	delta := domain.CountDelta(current, next)
	res.Previous = current
	res.State = current

	act.transition(PhasePending)
	p.SetBusy(true)
	defer p.SetBusy(false)

	ack, timedOut := e.call(ctx, apiKey, req)
	if ack.Success {
		act.transition(PhaseConfirmed)
		e.persist(ctx, log, req.ContentType, req.ContentID, next)
		res.State = next
		res.Count = req.DisplayedCount + delta
		res.Outcome = OutcomeConfirmed
		p.Render(res.State, res.Count)
		return e.finish(log, res)
	}

	act.transition(PhaseRolledBack)
	res.Error = ack.Error
	if timedOut {
		res.Error = "vote timed out"
	}
	if !timedOut && !toggleOff && isAlreadyApplied(ack.Error) {
		// The server already holds this vote: adopt it instead of reverting.
		e.persist(ctx, log, req.ContentType, req.ContentID, req.Direction)
		res.State = req.Direction
		res.Count = req.DisplayedCount
		res.Outcome = OutcomeAdopted
		p.Render(res.State, res.Count)
		return e.finish(log, res)
	}

	res.State = current
	res.Count = req.DisplayedCount
	res.Outcome = OutcomeRolledBack
	p.Render(res.State, res.Count)
	return e.finish(log, res)
}

// VoteComment resolves the rendered comment first. Comment downvotes are refused
// before resolution; unresolvable comments disable the control.
func (e *Engine) VoteComment(ctx context.Context, req CommentVoteRequest) Result {
	p := req.Presenter
	if p == nil {
		p = nopPresenter{}
	}
	res := Result{
		ActionID:    e.newActionID(),
		ContentType: domain.ContentComment,
		Count:       req.DisplayedCount,
	}
	log := e.log.With(zap.String("action_id", res.ActionID), zap.String("post_id", string(req.PostID)))
	if req.Direction == domain.Down {
		p.Disable(ReasonCommentDownvote)
		res.Outcome = OutcomeRefused
		res.Error = ReasonCommentDownvote
		return e.finish(log, res)
	}

	id, src := e.resolver.Resolve(req.PostID, req.Author, req.Snippet)
	if src == identity.SourceNone {
		p.Disable(ReasonUnresolvable)
		res.Outcome = OutcomeUnresolvable
		res.Error = ReasonUnresolvable
		return e.finish(log, res)
	}
	log.Debug("resolved comment", zap.String("comment_id", string(id)), zap.String("source", string(src)))
	return e.Vote(ctx, VoteRequest{
		ContentType:    domain.ContentComment,
		ContentID:      string(id),
		Direction:      req.Direction,
		DisplayedCount: req.DisplayedCount,
		Presenter:      p,
	})
}

// Repaint returns the recorded states of ids for redrawing many controls at once.
func (e *Engine) Repaint(ctx context.Context, t domain.ContentType, ids []string) (map[string]domain.Direction, error) {
	return e.store.GetMany(ctx, t, ids)
}

// AutoUpvote upvotes content the agent just created. The remote call is best
// effort; the local record is set to up whatever its outcome.
func (e *Engine) AutoUpvote(ctx context.Context, apiKey string, t domain.ContentType, id string) {
	log := e.log.With(zap.String("content_type", string(t)), zap.String("content_id", id))
	resp, _ := e.call(ctx, apiKey, VoteRequest{ContentType: t, ContentID: id, Direction: domain.Up})
	if !resp.Success {
		log.Warn("auto upvote failed", zap.Int("status", resp.Status), zap.String("error", resp.Error))
	}
	e.persist(ctx, log, t, id, domain.Up)
}

// Pending reports whether an action on the item is in flight.
func (e *Engine) Pending(t domain.ContentType, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.pending[string(t)+":"+id]
	return ok
}

func (e *Engine) call(ctx context.Context, apiKey string, req VoteRequest) (remoteapi.Response[remoteapi.VoteAck], bool) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var resp remoteapi.Response[remoteapi.VoteAck]
	switch {
	case req.ContentType == domain.ContentPost && req.Direction == domain.Up:
		resp = e.remote.UpvotePost(ctx, apiKey, domain.PostID(req.ContentID))
	case req.ContentType == domain.ContentPost:
		resp = e.remote.DownvotePost(ctx, apiKey, domain.PostID(req.ContentID))
	default:
		resp = e.remote.UpvoteComment(ctx, apiKey, domain.CommentID(req.ContentID))
	}
	timedOut := !resp.Success && e.timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded)
	return resp, timedOut
}

func (e *Engine) persist(ctx context.Context, log *zap.Logger, t domain.ContentType, id string, state domain.Direction) {
	var err error
	if state == domain.NoVote {
		err = e.store.Remove(ctx, t, id)
	} else {
		err = e.store.Set(ctx, t, id, state)
	}
	if err != nil {
		log.Error("persist vote state", zap.String("state", string(state)), zap.Error(err))
	}
}

func (e *Engine) acquire(key, actionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.pending[key]; busy {
		return false
	}
	e.pending[key] = actionID
	return true
}

func (e *Engine) release(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, key)
}

func (e *Engine) finish(log *zap.Logger, res Result) Result {
	e.metrics.VoteOutcome(string(res.ContentType), string(res.Outcome))
	switch res.Outcome {
	case OutcomeConfirmed, OutcomeAdopted:
		log.Info("vote finished", zap.String("outcome", string(res.Outcome)),
			zap.String("state", string(res.State)), zap.Int("count", res.Count))
	default:
		log.Info("vote not applied", zap.String("outcome", string(res.Outcome)), zap.String("error", res.Error))
	}
	return res
}

// isAlreadyApplied matches the API's "already voted" style rejections. It
// ignores case, so "Already upvoted" is adopted as well as "already upvoted".
func isAlreadyApplied(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "already")
}
