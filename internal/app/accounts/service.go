// Package accounts manages the Moltbook agent the extension acts as.
package accounts

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cercia-labs/cercia-core/internal/app/apperr"
	"github.com/cercia-labs/cercia-core/internal/domain"
	"github.com/cercia-labs/cercia-core/internal/ports/out/authstore"
	clockport "github.com/cercia-labs/cercia-core/internal/ports/out/clock"
	"github.com/cercia-labs/cercia-core/internal/ports/out/remoteapi"
)

// Session is the logged-in agent as the extension shows it. Unclaimed agents
// carry a partial profile plus what the owner needs to claim them.
type Session struct {
	Agent            domain.AgentProfile
	ClaimURL         string
	VerificationCode string
}

// Unclaimed reports whether the agent still has to be claimed by its owner.
func (s Session) Unclaimed() bool { return !s.Agent.IsClaimed }

// StatusInfo is the claim status of the logged-in agent.
type StatusInfo struct {
	Status           string
	Message          string
	AgentName        string
	ClaimURL         string
	VerificationCode string
}

type Service struct {
	store  authstore.Store
	remote remoteapi.Agents
	clk    clockport.Clock
	log    *zap.Logger
}

func NewService(store authstore.Store, remote remoteapi.Agents, clk clockport.Clock, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, remote: remote, clk: clk, log: log}
}

// SignUp registers a new agent and logs in as it. New agents are always unclaimed.
func (s *Service) SignUp(ctx context.Context, name, description string) (Session, error) {
	name = domain.NormalizeHumanName(name)
	if name == "" {
		return Session{}, apperr.Validation("invalid name", "name", "must be non-empty")
	}
	description = strings.TrimSpace(description)

	resp := s.remote.RegisterAgent(ctx, name, description)
	if !resp.Success {
		return Session{}, apperr.Upstream(resp.Status, resp.Error, resp.Hint)
	}
	a := resp.Data.Agent
	if a.APIKey == "" {
		return Session{}, apperr.Upstream(http.StatusBadGateway, "registration returned no api key", "")
	}
	if a.Name == "" {
		a.Name = name
	}

	creds := authstore.Credentials{
		APIKey:           a.APIKey,
		ClaimURL:         a.ClaimURL,
		VerificationCode: a.VerificationCode,
		CachedAgent:      &domain.CachedAgent{Name: a.Name, IsClaimed: false},
	}
	if err := s.store.Save(ctx, creds); err != nil {
		return Session{}, err
	}
	s.log.Info("agent registered", zap.String("agent", a.Name))
	return Session{
		Agent:            s.partialProfile(a.Name, description),
		ClaimURL:         a.ClaimURL,
		VerificationCode: a.VerificationCode,
	}, nil
}

// LogIn validates apiKey and stores it. Claimed agents get their full profile;
// unclaimed ones are looked up through their claim link.
func (s *Service) LogIn(ctx context.Context, apiKey string) (Session, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return Session{}, apperr.Validation("invalid api key", "apiKey", "must be non-empty")
	}
	return s.validate(ctx, authstore.Credentials{APIKey: apiKey}, false)
}

// Restore revalidates the stored key. It reports false when nobody is logged in.
// A key the API rejects stays stored; the caller decides whether to log out.
func (s *Service) Restore(ctx context.Context) (Session, bool, error) {
	creds, ok, err := s.store.Get(ctx)
	if err != nil || !ok {
		return Session{}, false, err
	}
	sess, err := s.validate(ctx, creds, true)
	if err != nil {
		return Session{}, false, err
	}
	return sess, true, nil
}

// Me is Restore for callers that require a login.
func (s *Service) Me(ctx context.Context) (Session, error) {
	sess, ok, err := s.Restore(ctx)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, apperr.Unauthenticated()
	}
	return sess, nil
}

func (s *Service) validate(ctx context.Context, stored authstore.Credentials, restoring bool) (Session, error) {
	resp := s.remote.Me(ctx, stored.APIKey)
	if resp.Success {
		profile := toProfile(resp.Data)
		creds := authstore.Credentials{
			APIKey:      stored.APIKey,
			CachedAgent: &domain.CachedAgent{Name: profile.Name, IsClaimed: profile.IsClaimed},
		}
		if restoring {
			creds.ClaimURL = stored.ClaimURL
			creds.VerificationCode = stored.VerificationCode
		}
		if err := s.store.Save(ctx, creds); err != nil {
			return Session{}, err
		}
		return Session{Agent: profile, ClaimURL: creds.ClaimURL, VerificationCode: creds.VerificationCode}, nil
	}

	if resp.Error != UnclaimedError {
		return Session{}, apperr.Upstream(resp.Status, resp.Error, resp.Hint)
	}

	claimURL := ClaimURLFromHint(resp.Hint)
	if claimURL == "" {
		claimURL = stored.ClaimURL
	}
	if claimURL == "" {
		return Session{}, apperr.Upstream(resp.Status, "Could not find claim URL for unclaimed agent", resp.Hint)
	}
	token := ExtractClaimToken(claimURL)
	if token == "" {
		return Session{}, apperr.Upstream(resp.Status, "Could not extract claim token from URL", "")
	}
	info := s.remote.ClaimInfo(ctx, token)
	if !info.Success {
		return Session{}, apperr.Upstream(info.Status, info.Error, info.Hint)
	}

	code := stored.VerificationCode
	if code == "" {
		code = info.Data.VerificationCode
	}
	description := ""
	if info.Data.Description != nil {
		description = *info.Data.Description
	}
	creds := authstore.Credentials{
		APIKey:           stored.APIKey,
		ClaimURL:         claimURL,
		VerificationCode: code,
		CachedAgent:      &domain.CachedAgent{Name: info.Data.Name, IsClaimed: false},
	}
	if err := s.store.Save(ctx, creds); err != nil {
		return Session{}, err
	}
	s.log.Info("logged in as unclaimed agent", zap.String("agent", info.Data.Name))
	return Session{
		Agent:            s.partialProfile(info.Data.Name, description),
		ClaimURL:         claimURL,
		VerificationCode: code,
	}, nil
}

func (s *Service) LogOut(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.log.Info("logged out")
	return nil
}

// VerifyTweet completes the claim with the owner's verification tweet and
// returns the refreshed session.
func (s *Service) VerifyTweet(ctx context.Context, tweetURL string) (Session, error) {
	tweetURL = strings.TrimSpace(tweetURL)
	if tweetURL == "" {
		return Session{}, apperr.Validation("invalid tweet url", "tweetUrl", "must be non-empty")
	}
	creds, ok, err := s.store.Get(ctx)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, apperr.Unauthenticated()
	}
	if creds.ClaimURL == "" {
		return Session{}, apperr.Conflict("No claim URL available")
	}
	token := ExtractClaimToken(creds.ClaimURL)
	if token == "" {
		return Session{}, apperr.Conflict("Could not extract claim token")
	}

	resp := s.remote.VerifyTweet(ctx, creds.APIKey, token, tweetURL)
	if !resp.Success {
		return Session{}, apperr.Upstream(resp.Status, resp.Error, resp.Hint)
	}
	s.log.Info("claim verified", zap.Bool("claimed", resp.Data.Claimed))
	return s.validate(ctx, creds, true)
}

// Status reports the claim status; the verification code is parsed from the claim URL.
func (s *Service) Status(ctx context.Context) (StatusInfo, error) {
	apiKey, ok, err := s.APIKey(ctx)
	if err != nil {
		return StatusInfo{}, err
	}
	if !ok {
		return StatusInfo{}, apperr.Unauthenticated()
	}
	resp := s.remote.Status(ctx, apiKey)
	if !resp.Success {
		return StatusInfo{}, apperr.Upstream(resp.Status, resp.Error, resp.Hint)
	}
	return StatusInfo{
		Status:           resp.Data.Status,
		Message:          resp.Data.Message,
		AgentName:        resp.Data.Agent.Name,
		ClaimURL:         resp.Data.ClaimURL,
		VerificationCode: codeFromClaimURL(resp.Data.ClaimURL),
	}, nil
}

// APIKey returns the stored key, if any.
func (s *Service) APIKey(ctx context.Context) (string, bool, error) {
	creds, ok, err := s.store.Get(ctx)
	if err != nil || !ok {
		return "", false, err
	}
	return creds.APIKey, true, nil
}

// CachedAgent returns the agent saved next to the credentials without calling the API.
func (s *Service) CachedAgent(ctx context.Context) (domain.CachedAgent, bool, error) {
	creds, ok, err := s.store.Get(ctx)
	if err != nil || !ok || creds.CachedAgent == nil {
		return domain.CachedAgent{}, false, err
	}
	return *creds.CachedAgent, true, nil
}

// Watch relays credential changes made by any process sharing the storage.
func (s *Service) Watch(ctx context.Context) (<-chan authstore.Event, error) {
	return s.store.Watch(ctx)
}

func (s *Service) partialProfile(name, description string) domain.AgentProfile {
	return domain.AgentProfile{
		Name:        name,
		Description: description,
		IsClaimed:   false,
		CreatedAt:   s.clk.Now().UTC(),
	}
}

func toProfile(b remoteapi.AgentBody) domain.AgentProfile {
	p := domain.AgentProfile{
		Name:           b.Name,
		DisplayName:    b.DisplayName,
		Description:    b.Description,
		Karma:          b.Karma,
		FollowerCount:  b.FollowerCount,
		FollowingCount: b.FollowingCount,
		IsClaimed:      b.IsClaimed,
		Status:         b.Status,
	}
	if t, err := time.Parse(time.RFC3339, b.CreatedAt); err == nil {
		p.CreatedAt = t.UTC()
	}
	return p
}
