package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/cercia-labs/cercia-core/internal/adapters/httpapi"
	kvauth "github.com/cercia-labs/cercia-core/internal/adapters/kvbacked/authstore"
	kvcontent "github.com/cercia-labs/cercia-core/internal/adapters/kvbacked/contentcache"
	kvidem "github.com/cercia-labs/cercia-core/internal/adapters/kvbacked/idempotency"
	kvvotes "github.com/cercia-labs/cercia-core/internal/adapters/kvbacked/votestore"
	memkv "github.com/cercia-labs/cercia-core/internal/adapters/memory/kv"
	"github.com/cercia-labs/cercia-core/internal/adapters/moltbook"
	postgres "github.com/cercia-labs/cercia-core/internal/adapters/postgres"
	pgkv "github.com/cercia-labs/cercia-core/internal/adapters/postgres/kv"
	redisclient "github.com/cercia-labs/cercia-core/internal/adapters/redis"
	rediskv "github.com/cercia-labs/cercia-core/internal/adapters/redis/kv"
	sqlitekv "github.com/cercia-labs/cercia-core/internal/adapters/sqlite/kv"
	"github.com/cercia-labs/cercia-core/internal/app/accounts"
	"github.com/cercia-labs/cercia-core/internal/app/comments"
	"github.com/cercia-labs/cercia-core/internal/app/identity"
	"github.com/cercia-labs/cercia-core/internal/app/intercept"
	"github.com/cercia-labs/cercia-core/internal/app/posts"
	"github.com/cercia-labs/cercia-core/internal/app/session"
	"github.com/cercia-labs/cercia-core/internal/app/votes"
	platformclock "github.com/cercia-labs/cercia-core/internal/platform/clock"
	"github.com/cercia-labs/cercia-core/internal/platform/config"
	"github.com/cercia-labs/cercia-core/internal/platform/logging"
	"github.com/cercia-labs/cercia-core/internal/platform/metrics"
	kvport "github.com/cercia-labs/cercia-core/internal/ports/out/kv"
	votestoreport "github.com/cercia-labs/cercia-core/internal/ports/out/votestore"
)

// core is the fully wired process: storage, remote client and services.
type core struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry

	voteStore votestoreport.Store
	accounts  *accounts.Service
	votes     *votes.Engine
	server    *httpapi.Server

	cleanup []func()
}

func buildCore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*core, error) {
	c := &core{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	c.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(c.registry)

	store, err := c.openStore(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	clk := platformclock.NewSystemClock()
	remote := moltbook.New(moltbook.Options{
		BaseURL:         cfg.API.BaseURL,
		Timeout:         cfg.API.Timeout,
		RatePerSecond:   cfg.API.RatePerSecond,
		Burst:           cfg.API.Burst,
		BreakerFailures: cfg.API.BreakerFailures,
		FetchRetries:    cfg.Lookup.FetchRetries,
		Logger:          logging.Module(log, "moltbook"),
		Metrics:         m,
	})

	c.voteStore = kvvotes.NewStore(store, clk)
	created := kvcontent.NewStore(store)

	index := intercept.NewIndex(nil)
	interceptor := intercept.New(index, logging.Module(log, "intercept"), m)
	c.cleanup = append(c.cleanup, interceptor.Close)
	cache := identity.NewCache(remote, nil, logging.Module(log, "lookup"), m)
	resolver := identity.NewResolver(index, cache)

	c.accounts = accounts.NewService(kvauth.NewStore(store), remote, clk, logging.Module(log, "accounts"))
	c.votes = votes.NewEngine(c.voteStore, remote, c.accounts, resolver, votes.Options{
		Timeout: cfg.Votes.Timeout,
		Logger:  logging.Module(log, "votes"),
		Metrics: m,
	})

	c.server = &httpapi.Server{
		Interceptor: interceptor,
		Session:     session.New(resolver, log, index, cache),
		Resolver:    resolver,
		Votes:       c.votes,
		Comments: comments.NewService(comments.Deps{
			Account: c.accounts,
			Remote:  remote,
			Created: created,
			Lookup:  resolver,
			Upvoter: c.votes,
			Clock:   clk,
			Logger:  log,
		}),
		Posts:    posts.NewService(c.accounts, remote, created, c.votes, clk, log),
		Accounts: c.accounts,
		Created:  created,
		Idem:     kvidem.NewStore(store),
	}
	return c, nil
}

func (c *core) openStore(ctx context.Context) (kvport.Store, error) {
	switch c.cfg.Storage.Backend {
	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, c.cfg.Storage.PostgresDSN, postgres.PoolOptions{})
		if err != nil {
			return nil, fmt.Errorf("invalid postgres config: %w", err)
		}
		c.cleanup = append(c.cleanup, pool.Close)
		if err := pgkv.EnsureSchema(ctx, pool); err != nil {
			return nil, err
		}
		return pgkv.NewStore(pool, logging.Module(c.log, "kv")), nil
	case config.BackendRedis:
		client, err := redisclient.NewClient(ctx, c.cfg.Storage.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis config: %w", err)
		}
		c.cleanup = append(c.cleanup, func() { _ = client.Close() })
		return rediskv.NewStore(client, rediskv.DefaultPrefix, logging.Module(c.log, "kv")), nil
	case config.BackendSQLite:
		s, err := sqlitekv.Open(ctx, c.cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		c.cleanup = append(c.cleanup, func() { _ = s.Close() })
		return s, nil
	default:
		return memkv.NewStore(), nil
	}
}

// Close releases storage connections in reverse order of acquisition.
func (c *core) Close() {
	for i := len(c.cleanup) - 1; i >= 0; i-- {
		c.cleanup[i]()
	}
	c.cleanup = nil
}
