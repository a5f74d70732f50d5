package identity

import (
	"context"
	"maps"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cercia-labs/cercia-core/internal/domain"
	"github.com/cercia-labs/cercia-core/internal/platform/metrics"
	"github.com/cercia-labs/cercia-core/internal/ports/out/remoteapi"
)

// PostFetcher is the part of the remote API the cache needs.
type PostFetcher interface {
	GetPost(ctx context.Context, id domain.PostID) remoteapi.Response[remoteapi.PostDetail]
}

type postEntry struct {
	m LookupMap
	// fetched is false for maps that only hold entries added by Insert.
	fetched bool
}

// Cache is the per-post lookup cache. It is safe for concurrent use.
//
// Concurrent Fetch calls for one post share a single remote call. Clear bumps a
// generation counter; a fetch that started before the Clear returns its map to
// its callers but does not store it.
type Cache struct {
	remote  PostFetcher
	kb      domain.KeyBuilder
	log     *zap.Logger
	metrics *metrics.Metrics

	group singleflight.Group

	mu    sync.Mutex
	gen   uint64
	posts map[domain.PostID]*postEntry
}

func NewCache(remote PostFetcher, kb domain.KeyBuilder, log *zap.Logger, m *metrics.Metrics) *Cache {
	if kb == nil {
		kb = domain.LossyKeyBuilder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		remote:  remote,
		kb:      kb,
		log:     log,
		metrics: m,
		posts:   make(map[domain.PostID]*postEntry),
	}
}

// Fetch returns the lookup map for postID, fetching the comment tree once per
// post. A failed fetch is logged and cached as an empty map.
//
// A flight abandoned by the caller that started it is not cached; callers that
// joined it with a live ctx fetch again instead of sharing the empty result.
func (c *Cache) Fetch(ctx context.Context, postID domain.PostID) LookupMap {
	for {
		m, gen, ok := c.cached(postID)
		if ok {
			c.metrics.LookupFetch("cached")
			return m
		}

		key := strconv.FormatUint(gen, 10) + "/" + string(postID)
		v, _, _ := c.group.Do(key, func() (any, error) {
			// A previous flight may have finished between the check above and Do.
			if m, _, ok := c.cached(postID); ok {
				return fetchResult{m: m}, nil
			}
			return c.fetch(ctx, postID, gen), nil
		})
		res := v.(fetchResult)
		if res.canceled && ctx.Err() == nil {
			continue
		}
		return maps.Clone(res.m)
	}
}

type fetchResult struct {
	m LookupMap
	// canceled is set when the flight's ctx ended before the remote answered.
	canceled bool
}

func (c *Cache) cached(postID domain.PostID) (LookupMap, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.posts[postID]; ok && e.fetched {
		return maps.Clone(e.m), c.gen, true
	}
	return nil, c.gen, false
}

func (c *Cache) fetch(ctx context.Context, postID domain.PostID, gen uint64) fetchResult {
	resp := c.remote.GetPost(ctx, postID)

	m := LookupMap{}
	switch {
	case resp.Success && resp.Data.Success:
		m = BuildLookupMap(resp.Data.Comments, c.kb)
		c.metrics.LookupFetch("ok")
		c.log.Debug("built comment lookup map", zap.String("post_id", string(postID)), zap.Int("entries", len(m)))
	case ctx.Err() != nil:
		// The caller went away; leave the post unfetched so the next caller retries.
		c.metrics.LookupFetch("canceled")
		return fetchResult{m: m, canceled: true}
	default:
		c.metrics.LookupFetch("failed")
		c.log.Warn("failed to fetch post comments",
			zap.String("post_id", string(postID)), zap.Int("status", resp.Status), zap.String("error", resp.Error))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		c.metrics.LookupFetch("stale")
		return fetchResult{m: m}
	}
	if e, ok := c.posts[postID]; ok {
		// Entries inserted while the fetch was in flight stay on top.
		maps.Copy(m, e.m)
	}
	c.posts[postID] = &postEntry{m: m, fetched: true}
	return fetchResult{m: maps.Clone(m)}
}

// Resolve looks the fingerprint up in the post's cached map. It never fetches.
func (c *Cache) Resolve(postID domain.PostID, author, snippet string) (domain.CommentID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.posts[postID]
	if !ok {
		return "", false
	}
	id, ok := e.m[c.kb.Key(author, snippet)]
	return id, ok
}

// Insert adds or overwrites one entry, creating the post's map if needed.
func (c *Cache) Insert(postID domain.PostID, author, content string, id domain.CommentID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.posts[postID]
	if !ok {
		e = &postEntry{m: LookupMap{}}
		c.posts[postID] = e
	}
	e.m[c.kb.Key(author, content)] = id
}

// Fetched reports whether postID's map came from a completed fetch.
func (c *Cache) Fetched(postID domain.PostID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.posts[postID]
	return ok && e.fetched
}

// Clear drops every post's map.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.posts = make(map[domain.PostID]*postEntry)
}
