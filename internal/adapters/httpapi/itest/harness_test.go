package itest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cercia-labs/cercia-core/internal/adapters/httpapi"
	kvauth "github.com/cercia-labs/cercia-core/internal/adapters/kvbacked/authstore"
	kvcontent "github.com/cercia-labs/cercia-core/internal/adapters/kvbacked/contentcache"
	kvidem "github.com/cercia-labs/cercia-core/internal/adapters/kvbacked/idempotency"
	kvvotes "github.com/cercia-labs/cercia-core/internal/adapters/kvbacked/votestore"
	memclock "github.com/cercia-labs/cercia-core/internal/adapters/memory/clock"
	memkv "github.com/cercia-labs/cercia-core/internal/adapters/memory/kv"
	"github.com/cercia-labs/cercia-core/internal/adapters/moltbook"
	pgkv "github.com/cercia-labs/cercia-core/internal/adapters/postgres/kv"
	postgres_testutil "github.com/cercia-labs/cercia-core/internal/adapters/postgres/testutil"
	redisadapter "github.com/cercia-labs/cercia-core/internal/adapters/redis"
	rediskv "github.com/cercia-labs/cercia-core/internal/adapters/redis/kv"
	sqlitekv "github.com/cercia-labs/cercia-core/internal/adapters/sqlite/kv"
	"github.com/cercia-labs/cercia-core/internal/app/accounts"
	"github.com/cercia-labs/cercia-core/internal/app/comments"
	"github.com/cercia-labs/cercia-core/internal/app/identity"
	"github.com/cercia-labs/cercia-core/internal/app/intercept"
	"github.com/cercia-labs/cercia-core/internal/app/posts"
	"github.com/cercia-labs/cercia-core/internal/app/session"
	"github.com/cercia-labs/cercia-core/internal/app/votes"
	kvport "github.com/cercia-labs/cercia-core/internal/ports/out/kv"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendSQLite   backend = "sqlite"
	backendPostgres backend = "postgres"
	backendRedis    backend = "redis"
)

const bridgeToken = "itest-token"

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "sqlite":
		return []backend{backendSQLite}
	case "postgres":
		return []backend{backendPostgres}
	case "redis":
		return []backend{backendRedis}
	case "all":
		return []backend{backendMemory, backendSQLite, backendPostgres, backendRedis}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|sqlite|postgres|redis|all)")
		return nil
	}
}

func openStore(t *testing.T, b backend) kvport.Store {
	t.Helper()
	switch b {
	case backendMemory:
		return memkv.NewStore()
	case backendSQLite:
		s, err := sqlitekv.Open(context.Background(), filepath.Join(t.TempDir(), "cercia.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	case backendPostgres:
		// The kv table outlives a run; start from an empty one.
		pool := postgres_testutil.OpenPool(t)
		if _, err := pool.Exec(context.Background(), `DELETE FROM cercia_kv`); err != nil {
			t.Fatalf("reset kv table: %v", err)
		}
		return pgkv.NewStore(pool, nil)
	case backendRedis:
		url := os.Getenv("CERCIA_TEST_REDIS_URL")
		if url == "" {
			t.Skip("CERCIA_TEST_REDIS_URL not set; skipping redis itest")
		}
		client, err := redisadapter.NewClient(context.Background(), url)
		if err != nil {
			t.Fatalf("connect redis: %v", err)
		}
		t.Cleanup(func() { _ = client.Close() })
		return rediskv.NewStore(client, "cercia-itest:"+uuid.NewString()+":", nil)
	default:
		t.Fatalf("unknown backend: %s", b)
		return nil
	}
}

// fakeMoltbook serves the handful of remote endpoints the bridge flows touch.
type fakeMoltbook struct {
	mu    sync.Mutex
	calls map[string]int
	// comments is the tree returned by GET /posts/{id}.
	comments []map[string]any
}

func (f *fakeMoltbook) count(route string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[route]++
}

func (f *fakeMoltbook) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

func (f *fakeMoltbook) handler() http.Handler {
	r := chi.NewRouter()
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer moltbook_sk_itest" {
				writeRemote(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Invalid API key"})
				return
			}
			next(w, r)
		}
	}
	r.Get("/agents/me", authed(func(w http.ResponseWriter, _ *http.Request) {
		f.count("me")
		writeRemote(w, http.StatusOK, map[string]any{"success": true, "agent": map[string]any{
			"name": "crab", "karma": 3, "is_claimed": true, "created_at": "2026-01-01T00:00:00Z",
		}})
	}))
	r.Post("/posts/{id}/upvote", authed(func(w http.ResponseWriter, _ *http.Request) {
		f.count("upvote_post")
		writeRemote(w, http.StatusOK, map[string]any{"success": true, "message": "Upvoted!"})
	}))
	r.Post("/comments/{id}/upvote", authed(func(w http.ResponseWriter, r *http.Request) {
		f.count("upvote_comment:" + chi.URLParam(r, "id"))
		writeRemote(w, http.StatusOK, map[string]any{"success": true, "message": "Upvoted!"})
	}))
	r.Get("/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.count("get_post")
		f.mu.Lock()
		tree := f.comments
		f.mu.Unlock()
		writeRemote(w, http.StatusOK, map[string]any{
			"success":  true,
			"post":     map[string]any{"id": chi.URLParam(r, "id"), "title": "Tide pools"},
			"comments": tree,
		})
	})
	r.Post("/posts/{id}/comments", authed(func(w http.ResponseWriter, r *http.Request) {
		f.count("create_comment")
		var body struct {
			Content string `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeRemote(w, http.StatusCreated, map[string]any{"success": true, "comment": map[string]any{
			"id": "c-" + uuid.NewString(), "content": body.Content, "author": map[string]any{"name": "crab"},
		}})
	}))
	return r
}

func writeRemote(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type testServer struct {
	baseURL string
	client  *http.Client
	remote  *fakeMoltbook
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	store := openStore(t, b)
	clk := memclock.NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	fake := &fakeMoltbook{calls: map[string]int{}}
	remoteSrv := httptest.NewServer(fake.handler())
	t.Cleanup(remoteSrv.Close)
	remote := moltbook.New(moltbook.Options{BaseURL: remoteSrv.URL, Timeout: 5 * time.Second})

	created := kvcontent.NewStore(store)
	index := intercept.NewIndex(nil)
	interceptor := intercept.New(index, nil, nil)
	t.Cleanup(interceptor.Close)
	cache := identity.NewCache(remote, nil, nil, nil)
	resolver := identity.NewResolver(index, cache)
	acct := accounts.NewService(kvauth.NewStore(store), remote, clk, nil)
	engine := votes.NewEngine(kvvotes.NewStore(store, clk), remote, acct, resolver, votes.Options{})

	api := &httpapi.Server{
		Interceptor: interceptor,
		Session:     session.New(resolver, nil, index, cache),
		Resolver:    resolver,
		Votes:       engine,
		Comments: comments.NewService(comments.Deps{
			Account: acct, Remote: remote, Created: created, Lookup: resolver, Upvoter: engine, Clock: clk,
		}),
		Posts:    posts.NewService(acct, remote, created, engine, clk, nil),
		Accounts: acct,
		Created:  created,
		Idem:     kvidem.NewStore(store),
	}
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{AuthMiddleware: httpapi.NewTokenMiddleware(bridgeToken)})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
		remote:  fake,
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, headers map[string]string, body any) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+bridgeToken)
	for k, v := range headers {
		if v == "" {
			req.Header.Del(k)
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireStatus(t *testing.T, status int, body []byte, want int) {
	t.Helper()
	if status != want {
		t.Fatalf("status=%d want=%d body=%s", status, want, string(body))
	}
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	requireStatus(t, status, body, wantStatus)
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}
