package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cercia-labs/cercia-core/internal/adapters/httpapi"
	"github.com/cercia-labs/cercia-core/internal/domain"
	"github.com/cercia-labs/cercia-core/internal/platform/config"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CERCIA_STORAGE_BACKEND", backend)
	t.Setenv("CERCIA_STORAGE_SQLITE_PATH", filepath.Join(t.TempDir(), "cercia.db"))
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func TestBuildCore_Backends(t *testing.T) {
	for _, backend := range []string{config.BackendMemory, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			core, err := buildCore(ctx, testConfig(t, backend), zap.NewNop())
			require.NoError(t, err)
			defer core.Close()

			require.NoError(t, core.voteStore.Set(ctx, domain.ContentPost, "p1", domain.Up))
			records, err := core.voteStore.All(ctx)
			require.NoError(t, err)
			require.Len(t, records, 1)

			_, ok, err := core.accounts.Restore(ctx)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBuildCore_RouterServesBridge(t *testing.T) {
	ctx := context.Background()
	core, err := buildCore(ctx, testConfig(t, config.BackendMemory), zap.NewNop())
	require.NoError(t, err)
	defer core.Close()

	h := httpapi.NewRouterWithOptions(core.server, httpapi.RouterOptions{
		AuthMiddleware: httpapi.NewTokenMiddleware("secret"),
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/votes", strings.NewReader(`{"contentType":"post","contentId":"p1","direction":"up"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"unauthenticated"`)
}
