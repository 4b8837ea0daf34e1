package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillbadge/internal/platform/config"
	id "skillbadge/pkg/domain"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("VERIFIER_URL", "http://verifier.invalid")
	// ethclient dials HTTP endpoints lazily, so nothing needs to listen here.
	t.Setenv("LEDGER_RPC_URL", "http://127.0.0.1:1")
	t.Setenv("BADGE_CONTRACT_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	t.Setenv("SEED_WALLETS", "user_2abc=0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	t.Setenv("SWEEPER_SCHEDULE", "@every 1h")
	return config.FromEnv()
}

func TestNewWithMemoryBackends(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, memoryConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, a.Start(ctx))
	t.Cleanup(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, a.Close(closeCtx))
	})

	wallet, err := a.Profiles.WalletAddress(ctx, id.UserID("user_2abc"))
	require.NoError(t, err)
	assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", wallet)

	t.Run("liveness", func(t *testing.T) {
		w := httptest.NewRecorder()
		a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("catalog behind auth", func(t *testing.T) {
		w := httptest.NewRecorder()
		a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/badges/catalog", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		token, err := a.Validator.Sign(id.UserID("user_2abc"), time.Minute, time.Now())
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/badges/catalog", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w = httptest.NewRecorder()
		a.Router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Machine Learning")
	})

	t.Run("status reports backends", func(t *testing.T) {
		w := httptest.NewRecorder()
		a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"profiles":"memory"`)
	})

	t.Run("metrics include badge collectors", func(t *testing.T) {
		w := httptest.NewRecorder()
		a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "go_goroutines")
	})
}

func TestUploadRateLimitIsWired(t *testing.T) {
	ctx := context.Background()
	t.Setenv("UPLOAD_RATE_LIMIT", "1")
	a, err := New(ctx, memoryConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close(context.Background())) })

	token, err := a.Validator.Sign(id.UserID("user_2abc"), time.Minute, time.Now())
	require.NoError(t, err)
	upload := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/badges/issue", strings.NewReader(`{}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		a.Router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusBadRequest, upload().Code)
	w := upload()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), config.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VERIFIER_URL")
}

func TestNewFailsOnBadCatalogFile(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Catalog.File = "/nonexistent/catalog.yaml"

	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load catalog")
}
