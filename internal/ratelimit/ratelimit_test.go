package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "skillbadge/pkg/domain"
	"skillbadge/pkg/requestcontext"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("redis down")
}

func limitedHandler(t *testing.T, limiter Limiter, limit int) (http.Handler, *Metrics) {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	return PerUser(limiter, limit, time.Hour, logger, m)(ok), m
}

func asUser(user id.UserID) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/badges/issue", nil)
	if user != "" {
		req = req.WithContext(requestcontext.WithUserID(req.Context(), user))
	}
	return req
}

func TestPerUser(t *testing.T) {
	t.Run("rejects past the limit with retry hints", func(t *testing.T) {
		h, m := limitedHandler(t, NewInMemory(), 2)
		for range 2 {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, asUser("user_a"))
			require.Equal(t, http.StatusOK, w.Code)
		}

		w := httptest.NewRecorder()
		h.ServeHTTP(w, asUser("user_a"))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("Retry-After"))

		var body exceededResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "rate_limit_exceeded", body.Error)
		assert.Positive(t, body.RetryAfter)

		assert.Equal(t, 2.0, promtest.ToFloat64(m.Decisions.WithLabelValues("allowed")))
		assert.Equal(t, 1.0, promtest.ToFloat64(m.Decisions.WithLabelValues("rejected")))

		w = httptest.NewRecorder()
		h.ServeHTTP(w, asUser("user_b"))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("anonymous requests pass through", func(t *testing.T) {
		h, _ := limitedHandler(t, NewInMemory(), 1)
		for range 3 {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, asUser(""))
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})

	t.Run("zero limit disables the check", func(t *testing.T) {
		h, _ := limitedHandler(t, failingLimiter{}, 0)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, asUser("user_a"))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("limiter errors fail open", func(t *testing.T) {
		h, m := limitedHandler(t, failingLimiter{}, 1)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, asUser("user_a"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1.0, promtest.ToFloat64(m.Decisions.WithLabelValues("error")))
	})
}
