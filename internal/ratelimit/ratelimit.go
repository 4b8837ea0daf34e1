// Package ratelimit throttles certificate uploads per user with a sliding
// window, either in process or shared through Redis.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"skillbadge/pkg/platform/httputil"
	"skillbadge/pkg/requestcontext"
)

const keyPrefix = "upload:"

// Result is the outcome of one admission check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
}

// Limiter admits or rejects one unit of work for key within a window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

type exceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// PerUser limits authenticated users to limit requests per window. It must
// run after authentication. Requests pass through when the limiter errors.
func PerUser(limiter Limiter, limit int, window time.Duration, logger *slog.Logger, m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := requestcontext.UserID(ctx)
			if userID.IsNil() || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Allow(ctx, keyPrefix+userID.String(), limit, window)
			if err != nil {
				logger.ErrorContext(ctx, "failed to check upload rate limit",
					"request_id", requestcontext.RequestID(ctx),
					"user_id", userID,
					"error", err,
				)
				m.observe("error")
				next.ServeHTTP(w, r)
				return
			}

			addHeaders(w, result)
			if !result.Allowed {
				logger.WarnContext(ctx, "upload rate limit exceeded",
					"request_id", requestcontext.RequestID(ctx),
					"user_id", userID,
					"retry_after", result.RetryAfter,
				)
				m.observe("rejected")
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, exceededResponse{
					Error:      "rate_limit_exceeded",
					Message:    "Too many certificate uploads. Please try again later.",
					RetryAfter: result.RetryAfter,
				})
				return
			}
			m.observe("allowed")
			next.ServeHTTP(w, r)
		})
	}
}

func addHeaders(w http.ResponseWriter, result *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func retryAfterSeconds(allowed bool, resetAt, now time.Time) int {
	if allowed {
		return 0
	}
	seconds := int(resetAt.Sub(now).Seconds())
	if seconds < 1 {
		return 1
	}
	return seconds
}
