package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"skillbadge/pkg/platform/middleware/auth"
	"skillbadge/pkg/platform/middleware/request"
	"skillbadge/pkg/validation"
)

// RouteRegistrar is implemented by every feature handler.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// Deps collects what the router mounts. Health and Badges are required.
type Deps struct {
	Logger    *slog.Logger
	Health    RouteRegistrar
	Badges    RouteRegistrar
	Validator auth.TokenValidator
	Metrics   *request.Metrics
	Gatherer  prometheus.Gatherer
	// Timeout is the hard ceiling per request. Keep it above the issuance
	// timeout so slow issuances still answer 202 instead of a bare 503.
	Timeout time.Duration
}

// NewRouter wires the public endpoints with the shared middleware stack.
func NewRouter(deps Deps) http.Handler {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(deps.Logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(deps.Logger))
	r.Use(request.Instrument(deps.Metrics))
	r.Use(request.Timeout(timeout))

	deps.Health.Register(r)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(request.BodyLimit(validation.MaxUploadSize + 1<<20))
		r.Use(auth.RequireAuth(deps.Validator, deps.Logger))
		deps.Badges.Register(r)
	})

	return r
}
