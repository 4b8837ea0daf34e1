// Package app assembles the issuance service from configuration: it picks the
// storage backends, connects to the ledger and the verifier, and owns the
// lifecycle of everything it opened.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"skillbadge/internal/badge/catalog"
	"skillbadge/internal/badge/contentaddr"
	badgehandler "skillbadge/internal/badge/handler"
	"skillbadge/internal/badge/ledger"
	"skillbadge/internal/badge/metrics"
	"skillbadge/internal/badge/orchestrator"
	"skillbadge/internal/badge/ports"
	"skillbadge/internal/badge/service"
	"skillbadge/internal/badge/sweeper"
	"skillbadge/internal/badge/tracer"
	"skillbadge/internal/platform/config"
	"skillbadge/internal/platform/health"
	"skillbadge/internal/ratelimit"
	httptransport "skillbadge/internal/transport/http"
	"skillbadge/pkg/platform/audit/publisher"
	"skillbadge/pkg/platform/middleware/auth"
	"skillbadge/pkg/platform/middleware/request"
)

// ProfileStore is what the workflow needs from the profile backend.
type ProfileStore interface {
	ports.BadgeStore
	ledger.WalletDirectory
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// App is the assembled service. Build it with New, run background work with
// Start, and release it with Close.
type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Catalog   *catalog.Catalog
	Profiles  ProfileStore
	Attempts  ports.AttemptStore
	Service   *service.Service
	Sweeper   *sweeper.Sweeper
	Health    *health.Handler
	Validator *auth.HMACValidator
	Router    http.Handler

	publisher  *publisher.Publisher
	background []func(ctx context.Context)
	closers    []closer
	started    bool
}

// New wires every component. On error, whatever was already opened is closed.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		Health:   health.New(cfg.Server.Environment),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	defer func() {
		if err != nil {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			_ = a.closeResources(closeCtx)
		}
	}()

	if a.Catalog, err = loadCatalog(cfg.Catalog); err != nil {
		return nil, err
	}
	if err = a.buildStores(ctx); err != nil {
		return nil, err
	}
	guard, limiter, err := a.buildCoordination(ctx)
	if err != nil {
		return nil, err
	}
	if err = a.buildAudit(ctx); err != nil {
		return nil, err
	}
	signers, confirmer, err := a.buildLedger(ctx)
	if err != nil {
		return nil, err
	}

	badgeMetrics := metrics.New(a.Registry)
	orch, err := orchestrator.New(
		a.Catalog,
		signers,
		confirmer,
		a.Profiles,
		a.Attempts,
		contentaddr.NewResolver(cfg.Catalog.Gateway),
		orchestrator.WithLogger(logger),
		orchestrator.WithTracer(tracer.NewOTel()),
		orchestrator.WithMetrics(badgeMetrics),
		orchestrator.WithSubmitTimeout(cfg.Ledger.SubmitTimeout),
	)
	if err != nil {
		return nil, err
	}

	a.Service, err = service.New(
		a.buildVerifier(),
		orch,
		a.Attempts,
		a.Profiles,
		guard,
		service.WithLogger(logger),
		service.WithAuditPublisher(a.publisher),
		service.WithMetrics(badgeMetrics),
	)
	if err != nil {
		return nil, err
	}

	a.Sweeper = sweeper.New(a.Service,
		sweeper.WithSchedule(cfg.Sweeper.Schedule),
		sweeper.WithMinAge(cfg.Sweeper.MinAge),
		sweeper.WithBatchSize(cfg.Sweeper.BatchSize),
		sweeper.WithLogger(logger),
	)

	a.Validator = auth.NewHMACValidator(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer)
	uploadLimit := ratelimit.PerUser(limiter, cfg.RateLimit.Uploads, cfg.RateLimit.Window,
		logger, ratelimit.NewMetrics(a.Registry))
	a.Router = httptransport.NewRouter(httptransport.Deps{
		Logger: logger,
		Health: a.Health,
		Badges: badgehandler.New(a.Service, a.Catalog, logger,
			badgehandler.WithIssueTimeout(cfg.Server.IssueTimeout),
			badgehandler.WithIssueMiddleware(uploadLimit)),
		Validator: a.Validator,
		Metrics:   request.NewMetrics(a.Registry),
		Gatherer:  a.Registry,
		Timeout:   cfg.Server.IssueTimeout + 30*time.Second,
	})

	a.Health.SetInfo("profiles", cfg.Store.Profiles)
	a.Health.SetInfo("attempts", cfg.Store.Attempts)
	a.Health.SetInfo("guard", guardBackend(cfg))
	a.Health.SetInfo("audit", auditBackend(cfg))

	logger.InfoContext(ctx, "issuance service assembled",
		"profiles", cfg.Store.Profiles,
		"attempts", cfg.Store.Attempts,
		"guard", guardBackend(cfg),
		"upload_limit", cfg.RateLimit.Uploads,
		"audit", auditBackend(cfg),
		"catalog_entries", len(a.Catalog.Entries()),
	)
	return a, nil
}

// Start launches background work: pool statistics and, when enabled, the
// repair sweeper. It returns once everything is scheduled.
func (a *App) Start(ctx context.Context) error {
	for _, run := range a.background {
		go run(ctx)
	}
	if a.Config.Sweeper.Enabled {
		if err := a.Sweeper.Start(ctx); err != nil {
			return fmt.Errorf("start sweeper: %w", err)
		}
		a.started = true
	}
	return nil
}

// Close stops the sweeper, waits for in-flight issuances, drains the audit
// publisher and closes every connection, in that order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.started {
		a.Sweeper.Stop()
	}
	if a.Service != nil {
		if err := a.Service.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain issuances: %w", err))
		}
	}
	if err := a.closeResources(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeResources(ctx context.Context) error {
	if a.publisher != nil {
		a.publisher.Close()
		a.publisher = nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "close failed", "component", c.name, "error", err)
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(name string, fn func(ctx context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func loadCatalog(cfg config.CatalogConfig) (*catalog.Catalog, error) {
	if cfg.File == "" {
		return catalog.Default(), nil
	}
	c, err := catalog.Load(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return c, nil
}

func guardBackend(cfg config.Config) string {
	if cfg.Redis.URL != "" {
		return "redis"
	}
	return config.BackendMemory
}

func auditBackend(cfg config.Config) string {
	if cfg.Kafka.Brokers != "" {
		return "kafka"
	}
	return config.BackendMemory
}
