// Package service is the issuance workflow controller. It admits one
// issuance per user at a time, turns repeated uploads of the same
// certificate into the prior outcome, calls the verification gateway and
// hands eligible attempts to the orchestrator.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"skillbadge/internal/badge/metrics"
	"skillbadge/internal/badge/models"
	"skillbadge/internal/badge/orchestrator"
	"skillbadge/internal/badge/ports"
	id "skillbadge/pkg/domain"
	dErrors "skillbadge/pkg/domain-errors"
	"skillbadge/pkg/platform/sentinel"
)

// Service coordinates issuance attempts.
type Service struct {
	verifier ports.Verifier
	orch     *orchestrator.Orchestrator
	attempts ports.AttemptStore
	badges   ports.BadgeStore
	guard    ports.Guard

	logger  *slog.Logger
	auditor ports.AuditPublisher
	metrics *metrics.Metrics
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates the workflow controller.
func New(
	verifier ports.Verifier,
	orch *orchestrator.Orchestrator,
	attempts ports.AttemptStore,
	badges ports.BadgeStore,
	guard ports.Guard,
	opts ...Option,
) (*Service, error) {
	if verifier == nil || orch == nil || attempts == nil || badges == nil || guard == nil {
		return nil, errors.New("service: verifier, orchestrator, attempt store, badge store and guard are required")
	}
	s := &Service{
		verifier: verifier,
		orch:     orch,
		attempts: attempts,
		badges:   badges,
		guard:    guard,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close stops admitting new issuances and waits for attempts still running
// in the background, or for ctx.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// begin counts an Issue call towards Close. It reports false once Close has
// started.
func (s *Service) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

// ListBadges returns the badges on the user's profile.
func (s *Service) ListBadges(ctx context.Context, userID id.UserID) ([]models.BadgeRecord, error) {
	badges, err := s.badges.ListBadges(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list badges")
	}
	return badges, nil
}

// GetAttempt returns an attempt owned by userID. Attempts of other users are
// reported as not found.
func (s *Service) GetAttempt(ctx context.Context, userID id.UserID, attemptID id.AttemptID) (*models.Attempt, error) {
	a, err := s.findAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, dErrors.New(dErrors.CodeNotFound, "attempt not found")
	}
	return a, nil
}

func (s *Service) findAttempt(ctx context.Context, attemptID id.AttemptID) (*models.Attempt, error) {
	a, err := s.attempts.FindByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "attempt not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attempt")
	}
	return a, nil
}

func guardKey(userID id.UserID) string {
	return "user:" + userID.String()
}
