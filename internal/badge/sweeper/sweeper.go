// Package sweeper periodically repairs attempts that minted a token but did
// not reach Issued.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"skillbadge/internal/badge/models"
	id "skillbadge/pkg/domain"
	dErrors "skillbadge/pkg/domain-errors"
)

// Repairer is the slice of the issuance service the sweeper drives.
type Repairer interface {
	RepairCandidates(ctx context.Context, updatedBefore time.Time, limit int) ([]*models.Attempt, error)
	Repair(ctx context.Context, attemptID id.AttemptID) (models.WorkflowResult, error)
}

// Report summarizes one sweep.
type Report struct {
	Candidates int
	Issued     int
	Pending    int
	Failed     int
}

// Sweeper wraps robfig/cron and runs repair cycles.
type Sweeper struct {
	cron     *cron.Cron
	repairer Repairer
	schedule string
	minAge   time.Duration
	batch    int
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Sweeper)

// WithSchedule sets the cron spec, e.g. "@every 5m".
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		s.schedule = spec
	}
}

// WithMinAge skips attempts touched more recently than d, so a sweep never
// races an issuance that is still confirming.
func WithMinAge(d time.Duration) Option {
	return func(s *Sweeper) {
		s.minAge = d
	}
}

func WithBatchSize(n int) Option {
	return func(s *Sweeper) {
		s.batch = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

func New(repairer Repairer, opts ...Option) *Sweeper {
	s := &Sweeper{
		repairer: repairer,
		schedule: "@every 5m",
		minAge:   5 * time.Minute,
		batch:    50,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	return s
}

// Start registers the sweep and starts the scheduler. ctx bounds every run.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.ErrorContext(ctx, "repair sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule repair sweep: %w", err)
	}
	s.cron.Start()
	s.logger.InfoContext(ctx, "repair sweeper started", "schedule", s.schedule)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce repairs every candidate older than the minimum age. A failure on
// one attempt does not stop the others.
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	candidates, err := s.repairer.RepairCandidates(ctx, s.now().Add(-s.minAge), s.batch)
	if err != nil {
		return Report{}, err
	}
	report := Report{Candidates: len(candidates)}
	for _, a := range candidates {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		result, err := s.repairer.Repair(ctx, a.ID)
		switch {
		case dErrors.HasCode(err, dErrors.CodeTimeout):
			report.Pending++
		case err != nil:
			report.Failed++
			s.logger.WarnContext(ctx, "repair failed",
				"attempt_id", a.ID.String(),
				"user_id", a.UserID.String(),
				"error", err,
			)
		case result.Outcome == models.OutcomeIssued:
			report.Issued++
		default:
			report.Failed++
		}
	}
	if report.Candidates > 0 {
		s.logger.InfoContext(ctx, "repair sweep complete",
			"candidates", report.Candidates,
			"issued", report.Issued,
			"pending", report.Pending,
			"failed", report.Failed,
		)
	}
	return report, nil
}
