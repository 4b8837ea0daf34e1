package service

import (
	"context"
	"errors"
	"strings"

	"skillbadge/internal/badge/contentaddr"
	"skillbadge/internal/badge/models"
	"skillbadge/internal/badge/verifier"
	dErrors "skillbadge/pkg/domain-errors"
	"skillbadge/pkg/platform/audit"
	"skillbadge/pkg/platform/sentinel"
)

type runOutcome struct {
	result models.WorkflowResult
	err    error
}

// Issue runs one issuance attempt for req.UserID.
//
// The result is always one of Rejected, MintFailed, PersistFailed or Issued.
// If ctx ends while the attempt is still running, Issue returns a
// CodeTimeout error whose Ref is the attempt ID; the attempt continues in the
// background and can be followed through GetAttempt.
func (s *Service) Issue(ctx context.Context, req models.IssueRequest) (models.WorkflowResult, error) {
	if req.UserID.IsNil() {
		return models.WorkflowResult{}, dErrors.New(dErrors.CodeUnauthorized, "user is required")
	}
	if len(req.Data) == 0 {
		return models.WorkflowResult{}, dErrors.New(dErrors.CodeValidation, "certificate file is required")
	}
	if strings.TrimSpace(req.ExpectedName) == "" {
		return models.WorkflowResult{}, dErrors.New(dErrors.CodeValidation, "expected name is required")
	}

	if !s.begin() {
		return models.WorkflowResult{}, dErrors.New(dErrors.CodeUnavailable, "service is shutting down")
	}
	// The Close registration and the guard pass to the background run once
	// it starts.
	handedOff := false
	defer func() {
		if !handedOff {
			s.wg.Done()
		}
	}()

	release, err := s.guard.TryAcquire(ctx, guardKey(req.UserID))
	if err != nil {
		if errors.Is(err, sentinel.ErrInProgress) {
			s.logger.InfoContext(ctx, "issuance already in progress", "user_id", req.UserID.String())
			return models.WorkflowResult{Outcome: models.OutcomeRejected, Reason: models.ReasonInProgress}, nil
		}
		return models.WorkflowResult{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "issuance guard unavailable")
	}
	defer func() {
		if !handedOff {
			release()
		}
	}()

	fingerprint, err := contentaddr.Fingerprint(req.Data)
	if err != nil {
		return models.WorkflowResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to fingerprint certificate")
	}

	prior, err := s.attempts.LatestByFingerprint(ctx, req.UserID, fingerprint)
	switch {
	case err == nil:
		if result, ok := s.priorOutcome(prior); ok {
			s.metrics.RecordDuplicate(string(prior.State))
			s.emit(ctx, prior, audit.EventDuplicateSubmitted, result)
			return result, nil
		}
	case !errors.Is(err, sentinel.ErrNotFound):
		return models.WorkflowResult{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "issuance journal unavailable")
	}

	started := s.now()
	a := models.NewAttempt(req.UserID, fingerprint, started)
	if err := s.attempts.Create(ctx, a); err != nil {
		return models.WorkflowResult{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "issuance journal unavailable")
	}
	s.emit(ctx, a, audit.EventIssuanceRequested, models.WorkflowResult{})

	outcome, verr := s.verifier.Verify(ctx, verifier.Document{
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Data:        req.Data,
	}, req.ExpectedName)
	if verr != nil {
		s.metrics.RecordVerificationFailure(string(verifier.CategoryOf(verr)))
		s.logger.WarnContext(ctx, "certificate verification failed",
			"user_id", a.UserID.String(),
			"attempt_id", a.ID.String(),
			"error", verr,
		)
	}

	done := make(chan runOutcome, 1)
	handedOff = true
	s.metrics.IncInFlight()
	go func() {
		defer s.wg.Done()
		done <- s.run(ctx, a, outcome, release)
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return models.WorkflowResult{}, dErrors.Wrap(r.err, dErrors.CodeUnavailable, "issuance could not be recorded")
		}
		return r.result, nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "caller left before issuance finished",
			"user_id", a.UserID.String(),
			"attempt_id", a.ID.String(),
		)
		return models.WorkflowResult{AttemptID: a.ID},
			dErrors.WithRef(dErrors.CodeTimeout, "issuance still processing", a.ID.String(), ctx.Err())
	}
}

// run drives a to a terminal state. The guard is released before the
// outcome is handed back.
func (s *Service) run(ctx context.Context, a *models.Attempt, outcome models.VerificationOutcome, release func()) runOutcome {
	defer s.metrics.DecInFlight()
	defer release()
	result, err := s.orch.Run(ctx, a, outcome)
	if err == nil {
		result.Verification = &outcome
	}
	s.finish(context.WithoutCancel(ctx), a, result, err)
	return runOutcome{result: result, err: err}
}

// priorOutcome maps an earlier attempt for the same certificate to the
// result a repeat upload gets. ok is false when a new attempt may run.
func (s *Service) priorOutcome(prior *models.Attempt) (models.WorkflowResult, bool) {
	switch prior.State {
	case models.StateIssued, models.StatePersistFailed:
		return models.ResultOf(prior)
	case models.StateMinting, models.StateMintConfirmed, models.StatePersisting:
		return models.Rejected(prior.ID, models.ReasonAlreadySubmitted), true
	case models.StateMintFailed:
		if !prior.Reason.Retryable() {
			return models.Rejected(prior.ID, models.ReasonAlreadySubmitted), true
		}
	}
	return models.WorkflowResult{}, false
}

func (s *Service) finish(ctx context.Context, a *models.Attempt, result models.WorkflowResult, err error) {
	if err != nil {
		s.logger.ErrorContext(ctx, "issuance aborted",
			"user_id", a.UserID.String(),
			"attempt_id", a.ID.String(),
			"state", a.State,
			"error", err,
		)
		s.emit(ctx, a, audit.EventIssuanceOrphaned, result)
		return
	}
	s.metrics.RecordOutcome(string(result.Outcome), string(result.Reason), s.now().Sub(a.CreatedAt))
	if a.Submitted() {
		s.emit(ctx, a, audit.EventMintSubmitted, result)
	}
	switch result.Outcome {
	case models.OutcomeRejected:
		s.emit(ctx, a, audit.EventIssuanceRejected, result)
	case models.OutcomeMintFailed:
		s.emit(ctx, a, audit.EventMintFailed, result)
	case models.OutcomePersistFailed:
		s.emit(ctx, a, audit.EventPersistFailed, result)
	case models.OutcomeIssued:
		s.emit(ctx, a, audit.EventBadgeIssued, result)
	}
}
