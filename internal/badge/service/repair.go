package service

import (
	"context"
	"errors"
	"time"

	"skillbadge/internal/badge/ledger"
	"skillbadge/internal/badge/models"
	id "skillbadge/pkg/domain"
	dErrors "skillbadge/pkg/domain-errors"
	"skillbadge/pkg/platform/audit"
	"skillbadge/pkg/platform/sentinel"
)

// Repair finishes an attempt that minted but did not reach Issued:
// PersistFailed attempts are persisted again, and unconfirmed mints are
// re-checked on the ledger. Nothing is ever minted again. Issued attempts
// return their result unchanged.
func (s *Service) Repair(ctx context.Context, attemptID id.AttemptID) (models.WorkflowResult, error) {
	a, err := s.findAttempt(ctx, attemptID)
	if err != nil {
		return models.WorkflowResult{}, err
	}
	if a.State == models.StateIssued {
		result, _ := models.ResultOf(a)
		return result, nil
	}

	release, err := s.guard.TryAcquire(ctx, guardKey(a.UserID))
	if err != nil {
		if errors.Is(err, sentinel.ErrInProgress) {
			return models.WorkflowResult{}, dErrors.New(dErrors.CodeConflict, "issuance in progress for this user")
		}
		return models.WorkflowResult{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "issuance guard unavailable")
	}
	defer release()

	// Another request may have finished the attempt while the guard was held.
	if a, err = s.findAttempt(ctx, attemptID); err != nil {
		return models.WorkflowResult{}, err
	}

	switch {
	case a.State == models.StateIssued:
		result, _ := models.ResultOf(a)
		return result, nil

	case a.State == models.StatePersistFailed:
		result, err := s.orch.Persist(ctx, a)
		if err != nil {
			return models.WorkflowResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "repair failed")
		}
		s.metrics.RecordRepair("persist", string(result.Outcome))
		if result.Outcome == models.OutcomeIssued {
			s.emit(ctx, a, audit.EventBadgeRepaired, result)
		}
		return result, nil

	case a.State == models.StateMintFailed && a.Reason == models.ReasonUnconfirmed && a.Submitted():
		result, err := s.orch.Reconcile(ctx, a)
		if errors.Is(err, ledger.ErrPending) {
			s.metrics.RecordRepair("reconcile", "pending")
			return models.WorkflowResult{AttemptID: a.ID},
				dErrors.WithRef(dErrors.CodeTimeout, "mint transaction still pending", a.ID.String(), err)
		}
		if err != nil {
			return models.WorkflowResult{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger unavailable")
		}
		s.metrics.RecordRepair("reconcile", string(result.Outcome))
		s.emit(ctx, a, audit.EventMintReconciled, result)
		return result, nil
	}

	return models.WorkflowResult{}, dErrors.New(dErrors.CodeConflict, "attempt is not repairable")
}

// RepairCandidates lists attempts the sweeper should repair: PersistFailed
// attempts and submitted mints that ended unconfirmed, last touched before
// updatedBefore.
func (s *Service) RepairCandidates(ctx context.Context, updatedBefore time.Time, limit int) ([]*models.Attempt, error) {
	persistFailed, err := s.attempts.ListByState(ctx, models.StatePersistFailed, updatedBefore, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "issuance journal unavailable")
	}
	mintFailed, err := s.attempts.ListByState(ctx, models.StateMintFailed, updatedBefore, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "issuance journal unavailable")
	}
	out := persistFailed
	for _, a := range mintFailed {
		if a.Reason == models.ReasonUnconfirmed && a.Submitted() {
			out = append(out, a)
		}
	}
	return out, nil
}
