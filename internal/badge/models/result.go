package models

import id "skillbadge/pkg/domain"

// Outcome is the coarse result reported to callers.
type Outcome string

const (
	OutcomeRejected      Outcome = "rejected"
	OutcomeMintFailed    Outcome = "mint_failed"
	OutcomePersistFailed Outcome = "persist_failed"
	OutcomeIssued        Outcome = "issued"
)

// WorkflowResult is exactly one of Rejected(reason), MintFailed(reason),
// PersistFailed(tokenId) or Issued(badge).
type WorkflowResult struct {
	Outcome      Outcome              `json:"outcome"`
	Reason       Reason               `json:"reason,omitempty"`
	TokenID      string               `json:"token_id,omitempty"`
	Badge        *BadgeRecord         `json:"badge,omitempty"`
	AttemptID    id.AttemptID         `json:"attempt_id"`
	Verification *VerificationOutcome `json:"verification,omitempty"`
}

func Rejected(attemptID id.AttemptID, reason Reason) WorkflowResult {
	return WorkflowResult{Outcome: OutcomeRejected, Reason: reason, AttemptID: attemptID}
}

func MintFailed(attemptID id.AttemptID, reason Reason) WorkflowResult {
	return WorkflowResult{Outcome: OutcomeMintFailed, Reason: reason, AttemptID: attemptID}
}

func PersistFailed(attemptID id.AttemptID, tokenID string) WorkflowResult {
	return WorkflowResult{Outcome: OutcomePersistFailed, Reason: ReasonStoreError, TokenID: tokenID, AttemptID: attemptID}
}

func Issued(attemptID id.AttemptID, badge BadgeRecord) WorkflowResult {
	return WorkflowResult{Outcome: OutcomeIssued, TokenID: badge.TokenID, Badge: &badge, AttemptID: attemptID}
}

// ResultOf reconstructs the caller-facing result from a journaled attempt in a
// terminal state. ok is false while the attempt is still running.
func ResultOf(a *Attempt) (WorkflowResult, bool) {
	switch a.State {
	case StateRejected:
		return Rejected(a.ID, a.Reason), true
	case StateMintFailed:
		return MintFailed(a.ID, a.Reason), true
	case StatePersistFailed:
		tokenID := ""
		if a.Receipt != nil {
			tokenID = a.Receipt.TokenID
		}
		return PersistFailed(a.ID, tokenID), true
	case StateIssued:
		if a.Badge != nil {
			return Issued(a.ID, *a.Badge), true
		}
	}
	return WorkflowResult{AttemptID: a.ID}, false
}
