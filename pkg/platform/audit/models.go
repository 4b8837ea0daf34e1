package audit

import (
	"context"
	"time"

	id "skillbadge/pkg/domain"
)

// Event is emitted from domain logic to capture key issuance actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time    `json:"timestamp"`
	UserID    id.UserID    `json:"user_id"`
	AttemptID id.AttemptID `json:"attempt_id"`
	Action    string       `json:"action"`
	Cluster   string       `json:"cluster,omitempty"`
	Outcome   string       `json:"outcome,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	TokenID   string       `json:"token_id,omitempty"`
	TxHash    string       `json:"tx_hash,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	EventIssuanceRequested  AuditEvent = "issuance_requested"
	EventIssuanceRejected   AuditEvent = "issuance_rejected"
	EventMintSubmitted      AuditEvent = "mint_submitted"
	EventMintFailed         AuditEvent = "mint_failed"
	EventBadgeIssued        AuditEvent = "badge_issued"
	EventPersistFailed      AuditEvent = "persist_failed"
	EventBadgeRepaired      AuditEvent = "badge_repaired"
	EventMintReconciled     AuditEvent = "mint_reconciled"
	EventIssuanceOrphaned   AuditEvent = "issuance_orphaned"
	EventDuplicateSubmitted AuditEvent = "duplicate_submitted"
)

// Sink persists or forwards audit events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Reader lists events previously appended to a sink.
type Reader interface {
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
	ListByAttempt(ctx context.Context, attemptID id.AttemptID) ([]Event, error)
}
