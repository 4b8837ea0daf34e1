package service

import (
	"context"

	"skillbadge/internal/badge/models"
	"skillbadge/pkg/platform/audit"
	"skillbadge/pkg/requestcontext"
)

// emit records an audit event for a. Audit failures are logged, never returned.
func (s *Service) emit(ctx context.Context, a *models.Attempt, event audit.AuditEvent, result models.WorkflowResult) {
	if s.auditor == nil {
		return
	}
	e := audit.Event{
		Timestamp: s.now(),
		UserID:    a.UserID,
		AttemptID: a.ID,
		Action:    string(event),
		Cluster:   a.Cluster,
		Outcome:   string(result.Outcome),
		Reason:    string(result.Reason),
		TokenID:   result.TokenID,
		TxHash:    a.TxHash,
		RequestID: requestcontext.RequestID(ctx),
	}
	if err := s.auditor.Emit(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", e.Action,
			"attempt_id", a.ID.String(),
			"error", err,
		)
	}
}
