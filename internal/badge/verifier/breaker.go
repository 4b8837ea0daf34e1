package verifier

import (
	"context"
	"log/slog"

	"skillbadge/internal/badge/models"
	"skillbadge/pkg/platform/circuit"
)

// Verifier is the contract shared by Client and Guarded.
type Verifier interface {
	Verify(ctx context.Context, doc Document, expectedName string) (models.VerificationOutcome, error)
}

// UnavailableMessage is reported while the circuit is open.
const UnavailableMessage = "verification service unavailable"

// Guarded wraps a Verifier with a circuit breaker. Transport failures count
// against the circuit; service-reported failures prove the service is up.
type Guarded struct {
	inner   Verifier
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// GuardOption configures Guarded.
type GuardOption func(*Guarded)

// WithLogger logs circuit transitions.
func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guarded) {
		g.logger = logger
	}
}

// NewGuarded wraps inner with breaker.
func NewGuarded(inner Verifier, breaker *circuit.Breaker, opts ...GuardOption) *Guarded {
	g := &Guarded{inner: inner, breaker: breaker}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guarded) Verify(ctx context.Context, doc Document, expectedName string) (models.VerificationOutcome, error) {
	if !g.breaker.Allow() {
		return models.UnverifiedOutcome(UnavailableMessage),
			&GatewayError{Kind: KindTransport, Category: ErrorCircuitOpen, Message: UnavailableMessage}
	}

	outcome, err := g.inner.Verify(ctx, doc, expectedName)
	if err != nil && IsTransport(err) && ctx.Err() == nil {
		if change := g.breaker.RecordFailure(); change.Opened && g.logger != nil {
			g.logger.WarnContext(ctx, "verification circuit opened",
				"breaker", g.breaker.Name(),
				"error", err,
			)
		}
		return outcome, err
	}

	if change := g.breaker.RecordSuccess(); change.Closed && g.logger != nil {
		g.logger.InfoContext(ctx, "verification circuit closed", "breaker", g.breaker.Name())
	}
	return outcome, err
}
