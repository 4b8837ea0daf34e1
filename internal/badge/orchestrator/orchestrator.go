// Package orchestrator drives a single issuance attempt from a verification
// outcome to a terminal state: catalog lookup, mint through the signer,
// confirmation, and persistence on the user's profile.
//
// Every state change is journaled before the next external call so that an
// attempt interrupted at any point can be found and finished later. Once a
// mint transaction is broadcast the attempt no longer observes the caller's
// cancellation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"skillbadge/internal/badge/catalog"
	"skillbadge/internal/badge/contentaddr"
	"skillbadge/internal/badge/ledger"
	"skillbadge/internal/badge/metrics"
	"skillbadge/internal/badge/models"
	"skillbadge/internal/badge/ports"
	"skillbadge/internal/badge/tracer"
	"skillbadge/pkg/platform/sentinel"
	"skillbadge/pkg/requestcontext"
)

// Orchestrator runs the post-verification stages of the issuance saga.
type Orchestrator struct {
	catalog   ports.Catalog
	signers   ports.SignerProvider
	confirmer ports.Confirmer
	badges    ports.BadgeStore
	attempts  ports.AttemptStore
	resolver  *contentaddr.Resolver

	submitTimeout time.Duration

	logger  *slog.Logger
	tracer  tracer.Tracer
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithClock overrides the clock used for journal timestamps and MintedAt.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithSubmitTimeout bounds the mint submission call. The caller's
// cancellation never reaches it.
func WithSubmitTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.submitTimeout = d
		}
	}
}

// New creates an Orchestrator. All ports are required.
func New(
	cat ports.Catalog,
	signers ports.SignerProvider,
	confirmer ports.Confirmer,
	badges ports.BadgeStore,
	attempts ports.AttemptStore,
	resolver *contentaddr.Resolver,
	opts ...Option,
) (*Orchestrator, error) {
	if cat == nil || signers == nil || confirmer == nil || badges == nil || attempts == nil || resolver == nil {
		return nil, errors.New("orchestrator: catalog, signers, confirmer, badge store, attempt store and resolver are required")
	}
	o := &Orchestrator{
		catalog:   cat,
		signers:   signers,
		confirmer: confirmer,
		badges:    badges,
		attempts:  attempts,
		resolver:  resolver,

		submitTimeout: 30 * time.Second,
		logger:        slog.Default(),
		tracer:        tracer.NewNoop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run takes a journaled attempt in the Verifying state through to a terminal
// state. The error is non-nil only when the journal could not record progress
// before anything was broadcast, in which case nothing was minted.
func (o *Orchestrator) Run(ctx context.Context, a *models.Attempt, outcome models.VerificationOutcome) (models.WorkflowResult, error) {
	ctx, span := o.tracer.Start(ctx, tracer.SpanIssue, tracer.String(tracer.AttrAttemptID, a.ID.String()))
	result, err := o.run(ctx, a, outcome)
	span.SetAttributes(
		tracer.String(tracer.AttrOutcome, string(result.Outcome)),
		tracer.String(tracer.AttrReason, string(result.Reason)),
	)
	span.End(err)
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, a *models.Attempt, outcome models.VerificationOutcome) (models.WorkflowResult, error) {
	cluster, reason, ok := outcome.Eligibility()
	if !ok {
		return o.reject(ctx, a, reason)
	}
	a.Cluster = cluster
	if err := o.advance(ctx, a, models.StateEligible, ""); err != nil {
		return models.WorkflowResult{}, err
	}

	meta, err := o.lookup(ctx, a)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownCluster) {
			return o.reject(ctx, a, models.ReasonUnknownCluster)
		}
		return models.WorkflowResult{}, err
	}

	txHash, failure, err := o.submit(ctx, a)
	if err != nil {
		return models.WorkflowResult{}, err
	}
	if failure != nil {
		return *failure, nil
	}

	// Broadcast: from here the attempt must reach a terminal state regardless
	// of what the caller does.
	ctx = context.WithoutCancel(ctx)
	a.TxHash = txHash
	o.saveAfterSubmit(ctx, a)
	o.metrics.RecordMintSubmitted()
	o.log(ctx, a).InfoContext(ctx, "mint submitted", "tx_hash", txHash, "cluster", a.Cluster)

	receipt, err := o.confirm(ctx, a)
	if err != nil {
		return o.mintFailed(ctx, a, mintFailureReason(err), err), nil
	}
	o.checkTokenURI(ctx, a, meta, receipt)
	a.Receipt = &receipt
	if err := a.Transition(models.StateMintConfirmed, "", o.now()); err != nil {
		return models.WorkflowResult{}, err
	}
	o.saveAfterSubmit(ctx, a)

	return o.persist(ctx, a)
}

// Persist appends the badge for an attempt whose mint is confirmed. It is
// the repair path for PersistFailed attempts and never touches the ledger.
func (o *Orchestrator) Persist(ctx context.Context, a *models.Attempt) (models.WorkflowResult, error) {
	if a.Receipt == nil {
		return models.WorkflowResult{}, fmt.Errorf("attempt %s has no mint receipt", a.ID)
	}
	ctx, span := o.tracer.Start(ctx, tracer.SpanRepair, tracer.String(tracer.AttrAttemptID, a.ID.String()))
	result, err := o.persist(context.WithoutCancel(ctx), a)
	span.SetAttributes(tracer.String(tracer.AttrOutcome, string(result.Outcome)))
	span.End(err)
	return result, err
}

// Reconcile re-reads the receipt of a submitted attempt that ended
// MintFailed("unconfirmed"). A landed transaction moves the attempt on to
// persistence; it is never minted again. ledger.ErrPending means the
// transaction is still unknown to the ledger and the attempt is unchanged.
func (o *Orchestrator) Reconcile(ctx context.Context, a *models.Attempt) (models.WorkflowResult, error) {
	if a.State != models.StateMintFailed || !a.Submitted() {
		return models.WorkflowResult{}, fmt.Errorf("attempt %s is not an unconfirmed mint", a.ID)
	}
	ctx = context.WithoutCancel(ctx)
	receipt, err := o.confirmer.CheckMint(ctx, a.TxHash)
	switch {
	case errors.Is(err, ledger.ErrPending):
		return models.WorkflowResult{}, err
	case errors.Is(err, ledger.ErrReverted), errors.Is(err, ledger.ErrEventNotFound):
		// The outcome is now known; record it so the certificate's fate is explicit.
		a.Reason = mintFailureReason(err)
		a.UpdatedAt = o.now()
		o.saveAfterSubmit(ctx, a)
		result, _ := models.ResultOf(a)
		return result, nil
	case err != nil:
		return models.WorkflowResult{}, err
	}

	a.Receipt = &receipt
	if err := a.Transition(models.StateMintConfirmed, "", o.now()); err != nil {
		return models.WorkflowResult{}, err
	}
	o.saveAfterSubmit(ctx, a)
	o.log(ctx, a).InfoContext(ctx, "unconfirmed mint landed", "tx_hash", a.TxHash, "token_id", receipt.TokenID)
	return o.persist(ctx, a)
}

func (o *Orchestrator) lookup(ctx context.Context, a *models.Attempt) (models.BadgeMetadata, error) {
	_, span := o.tracer.Start(ctx, tracer.SpanLookup, tracer.String(tracer.AttrCluster, a.Cluster))
	meta, err := o.catalog.Lookup(a.Cluster)
	span.End(err)
	return meta, err
}

// submit acquires the user's signer, journals Minting, and broadcasts the
// mint. The signer is released before returning on every path. failure is
// set when the attempt reached a terminal state without a known broadcast.
func (o *Orchestrator) submit(ctx context.Context, a *models.Attempt) (txHash string, failure *models.WorkflowResult, err error) {
	ctx, span := o.tracer.Start(ctx, tracer.SpanMint, tracer.String(tracer.AttrCluster, a.Cluster))
	defer func() { span.End(err) }()

	signer, release, err := o.signers.Acquire(ctx, a.UserID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNoWallet):
			r, rerr := o.reject(ctx, a, models.ReasonNoWallet)
			return "", &r, rerr
		case ledger.IsSignerError(err):
			r := o.mintFailed(ctx, a, models.ReasonSignerRejected, err)
			return "", &r, nil
		}
		return "", nil, fmt.Errorf("acquire signer: %w", err)
	}
	defer release()

	if err := o.advance(ctx, a, models.StateMinting, ""); err != nil {
		return "", nil, err
	}
	if ctx.Err() != nil {
		r := o.mintFailed(ctx, a, models.ReasonAbandoned, ctx.Err())
		return "", &r, nil
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.submitTimeout)
	defer cancel()
	txHash, err = signer.SubmitMint(sctx, a.Cluster)
	if err != nil {
		// Only an explicit refusal proves nothing was broadcast.
		reason := models.ReasonSubmissionUnknown
		if ledger.IsSignerError(err) {
			reason = models.ReasonSignerRejected
		}
		r := o.mintFailed(ctx, a, reason, err)
		return "", &r, nil
	}
	span.SetAttributes(tracer.String(tracer.AttrTxHash, txHash))
	return txHash, nil, nil
}

func (o *Orchestrator) confirm(ctx context.Context, a *models.Attempt) (models.MintReceipt, error) {
	ctx, span := o.tracer.Start(ctx, tracer.SpanConfirm, tracer.String(tracer.AttrTxHash, a.TxHash))
	started := time.Now()
	receipt, err := o.confirmer.AwaitMint(ctx, a.TxHash)
	if err == nil {
		o.metrics.ObserveConfirm(time.Since(started))
		span.SetAttributes(tracer.String(tracer.AttrTokenID, receipt.TokenID))
	}
	span.End(err)
	return receipt, err
}

func (o *Orchestrator) persist(ctx context.Context, a *models.Attempt) (models.WorkflowResult, error) {
	ctx, span := o.tracer.Start(ctx, tracer.SpanPersist, tracer.String(tracer.AttrTokenID, a.Receipt.TokenID))
	defer span.End(nil)

	if err := a.Transition(models.StatePersisting, "", o.now()); err != nil {
		return models.WorkflowResult{}, err
	}
	if a.Badge == nil {
		a.Badge = &models.BadgeRecord{
			Cluster:  a.Cluster,
			ImageURL: o.resolver.ImageURL(a.Receipt.TokenURI),
			TokenID:  a.Receipt.TokenID,
			MintedAt: o.now(),
		}
	}
	o.saveAfterSubmit(ctx, a)

	err := o.badges.AppendBadge(ctx, a.UserID, *a.Badge)
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		span.AddEvent(tracer.EventDuplicateBadge)
		o.log(ctx, a).InfoContext(ctx, "badge already on profile", "token_id", a.Badge.TokenID)
	case err != nil:
		if terr := a.Transition(models.StatePersistFailed, models.ReasonStoreError, o.now()); terr != nil {
			return models.WorkflowResult{}, terr
		}
		o.saveAfterSubmit(ctx, a)
		o.log(ctx, a).ErrorContext(ctx, "badge minted but not persisted",
			"stage", "post_mint",
			"tx_hash", a.TxHash,
			"token_id", a.Receipt.TokenID,
			"error", err,
		)
		return models.PersistFailed(a.ID, a.Receipt.TokenID), nil
	}

	if err := a.Transition(models.StateIssued, "", o.now()); err != nil {
		return models.WorkflowResult{}, err
	}
	o.saveAfterSubmit(ctx, a)
	o.log(ctx, a).InfoContext(ctx, "badge issued", "token_id", a.Badge.TokenID, "cluster", a.Cluster)
	return models.Issued(a.ID, *a.Badge), nil
}

// checkTokenURI warns when the ledger's URI names a different asset than the
// catalog. The ledger value is kept.
func (o *Orchestrator) checkTokenURI(ctx context.Context, a *models.Attempt, meta models.BadgeMetadata, receipt models.MintReceipt) {
	if meta.ContentURI == "" || receipt.TokenURI == meta.ContentURI || contentaddr.SameAsset(receipt.TokenURI, meta.ContentURI) {
		return
	}
	o.log(ctx, a).WarnContext(ctx, "token URI differs from catalog",
		"token_uri", receipt.TokenURI,
		"catalog_uri", meta.ContentURI,
		"token_id", receipt.TokenID,
	)
}

func (o *Orchestrator) reject(ctx context.Context, a *models.Attempt, reason models.Reason) (models.WorkflowResult, error) {
	if err := o.advance(ctx, a, models.StateRejected, reason); err != nil {
		return models.WorkflowResult{}, err
	}
	o.log(ctx, a).InfoContext(ctx, "issuance rejected", "reason", reason)
	return models.Rejected(a.ID, reason), nil
}

// mintFailed records a terminal mint failure. Failures that may follow a
// broadcast are logged at error level because a token may exist.
func (o *Orchestrator) mintFailed(ctx context.Context, a *models.Attempt, reason models.Reason, cause error) models.WorkflowResult {
	if err := a.Transition(models.StateMintFailed, reason, o.now()); err != nil {
		o.log(ctx, a).ErrorContext(ctx, "invalid mint failure transition", "error", err)
	}
	o.saveAfterSubmit(ctx, a)
	logger := o.log(ctx, a)
	if a.Submitted() || reason == models.ReasonSubmissionUnknown {
		logger.ErrorContext(ctx, "mint failed after submission",
			"stage", "post_mint",
			"reason", reason,
			"tx_hash", a.TxHash,
			"error", cause,
		)
	} else {
		logger.WarnContext(ctx, "mint failed", "stage", "pre_mint", "reason", reason, "error", cause)
	}
	return models.MintFailed(a.ID, reason)
}

// advance transitions and journals a pre-broadcast step. A journal failure
// stops the attempt.
func (o *Orchestrator) advance(ctx context.Context, a *models.Attempt, next models.State, reason models.Reason) error {
	if err := a.Transition(next, reason, o.now()); err != nil {
		return err
	}
	if err := o.attempts.Save(ctx, a); err != nil {
		return fmt.Errorf("journal %s: %w", next, err)
	}
	return nil
}

// saveAfterSubmit journals progress once work cannot be abandoned. Failures
// are logged and the attempt carries on.
func (o *Orchestrator) saveAfterSubmit(ctx context.Context, a *models.Attempt) {
	if err := o.attempts.Save(ctx, a); err != nil {
		o.log(ctx, a).ErrorContext(ctx, "failed to journal attempt",
			"state", a.State,
			"tx_hash", a.TxHash,
			"error", err,
		)
	}
}

func (o *Orchestrator) log(ctx context.Context, a *models.Attempt) *slog.Logger {
	return o.logger.With(
		"request_id", requestcontext.RequestID(ctx),
		"user_id", a.UserID.String(),
		"attempt_id", a.ID.String(),
	)
}

func mintFailureReason(err error) models.Reason {
	switch {
	case errors.Is(err, ledger.ErrReverted):
		return models.ReasonReverted
	case errors.Is(err, ledger.ErrEventNotFound):
		return models.ReasonEventNotFound
	}
	return models.ReasonUnconfirmed
}
