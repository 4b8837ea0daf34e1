package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"skillbadge/internal/badge/models"
	id "skillbadge/pkg/domain"
	dErrors "skillbadge/pkg/domain-errors"
	"skillbadge/pkg/platform/httputil"
	"skillbadge/pkg/requestcontext"
	"skillbadge/pkg/validation"
)

const (
	fileField = "certificate"
	nameField = "name"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

// Service defines the issuance operations exposed over HTTP.
type Service interface {
	Issue(ctx context.Context, req models.IssueRequest) (models.WorkflowResult, error)
	Repair(ctx context.Context, attemptID id.AttemptID) (models.WorkflowResult, error)
	GetAttempt(ctx context.Context, userID id.UserID, attemptID id.AttemptID) (*models.Attempt, error)
	ListBadges(ctx context.Context, userID id.UserID) ([]models.BadgeRecord, error)
}

// Catalog lists the configured badges.
type Catalog interface {
	Entries() []models.BadgeMetadata
}

// Handler handles badge issuance endpoints.
type Handler struct {
	logger       *slog.Logger
	service      Service
	catalog      Catalog
	maxUpload    int64
	issueTimeout time.Duration
	issueLimits  []func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithIssueTimeout bounds how long an upload request waits for its issuance.
// Past the deadline the caller gets 202 with the attempt reference.
func WithIssueTimeout(d time.Duration) Option {
	return func(h *Handler) { h.issueTimeout = d }
}

// WithIssueMiddleware wraps only the upload route, e.g. with a per-user
// rate limit.
func WithIssueMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.issueLimits = append(h.issueLimits, mw...) }
}

// New creates a new badge Handler.
func New(service Service, catalog Catalog, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:    logger,
		service:   service,
		catalog:   catalog,
		maxUpload: validation.MaxUploadSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the badge routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.With(h.issueLimits...).Post("/badges/issue", h.handleIssue)
	r.Get("/badges", h.handleListBadges)
	r.Get("/badges/catalog", h.handleCatalog)
	r.Get("/badges/attempts/{attemptID}", h.handleGetAttempt)
	r.Post("/badges/attempts/{attemptID}/repair", h.handleRepair)
}

// handleIssue accepts a certificate upload and runs one issuance attempt.
func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	upload, fields, err := httputil.ReadUpload(w, r, fileField, h.maxUpload)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid certificate upload",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	form := issueForm{
		ExpectedName: fields[nameField],
		Filename:     upload.Filename,
		ContentType:  upload.ContentType,
		Size:         int64(len(upload.Data)),
	}
	form.Normalize()
	if err := validation.Validate(&form); err != nil {
		h.logger.WarnContext(ctx, "invalid issue request",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if h.issueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.issueTimeout)
		defer cancel()
	}

	result, err := h.service.Issue(ctx, models.IssueRequest{
		UserID:       userID,
		Filename:     form.Filename,
		ContentType:  form.ContentType,
		Data:         upload.Data,
		ExpectedName: form.ExpectedName,
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeTimeout) {
			h.logger.InfoContext(ctx, "issuance continues after request",
				"request_id", requestID,
				"attempt_id", dErrors.RefOf(err),
			)
		} else {
			h.logger.ErrorContext(ctx, "issuance failed",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toIssueResponse(result))
}

func (h *Handler) handleListBadges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	badges, err := h.service.ListBadges(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBadgeList(badges))
}

func (h *Handler) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, catalogResponse{Badges: h.catalog.Entries()})
}

func (h *Handler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	attemptID, err := id.ParseAttemptID(chi.URLParam(r, "attemptID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	a, err := h.service.GetAttempt(ctx, userID, attemptID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAttemptResponse(a))
}

// handleRepair retries persistence or confirmation for one of the caller's
// attempts. It never mints.
func (h *Handler) handleRepair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	attemptID, err := id.ParseAttemptID(chi.URLParam(r, "attemptID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.service.GetAttempt(ctx, userID, attemptID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	started := time.Now()
	result, err := h.service.Repair(ctx, attemptID)
	if err != nil {
		h.logger.WarnContext(ctx, "repair did not complete",
			"request_id", requestID,
			"attempt_id", attemptID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "attempt repaired",
		"request_id", requestID,
		"attempt_id", attemptID.String(),
		"outcome", result.Outcome,
		"duration", time.Since(started),
	)
	httputil.WriteJSON(w, http.StatusOK, toIssueResponse(result))
}
