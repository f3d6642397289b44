// Package handler exposes the form registry endpoints: submission behind the
// duplicate gate, the review queue, resubmission, archival, usage tracking,
// and the catalog. Catalog reads take optional auth so anonymous callers get
// the public slice while authenticated ones also see their own forms.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	formsModel "github.com/Ghostmonday/Goldleaves-sub001/internal/forms/models"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/forms/service"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/middleware"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/httputil"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/requestcontext"
)

// Service defines the form lifecycle operations the handler fronts.
type Service interface {
	Submit(ctx context.Context, contributorID id.ContributorID, cmd service.SubmitCommand) (*service.SubmitResult, error)
	Review(ctx context.Context, cmd service.ReviewCommand) (*service.ReviewResult, error)
	Resubmit(ctx context.Context, formID id.FormID, contributorID id.ContributorID, cmd service.ResubmitCommand) (*service.SubmitResult, error)
	Archive(ctx context.Context, formID id.FormID, supersededBy *id.FormID) (*formsModel.Form, error)
	RecordUsage(ctx context.Context, formID id.FormID, kind formsModel.UsageKind) error
	Get(ctx context.Context, formID id.FormID) (*formsModel.Form, error)
	List(ctx context.Context, filter formsModel.ListFilter) ([]*formsModel.Form, error)
}

// Handler handles form registry endpoints.
type Handler struct {
	logger      *slog.Logger
	forms       Service
	verifier    middleware.TokenVerifier
	submitLimit func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithSubmitLimiter rate-limits the submission and resubmission routes.
func WithSubmitLimiter(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		if mw != nil {
			h.submitLimit = mw
		}
	}
}

// New creates a new forms Handler.
func New(forms Service, logger *slog.Logger, verifier middleware.TokenVerifier, opts ...Option) *Handler {
	h := &Handler{
		logger:      logger,
		forms:       forms,
		verifier:    verifier,
		submitLimit: passthrough,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the form routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	auth := middleware.RequireAuth(h.verifier, h.logger)
	optionalAuth := middleware.OptionalAuth(h.verifier, h.logger)
	reviewer := middleware.RequireRole("reviewer", h.logger)

	r.With(auth, h.submitLimit).Post("/forms", h.handleSubmit)
	r.With(optionalAuth).Get("/forms", h.handleList)
	r.With(optionalAuth).Get("/forms/{formID}", h.handleGet)
	r.With(auth, h.submitLimit).Post("/forms/{formID}/resubmit", h.handleResubmit)
	r.With(auth, reviewer).Post("/forms/{formID}/review", h.handleReview)
	r.With(auth, reviewer).Post("/forms/{formID}/archive", h.handleArchive)
	r.Post("/forms/{formID}/usage", h.handleUsage)
}

func passthrough(next http.Handler) http.Handler { return next }

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	contributorID, err := callerContributor(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[submitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.forms.Submit(ctx, contributorID, req.toCommand())
	if err != nil {
		h.logger.ErrorContext(ctx, "form submission failed",
			"request_id", requestID,
			"contributor_id", contributorID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	if result.Duplicate != nil {
		httputil.WriteJSON(w, http.StatusConflict, toDuplicateResponse(result.Duplicate))
		return
	}

	h.logger.InfoContext(ctx, "form submitted",
		"request_id", requestID,
		"form_id", result.Form.ID.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, toFormResponse(result.Form))
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	formID, err := id.ParseFormID(chi.URLParam(r, "formID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reviewerID, err := id.ParseReviewerID(requestcontext.CallerID(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "caller is not a reviewer"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[reviewRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.forms.Review(ctx, req.toCommand(formID, reviewerID))
	if err != nil {
		h.logger.ErrorContext(ctx, "form review failed",
			"request_id", requestID,
			"form_id", formID.String(),
			"decision", req.Decision,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "form reviewed",
		"request_id", requestID,
		"form_id", formID.String(),
		"decision", req.Decision,
	)
	httputil.WriteJSON(w, http.StatusOK, toReviewResponse(result))
}

func (h *Handler) handleResubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	formID, err := id.ParseFormID(chi.URLParam(r, "formID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	contributorID, err := callerContributor(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[submitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.forms.Resubmit(ctx, formID, contributorID, req.toResubmitCommand())
	if err != nil {
		h.logger.ErrorContext(ctx, "form resubmission failed",
			"request_id", requestID,
			"form_id", formID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	if result.Duplicate != nil {
		httputil.WriteJSON(w, http.StatusConflict, toDuplicateResponse(result.Duplicate))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toFormResponse(result.Form))
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	formID, err := id.ParseFormID(chi.URLParam(r, "formID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[archiveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	form, err := h.forms.Archive(ctx, formID, req.supersededBy)
	if err != nil {
		h.logger.ErrorContext(ctx, "form archival failed",
			"request_id", requestID,
			"form_id", formID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "form archived",
		"request_id", requestID,
		"form_id", formID.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, toFormResponse(form))
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	formID, err := id.ParseFormID(chi.URLParam(r, "formID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[usageRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.forms.RecordUsage(ctx, formID, req.kind); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	formID, err := id.ParseFormID(chi.URLParam(r, "formID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	form, err := h.forms.Get(ctx, formID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toFormResponse(form))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseListFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	forms, err := h.forms.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "form listing failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(forms))
}

// callerContributor reads the authenticated caller as a contributor id.
func callerContributor(ctx context.Context) (id.ContributorID, error) {
	contributorID, err := id.ParseContributorID(requestcontext.CallerID(ctx))
	if err != nil {
		return id.ContributorID{}, dErrors.New(dErrors.CodeUnauthorized, "caller is not a contributor")
	}
	return contributorID, nil
}
