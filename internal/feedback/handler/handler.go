// Package handler exposes the feedback endpoints: defect intake with triage,
// community voting, the resolution workflow, and per-form listings. Listings
// are public; filing and voting need an authenticated user, and workflow
// moves are reviewer-only.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	feedbackModel "github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/models"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/service"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/middleware"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/httputil"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/requestcontext"
)

// Service defines the feedback triage operations the handler fronts.
type Service interface {
	Submit(ctx context.Context, report feedbackModel.Report) (*service.Receipt, error)
	Vote(ctx context.Context, feedbackID id.FeedbackID, direction feedbackModel.VoteDirection) (*service.VoteResult, error)
	UpdateStatus(ctx context.Context, cmd service.StatusUpdate) (*feedbackModel.FormFeedback, error)
	ListByForm(ctx context.Context, formID id.FormID, filter feedbackModel.ListFilter) ([]*feedbackModel.FormFeedback, error)
}

// Handler handles feedback endpoints.
type Handler struct {
	logger      *slog.Logger
	feedback    Service
	verifier    middleware.TokenVerifier
	submitLimit func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithSubmitLimiter rate-limits the report intake route.
func WithSubmitLimiter(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		if mw != nil {
			h.submitLimit = mw
		}
	}
}

// New creates a new feedback Handler.
func New(feedback Service, logger *slog.Logger, verifier middleware.TokenVerifier, opts ...Option) *Handler {
	h := &Handler{
		logger:      logger,
		feedback:    feedback,
		verifier:    verifier,
		submitLimit: passthrough,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the feedback routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	auth := middleware.RequireAuth(h.verifier, h.logger)
	reviewer := middleware.RequireRole("reviewer", h.logger)

	r.With(auth, h.submitLimit).Post("/forms/{formID}/feedback", h.handleSubmit)
	r.Get("/forms/{formID}/feedback", h.handleList)
	r.With(auth).Post("/feedback/{feedbackID}/vote", h.handleVote)
	r.With(auth, reviewer).Patch("/feedback/{feedbackID}/status", h.handleStatus)
}

func passthrough(next http.Handler) http.Handler { return next }

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	formID, err := id.ParseFormID(chi.URLParam(r, "formID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	userID, err := callerUser(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[submitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	receipt, err := h.feedback.Submit(ctx, req.toReport(formID, userID, r.Header.Get("User-Agent")))
	if err != nil {
		h.logger.ErrorContext(ctx, "feedback submission failed",
			"request_id", requestID,
			"form_id", formID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "feedback submitted",
		"request_id", requestID,
		"feedback_id", receipt.Feedback.ID.String(),
		"ticket", receipt.TicketNumber,
	)
	httputil.WriteJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

func (h *Handler) handleVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	feedbackID, err := id.ParseFeedbackID(chi.URLParam(r, "feedbackID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[voteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.feedback.Vote(ctx, feedbackID, req.direction)
	if err != nil {
		h.logger.ErrorContext(ctx, "feedback vote failed",
			"request_id", requestID,
			"feedback_id", feedbackID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVoteResponse(result))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	feedbackID, err := id.ParseFeedbackID(chi.URLParam(r, "feedbackID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resolverID, err := id.ParseReviewerID(requestcontext.CallerID(ctx))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "caller is not a reviewer"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[statusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	updated, err := h.feedback.UpdateStatus(ctx, req.toCommand(feedbackID, resolverID))
	if err != nil {
		h.logger.ErrorContext(ctx, "feedback status update failed",
			"request_id", requestID,
			"feedback_id", feedbackID.String(),
			"status", req.Status,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "feedback status updated",
		"request_id", requestID,
		"feedback_id", feedbackID.String(),
		"status", req.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, toFeedbackResponse(updated))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	formID, err := id.ParseFormID(chi.URLParam(r, "formID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	reports, err := h.feedback.ListByForm(ctx, formID, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "feedback listing failed",
			"request_id", middleware.GetRequestID(ctx),
			"form_id", formID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(reports))
}

// callerUser reads the authenticated caller as a user id.
func callerUser(ctx context.Context) (id.UserID, error) {
	userID, err := id.ParseUserID(requestcontext.CallerID(ctx))
	if err != nil {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "caller is not a user")
	}
	return userID, nil
}
