// Package handler exposes the contributor rewards endpoints: the ledger
// snapshot and redemption. Both routes are owner-scoped; admins may act on
// any contributor.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/middleware"
	rewardsModel "github.com/Ghostmonday/Goldleaves-sub001/internal/rewards/models"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/httputil"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/requestcontext"
)

// Service defines the ledger operations the handler fronts.
type Service interface {
	Rewards(ctx context.Context, contributorID id.ContributorID) (*rewardsModel.RewardsSnapshot, error)
	Redeem(ctx context.Context, contributorID id.ContributorID, weeks int) (*rewardsModel.Redemption, error)
}

// Handler handles reward ledger endpoints.
type Handler struct {
	logger   *slog.Logger
	rewards  Service
	verifier middleware.TokenVerifier
}

// New creates a new rewards Handler.
func New(rewards Service, logger *slog.Logger, verifier middleware.TokenVerifier) *Handler {
	return &Handler{logger: logger, rewards: rewards, verifier: verifier}
}

// Register registers the rewards routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	auth := middleware.RequireAuth(h.verifier, h.logger)
	r.With(auth).Get("/contributors/{contributorID}/rewards", h.handleGetRewards)
	r.With(auth).Post("/contributors/{contributorID}/rewards/redeem", h.handleRedeem)
}

func (h *Handler) handleGetRewards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	contributorID, err := id.ParseContributorID(chi.URLParam(r, "contributorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := authorizeContributor(ctx, contributorID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	snapshot, err := h.rewards.Rewards(ctx, contributorID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load contributor rewards",
			"request_id", middleware.GetRequestID(ctx),
			"contributor_id", contributorID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toRewardsResponse(snapshot))
}

func (h *Handler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	contributorID, err := id.ParseContributorID(chi.URLParam(r, "contributorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := authorizeContributor(ctx, contributorID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[redeemRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	redemption, err := h.rewards.Redeem(ctx, contributorID, req.Weeks)
	if err != nil {
		h.logger.ErrorContext(ctx, "reward redemption failed",
			"request_id", requestID,
			"contributor_id", contributorID.String(),
			"weeks", req.Weeks,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "reward redeemed",
		"request_id", requestID,
		"contributor_id", contributorID.String(),
		"weeks", redemption.WeeksRedeemed,
	)
	httputil.WriteJSON(w, http.StatusOK, toRedemptionResponse(redemption))
}

// authorizeContributor allows the contributor themselves and admins.
func authorizeContributor(ctx context.Context, contributorID id.ContributorID) error {
	if requestcontext.CallerID(ctx) == contributorID.String() {
		return nil
	}
	if requestcontext.CallerRole(ctx) == "admin" {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "cannot access another contributor's rewards")
}
