// Package handler exposes the jurisdiction directory over HTTP. Reads are
// public. Creating records is an admin bootstrap operation; the intake path
// creates jurisdictions implicitly when a submission names a new one.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	directoryModel "github.com/Ghostmonday/Goldleaves-sub001/internal/directory/models"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/middleware"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/httputil"
)

// Service defines the directory operations the handler fronts.
type Service interface {
	LookupOrCreate(ctx context.Context, state, county, courtType string, parentID *id.JurisdictionID) (*directoryModel.Jurisdiction, error)
	Get(ctx context.Context, jurisdictionID id.JurisdictionID) (*directoryModel.Jurisdiction, error)
	GetByCode(ctx context.Context, code string) (*directoryModel.Jurisdiction, error)
	List(ctx context.Context) ([]*directoryModel.Jurisdiction, error)
	Children(ctx context.Context, parentID id.JurisdictionID) ([]*directoryModel.Jurisdiction, error)
}

// Handler handles jurisdiction directory endpoints.
type Handler struct {
	logger    *slog.Logger
	directory Service
	verifier  middleware.TokenVerifier
}

// New creates a new directory Handler.
func New(directory Service, logger *slog.Logger, verifier middleware.TokenVerifier) *Handler {
	return &Handler{logger: logger, directory: directory, verifier: verifier}
}

// Register registers the directory routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	auth := middleware.RequireAuth(h.verifier, h.logger)
	admin := middleware.RequireRole("admin", h.logger)

	r.Get("/jurisdictions", h.handleList)
	r.Get("/jurisdictions/{jurisdictionID}", h.handleGet)
	r.Get("/jurisdictions/{jurisdictionID}/children", h.handleChildren)
	r.With(auth, admin).Post("/jurisdictions", h.handleCreate)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[createRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.directory.LookupOrCreate(ctx, req.State, req.County, req.CourtType, req.parentID)
	if err != nil {
		h.logger.ErrorContext(ctx, "jurisdiction create failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "jurisdiction ensured",
		"request_id", requestID,
		"jurisdiction_id", record.ID.String(),
		"code", record.Code,
	)
	// 200, not 201: the operation is an idempotent ensure and may return a
	// record that already existed.
	httputil.WriteJSON(w, http.StatusOK, toJurisdictionResponse(record))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jurisdictionID, err := id.ParseJurisdictionID(chi.URLParam(r, "jurisdictionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.directory.Get(ctx, jurisdictionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toJurisdictionResponse(record))
}

func (h *Handler) handleChildren(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jurisdictionID, err := id.ParseJurisdictionID(chi.URLParam(r, "jurisdictionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	children, err := h.directory.Children(ctx, jurisdictionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(children))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if code := r.URL.Query().Get("code"); code != "" {
		record, err := h.directory.GetByCode(ctx, code)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, toListResponse([]*directoryModel.Jurisdiction{record}))
		return
	}

	records, err := h.directory.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "jurisdiction listing failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListResponse(records))
}
