// Package handler exposes asset and liability management and the live wealth
// view over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mizan/internal/crypto"
	hawlservice "mizan/internal/hawl/service"
	"mizan/internal/methodology"
	"mizan/internal/wealth"
	"mizan/internal/wealth/service"
	"mizan/internal/zakat"
	id "mizan/pkg/domain"
	dErrors "mizan/pkg/domain-errors"
	"mizan/pkg/platform/httputil"
	"mizan/pkg/requestcontext"
)

// WealthService is the slice of the wealth service the handler consumes.
type WealthService interface {
	CreateAsset(ctx context.Context, userID id.UserID, in service.AssetInput) (*wealth.Asset, error)
	UpdateAsset(ctx context.Context, userID id.UserID, assetID id.AssetID, in service.AssetInput) (*wealth.Asset, error)
	DeleteAsset(ctx context.Context, userID id.UserID, assetID id.AssetID, force bool) error
	RestoreAsset(ctx context.Context, userID id.UserID, assetID id.AssetID) (*wealth.Asset, error)
	ListAssets(ctx context.Context, userID id.UserID) ([]*wealth.Asset, error)

	CreateLiability(ctx context.Context, userID id.UserID, in service.LiabilityInput) (*wealth.Liability, error)
	UpdateLiability(ctx context.Context, userID id.UserID, liabilityID id.LiabilityID, in service.LiabilityInput) (*wealth.Liability, error)
	DeleteLiability(ctx context.Context, userID id.UserID, liabilityID id.LiabilityID) error
	ListLiabilities(ctx context.Context, userID id.UserID) ([]*wealth.Liability, error)
}

// LiveCalculator serves cached live assessments.
type LiveCalculator interface {
	Live(ctx context.Context, userID id.UserID, methodologyID methodology.ID, now time.Time) (*zakat.Calculation, error)
}

// HawlOverview reports the user's current hawl standing.
type HawlOverview interface {
	Status(ctx context.Context, userID id.UserID) (*hawlservice.Overview, error)
}

// Handler serves the wealth endpoints.
type Handler struct {
	svc    WealthService
	live   LiveCalculator
	hawl   HawlOverview
	cipher crypto.Cipher
	logger *slog.Logger
}

// New creates the wealth handler.
func New(svc WealthService, live LiveCalculator, hawlStatus HawlOverview, cipher crypto.Cipher, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, live: live, hawl: hawlStatus, cipher: cipher, logger: logger}
}

// Register mounts the wealth routes on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/assets", func(r chi.Router) {
		r.Post("/", h.handleCreateAsset)
		r.Get("/", h.handleListAssets)
		r.Put("/{assetID}", h.handleUpdateAsset)
		r.Delete("/{assetID}", h.handleDeleteAsset)
		r.Post("/{assetID}/restore", h.handleRestoreAsset)
	})

	r.Route("/v1/liabilities", func(r chi.Router) {
		r.Post("/", h.handleCreateLiability)
		r.Get("/", h.handleListLiabilities)
		r.Put("/{liabilityID}", h.handleUpdateLiability)
		r.Delete("/{liabilityID}", h.handleDeleteLiability)
	})

	r.Get("/v1/wealth/live", h.handleLiveWealth)
}

func (h *Handler) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[assetRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	in, err := req.toInput()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	asset, err := h.svc.CreateAsset(ctx, requestcontext.UserID(ctx), in)
	if err != nil {
		h.writeServiceError(w, r, err, "create asset")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, h.toAssetResponse(asset))
}

func (h *Handler) handleListAssets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assets, err := h.svc.ListAssets(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.writeServiceError(w, r, err, "list assets")
		return
	}
	out := make([]assetResponse, 0, len(assets))
	for _, asset := range assets {
		out = append(out, h.toAssetResponse(asset))
	}
	httputil.WriteJSON(w, http.StatusOK, assetListResponse{Assets: out})
}

func (h *Handler) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, err := id.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[assetRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	in, err := req.toInput()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	asset, err := h.svc.UpdateAsset(ctx, requestcontext.UserID(ctx), assetID, in)
	if err != nil {
		h.writeServiceError(w, r, err, "update asset")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.toAssetResponse(asset))
}

func (h *Handler) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, err := id.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	force := r.URL.Query().Get("force") == "true"

	if err := h.svc.DeleteAsset(ctx, requestcontext.UserID(ctx), assetID, force); err != nil {
		h.writeServiceError(w, r, err, "delete asset")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRestoreAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assetID, err := id.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	asset, err := h.svc.RestoreAsset(ctx, requestcontext.UserID(ctx), assetID)
	if err != nil {
		h.writeServiceError(w, r, err, "restore asset")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.toAssetResponse(asset))
}

func (h *Handler) handleCreateLiability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[liabilityRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	in, err := req.toInput()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	liability, err := h.svc.CreateLiability(ctx, requestcontext.UserID(ctx), in)
	if err != nil {
		h.writeServiceError(w, r, err, "create liability")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toLiabilityResponse(liability))
}

func (h *Handler) handleListLiabilities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	liabilities, err := h.svc.ListLiabilities(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.writeServiceError(w, r, err, "list liabilities")
		return
	}
	out := make([]liabilityResponse, 0, len(liabilities))
	for _, liability := range liabilities {
		out = append(out, toLiabilityResponse(liability))
	}
	httputil.WriteJSON(w, http.StatusOK, liabilityListResponse{Liabilities: out})
}

func (h *Handler) handleUpdateLiability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	liabilityID, err := id.ParseLiabilityID(chi.URLParam(r, "liabilityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[liabilityRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	in, err := req.toInput()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	liability, err := h.svc.UpdateLiability(ctx, requestcontext.UserID(ctx), liabilityID, in)
	if err != nil {
		h.writeServiceError(w, r, err, "update liability")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLiabilityResponse(liability))
}

func (h *Handler) handleDeleteLiability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	liabilityID, err := id.ParseLiabilityID(chi.URLParam(r, "liabilityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.DeleteLiability(ctx, requestcontext.UserID(ctx), liabilityID); err != nil {
		h.writeServiceError(w, r, err, "delete liability")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLiveWealth combines the cached zakat assessment with the hawl
// overview. The methodology defaults to the user's active record, then to
// standard.
func (h *Handler) handleLiveWealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	now := requestcontext.Now(ctx)

	overview, err := h.hawl.Status(ctx, userID)
	if err != nil {
		h.writeServiceError(w, r, err, "hawl status")
		return
	}

	methodologyID := methodology.ID(r.URL.Query().Get("methodology"))
	if methodologyID == "" {
		methodologyID = methodology.Standard
		if overview.Record != nil {
			methodologyID = overview.Record.Methodology
		}
	}

	calc, err := h.live.Live(ctx, userID, methodologyID, now)
	if err != nil {
		h.writeServiceError(w, r, err, "live wealth")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLiveResponse(calc, overview, now))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "wealth operation failed",
			"op", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
