// Package handler exposes the nisab year record lifecycle over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"mizan/internal/audit"
	"mizan/internal/hawl"
	"mizan/internal/hawl/service"
	"mizan/internal/methodology"
	id "mizan/pkg/domain"
	dErrors "mizan/pkg/domain-errors"
	"mizan/pkg/platform/httputil"
	"mizan/pkg/requestcontext"
)

// RecordService is the slice of the hawl service the handler consumes.
type RecordService interface {
	CreateRecord(ctx context.Context, userID id.UserID, in service.CreateInput) (*hawl.NisabYearRecord, error)
	Get(ctx context.Context, userID id.UserID, recordID id.RecordID) (*hawl.NisabYearRecord, error)
	List(ctx context.Context, userID id.UserID) ([]*hawl.NisabYearRecord, error)
	Edit(ctx context.Context, userID id.UserID, recordID id.RecordID, in service.EditInput) (*hawl.NisabYearRecord, error)
	Finalize(ctx context.Context, userID id.UserID, recordID id.RecordID, in service.FinalizeInput) (*service.FinalizeResult, error)
	Unlock(ctx context.Context, userID id.UserID, recordID id.RecordID, reason string) (*hawl.NisabYearRecord, error)
	Trail(ctx context.Context, userID id.UserID, recordID id.RecordID, filter audit.Filter) ([]audit.TrailEvent, error)
}

// Handler serves the record endpoints.
type Handler struct {
	records  RecordService
	registry *methodology.Registry
	logger   *slog.Logger
}

// New creates the record handler.
func New(records RecordService, registry *methodology.Registry, logger *slog.Logger) *Handler {
	return &Handler{records: records, registry: registry, logger: logger}
}

// Register mounts the record routes. The router is expected to already carry
// the auth middleware; every route here requires an authenticated user.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/methodologies", h.handleListMethodologies)

	r.Route("/v1/records", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{recordID}", h.handleGet)
		r.Put("/{recordID}", h.handleEdit)
		r.Post("/{recordID}/finalize", h.handleFinalize)
		r.Post("/{recordID}/unlock", h.handleUnlock)
		r.Get("/{recordID}/audit", h.handleTrail)
	})
}

func (h *Handler) handleListMethodologies(w http.ResponseWriter, r *http.Request) {
	list := h.registry.List()
	out := make([]methodologyResponse, 0, len(list))
	for _, m := range list {
		out = append(out, toMethodologyResponse(m))
	}
	httputil.WriteJSON(w, http.StatusOK, methodologyListResponse{Methodologies: out})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	req, ok := httputil.DecodeAndPrepare[createRecordRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	record, err := h.records.CreateRecord(ctx, userID, service.CreateInput{
		Methodology: methodology.ID(req.Methodology),
		Calendar:    hawl.Calendar(req.Calendar),
	})
	if err != nil {
		h.writeServiceError(w, r, err, "create record")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRecordResponse(record, requestcontext.Now(ctx)))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records, err := h.records.List(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.writeServiceError(w, r, err, "list records")
		return
	}

	now := requestcontext.Now(ctx)
	out := make([]recordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toRecordResponse(record, now))
	}
	httputil.WriteJSON(w, http.StatusOK, recordListResponse{Records: out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	record, err := h.records.Get(ctx, requestcontext.UserID(ctx), recordID)
	if err != nil {
		h.writeServiceError(w, r, err, "get record")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record, requestcontext.Now(ctx)))
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[editRecordRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	record, err := h.records.Edit(ctx, requestcontext.UserID(ctx), recordID, service.EditInput{
		Methodology: req.Methodology,
		Notes:       req.Notes,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "edit record")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record, requestcontext.Now(ctx)))
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[finalizeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	result, err := h.records.Finalize(ctx, requestcontext.UserID(ctx), recordID, service.FinalizeInput{
		Notes:                req.Notes,
		AcknowledgePremature: req.AcknowledgePremature,
		OverrideNote:         req.OverrideNote,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "finalize record")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, finalizeResponse{
		Record:  toRecordResponse(result.Record, requestcontext.Now(ctx)),
		Warning: result.Warning,
	})
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[unlockRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	record, err := h.records.Unlock(ctx, requestcontext.UserID(ctx), recordID, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err, "unlock record")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record, requestcontext.Now(ctx)))
}

func (h *Handler) handleTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	filter, err := trailFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.records.Trail(ctx, requestcontext.UserID(ctx), recordID, filter)
	if err != nil {
		h.writeServiceError(w, r, err, "list audit trail")
		return
	}
	if events == nil {
		events = []audit.TrailEvent{}
	}
	httputil.WriteJSON(w, http.StatusOK, trailResponse{Events: events})
}

// trailFilter parses the action/from/to query parameters. Actions may repeat
// or arrive comma-separated; dates are RFC 3339.
func trailFilter(r *http.Request) (audit.Filter, error) {
	var filter audit.Filter
	for _, raw := range r.URL.Query()["action"] {
		for _, action := range strings.Split(raw, ",") {
			if action = strings.TrimSpace(action); action != "" {
				filter.Actions = append(filter.Actions, audit.Action(action))
			}
		}
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeInvalidInput, "from must be an RFC 3339 timestamp")
		}
		filter.From = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeInvalidInput, "to must be an RFC 3339 timestamp")
		}
		filter.To = t
	}
	return filter, nil
}

func (h *Handler) recordID(w http.ResponseWriter, r *http.Request) (id.RecordID, bool) {
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.RecordID{}, false
	}
	return recordID, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "record operation failed",
			"op", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
