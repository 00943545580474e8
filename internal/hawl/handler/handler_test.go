package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mizan/internal/audit"
	"mizan/internal/hawl"
	"mizan/internal/hawl/service"
	"mizan/internal/methodology"
	id "mizan/pkg/domain"
	dErrors "mizan/pkg/domain-errors"
	"mizan/pkg/requestcontext"
)

type stubService struct {
	record *hawl.NisabYearRecord
	result *service.FinalizeResult
	events []audit.TrailEvent
	err    error

	gotCreate   *service.CreateInput
	gotEdit     *service.EditInput
	gotFinalize *service.FinalizeInput
	gotReason   string
	gotFilter   audit.Filter
}

func (s *stubService) CreateRecord(_ context.Context, _ id.UserID, in service.CreateInput) (*hawl.NisabYearRecord, error) {
	s.gotCreate = &in
	return s.record, s.err
}

func (s *stubService) Get(context.Context, id.UserID, id.RecordID) (*hawl.NisabYearRecord, error) {
	return s.record, s.err
}

func (s *stubService) List(context.Context, id.UserID) ([]*hawl.NisabYearRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []*hawl.NisabYearRecord{s.record}, nil
}

func (s *stubService) Edit(_ context.Context, _ id.UserID, _ id.RecordID, in service.EditInput) (*hawl.NisabYearRecord, error) {
	s.gotEdit = &in
	return s.record, s.err
}

func (s *stubService) Finalize(_ context.Context, _ id.UserID, _ id.RecordID, in service.FinalizeInput) (*service.FinalizeResult, error) {
	s.gotFinalize = &in
	return s.result, s.err
}

func (s *stubService) Unlock(_ context.Context, _ id.UserID, _ id.RecordID, reason string) (*hawl.NisabYearRecord, error) {
	s.gotReason = reason
	return s.record, s.err
}

func (s *stubService) Trail(_ context.Context, _ id.UserID, _ id.RecordID, filter audit.Filter) ([]audit.TrailEvent, error) {
	s.gotFilter = filter
	return s.events, s.err
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRecord() *hawl.NisabYearRecord {
	start := testNow.AddDate(0, 0, -100)
	return &hawl.NisabYearRecord{
		ID:                    id.NewRecordID(),
		UserID:                id.NewUserID(),
		Methodology:           methodology.Standard,
		Calendar:              hawl.CalendarLunar,
		HawlStartDate:         start,
		HawlStartDateHijri:    "11 Ramadan 1447 AH",
		HawlCompletionDate:    start.AddDate(0, 0, 354),
		NisabBasis:            methodology.BasisDualMinimum,
		NisabThresholdAtStart: decimal.RequireFromString("5000"),
		TotalWealth:           decimal.RequireFromString("5500"),
		ZakatableWealth:       decimal.RequireFromString("5500"),
		ZakatAmount:           decimal.RequireFromString("137.50"),
		Status:                hawl.StatusDraft,
		IsPrimary:             true,
		CreatedAt:             start,
		UpdatedAt:             start,
		Version:               1,
	}
}

func serve(t *testing.T, stub *stubService, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := New(stub, methodology.NewBuiltinRegistry(), slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithUserID(req.Context(), id.NewUserID())
			ctx = requestcontext.WithTime(ctx, testNow)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.Register(r)

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleCreate(t *testing.T) {
	t.Run("creates and derives state", func(t *testing.T) {
		stub := &stubService{record: sampleRecord()}
		rec := serve(t, stub, http.MethodPost, "/v1/records", `{"methodology":"hanafi","calendar":"solar"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		require.NotNil(t, stub.gotCreate)
		assert.Equal(t, methodology.Hanafi, stub.gotCreate.Methodology)
		assert.Equal(t, hawl.CalendarSolar, stub.gotCreate.Calendar)

		body := decodeBody(t, rec)
		assert.Equal(t, "IN_HAWL", body["state"])
		assert.Equal(t, "DRAFT", body["status"])
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		stub := &stubService{record: sampleRecord()}
		rec := serve(t, stub, http.MethodPost, "/v1/records", `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("conflict surfaces as 409", func(t *testing.T) {
		stub := &stubService{err: dErrors.New(dErrors.CodeConflict, "an active record already exists for this user")}
		rec := serve(t, stub, http.MethodPost, "/v1/records", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "conflict", decodeBody(t, rec)["error"])
	})
}

func TestHandleGet(t *testing.T) {
	t.Run("invalid id is a bad request", func(t *testing.T) {
		stub := &stubService{record: sampleRecord()}
		rec := serve(t, stub, http.MethodGet, "/v1/records/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		stub := &stubService{err: dErrors.New(dErrors.CodeNotFound, "record not found")}
		rec := serve(t, stub, http.MethodGet, "/v1/records/"+id.NewRecordID().String(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("hawl dates are present once the clock runs", func(t *testing.T) {
		stub := &stubService{record: sampleRecord()}
		rec := serve(t, stub, http.MethodGet, "/v1/records/"+id.NewRecordID().String(), "")
		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.NotEmpty(t, body["hawlStartDate"])
		assert.NotEmpty(t, body["hawlCompletionDate"])
		assert.Equal(t, "5000", body["nisabThresholdAtStart"])
	})

	t.Run("accumulating record omits the dates", func(t *testing.T) {
		record := sampleRecord()
		record.HawlStartDate = time.Time{}
		record.HawlCompletionDate = time.Time{}
		record.HawlStartDateHijri = ""
		stub := &stubService{record: record}
		rec := serve(t, stub, http.MethodGet, "/v1/records/"+id.NewRecordID().String(), "")
		body := decodeBody(t, rec)
		assert.Equal(t, "ACCUMULATING", body["state"])
		assert.NotContains(t, body, "hawlStartDate")
	})
}

func TestHandleFinalize(t *testing.T) {
	t.Run("passes the acknowledgement through and returns the warning", func(t *testing.T) {
		record := sampleRecord()
		record.Status = hawl.StatusFinalized
		stub := &stubService{result: &service.FinalizeResult{Record: record, Warning: service.PrematureWarning}}

		rec := serve(t, stub, http.MethodPost, "/v1/records/"+record.ID.String()+"/finalize",
			`{"acknowledgePremature":true,"overrideNote":"settling before travel"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, stub.gotFinalize)
		assert.True(t, stub.gotFinalize.AcknowledgePremature)
		assert.Equal(t, "settling before travel", stub.gotFinalize.OverrideNote)
		body := decodeBody(t, rec)
		assert.Equal(t, service.PrematureWarning, body["warning"])
	})

	t.Run("invalid state surfaces as 409", func(t *testing.T) {
		stub := &stubService{err: dErrors.New(dErrors.CodeInvalidState, "hawl is not complete")}
		rec := serve(t, stub, http.MethodPost, "/v1/records/"+id.NewRecordID().String()+"/finalize", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestHandleUnlock(t *testing.T) {
	stub := &stubService{record: sampleRecord()}
	rec := serve(t, stub, http.MethodPost, "/v1/records/"+id.NewRecordID().String()+"/unlock",
		`{"reason":"Found additional gold holdings"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Found additional gold holdings", stub.gotReason)
}

func TestHandleTrail(t *testing.T) {
	t.Run("parses action and date filters", func(t *testing.T) {
		stub := &stubService{events: []audit.TrailEvent{}}
		rec := serve(t, stub, http.MethodGet,
			"/v1/records/"+id.NewRecordID().String()+"/audit?action=finalized,unlocked&from=2026-01-01T00:00:00Z", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []audit.Action{audit.ActionFinalized, audit.ActionUnlocked}, stub.gotFilter.Actions)
		assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), stub.gotFilter.From)
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		stub := &stubService{}
		rec := serve(t, stub, http.MethodGet,
			"/v1/records/"+id.NewRecordID().String()+"/audit?from=yesterday", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty trail encodes as an empty array", func(t *testing.T) {
		stub := &stubService{}
		rec := serve(t, stub, http.MethodGet, "/v1/records/"+id.NewRecordID().String()+"/audit", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"events":[]}`, rec.Body.String())
	})
}

func TestHandleListMethodologies(t *testing.T) {
	stub := &stubService{}
	rec := serve(t, stub, http.MethodGet, "/v1/methodologies", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Methodologies []methodologyResponse `json:"methodologies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Methodologies, 4)
	ids := make([]string, 0, 4)
	for _, m := range body.Methodologies {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"hanafi", "maliki", "shafii", "standard"}, ids)
}
