package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"mizan/internal/audit"
	"mizan/internal/hawl"
	"mizan/internal/methodology"
)

type recordResponse struct {
	ID          string `json:"id"`
	Methodology string `json:"methodology"`
	Calendar    string `json:"calendar"`
	Status      string `json:"status"`
	// State is derived from the dates at response time, never stored.
	State string `json:"state"`

	HawlStartDate           *time.Time `json:"hawlStartDate,omitempty"`
	HawlStartDateHijri      string     `json:"hawlStartDateHijri,omitempty"`
	HawlCompletionDate      *time.Time `json:"hawlCompletionDate,omitempty"`
	HawlCompletionDateHijri string     `json:"hawlCompletionDateHijri,omitempty"`

	NisabBasis            string          `json:"nisabBasis"`
	NisabThresholdAtStart decimal.Decimal `json:"nisabThresholdAtStart"`

	TotalWealth      decimal.Decimal `json:"totalWealth"`
	TotalLiabilities decimal.Decimal `json:"totalLiabilities"`
	ZakatableWealth  decimal.Decimal `json:"zakatableWealth"`
	ZakatAmount      decimal.Decimal `json:"zakatAmount"`

	IsPrimary         bool   `json:"isPrimary"`
	FinalizationNotes string `json:"finalizationNotes,omitempty"`

	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	FinalizedAt  *time.Time `json:"finalizedAt,omitempty"`
	UnlockedAt   *time.Time `json:"unlockedAt,omitempty"`
	SupersededAt *time.Time `json:"supersededAt,omitempty"`

	Version int64 `json:"version"`
}

func toRecordResponse(r *hawl.NisabYearRecord, now time.Time) recordResponse {
	resp := recordResponse{
		ID:                      r.ID.String(),
		Methodology:             string(r.Methodology),
		Calendar:                string(r.Calendar),
		Status:                  string(r.Status),
		State:                   string(hawl.DeriveState(r, now)),
		HawlStartDateHijri:      r.HawlStartDateHijri,
		HawlCompletionDateHijri: r.HawlCompletionDateHijri,
		NisabBasis:              string(r.NisabBasis),
		NisabThresholdAtStart:   r.NisabThresholdAtStart,
		TotalWealth:             r.TotalWealth,
		TotalLiabilities:        r.TotalLiabilities,
		ZakatableWealth:         r.ZakatableWealth,
		ZakatAmount:             r.ZakatAmount,
		IsPrimary:               r.IsPrimary,
		FinalizationNotes:       r.FinalizationNotes,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
		FinalizedAt:             r.FinalizedAt,
		UnlockedAt:              r.UnlockedAt,
		SupersededAt:            r.SupersededAt,
		Version:                 r.Version,
	}
	if r.HawlStarted() {
		start, completion := r.HawlStartDate, r.HawlCompletionDate
		resp.HawlStartDate = &start
		resp.HawlCompletionDate = &completion
	}
	return resp
}

type recordListResponse struct {
	Records []recordResponse `json:"records"`
}

type finalizeResponse struct {
	Record  recordResponse `json:"record"`
	Warning string         `json:"warning,omitempty"`
}

type trailResponse struct {
	Events []audit.TrailEvent `json:"events"`
}

type methodologyResponse struct {
	ID              string          `json:"id"`
	DisplayName     string          `json:"displayName"`
	NisabBasis      string          `json:"nisabBasis"`
	DeductionPolicy string          `json:"deductionPolicy"`
	DefaultRate     decimal.Decimal `json:"defaultRate"`
	Citations       []string        `json:"citations"`
}

func toMethodologyResponse(m methodology.Methodology) methodologyResponse {
	return methodologyResponse{
		ID:              string(m.ID),
		DisplayName:     m.DisplayName,
		NisabBasis:      string(m.NisabBasis),
		DeductionPolicy: string(m.DeductionPolicy),
		DefaultRate:     m.DefaultRate,
		Citations:       m.Citations,
	}
}

type methodologyListResponse struct {
	Methodologies []methodologyResponse `json:"methodologies"`
}
