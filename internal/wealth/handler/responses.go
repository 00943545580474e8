package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"mizan/internal/hawl"
	hawlservice "mizan/internal/hawl/service"
	"mizan/internal/wealth"
	"mizan/internal/zakat"
)

type assetResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	// Value is null when the stored ciphertext cannot be decrypted; the asset
	// still lists so the owner can repair or delete it.
	Value             *decimal.Decimal `json:"value"`
	Currency          string           `json:"currency"`
	AcquiredAt        time.Time        `json:"acquiredAt"`
	Zakatable         bool             `json:"zakatable"`
	Modifier          decimal.Decimal  `json:"calculationModifier"`
	PassiveInvestment bool             `json:"passiveInvestment"`
	RestrictedAccount bool             `json:"restrictedAccount"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
	DeletedAt         *time.Time       `json:"deletedAt,omitempty"`
}

func (h *Handler) toAssetResponse(a *wealth.Asset) assetResponse {
	resp := assetResponse{
		ID:                a.ID.String(),
		Name:              a.Name,
		Category:          string(a.Category),
		Currency:          a.Currency,
		AcquiredAt:        a.AcquiredAt,
		Zakatable:         a.Zakatable,
		Modifier:          a.CalculationModifier,
		PassiveInvestment: a.PassiveInvestment,
		RestrictedAccount: a.RestrictedAccount,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
		DeletedAt:         a.DeletedAt,
	}
	if plain, err := h.cipher.DecryptString(a.EncryptedValue); err == nil {
		if value, err := decimal.NewFromString(plain); err == nil {
			resp.Value = &value
		}
	} else {
		h.logger.Warn("asset value undecryptable", "asset_id", a.ID)
	}
	return resp
}

type assetListResponse struct {
	Assets []assetResponse `json:"assets"`
}

type liabilityResponse struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Type               string          `json:"type"`
	Amount             decimal.Decimal `json:"amount"`
	Deductible         bool            `json:"deductible"`
	DueWithinYear      bool            `json:"dueWithinYear"`
	ImmediatelyPayable bool            `json:"immediatelyPayable"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

func toLiabilityResponse(l *wealth.Liability) liabilityResponse {
	return liabilityResponse{
		ID:                 l.ID.String(),
		Name:               l.Name,
		Type:               string(l.Type),
		Amount:             l.Amount,
		Deductible:         l.Deductible,
		DueWithinYear:      l.DueWithinYear,
		ImmediatelyPayable: l.ImmediatelyPayable,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}
}

type liabilityListResponse struct {
	Liabilities []liabilityResponse `json:"liabilities"`
}

type nisabResponse struct {
	GoldNisab      decimal.Decimal `json:"goldNisab"`
	SilverNisab    decimal.Decimal `json:"silverNisab"`
	EffectiveNisab decimal.Decimal `json:"effectiveNisab"`
	Basis          string          `json:"basis"`
	Currency       string          `json:"currency"`
	PriceAsOf      time.Time       `json:"priceAsOf"`
	Stale          bool            `json:"stale"`
}

type hawlStatusResponse struct {
	State              string     `json:"state"`
	DaysRemaining      int        `json:"daysRemaining"`
	IsHawlComplete     bool       `json:"isHawlComplete"`
	CanFinalize        bool       `json:"canFinalize"`
	HawlStartDate      *time.Time `json:"hawlStartDate,omitempty"`
	HawlCompletionDate *time.Time `json:"hawlCompletionDate,omitempty"`
	RecordID           string     `json:"recordId,omitempty"`
}

type liveResponse struct {
	Methodology        string              `json:"methodology"`
	TotalWealth        decimal.Decimal     `json:"totalWealth"`
	TotalLiabilities   decimal.Decimal     `json:"totalLiabilities"`
	NetZakatableWealth decimal.Decimal     `json:"netZakatableWealth"`
	Nisab              nisabResponse       `json:"nisab"`
	AboveNisab         bool                `json:"aboveNisab"`
	PercentageOfNisab  decimal.Decimal     `json:"percentageOfNisab"`
	ZakatDue           decimal.Decimal     `json:"zakatDue"`
	Breakdown          []zakat.CategoryDue `json:"breakdown,omitempty"`
	Hawl               hawlStatusResponse  `json:"hawl"`
	// Complete is false when some assets could not be valued; the figures are
	// then a lower bound.
	Complete bool      `json:"complete"`
	AsOf     time.Time `json:"asOf"`
}

func toLiveResponse(calc *zakat.Calculation, overview *hawlservice.Overview, now time.Time) liveResponse {
	resp := liveResponse{
		Methodology:        string(calc.Methodology),
		TotalWealth:        calc.TotalWealth,
		TotalLiabilities:   calc.TotalLiabilities,
		NetZakatableWealth: calc.NetWealth,
		Nisab: nisabResponse{
			GoldNisab:      calc.Thresholds.GoldNisab,
			SilverNisab:    calc.Thresholds.SilverNisab,
			EffectiveNisab: calc.Thresholds.EffectiveNisab,
			Basis:          string(calc.Thresholds.Basis),
			Currency:       calc.Thresholds.Currency,
			PriceAsOf:      calc.Thresholds.PriceAsOf,
			Stale:          calc.Thresholds.Stale,
		},
		AboveNisab: calc.AboveNisab,
		ZakatDue:   calc.ZakatDue,
		Breakdown:  calc.Breakdown,
		Complete:   calc.Complete,
		AsOf:       now,
	}
	if calc.Thresholds.EffectiveNisab.IsPositive() {
		resp.PercentageOfNisab = calc.NetWealth.
			Div(calc.Thresholds.EffectiveNisab).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	resp.Hawl = hawlStatusResponse{
		State:          string(overview.State),
		DaysRemaining:  overview.DaysRemaining,
		IsHawlComplete: overview.State == hawl.StateComplete,
		CanFinalize:    overview.CanFinalize,
	}
	if overview.Record != nil {
		resp.Hawl.RecordID = overview.Record.ID.String()
		if overview.Record.HawlStarted() {
			start, completion := overview.Record.HawlStartDate, overview.Record.HawlCompletionDate
			resp.Hawl.HawlStartDate = &start
			resp.Hawl.HawlCompletionDate = &completion
		}
	}
	return resp
}
