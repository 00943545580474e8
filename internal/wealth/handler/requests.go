package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"mizan/internal/methodology"
	"mizan/internal/wealth"
	"mizan/internal/wealth/service"
	dErrors "mizan/pkg/domain-errors"
)

type assetRequest struct {
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Value      string    `json:"value"`
	Currency   string    `json:"currency"`
	AcquiredAt time.Time `json:"acquiredAt"`
	Zakatable  bool      `json:"zakatable"`
	// Modifier is optional; absent applies the category default.
	Modifier          *string `json:"calculationModifier"`
	PassiveInvestment bool    `json:"passiveInvestment"`
	RestrictedAccount bool    `json:"restrictedAccount"`
}

func (r assetRequest) toInput() (service.AssetInput, error) {
	value, err := decimal.NewFromString(r.Value)
	if err != nil {
		return service.AssetInput{}, dErrors.New(dErrors.CodeInvalidInput, "value must be a decimal string")
	}
	in := service.AssetInput{
		Name:              r.Name,
		Category:          methodology.AssetCategory(r.Category),
		Value:             value,
		Currency:          r.Currency,
		AcquiredAt:        r.AcquiredAt,
		Zakatable:         r.Zakatable,
		PassiveInvestment: r.PassiveInvestment,
		RestrictedAccount: r.RestrictedAccount,
	}
	if r.Modifier != nil {
		modifier, err := decimal.NewFromString(*r.Modifier)
		if err != nil {
			return service.AssetInput{}, dErrors.New(dErrors.CodeInvalidInput, "calculationModifier must be a decimal string")
		}
		in.Modifier = &modifier
	}
	return in, nil
}

type liabilityRequest struct {
	Name               string `json:"name"`
	Type               string `json:"type"`
	Amount             string `json:"amount"`
	Deductible         bool   `json:"deductible"`
	DueWithinYear      bool   `json:"dueWithinYear"`
	ImmediatelyPayable bool   `json:"immediatelyPayable"`
}

func (r liabilityRequest) toInput() (service.LiabilityInput, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return service.LiabilityInput{}, dErrors.New(dErrors.CodeInvalidInput, "amount must be a decimal string")
	}
	return service.LiabilityInput{
		Name:               r.Name,
		Type:               wealth.LiabilityType(r.Type),
		Amount:             amount,
		Deductible:         r.Deductible,
		DueWithinYear:      r.DueWithinYear,
		ImmediatelyPayable: r.ImmediatelyPayable,
	}, nil
}
