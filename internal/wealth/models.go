// Package wealth holds the asset and liability models and the stores backing
// them. Asset values are encrypted at rest; everything that needs the
// plaintext value goes through the aggregation service.
package wealth

import (
	"time"

	"github.com/shopspring/decimal"

	"mizan/internal/methodology"
	id "mizan/pkg/domain"
	dErrors "mizan/pkg/domain-errors"
)

// RecoveryWindow is how long a soft-deleted asset can be restored before a
// cleanup job may purge it.
const RecoveryWindow = 30 * 24 * time.Hour

// Asset is a single zakatable (or exempt) holding. Value is stored as a
// cipher token over the decimal string representation.
type Asset struct {
	ID       id.AssetID
	UserID   id.UserID
	Name     string
	Category methodology.AssetCategory
	// EncryptedValue is the cipher token for the monetary value. Only the
	// aggregation service decrypts it.
	EncryptedValue string
	Currency       string
	AcquiredAt     time.Time
	Zakatable      bool
	// CalculationModifier scales the value's zakatable contribution, in
	// (0,1]. 0.30 implements the thirty-percent rule for passive minority
	// stock holdings; 1.0 for directly held wealth.
	CalculationModifier decimal.Decimal
	PassiveInvestment   bool
	RestrictedAccount   bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           *time.Time
}

// Deleted reports whether the asset is soft-deleted.
func (a *Asset) Deleted() bool { return a.DeletedAt != nil }

// Validate enforces the asset invariants.
func (a *Asset) Validate() error {
	if a.UserID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "asset must have an owner")
	}
	if a.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "asset name must not be empty")
	}
	if !validCategory(a.Category) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown asset category %q", a.Category)
	}
	if a.CalculationModifier.LessThanOrEqual(decimal.Zero) || a.CalculationModifier.GreaterThan(decimal.NewFromInt(1)) {
		return dErrors.New(dErrors.CodeInvalidInput, "calculation modifier must be in (0,1]")
	}
	if a.PassiveInvestment && a.RestrictedAccount {
		return dErrors.New(dErrors.CodeInvalidInput, "asset cannot be both a passive investment and a restricted account")
	}
	return nil
}

func validCategory(c methodology.AssetCategory) bool {
	for _, known := range methodology.Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// LiabilityType classifies a liability for display and deduction policy.
type LiabilityType string

const (
	LiabilityCreditCard LiabilityType = "credit-card"
	LiabilityMortgage   LiabilityType = "mortgage"
	LiabilityPersonal   LiabilityType = "personal-loan"
	LiabilityBusiness   LiabilityType = "business-debt"
	LiabilityTax        LiabilityType = "tax-due"
	LiabilityOther      LiabilityType = "other"
)

// Liability is a debt that may reduce the zakatable base depending on the
// methodology's deduction policy.
type Liability struct {
	ID     id.LiabilityID
	UserID id.UserID
	Name   string
	Type   LiabilityType
	Amount decimal.Decimal
	// Deductible marks debts eligible for deduction at all. A mortgage
	// principal is not deductible; a due-this-year credit card balance is.
	Deductible bool
	// DueWithinYear marks debts falling due inside the current year
	// (CURRENT_YEAR_ONLY policies).
	DueWithinYear bool
	// ImmediatelyPayable marks debts demandable now (IMMEDIATE_ONLY
	// policies).
	ImmediatelyPayable bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Validate enforces the liability invariants.
func (l *Liability) Validate() error {
	if l.UserID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "liability must have an owner")
	}
	if l.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "liability name must not be empty")
	}
	if l.Amount.IsNegative() {
		return dErrors.New(dErrors.CodeInvalidInput, "liability amount must not be negative")
	}
	return nil
}

// DeductibleUnder applies a methodology's deduction policy to this liability.
func (l *Liability) DeductibleUnder(policy methodology.DeductionPolicy) bool {
	if !l.Deductible {
		return false
	}
	switch policy {
	case methodology.DeductCurrentYearOnly:
		return l.DueWithinYear
	case methodology.DeductImmediateOnly:
		return l.ImmediatelyPayable
	default:
		return true
	}
}
