// Package methodology defines the scholarly calculation methodologies and the
// registry serving them. The catalogue is immutable after construction and
// injected into the engines that consume it; nothing reaches for it through
// package-level state.
package methodology

import (
	"github.com/shopspring/decimal"
)

// ID keys a methodology in the registry.
type ID string

const (
	Standard ID = "standard"
	Hanafi   ID = "hanafi"
	Shafii   ID = "shafii"
	Maliki   ID = "maliki"
)

// NisabBasis selects which metal anchors the minimum threshold.
type NisabBasis string

const (
	BasisGold        NisabBasis = "GOLD"
	BasisSilver      NisabBasis = "SILVER"
	BasisDualMinimum NisabBasis = "DUAL_MINIMUM"
)

// DeductionPolicy controls which liabilities reduce the zakatable base.
type DeductionPolicy string

const (
	// DeductFull deducts every liability flagged deductible.
	DeductFull DeductionPolicy = "FULL"
	// DeductCurrentYearOnly deducts only liabilities due within the current
	// year.
	DeductCurrentYearOnly DeductionPolicy = "CURRENT_YEAR_ONLY"
	// DeductImmediateOnly deducts only immediately payable debts.
	DeductImmediateOnly DeductionPolicy = "IMMEDIATE_ONLY"
)

// AssetCategory classifies assets for rule lookup.
type AssetCategory string

const (
	CategoryCash            AssetCategory = "cash"
	CategoryGold            AssetCategory = "gold"
	CategorySilver          AssetCategory = "silver"
	CategoryCrypto          AssetCategory = "crypto"
	CategoryBusiness        AssetCategory = "business"
	CategoryStocks          AssetCategory = "stocks"
	CategoryRetirement      AssetCategory = "retirement"
	CategoryRealEstate      AssetCategory = "real-estate"
	CategoryDebtsOwedToUser AssetCategory = "debts-owed-to-user"
	CategoryOther           AssetCategory = "other"
)

// Categories lists every known asset category.
func Categories() []AssetCategory {
	return []AssetCategory{
		CategoryCash, CategoryGold, CategorySilver, CategoryCrypto,
		CategoryBusiness, CategoryStocks, CategoryRetirement,
		CategoryRealEstate, CategoryDebtsOwedToUser, CategoryOther,
	}
}

// Treatment describes how a category's value enters the zakatable base.
type Treatment string

const (
	// TreatMarketValue includes the full market value.
	TreatMarketValue Treatment = "MARKET_VALUE"
	// TreatNetAccessible includes only the accessible portion, e.g.
	// retirement funds after penalty.
	TreatNetAccessible Treatment = "NET_ACCESSIBLE"
	// TreatTradeIntentOnly includes the value only when held with intent to
	// trade, e.g. real estate held for resale.
	TreatTradeIntentOnly Treatment = "TRADE_INTENT_ONLY"
)

// CategoryRule is one row of a methodology's rule table. Rules are strongly
// typed and validated at registry load, never parsed from opaque blobs at
// calculation time.
type CategoryRule struct {
	Zakatable    bool
	Treatment    Treatment
	RateOverride *decimal.Decimal // nil means the methodology default applies
}

// Methodology is an immutable scholarly rule set.
type Methodology struct {
	ID              ID
	DisplayName     string
	NisabBasis      NisabBasis
	DeductionPolicy DeductionPolicy
	// DefaultRate is the zakat rate applied to the net base, e.g. 0.025.
	DefaultRate decimal.Decimal
	// RoundingPlaces is the scale obligations are rounded to.
	RoundingPlaces int32
	Rules          map[AssetCategory]CategoryRule
	// Citations are scholarly references for display only; calculation logic
	// never consults them.
	Citations []string
}

// RuleFor returns the rule for a category, defaulting to a zakatable
// market-value rule for unknown categories.
func (m Methodology) RuleFor(category AssetCategory) CategoryRule {
	if rule, ok := m.Rules[category]; ok {
		return rule
	}
	return CategoryRule{Zakatable: true, Treatment: TreatMarketValue}
}

// RateFor returns the effective zakat rate for a category.
func (m Methodology) RateFor(category AssetCategory) decimal.Decimal {
	if rule, ok := m.Rules[category]; ok && rule.RateOverride != nil {
		return *rule.RateOverride
	}
	return m.DefaultRate
}

// Round applies the methodology's rounding to a monetary amount.
func (m Methodology) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(m.RoundingPlaces)
}
