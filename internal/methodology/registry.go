package methodology

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	dErrors "mizan/pkg/domain-errors"
)

// Registry serves the immutable methodology catalogue. Construct once at
// process start and pass explicitly to the engines.
type Registry struct {
	byID  map[ID]Methodology
	order []ID
}

// NewRegistry builds a registry from the given methodologies, validating each
// rule set once so calculation paths never see a malformed rule.
func NewRegistry(methodologies ...Methodology) (*Registry, error) {
	r := &Registry{byID: make(map[ID]Methodology, len(methodologies))}
	for _, m := range methodologies {
		if err := validate(m); err != nil {
			return nil, fmt.Errorf("methodology %q: %w", m.ID, err)
		}
		if _, dup := r.byID[m.ID]; dup {
			return nil, fmt.Errorf("methodology %q: duplicate id", m.ID)
		}
		r.byID[m.ID] = m
		r.order = append(r.order, m.ID)
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	return r, nil
}

// NewBuiltinRegistry builds the registry with the four built-in
// methodologies. It panics on error because the built-ins are compiled in and
// a broken catalogue is unrecoverable at startup.
func NewBuiltinRegistry() *Registry {
	r, err := NewRegistry(builtins()...)
	if err != nil {
		panic(fmt.Sprintf("builtin methodology catalogue invalid: %v", err))
	}
	return r
}

// Get returns the methodology for id.
func (r *Registry) Get(id ID) (Methodology, error) {
	m, ok := r.byID[id]
	if !ok {
		return Methodology{}, dErrors.Newf(dErrors.CodeNotFound, "unknown methodology %q", id)
	}
	return m, nil
}

// List returns all methodologies in stable ID order.
func (r *Registry) List() []Methodology {
	out := make([]Methodology, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func validate(m Methodology) error {
	if m.ID == "" {
		return fmt.Errorf("empty id")
	}
	if m.DisplayName == "" {
		return fmt.Errorf("empty display name")
	}
	switch m.NisabBasis {
	case BasisGold, BasisSilver, BasisDualMinimum:
	default:
		return fmt.Errorf("invalid nisab basis %q", m.NisabBasis)
	}
	switch m.DeductionPolicy {
	case DeductFull, DeductCurrentYearOnly, DeductImmediateOnly:
	default:
		return fmt.Errorf("invalid deduction policy %q", m.DeductionPolicy)
	}
	if m.DefaultRate.LessThanOrEqual(decimal.Zero) || m.DefaultRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("default rate %s out of range (0,1)", m.DefaultRate)
	}
	if m.RoundingPlaces < 0 || m.RoundingPlaces > 8 {
		return fmt.Errorf("rounding places %d out of range", m.RoundingPlaces)
	}
	for category, rule := range m.Rules {
		switch rule.Treatment {
		case TreatMarketValue, TreatNetAccessible, TreatTradeIntentOnly:
		default:
			return fmt.Errorf("category %q: invalid treatment %q", category, rule.Treatment)
		}
		if rule.RateOverride != nil {
			if rule.RateOverride.LessThanOrEqual(decimal.Zero) || rule.RateOverride.GreaterThan(decimal.NewFromFloat(0.5)) {
				return fmt.Errorf("category %q: rate override %s out of range", category, rule.RateOverride)
			}
		}
	}
	return nil
}

// builtins returns the four required methodologies. Rates and rule tables
// follow the scholarly positions named in each citation list.
func builtins() []Methodology {
	standardRate := decimal.NewFromFloat(0.025)

	return []Methodology{
		{
			ID:              Standard,
			DisplayName:     "Standard (AAOIFI)",
			NisabBasis:      BasisDualMinimum,
			DeductionPolicy: DeductFull,
			DefaultRate:     standardRate,
			RoundingPlaces:  2,
			Rules: map[AssetCategory]CategoryRule{
				CategoryCash:            {Zakatable: true, Treatment: TreatMarketValue},
				CategoryGold:            {Zakatable: true, Treatment: TreatMarketValue},
				CategorySilver:          {Zakatable: true, Treatment: TreatMarketValue},
				CategoryCrypto:          {Zakatable: true, Treatment: TreatMarketValue},
				CategoryBusiness:        {Zakatable: true, Treatment: TreatMarketValue},
				CategoryStocks:          {Zakatable: true, Treatment: TreatMarketValue},
				CategoryRetirement:      {Zakatable: true, Treatment: TreatNetAccessible},
				CategoryRealEstate:      {Zakatable: true, Treatment: TreatTradeIntentOnly},
				CategoryDebtsOwedToUser: {Zakatable: true, Treatment: TreatMarketValue},
				CategoryOther:           {Zakatable: true, Treatment: TreatMarketValue},
			},
			Citations: []string{
				"AAOIFI Shari'ah Standard No. 35 (Zakah)",
				"Fiqh Council resolutions on contemporary zakatable assets",
			},
		},
		{
			ID:              Hanafi,
			DisplayName:     "Hanafi",
			NisabBasis:      BasisSilver,
			DeductionPolicy: DeductCurrentYearOnly,
			DefaultRate:     standardRate,
			RoundingPlaces:  2,
			Rules: map[AssetCategory]CategoryRule{
				CategoryCash:            {Zakatable: true, Treatment: TreatMarketValue},
				CategoryGold:            {Zakatable: true, Treatment: TreatMarketValue},
				CategorySilver:          {Zakatable: true, Treatment: TreatMarketValue},
				CategoryCrypto:          {Zakatable: true, Treatment: TreatMarketValue},
				CategoryBusiness:        {Zakatable: true, Treatment: TreatMarketValue},
				CategoryStocks:          {Zakatable: true, Treatment: TreatMarketValue},
				CategoryRetirement:      {Zakatable: true, Treatment: TreatNetAccessible},
				CategoryRealEstate:      {Zakatable: true, Treatment: TreatTradeIntentOnly},
				CategoryDebtsOwedToUser: {Zakatable: true, Treatment: TreatMarketValue},
				CategoryOther:           {Zakatable: true, Treatment: TreatMarketValue},
			},
			Citations: []string{
				"Al-Hidayah, Kitab al-Zakat",
				"Radd al-Muhtar on silver-basis nisab",
			},
		},
		{
			ID:              Shafii,
			DisplayName:     "Shafi'i",
			NisabBasis:      BasisDualMinimum,
			DeductionPolicy: DeductFull,
			DefaultRate:     standardRate,
			RoundingPlaces:  2,
			Rules: map[AssetCategory]CategoryRule{
				CategoryCash:   {Zakatable: true, Treatment: TreatMarketValue},
				CategoryGold:   {Zakatable: true, Treatment: TreatMarketValue},
				CategorySilver: {Zakatable: true, Treatment: TreatMarketValue},
				CategoryCrypto: {Zakatable: true, Treatment: TreatMarketValue},
				// Categorized business treatment: trading stock at market
				// value, fixed assets excluded.
				CategoryBusiness:        {Zakatable: true, Treatment: TreatTradeIntentOnly},
				CategoryStocks:          {Zakatable: true, Treatment: TreatMarketValue},
				CategoryRetirement:      {Zakatable: true, Treatment: TreatNetAccessible},
				CategoryRealEstate:      {Zakatable: true, Treatment: TreatTradeIntentOnly},
				CategoryDebtsOwedToUser: {Zakatable: true, Treatment: TreatMarketValue},
				CategoryOther:           {Zakatable: true, Treatment: TreatMarketValue},
			},
			Citations: []string{
				"Minhaj al-Talibin, Kitab al-Zakat",
				"Al-Majmu' on business asset categorization",
			},
		},
		{
			ID:              Maliki,
			DisplayName:     "Maliki",
			NisabBasis:      BasisDualMinimum,
			DeductionPolicy: DeductImmediateOnly,
			DefaultRate:     standardRate,
			RoundingPlaces:  2,
			Rules: map[AssetCategory]CategoryRule{
				CategoryCash:            {Zakatable: true, Treatment: TreatMarketValue},
				CategoryGold:            {Zakatable: true, Treatment: TreatMarketValue},
				CategorySilver:          {Zakatable: true, Treatment: TreatMarketValue},
				CategoryCrypto:          {Zakatable: true, Treatment: TreatMarketValue},
				CategoryBusiness:        {Zakatable: true, Treatment: TreatMarketValue},
				CategoryStocks:          {Zakatable: true, Treatment: TreatMarketValue},
				CategoryRetirement:      {Zakatable: false, Treatment: TreatNetAccessible},
				CategoryRealEstate:      {Zakatable: true, Treatment: TreatTradeIntentOnly},
				CategoryDebtsOwedToUser: {Zakatable: true, Treatment: TreatMarketValue},
				CategoryOther:           {Zakatable: true, Treatment: TreatMarketValue},
			},
			Citations: []string{
				"Mukhtasar Khalil, Kitab al-Zakat",
				"Regional fatwa compilations on immediate-debt deduction",
			},
		},
	}
}
