// Package nisab converts live metal prices into the effective minimum
// threshold for a methodology.
package nisab

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"mizan/internal/methodology"
	"mizan/internal/oracle"
	dErrors "mizan/pkg/domain-errors"
)

// Classical nisab weights: 20 mithqal of gold, 200 dirham of silver.
var (
	goldNisabGrams   = decimal.NewFromFloat(87.48)
	silverNisabGrams = decimal.NewFromFloat(612.36)
)

// Thresholds is a resolved nisab valuation.
type Thresholds struct {
	GoldNisab      decimal.Decimal
	SilverNisab    decimal.Decimal
	EffectiveNisab decimal.Decimal
	Basis          methodology.NisabBasis
	Currency       string
	// PriceAsOf is the quote timestamp the valuation was derived from.
	PriceAsOf time.Time
	// Stale marks a valuation served from the last successful resolution
	// because a fresh price was unavailable.
	Stale bool
}

// Resolver derives thresholds from the price oracle, refusing quotes older
// than the staleness window. The last successfully resolved threshold per
// basis is retained for read paths that may degrade; strict paths (hawl-start
// detection) get a price_unavailable error instead.
type Resolver struct {
	oracle    oracle.PriceOracle
	staleness time.Duration
	currency  string
	logger    *slog.Logger

	mu       sync.RWMutex
	lastGood map[methodology.NisabBasis]Thresholds
}

// NewResolver constructs a Resolver.
func NewResolver(o oracle.PriceOracle, staleness time.Duration, currency string, logger *slog.Logger) *Resolver {
	return &Resolver{
		oracle:    o,
		staleness: staleness,
		currency:  currency,
		logger:    logger,
		lastGood:  make(map[methodology.NisabBasis]Thresholds),
	}
}

// Resolve returns a fresh threshold for the basis. It fails with
// price_unavailable when the feed is down or the quote is older than the
// staleness window; it never substitutes a default price.
func (r *Resolver) Resolve(ctx context.Context, basis methodology.NisabBasis, now time.Time) (Thresholds, error) {
	prices, err := r.oracle.GetMetalPrices(ctx, r.currency)
	if err != nil {
		return Thresholds{}, dErrors.Wrap(err, dErrors.CodePriceUnavailable, "cannot resolve nisab threshold")
	}
	if now.Sub(prices.AsOf) > r.staleness {
		r.logger.WarnContext(ctx, "price quote beyond staleness window",
			"as_of", prices.AsOf,
			"window", r.staleness,
		)
		return Thresholds{}, dErrors.New(dErrors.CodePriceUnavailable, "price quote is stale")
	}

	t := fromPrices(prices, basis)
	r.mu.Lock()
	r.lastGood[basis] = t
	r.mu.Unlock()
	return t, nil
}

// ResolveOrLast behaves like Resolve but degrades to the last successful
// resolution when a fresh price is unavailable. The returned Stale flag tells
// callers they are looking at a retained value. Used by read-only display
// paths; never by hawl-start detection.
func (r *Resolver) ResolveOrLast(ctx context.Context, basis methodology.NisabBasis, now time.Time) (Thresholds, error) {
	t, err := r.Resolve(ctx, basis, now)
	if err == nil {
		return t, nil
	}

	r.mu.RLock()
	last, ok := r.lastGood[basis]
	r.mu.RUnlock()
	if !ok {
		return Thresholds{}, err
	}
	last.Stale = true
	return last, nil
}

func fromPrices(p oracle.MetalPrices, basis methodology.NisabBasis) Thresholds {
	gold := p.Gold.Mul(goldNisabGrams)
	silver := p.Silver.Mul(silverNisabGrams)

	t := Thresholds{
		GoldNisab:   gold,
		SilverNisab: silver,
		Basis:       basis,
		Currency:    p.Currency,
		PriceAsOf:   p.AsOf,
	}
	switch basis {
	case methodology.BasisGold:
		t.EffectiveNisab = gold
	case methodology.BasisSilver:
		t.EffectiveNisab = silver
	default:
		// Lower of the two: the classical majority rule, which maximizes
		// the number of payers.
		t.EffectiveNisab = decimal.Min(gold, silver)
	}
	return t
}
