// Package oracle defines the metals price feed port the nisab resolver
// consumes, plus the HTTP adapter and a deterministic fixture client for
// development and tests.
package oracle

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MetalPrices is one quote from the feed. Prices are per gram in the
// requested currency.
type MetalPrices struct {
	Gold     decimal.Decimal
	Silver   decimal.Decimal
	Currency string
	AsOf     time.Time
}

//go:generate mockgen -source=oracle.go -destination=mocks/mocks.go -package=mocks PriceOracle

// PriceOracle supplies current gold and silver prices. Implementations must
// return an error rather than a default or zero price when the feed is
// unreachable; the resolver decides how to degrade.
type PriceOracle interface {
	GetMetalPrices(ctx context.Context, currency string) (MetalPrices, error)
}

// FixedOracle serves a static quote. Used in development when no feed is
// configured and in tests.
type FixedOracle struct {
	Prices MetalPrices
	Err    error
}

func (o FixedOracle) GetMetalPrices(_ context.Context, currency string) (MetalPrices, error) {
	if o.Err != nil {
		return MetalPrices{}, o.Err
	}
	p := o.Prices
	if p.Currency == "" {
		p.Currency = currency
	}
	if p.AsOf.IsZero() {
		p.AsOf = time.Now()
	}
	return p, nil
}
