// Package service implements asset/liability management and the wealth
// aggregation engine.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"mizan/internal/crypto"
	"mizan/internal/methodology"
	"mizan/internal/wealth"
	"mizan/internal/wealth/metrics"
	id "mizan/pkg/domain"
	dErrors "mizan/pkg/domain-errors"
)

// decryptParallelism bounds concurrent decrypt calls per aggregation run. The
// cipher is CPU-bound and cheap; a small fan-out keeps 200-asset runs inside
// the latency budget without starving other requests.
const decryptParallelism = 8

var tracer = otel.Tracer("mizan/internal/wealth")

// SkippedAsset reports one asset excluded from an aggregation run.
type SkippedAsset struct {
	AssetID id.AssetID `json:"assetId"`
	Reason  string     `json:"reason"`
}

// WealthAggregate is the result of summing a user's zakatable assets.
type WealthAggregate struct {
	TotalWealth decimal.Decimal
	AssetCount  int
	ByCategory  map[methodology.AssetCategory]decimal.Decimal
	Skipped     []SkippedAsset
	// Complete is false when any asset failed to decrypt or parse. A
	// degraded total is fine for display but must never be finalized.
	Complete bool
}

// LiabilityAggregate is the result of summing deductible liabilities.
type LiabilityAggregate struct {
	TotalLiabilities decimal.Decimal
	LiabilityCount   int
}

// NetWealth combines both aggregates into the zakatable base.
type NetWealth struct {
	NetWealth        decimal.Decimal
	TotalWealth      decimal.Decimal
	TotalLiabilities decimal.Decimal
	ByCategory       map[methodology.AssetCategory]decimal.Decimal
	Skipped          []SkippedAsset
	Complete         bool
}

// Aggregator is the wealth aggregation engine. It is read-only and safe for
// unlimited concurrent use.
type Aggregator struct {
	assets      wealth.AssetStore
	liabilities wealth.LiabilityStore
	cipher      crypto.Cipher
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewAggregator constructs the aggregation engine.
func NewAggregator(assets wealth.AssetStore, liabilities wealth.LiabilityStore, cipher crypto.Cipher, m *metrics.Metrics, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		assets:      assets,
		liabilities: liabilities,
		cipher:      cipher,
		metrics:     m,
		logger:      logger,
	}
}

// AggregateWealth sums the user's zakatable assets under the given
// methodology. One corrupt asset never aborts the run: it is skipped and
// reported, and Complete is cleared.
func (a *Aggregator) AggregateWealth(ctx context.Context, userID id.UserID, m methodology.Methodology) (*WealthAggregate, error) {
	ctx, span := tracer.Start(ctx, "wealth.AggregateWealth")
	defer span.End()
	start := time.Now()
	defer func() {
		a.metrics.AggregationDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	assets, err := a.assets.ListByUser(ctx, userID, false)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list assets")
	}

	// Exempt assets are out of the run's scope: they never decrypt, and a
	// corrupt one never degrades the total.
	eligible := make([]*wealth.Asset, 0, len(assets))
	for _, asset := range assets {
		if !asset.Zakatable {
			continue
		}
		if rule := m.RuleFor(asset.Category); !rule.Zakatable {
			continue
		}
		eligible = append(eligible, asset)
	}

	type decrypted struct {
		asset  *wealth.Asset
		value  decimal.Decimal
		err    error
		reason string
	}
	results := make([]decrypted, len(eligible))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(decryptParallelism)
	for i, asset := range eligible {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i].asset = asset
			plain, err := a.cipher.DecryptString(asset.EncryptedValue)
			if err != nil {
				results[i].err = err
				results[i].reason = "value could not be decrypted"
				return nil
			}
			value, err := decimal.NewFromString(plain)
			if err != nil {
				results[i].err = err
				results[i].reason = "decrypted value is not a valid amount"
				return nil
			}
			results[i].value = value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Only context cancellation propagates out of the group.
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "aggregation cancelled")
	}

	agg := &WealthAggregate{
		TotalWealth: decimal.Zero,
		ByCategory:  make(map[methodology.AssetCategory]decimal.Decimal),
		Complete:    true,
	}
	for _, res := range results {
		asset := res.asset
		if res.err != nil {
			a.logger.WarnContext(ctx, "asset skipped during aggregation",
				"asset_id", asset.ID,
				"error", res.err,
			)
			a.metrics.AssetsSkipped.Inc()
			agg.Skipped = append(agg.Skipped, SkippedAsset{AssetID: asset.ID, Reason: res.reason})
			agg.Complete = false
			continue
		}
		contribution := res.value.Mul(asset.CalculationModifier)
		agg.TotalWealth = agg.TotalWealth.Add(contribution)
		agg.ByCategory[asset.Category] = agg.ByCategory[asset.Category].Add(contribution)
		agg.AssetCount++
		a.metrics.AssetsAggregated.Inc()
	}
	return agg, nil
}

// AggregateLiabilities sums the user's deductible liabilities under the
// methodology's deduction policy.
func (a *Aggregator) AggregateLiabilities(ctx context.Context, userID id.UserID, m methodology.Methodology) (*LiabilityAggregate, error) {
	liabilities, err := a.liabilities.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list liabilities")
	}

	agg := &LiabilityAggregate{TotalLiabilities: decimal.Zero}
	for _, l := range liabilities {
		if !l.DeductibleUnder(m.DeductionPolicy) {
			continue
		}
		agg.TotalLiabilities = agg.TotalLiabilities.Add(l.Amount)
		agg.LiabilityCount++
	}
	return agg, nil
}

// NetZakatableWealth computes max(0, assets - liabilities). Liabilities never
// drive the base negative.
func (a *Aggregator) NetZakatableWealth(ctx context.Context, userID id.UserID, m methodology.Methodology) (*NetWealth, error) {
	wealthAgg, err := a.AggregateWealth(ctx, userID, m)
	if err != nil {
		return nil, err
	}
	liabilityAgg, err := a.AggregateLiabilities(ctx, userID, m)
	if err != nil {
		return nil, err
	}

	net := wealthAgg.TotalWealth.Sub(liabilityAgg.TotalLiabilities)
	if net.IsNegative() {
		net = decimal.Zero
	}
	return &NetWealth{
		NetWealth:        net,
		TotalWealth:      wealthAgg.TotalWealth,
		TotalLiabilities: liabilityAgg.TotalLiabilities,
		ByCategory:       wealthAgg.ByCategory,
		Skipped:          wealthAgg.Skipped,
		Complete:         wealthAgg.Complete,
	}, nil
}
