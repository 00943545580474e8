package zakat

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mizan/internal/crypto"
	"mizan/internal/methodology"
	"mizan/internal/nisab"
	"mizan/internal/oracle"
	"mizan/internal/wealth"
	wealthmetrics "mizan/internal/wealth/metrics"
	"mizan/internal/wealth/service"
	"mizan/internal/zakat/metrics"
	id "mizan/pkg/domain"
	dErrors "mizan/pkg/domain-errors"
)

var (
	testWealthMetrics = wealthmetrics.New()
	testZakatMetrics  = metrics.New()
)

type engineFixture struct {
	svc    *service.Service
	oracle *oracle.FixedOracle
	engine *Engine
	userID id.UserID
	now    time.Time
}

// newEngineFixture wires an engine over in-memory stores with gold at 100/g
// and silver at 1.30/g, putting the dual-minimum nisab at silver: 612.36 *
// 1.30 = 796.068.
func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	cipher, err := crypto.NewAEADCipher([]byte(strings.Repeat("z", 32)))
	require.NoError(t, err)

	assets := wealth.NewInMemoryAssetStore()
	liabilities := wealth.NewInMemoryLiabilityStore()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	fixed := &oracle.FixedOracle{Prices: oracle.MetalPrices{
		Gold:     decimal.NewFromInt(100),
		Silver:   decimal.NewFromFloat(1.30),
		Currency: "USD",
		AsOf:     now,
	}}
	resolver := nisab.NewResolver(fixed, time.Hour, "USD", logger)
	aggregator := service.NewAggregator(assets, liabilities, cipher, testWealthMetrics, logger)

	return &engineFixture{
		svc:    service.NewService(assets, liabilities, cipher, logger),
		oracle: fixed,
		engine: NewEngine(methodology.NewBuiltinRegistry(), resolver, aggregator, testZakatMetrics, logger),
		userID: id.NewUserID(),
		now:    now,
	}
}

func (f *engineFixture) addCash(t *testing.T, value string) {
	t.Helper()
	_, err := f.svc.CreateAsset(context.Background(), f.userID, service.AssetInput{
		Name:      "cash",
		Category:  methodology.CategoryCash,
		Value:     mustDec(t, value),
		Currency:  "USD",
		Zakatable: true,
	})
	require.NoError(t, err)
}

func (f *engineFixture) addLiability(t *testing.T, amount string) {
	t.Helper()
	_, err := f.svc.CreateLiability(context.Background(), f.userID, service.LiabilityInput{
		Name:               "debt",
		Type:               wealth.LiabilityCreditCard,
		Amount:             mustDec(t, amount),
		Deductible:         true,
		DueWithinYear:      true,
		ImmediatelyPayable: true,
	})
	require.NoError(t, err)
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestEngine_Calculate(t *testing.T) {
	t.Run("above nisab owes 2.5 percent of net wealth", func(t *testing.T) {
		f := newEngineFixture(t)
		f.addCash(t, "5500")
		f.addLiability(t, "500")

		calc, err := f.engine.Calculate(context.Background(), f.userID, methodology.Standard, f.now)
		require.NoError(t, err)

		assert.True(t, calc.AboveNisab)
		assert.True(t, calc.NetWealth.Equal(mustDec(t, "5000")))
		assert.True(t, calc.ZakatDue.Equal(mustDec(t, "125")), "got %s", calc.ZakatDue)
		assert.True(t, calc.Complete)
	})

	t.Run("below nisab owes nothing", func(t *testing.T) {
		f := newEngineFixture(t)
		f.addCash(t, "700")

		calc, err := f.engine.Calculate(context.Background(), f.userID, methodology.Standard, f.now)
		require.NoError(t, err)

		assert.False(t, calc.AboveNisab)
		assert.True(t, calc.ZakatDue.IsZero())
		assert.Empty(t, calc.Breakdown)
	})

	t.Run("exactly at nisab owes zakat", func(t *testing.T) {
		f := newEngineFixture(t)
		f.addCash(t, "796.068")

		calc, err := f.engine.Calculate(context.Background(), f.userID, methodology.Standard, f.now)
		require.NoError(t, err)
		assert.True(t, calc.AboveNisab, "meeting the threshold exactly counts")
	})

	t.Run("zero wealth is below nisab", func(t *testing.T) {
		f := newEngineFixture(t)

		calc, err := f.engine.Calculate(context.Background(), f.userID, methodology.Standard, f.now)
		require.NoError(t, err)
		assert.False(t, calc.AboveNisab)
		assert.True(t, calc.ZakatDue.IsZero())
	})

	t.Run("hanafi anchors nisab on silver", func(t *testing.T) {
		f := newEngineFixture(t)
		f.addCash(t, "1000")

		calc, err := f.engine.Calculate(context.Background(), f.userID, methodology.Hanafi, f.now)
		require.NoError(t, err)
		assert.Equal(t, methodology.BasisSilver, calc.Thresholds.Basis)
		assert.True(t, calc.Thresholds.EffectiveNisab.Equal(mustDec(t, "796.068")))
		assert.True(t, calc.AboveNisab)
	})

	t.Run("unknown methodology", func(t *testing.T) {
		f := newEngineFixture(t)
		_, err := f.engine.Calculate(context.Background(), f.userID, "zahiri", f.now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("breakdown allocates liabilities proportionally", func(t *testing.T) {
		f := newEngineFixture(t)
		f.addCash(t, "8000")
		_, err := f.svc.CreateAsset(context.Background(), f.userID, service.AssetInput{
			Name:      "bullion",
			Category:  methodology.CategoryGold,
			Value:     mustDec(t, "2000"),
			Currency:  "USD",
			Zakatable: true,
		})
		require.NoError(t, err)
		f.addLiability(t, "1000")

		calc, err := f.engine.Calculate(context.Background(), f.userID, methodology.Standard, f.now)
		require.NoError(t, err)
		require.Len(t, calc.Breakdown, 2)

		// Net is 9000 of a 10000 gross; cash carries 80 percent of it.
		var cashRow CategoryDue
		for _, row := range calc.Breakdown {
			if row.Category == methodology.CategoryCash {
				cashRow = row
			}
		}
		assert.True(t, cashRow.Net.Equal(mustDec(t, "7200")), "got %s", cashRow.Net)
		assert.True(t, calc.ZakatDue.Equal(mustDec(t, "225")), "got %s", calc.ZakatDue)
	})

	t.Run("price outage fails closed when nothing is retained", func(t *testing.T) {
		f := newEngineFixture(t)
		f.addCash(t, "1000")
		f.oracle.Err = dErrors.New(dErrors.CodePriceUnavailable, "feed down")
		f.oracle.Prices = oracle.MetalPrices{}

		_, err := f.engine.Calculate(context.Background(), f.userID, methodology.Standard, f.now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePriceUnavailable))
	})

	t.Run("price outage degrades to the retained valuation", func(t *testing.T) {
		f := newEngineFixture(t)
		f.addCash(t, "1000")

		// Prime the resolver, then take the feed down.
		_, err := f.engine.Calculate(context.Background(), f.userID, methodology.Standard, f.now)
		require.NoError(t, err)
		f.oracle.Err = dErrors.New(dErrors.CodePriceUnavailable, "feed down")

		calc, err := f.engine.Calculate(context.Background(), f.userID, methodology.Standard, f.now)
		require.NoError(t, err)
		assert.True(t, calc.Thresholds.Stale)
		assert.True(t, calc.AboveNisab)
	})
}
