package service

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mizan/internal/audit"
	"mizan/internal/crypto"
	"mizan/internal/hawl"
	hawlmetrics "mizan/internal/hawl/metrics"
	"mizan/internal/methodology"
	"mizan/internal/nisab"
	"mizan/internal/oracle"
	"mizan/internal/wealth"
	wealthmetrics "mizan/internal/wealth/metrics"
	wealthsvc "mizan/internal/wealth/service"
	id "mizan/pkg/domain"
	dErrors "mizan/pkg/domain-errors"
	"mizan/pkg/requestcontext"
)

var (
	testHawlMetrics   = hawlmetrics.New()
	testWealthMetrics = wealthmetrics.New()
)

// Gold at 57.16/g puts the dual-minimum nisab at 87.48 * 57.16 = 5000.3568.
var (
	goldPrice   = decimal.RequireFromString("57.16")
	silverPrice = decimal.RequireFromString("100")
	wantNisab   = decimal.RequireFromString("5000.3568")
)

type fixture struct {
	t       *testing.T
	records *hawl.InMemoryStore
	events  *audit.InMemoryStore
	assets  *wealth.InMemoryAssetStore
	oracle  *oracle.FixedOracle
	wealth  *wealthsvc.Service
	svc     *Service
	userID  id.UserID
	start   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	cipher, err := crypto.NewAEADCipher([]byte(strings.Repeat("h", 32)))
	require.NoError(t, err)

	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	fixed := &oracle.FixedOracle{Prices: oracle.MetalPrices{
		Gold:     goldPrice,
		Silver:   silverPrice,
		Currency: "USD",
		AsOf:     start,
	}}

	assets := wealth.NewInMemoryAssetStore()
	liabilities := wealth.NewInMemoryLiabilityStore()
	aggregator := wealthsvc.NewAggregator(assets, liabilities, cipher, testWealthMetrics, logger)
	wsvc := wealthsvc.NewService(assets, liabilities, cipher, logger)

	records := hawl.NewInMemoryStore()
	events := audit.NewInMemoryStore()
	recorder := audit.NewRecorder(events, cipher, nil, logger)
	resolver := nisab.NewResolver(fixed, 100*365*24*time.Hour, "USD", logger)

	svc := NewService(records, methodology.NewBuiltinRegistry(), resolver, aggregator,
		recorder, NewShardedTx(), testHawlMetrics, logger, Defaults{})
	wsvc.AddListener(svc)

	return &fixture{
		t:       t,
		records: records,
		events:  events,
		assets:  assets,
		oracle:  fixed,
		wealth:  wsvc,
		svc:     svc,
		userID:  id.NewUserID(),
		start:   start,
	}
}

// at pins the request clock and keeps the price quote fresh relative to it.
func (f *fixture) at(t time.Time) context.Context {
	f.oracle.Prices.AsOf = t
	return requestcontext.WithTime(context.Background(), t)
}

func (f *fixture) setCash(ctx context.Context, value string) {
	f.t.Helper()
	assets, err := f.wealth.ListAssets(ctx, f.userID)
	require.NoError(f.t, err)
	in := wealthsvc.AssetInput{
		Name:      "cash",
		Category:  methodology.CategoryCash,
		Value:     decimal.RequireFromString(value),
		Currency:  "USD",
		Zakatable: true,
	}
	if len(assets) == 0 {
		_, err = f.wealth.CreateAsset(ctx, f.userID, in)
	} else {
		_, err = f.wealth.UpdateAsset(ctx, f.userID, assets[0].ID, in)
	}
	require.NoError(f.t, err)
}

func (f *fixture) primary(ctx context.Context) *hawl.NisabYearRecord {
	f.t.Helper()
	record, err := f.records.FindPrimary(ctx, f.userID)
	require.NoError(f.t, err)
	return record
}

func (f *fixture) trailActions(ctx context.Context, recordID id.RecordID) []audit.Action {
	f.t.Helper()
	events, err := f.events.ListByRecord(ctx, f.userID, recordID)
	require.NoError(f.t, err)
	actions := make([]audit.Action, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	return actions
}

func TestNisabDetection(t *testing.T) {
	t.Run("below nisab keeps state at NONE", func(t *testing.T) {
		f := newFixture(t)
		ctx := f.at(f.start)

		f.setCash(ctx, "3000")

		record, state, err := f.svc.EvaluateNisab(ctx, f.userID)
		require.NoError(t, err)
		assert.Nil(t, record)
		assert.Equal(t, hawl.StateNone, state)
	})

	t.Run("crossing nisab opens a draft record and starts the clock", func(t *testing.T) {
		f := newFixture(t)
		ctx := f.at(f.start)

		f.setCash(ctx, "5500")

		record := f.primary(ctx)
		assert.Equal(t, hawl.StatusDraft, record.Status)
		assert.True(t, record.IsPrimary)
		assert.True(t, record.NisabThresholdAtStart.Equal(wantNisab), "got %s", record.NisabThresholdAtStart)
		assert.True(t, record.HawlStartDate.Equal(f.start))
		assert.True(t, record.HawlCompletionDate.Equal(f.start.AddDate(0, 0, 354)))
		assert.NotEmpty(t, record.HawlStartDateHijri)
		assert.NotEmpty(t, record.HawlCompletionDateHijri)
		assert.Equal(t,
			[]audit.Action{audit.ActionRecordCreated, audit.ActionNisabAchieved},
			f.trailActions(ctx, record.ID))
	})

	t.Run("lunar duration is exactly 354 days, solar 365", func(t *testing.T) {
		f := newFixture(t)
		ctx := f.at(f.start)
		f.setCash(ctx, "6000")
		record := f.primary(ctx)
		assert.Equal(t, 354*24*time.Hour, record.HawlCompletionDate.Sub(record.HawlStartDate))

		g := newFixture(t)
		gctx := g.at(g.start)
		created, err := g.svc.CreateRecord(gctx, g.userID, CreateInput{Calendar: hawl.CalendarSolar})
		require.NoError(t, err)
		g.setCash(gctx, "6000")
		record = g.primary(gctx)
		assert.Equal(t, created.ID, record.ID)
		assert.Equal(t, 365*24*time.Hour, record.HawlCompletionDate.Sub(record.HawlStartDate))
	})

	t.Run("price outage blocks detection instead of substituting", func(t *testing.T) {
		f := newFixture(t)
		ctx := f.at(f.start)
		f.oracle.Err = dErrors.New(dErrors.CodePriceUnavailable, "feed down")

		// The wealth write itself must not fail.
		f.setCash(ctx, "9000")

		_, _, err := f.svc.EvaluateNisab(ctx, f.userID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePriceUnavailable))

		_, err = f.records.FindPrimary(ctx, f.userID)
		assert.Error(t, err, "no record may be created against a substituted price")
	})
}

func TestHawlInterruption(t *testing.T) {
	f := newFixture(t)
	ctx := f.at(f.start)
	f.setCash(ctx, "5500")
	record := f.primary(ctx)

	t.Run("dipping below the frozen threshold restarts the clock", func(t *testing.T) {
		day90 := f.at(f.start.AddDate(0, 0, 90))
		f.setCash(day90, "4000")

		record = f.primary(day90)
		assert.False(t, record.HawlStarted())
		assert.Equal(t, hawl.StateAccumulating, hawl.DeriveState(record, f.start.AddDate(0, 0, 90)))
		assert.Contains(t, f.trailActions(day90, record.ID), audit.ActionHawlInterrupted)
	})

	t.Run("recovering above nisab starts a fresh clock on the same record", func(t *testing.T) {
		day120 := f.start.AddDate(0, 0, 120)
		ctx := f.at(day120)
		f.setCash(ctx, "7000")

		record = f.primary(ctx)
		assert.True(t, record.HawlStartDate.Equal(day120), "clock must restart, not resume")
		assert.True(t, record.HawlCompletionDate.Equal(day120.AddDate(0, 0, 354)))
		assert.Equal(t,
			[]audit.Action{
				audit.ActionRecordCreated, audit.ActionNisabAchieved,
				audit.ActionHawlInterrupted, audit.ActionNisabAchieved,
			},
			f.trailActions(ctx, record.ID))
	})
}

func TestHawlInterruption_IgnoresDegradedAggregation(t *testing.T) {
	f := newFixture(t)
	ctx := f.at(f.start)
	f.setCash(ctx, "5500")
	record := f.primary(ctx)

	// Corrupt the stored ciphertext so aggregation skips the asset and
	// reports Complete=false with an understated total.
	assets, err := f.wealth.ListAssets(ctx, f.userID)
	require.NoError(t, err)
	assets[0].EncryptedValue = "Z2FyYmFnZQ=="
	require.NoError(t, f.assets.Save(ctx, assets[0]))

	_, _, err = f.svc.EvaluateNisab(ctx, f.userID)
	require.NoError(t, err)
	after := f.primary(ctx)
	assert.True(t, after.HawlStarted(), "an understated total must not restart the clock")
	assert.Equal(t, record.ID, after.ID)
	assert.NotContains(t, f.trailActions(ctx, record.ID), audit.ActionHawlInterrupted)
}

func TestHawlInterruption_OnlyDraftClockResets(t *testing.T) {
	t.Run("a finalized record keeps its dates when wealth dips", func(t *testing.T) {
		f := newFixture(t)
		f.setCash(f.at(f.start), "5500")
		record := f.primary(f.at(f.start))

		day50 := f.at(f.start.AddDate(0, 0, 50))
		_, err := f.svc.Finalize(day50, f.userID, record.ID, FinalizeInput{
			AcknowledgePremature: true,
			OverrideNote:         "emigrating next month, settling early",
		})
		require.NoError(t, err)

		// The wealth write re-evaluates nisab; the locked record must absorb
		// the dip untouched.
		day60 := f.at(f.start.AddDate(0, 0, 60))
		f.setCash(day60, "1000")

		after := f.primary(day60)
		assert.Equal(t, hawl.StatusFinalized, after.Status)
		assert.True(t, after.HawlStartDate.Equal(f.start), "finalized hawl dates must not move")
		assert.True(t, after.HawlCompletionDate.Equal(f.start.AddDate(0, 0, 354)))
		assert.NotContains(t, f.trailActions(day60, record.ID), audit.ActionHawlInterrupted)
	})

	t.Run("an unlocked record keeps its dates when wealth dips", func(t *testing.T) {
		f := newFixture(t)
		f.setCash(f.at(f.start), "5500")
		record := f.primary(f.at(f.start))

		day50 := f.at(f.start.AddDate(0, 0, 50))
		_, err := f.svc.Finalize(day50, f.userID, record.ID, FinalizeInput{
			AcknowledgePremature: true,
			OverrideNote:         "settling before the move abroad",
		})
		require.NoError(t, err)
		_, err = f.svc.Unlock(day50, f.userID, record.ID, "missed a brokerage account")
		require.NoError(t, err)

		day60 := f.at(f.start.AddDate(0, 0, 60))
		f.setCash(day60, "1000")

		after := f.primary(day60)
		assert.Equal(t, hawl.StatusUnlocked, after.Status)
		assert.True(t, after.HawlStartDate.Equal(f.start), "hawl dates are immutable while unlocked")
		assert.True(t, after.HawlCompletionDate.Equal(f.start.AddDate(0, 0, 354)))
		assert.NotContains(t, f.trailActions(day60, record.ID), audit.ActionHawlInterrupted)
	})
}

func TestSupersession(t *testing.T) {
	f := newFixture(t)
	ctx := f.at(f.start)
	f.setCash(ctx, "5500")
	first := f.primary(ctx)

	day354 := f.at(f.start.AddDate(0, 0, 354))
	_, err := f.svc.Finalize(day354, f.userID, first.ID, FinalizeInput{})
	require.NoError(t, err)

	// Next wealth event after the finalized cycle completes opens cycle two.
	day360 := f.at(f.start.AddDate(0, 0, 360))
	f.setCash(day360, "6200")

	second := f.primary(day360)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, hawl.StatusDraft, second.Status)

	old, err := f.records.FindByID(day360, f.userID, first.ID)
	require.NoError(t, err)
	assert.True(t, old.Superseded())
	assert.False(t, old.IsPrimary)
	assert.Equal(t, hawl.StatusFinalized, old.Status, "history is retired, never rewritten")

	list, err := f.svc.List(day360, f.userID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCreateRecord(t *testing.T) {
	t.Run("explicit creation before nisab", func(t *testing.T) {
		f := newFixture(t)
		ctx := f.at(f.start)
		f.setCash(ctx, "1000")

		record, err := f.svc.CreateRecord(ctx, f.userID, CreateInput{})
		require.NoError(t, err)
		assert.Equal(t, hawl.StatusDraft, record.Status)
		assert.False(t, record.HawlStarted())
		assert.Equal(t, []audit.Action{audit.ActionRecordCreated}, f.trailActions(ctx, record.ID))
	})

	t.Run("duplicate creation conflicts", func(t *testing.T) {
		f := newFixture(t)
		ctx := f.at(f.start)
		_, err := f.svc.CreateRecord(ctx, f.userID, CreateInput{})
		require.NoError(t, err)
		_, err = f.svc.CreateRecord(ctx, f.userID, CreateInput{})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("unknown methodology is rejected", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateRecord(f.at(f.start), f.userID, CreateInput{Methodology: "zahiri"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestStatusOverview(t *testing.T) {
	f := newFixture(t)
	ctx := f.at(f.start)
	f.setCash(ctx, "5500")
	record := f.primary(ctx)

	day50 := requestcontext.WithTime(context.Background(), f.start.AddDate(0, 0, 50))
	o, err := f.svc.Status(day50, f.userID)
	require.NoError(t, err)
	assert.Equal(t, hawl.StateInHawl, o.State)
	assert.Equal(t, 304, o.DaysRemaining)
	assert.False(t, o.CanFinalize)
	assert.Equal(t, record.ID, o.Record.ID)

	day354 := requestcontext.WithTime(context.Background(), f.start.AddDate(0, 0, 354))
	o, err = f.svc.Status(day354, f.userID)
	require.NoError(t, err)
	assert.Equal(t, hawl.StateComplete, o.State)
	assert.Equal(t, 0, o.DaysRemaining)
	assert.True(t, o.CanFinalize)
}
