package hawl

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mizan/internal/methodology"
	id "mizan/pkg/domain"
)

func baseRecord(t *testing.T) *NisabYearRecord {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &NisabYearRecord{
		ID:                    id.NewRecordID(),
		UserID:                id.NewUserID(),
		Methodology:           methodology.Standard,
		Calendar:              CalendarLunar,
		HawlStartDate:         start,
		HawlCompletionDate:    start.AddDate(0, 0, 354),
		NisabBasis:            methodology.BasisDualMinimum,
		NisabThresholdAtStart: decimal.NewFromInt(5000),
		Status:                StatusDraft,
		IsPrimary:             true,
		CreatedAt:             start,
		UpdatedAt:             start,
	}
}

func TestCalendarDays(t *testing.T) {
	assert.Equal(t, 354, CalendarLunar.Days())
	assert.Equal(t, 365, CalendarSolar.Days())
}

func TestRecordValidate(t *testing.T) {
	t.Run("valid record", func(t *testing.T) {
		require.NoError(t, baseRecord(t).Validate())
	})

	t.Run("completion date must match the calendar duration", func(t *testing.T) {
		r := baseRecord(t)
		r.HawlCompletionDate = r.HawlStartDate.AddDate(0, 0, 365)
		assert.Error(t, r.Validate())
	})

	t.Run("solar calendar expects 365 days", func(t *testing.T) {
		r := baseRecord(t)
		r.Calendar = CalendarSolar
		assert.Error(t, r.Validate())
		r.HawlCompletionDate = r.HawlStartDate.AddDate(0, 0, 365)
		assert.NoError(t, r.Validate())
	})

	t.Run("completion without start", func(t *testing.T) {
		r := baseRecord(t)
		r.HawlStartDate = time.Time{}
		assert.Error(t, r.Validate())
	})

	t.Run("accumulating record has neither date", func(t *testing.T) {
		r := baseRecord(t)
		r.HawlStartDate = time.Time{}
		r.HawlCompletionDate = time.Time{}
		assert.NoError(t, r.Validate())
	})

	t.Run("negative snapshots rejected", func(t *testing.T) {
		r := baseRecord(t)
		r.ZakatAmount = decimal.NewFromInt(-1)
		assert.Error(t, r.Validate())
	})
}

func TestDeriveState(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("nil record is NONE", func(t *testing.T) {
		assert.Equal(t, StateNone, DeriveState(nil, start))
	})

	t.Run("no start date is ACCUMULATING", func(t *testing.T) {
		r := baseRecord(t)
		r.HawlStartDate = time.Time{}
		r.HawlCompletionDate = time.Time{}
		assert.Equal(t, StateAccumulating, DeriveState(r, start))
	})

	t.Run("clock running is IN_HAWL", func(t *testing.T) {
		r := baseRecord(t)
		assert.Equal(t, StateInHawl, DeriveState(r, start.AddDate(0, 0, 50)))
		assert.Equal(t, StateInHawl, DeriveState(r, start.AddDate(0, 0, 353)))
	})

	t.Run("completion day is COMPLETE", func(t *testing.T) {
		r := baseRecord(t)
		assert.Equal(t, StateComplete, DeriveState(r, start.AddDate(0, 0, 354)))
		assert.Equal(t, StateComplete, DeriveState(r, start.AddDate(0, 0, 400)))
	})

	t.Run("an instant before completion is still IN_HAWL", func(t *testing.T) {
		r := baseRecord(t)
		assert.Equal(t, StateInHawl, DeriveState(r, r.HawlCompletionDate.Add(-time.Second)))
	})
}

func TestEditable(t *testing.T) {
	r := baseRecord(t)
	assert.True(t, r.Editable())
	r.Status = StatusFinalized
	assert.False(t, r.Editable())
	r.Status = StatusUnlocked
	assert.True(t, r.Editable())
}
