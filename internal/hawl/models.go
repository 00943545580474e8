// Package hawl holds the nisab year record, the derived holding-period state
// machine, and the stores backing them.
package hawl

import (
	"time"

	"github.com/shopspring/decimal"

	"mizan/internal/methodology"
	id "mizan/pkg/domain"
	dErrors "mizan/pkg/domain-errors"
)

// Calendar selects the hawl duration basis.
type Calendar string

const (
	CalendarLunar Calendar = "lunar"
	CalendarSolar Calendar = "solar"
)

// Days returns the hawl duration for the calendar: 354 days for a lunar year,
// 365 for a solar one.
func (c Calendar) Days() int {
	if c == CalendarSolar {
		return 365
	}
	return 354
}

// Valid reports whether the calendar is a known preference.
func (c Calendar) Valid() bool { return c == CalendarLunar || c == CalendarSolar }

// Status is the persisted finalization status. The hawl state (accumulating,
// in hawl, complete) is derived, never stored.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusFinalized Status = "FINALIZED"
	StatusUnlocked  Status = "UNLOCKED"
)

// NisabYearRecord tracks one hawl cycle for a user. Snapshot figures are
// captured by edit and finalization; between those the record's dates and
// threshold are authoritative and the figures are advisory.
type NisabYearRecord struct {
	ID          id.RecordID
	UserID      id.UserID
	Methodology methodology.ID
	Calendar    Calendar

	// HawlStartDate is zero while the record is accumulating (wealth has not
	// reached nisab, or the hawl was interrupted).
	HawlStartDate      time.Time
	HawlStartDateHijri string
	// HawlCompletionDate is always HawlStartDate plus the calendar duration;
	// zero whenever HawlStartDate is zero.
	HawlCompletionDate      time.Time
	HawlCompletionDateHijri string

	NisabBasis methodology.NisabBasis
	// NisabThresholdAtStart is frozen the moment nisab is achieved and never
	// recomputed while the hawl runs.
	NisabThresholdAtStart decimal.Decimal

	TotalWealth      decimal.Decimal
	TotalLiabilities decimal.Decimal
	ZakatableWealth  decimal.Decimal
	ZakatAmount      decimal.Decimal

	Status Status
	// IsPrimary marks the record tracking the user's current cycle. Advisory:
	// enforced by the service, not by a storage constraint.
	IsPrimary bool

	FinalizationNotes string

	CreatedAt    time.Time
	UpdatedAt    time.Time
	FinalizedAt  *time.Time
	UnlockedAt   *time.Time
	SupersededAt *time.Time

	// Version guards optimistic concurrency: stores reject a save whose
	// version does not match the stored row.
	Version int64
}

// Editable reports whether aggregation-derived fields may change.
func (r *NisabYearRecord) Editable() bool {
	return r.Status == StatusDraft || r.Status == StatusUnlocked
}

// HawlStarted reports whether the clock is running (or has run to completion).
func (r *NisabYearRecord) HawlStarted() bool { return !r.HawlStartDate.IsZero() }

// Superseded reports whether a newer cycle has replaced this record.
func (r *NisabYearRecord) Superseded() bool { return r.SupersededAt != nil }

// Validate enforces the record invariants.
func (r *NisabYearRecord) Validate() error {
	if r.UserID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "record must have an owner")
	}
	if !r.Calendar.Valid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown calendar preference %q", r.Calendar)
	}
	switch r.Status {
	case StatusDraft, StatusFinalized, StatusUnlocked:
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", r.Status)
	}
	if r.HawlStarted() {
		want := r.HawlStartDate.AddDate(0, 0, r.Calendar.Days())
		if !r.HawlCompletionDate.Equal(want) {
			return dErrors.New(dErrors.CodeInvalidInput, "hawl completion date does not match calendar duration")
		}
	} else if !r.HawlCompletionDate.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "completion date set without a start date")
	}
	if r.ZakatableWealth.IsNegative() || r.ZakatAmount.IsNegative() {
		return dErrors.New(dErrors.CodeInvalidInput, "snapshot figures must not be negative")
	}
	return nil
}

// State is the derived hawl state.
type State string

const (
	// StateNone means no record exists for the user.
	StateNone State = "NONE"
	// StateAccumulating means a record exists but wealth has not held at
	// nisab: the clock is not running.
	StateAccumulating State = "ACCUMULATING"
	// StateInHawl means nisab was achieved and the clock is running.
	StateInHawl State = "IN_HAWL"
	// StateComplete means the holding period has elapsed and the record is
	// eligible for finalization.
	StateComplete State = "COMPLETE"
)

// DeriveState computes the hawl state from the record's dates and the current
// time. It is recomputed on every read; nothing persists it.
func DeriveState(r *NisabYearRecord, now time.Time) State {
	if r == nil {
		return StateNone
	}
	if !r.HawlStarted() {
		return StateAccumulating
	}
	if !now.Before(r.HawlCompletionDate) {
		return StateComplete
	}
	return StateInHawl
}
