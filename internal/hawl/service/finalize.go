package service

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"mizan/internal/audit"
	"mizan/internal/hawl"
	"mizan/internal/methodology"
	"mizan/internal/zakat"
	id "mizan/pkg/domain"
	dErrors "mizan/pkg/domain-errors"
	"mizan/pkg/requestcontext"
)

// minUnlockReasonLen is the minimum plaintext length for an unlock reason.
const minUnlockReasonLen = 10

// PrematureWarning is carried on successful finalizations that happened
// before the hawl completed.
const PrematureWarning = "record was finalized before the hawl completed; the obligation may not yet be due"

// FinalizeInput carries the finalization request.
type FinalizeInput struct {
	Notes string
	// AcknowledgePremature permits finalizing before the hawl completes.
	AcknowledgePremature bool
	// OverrideNote is mandatory for premature finalization; it is encrypted
	// into the audit event and never logged.
	OverrideNote string
}

// FinalizeResult is the outcome of a successful finalization.
type FinalizeResult struct {
	Record *hawl.NisabYearRecord
	// Warning is non-empty for acknowledged premature finalizations.
	Warning string
}

// Finalize locks the record's figures as the basis for payment. Allowed from
// DRAFT or UNLOCKED; a finalization following an unlock appends
// finalized_after_unlock instead of finalized. Invalid attempts fail before
// anything is written: no status change, no audit event.
func (s *Service) Finalize(ctx context.Context, userID id.UserID, recordID id.RecordID, in FinalizeInput) (*FinalizeResult, error) {
	ctx, span := tracer.Start(ctx, "hawl.Finalize")
	defer span.End()

	var result *FinalizeResult
	err := s.tx.RunInTx(ctx, userID.String(), func(ctx context.Context) error {
		record, err := s.Get(ctx, userID, recordID)
		if err != nil {
			return err
		}
		if record.Status == hawl.StatusFinalized {
			return dErrors.New(dErrors.CodeInvalidState, "record is already finalized")
		}
		if !record.HawlStarted() {
			return dErrors.New(dErrors.CodeInvalidState, "hawl has not started for this record")
		}

		now := requestcontext.Now(ctx)
		premature := hawl.DeriveState(record, now) != hawl.StateComplete
		if premature {
			if !in.AcknowledgePremature {
				return dErrors.New(dErrors.CodeInvalidState, "hawl is not complete: premature finalization requires acknowledgement")
			}
			if strings.TrimSpace(in.OverrideNote) == "" {
				return dErrors.New(dErrors.CodeInvalidInput, "premature finalization requires an override note")
			}
		}

		m, err := s.registry.Get(record.Methodology)
		if err != nil {
			return err
		}
		net, err := s.aggregator.NetZakatableWealth(ctx, userID, m)
		if err != nil {
			return err
		}
		if !net.Complete {
			// A possibly-understated figure must never be locked in.
			return dErrors.New(dErrors.CodePartialAggregation, "aggregation skipped assets; finalization refused on a degraded total")
		}

		action := audit.ActionFinalized
		if record.UnlockedAt != nil {
			action = audit.ActionFinalizedAfterUnlock
		}
		// The record's stored figures are the last locked (or last evaluated)
		// snapshot; the audit event captures what this finalization moved.
		before := *record

		record.TotalWealth = net.TotalWealth
		record.TotalLiabilities = net.TotalLiabilities
		record.ZakatableWealth = net.NetWealth
		record.ZakatAmount = zakat.Due(m, net)
		record.Status = hawl.StatusFinalized
		record.FinalizedAt = &now
		record.FinalizationNotes = in.Notes
		record.UpdatedAt = now

		if err := s.save(ctx, record); err != nil {
			return err
		}

		entry := audit.Entry{
			RecordID: record.ID, UserID: userID, Action: action,
			Changes: figureChanges(&before, record),
		}
		if premature {
			entry.Note = in.OverrideNote
		}
		if err := s.recorder.Record(ctx, entry); err != nil {
			return err
		}

		s.metrics.Finalizations.WithLabelValues(strconv.FormatBool(premature)).Inc()
		s.logger.InfoContext(ctx, "record finalized",
			"user_id", userID,
			"record_id", record.ID,
			"premature", premature,
			"zakat_amount", record.ZakatAmount,
		)

		result = &FinalizeResult{Record: record}
		if premature {
			result.Warning = PrematureWarning
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// figureChanges diffs the snapshot figures a finalization rewrote. Unchanged
// figures are omitted; nil means nothing moved.
func figureChanges(before, after *hawl.NisabYearRecord) map[string]audit.FieldChange {
	changes := make(map[string]audit.FieldChange)
	diff := func(field string, was, now decimal.Decimal) {
		if !was.Equal(now) {
			changes[field] = audit.FieldChange{Before: was.String(), After: now.String()}
		}
	}
	diff("totalWealth", before.TotalWealth, after.TotalWealth)
	diff("totalLiabilities", before.TotalLiabilities, after.TotalLiabilities)
	diff("zakatableWealth", before.ZakatableWealth, after.ZakatableWealth)
	diff("zakatAmount", before.ZakatAmount, after.ZakatAmount)
	if len(changes) == 0 {
		return nil
	}
	return changes
}

// Unlock reopens a finalized record for edits. The reason is mandatory,
// encrypted at rest, and never logged. Hawl dates stay immutable while
// unlocked.
func (s *Service) Unlock(ctx context.Context, userID id.UserID, recordID id.RecordID, reason string) (*hawl.NisabYearRecord, error) {
	if utf8.RuneCountInString(strings.TrimSpace(reason)) < minUnlockReasonLen {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unlock reason must be at least %d characters", minUnlockReasonLen)
	}

	var record *hawl.NisabYearRecord
	err := s.tx.RunInTx(ctx, userID.String(), func(ctx context.Context) error {
		var err error
		record, err = s.Get(ctx, userID, recordID)
		if err != nil {
			return err
		}
		if record.Status != hawl.StatusFinalized {
			return dErrors.New(dErrors.CodeInvalidState, "only a finalized record can be unlocked")
		}

		now := requestcontext.Now(ctx)
		record.Status = hawl.StatusUnlocked
		record.UnlockedAt = &now
		record.UpdatedAt = now

		if err := s.save(ctx, record); err != nil {
			return err
		}
		if err := s.recorder.Record(ctx, audit.Entry{
			RecordID: record.ID, UserID: userID, Action: audit.ActionUnlocked, Note: reason,
		}); err != nil {
			return err
		}
		s.metrics.Unlocks.Inc()
		s.logger.InfoContext(ctx, "record unlocked", "user_id", userID, "record_id", record.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// EditInput carries the editable fields. Aggregation-derived figures are
// always recomputed; they are not client-supplied.
type EditInput struct {
	// Methodology may change only while the clock has not started: the
	// frozen threshold belongs to the basis it was resolved under.
	Methodology *string
	Notes       *string
}

// Edit refreshes the record's figures from a fresh aggregation run. Allowed
// while DRAFT or UNLOCKED only.
func (s *Service) Edit(ctx context.Context, userID id.UserID, recordID id.RecordID, in EditInput) (*hawl.NisabYearRecord, error) {
	var record *hawl.NisabYearRecord
	err := s.tx.RunInTx(ctx, userID.String(), func(ctx context.Context) error {
		var err error
		record, err = s.Get(ctx, userID, recordID)
		if err != nil {
			return err
		}
		if !record.Editable() {
			return dErrors.New(dErrors.CodeInvalidState, "a finalized record cannot be edited; unlock it first")
		}

		if in.Methodology != nil {
			if record.HawlStarted() {
				return dErrors.New(dErrors.CodeInvalidState, "methodology cannot change once the hawl clock is running")
			}
			m, err := s.registry.Get(methodology.ID(*in.Methodology))
			if err != nil {
				return err
			}
			record.Methodology = m.ID
			record.NisabBasis = m.NisabBasis
		}
		if in.Notes != nil {
			record.FinalizationNotes = *in.Notes
		}

		m, err := s.registry.Get(record.Methodology)
		if err != nil {
			return err
		}
		net, err := s.aggregator.NetZakatableWealth(ctx, userID, m)
		if err != nil {
			return err
		}

		record.TotalWealth = net.TotalWealth
		record.TotalLiabilities = net.TotalLiabilities
		record.ZakatableWealth = net.NetWealth
		record.ZakatAmount = zakat.Due(m, net)
		record.UpdatedAt = requestcontext.Now(ctx)

		return s.save(ctx, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Trail returns the record's audit trail after verifying ownership.
func (s *Service) Trail(ctx context.Context, userID id.UserID, recordID id.RecordID, filter audit.Filter) ([]audit.TrailEvent, error) {
	if _, err := s.Get(ctx, userID, recordID); err != nil {
		return nil, err
	}
	return s.recorder.Trail(ctx, userID, recordID, filter)
}
