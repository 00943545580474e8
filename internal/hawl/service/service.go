// Package service implements nisab detection, the hawl clock, and the
// finalization controller over nisab year records.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"mizan/internal/audit"
	"mizan/internal/hawl"
	"mizan/internal/hawl/hijri"
	"mizan/internal/hawl/metrics"
	"mizan/internal/methodology"
	"mizan/internal/nisab"
	wealthsvc "mizan/internal/wealth/service"
	"mizan/internal/zakat"
	id "mizan/pkg/domain"
	dErrors "mizan/pkg/domain-errors"
	"mizan/pkg/platform/sentinel"
	"mizan/pkg/requestcontext"
)

var tracer = otel.Tracer("mizan/internal/hawl")

// Defaults apply when a record is opened automatically by nisab detection
// rather than explicitly by the user.
type Defaults struct {
	Methodology methodology.ID
	Calendar    hawl.Calendar
}

// Service owns every state-mutating operation on nisab year records. All
// transitions run inside the Tx keyed by user, so concurrent wealth writes
// and finalization attempts serialize per user.
type Service struct {
	records    hawl.Store
	registry   *methodology.Registry
	resolver   *nisab.Resolver
	aggregator *wealthsvc.Aggregator
	recorder   *audit.Recorder
	tx         Tx
	metrics    *metrics.Metrics
	logger     *slog.Logger
	defaults   Defaults
}

// NewService constructs the hawl service.
func NewService(
	records hawl.Store,
	registry *methodology.Registry,
	resolver *nisab.Resolver,
	aggregator *wealthsvc.Aggregator,
	recorder *audit.Recorder,
	tx Tx,
	m *metrics.Metrics,
	logger *slog.Logger,
	defaults Defaults,
) *Service {
	if defaults.Methodology == "" {
		defaults.Methodology = methodology.Standard
	}
	if defaults.Calendar == "" {
		defaults.Calendar = hawl.CalendarLunar
	}
	return &Service{
		records:    records,
		registry:   registry,
		resolver:   resolver,
		aggregator: aggregator,
		recorder:   recorder,
		tx:         tx,
		metrics:    m,
		logger:     logger,
		defaults:   defaults,
	}
}

// WealthChanged implements the wealth service's ChangeListener. Detection is
// pull-based: every wealth-affecting write re-evaluates nisab synchronously.
// Failures are logged, never propagated into the wealth write that triggered
// them.
func (s *Service) WealthChanged(ctx context.Context, userID id.UserID) {
	if _, _, err := s.EvaluateNisab(ctx, userID); err != nil {
		if dErrors.HasCode(err, dErrors.CodePriceUnavailable) {
			s.logger.WarnContext(ctx, "nisab evaluation skipped: price unavailable", "user_id", userID)
			return
		}
		s.logger.ErrorContext(ctx, "nisab evaluation failed", "user_id", userID, "error", err)
	}
}

// EvaluateNisab re-derives the user's hawl state and applies any transition
// it implies: starting the clock on nisab achievement, restarting it on
// interruption, or opening the next cycle after a finalized one completes.
func (s *Service) EvaluateNisab(ctx context.Context, userID id.UserID) (*hawl.NisabYearRecord, hawl.State, error) {
	ctx, span := tracer.Start(ctx, "hawl.EvaluateNisab")
	defer span.End()

	var (
		out   *hawl.NisabYearRecord
		state hawl.State
	)
	err := s.tx.RunInTx(ctx, userID.String(), func(ctx context.Context) error {
		var err error
		out, state, err = s.evaluate(ctx, userID)
		return err
	})
	if err != nil {
		return nil, hawl.StateNone, err
	}
	return out, state, nil
}

// evaluate runs inside the user's transaction.
func (s *Service) evaluate(ctx context.Context, userID id.UserID) (*hawl.NisabYearRecord, hawl.State, error) {
	record, err := s.findPrimary(ctx, userID)
	if err != nil {
		return nil, hawl.StateNone, err
	}
	now := requestcontext.Now(ctx)

	methodologyID := s.defaults.Methodology
	calendar := s.defaults.Calendar
	if record != nil {
		methodologyID = record.Methodology
		calendar = record.Calendar
	}
	m, err := s.registry.Get(methodologyID)
	if err != nil {
		return nil, hawl.StateNone, err
	}

	net, err := s.aggregator.NetZakatableWealth(ctx, userID, m)
	if err != nil {
		return nil, hawl.StateNone, err
	}

	state := hawl.DeriveState(record, now)
	switch state {
	case hawl.StateNone, hawl.StateAccumulating:
		record, state, err = s.maybeStartHawl(ctx, record, userID, m, calendar, net, now)
		if err != nil {
			return nil, hawl.StateNone, err
		}

	case hawl.StateInHawl:
		// Only a DRAFT clock can reset. Finalized figures are locked, and the
		// hawl dates stay immutable while a record is unlocked for edits.
		// A degraded aggregation understates wealth; never restart the clock
		// on a figure that might be wrong.
		if record.Status == hawl.StatusDraft && net.Complete && net.NetWealth.LessThan(record.NisabThresholdAtStart) {
			if err := s.interrupt(ctx, record, now); err != nil {
				return nil, hawl.StateNone, err
			}
			state = hawl.StateAccumulating
		}

	case hawl.StateComplete:
		// A finalized, completed cycle is retired as soon as the next one
		// can open. DRAFT/UNLOCKED records wait for finalization.
		if record.Status == hawl.StatusFinalized {
			next, nextState, err := s.maybeOpenNextCycle(ctx, record, userID, m, calendar, net, now)
			if err != nil {
				return nil, hawl.StateNone, err
			}
			if next != nil {
				record, state = next, nextState
			}
		}
	}
	return record, state, nil
}

func (s *Service) maybeStartHawl(
	ctx context.Context,
	record *hawl.NisabYearRecord,
	userID id.UserID,
	m methodology.Methodology,
	calendar hawl.Calendar,
	net *wealthsvc.NetWealth,
	now time.Time,
) (*hawl.NisabYearRecord, hawl.State, error) {
	thresholds, err := s.resolver.Resolve(ctx, m.NisabBasis, now)
	if err != nil {
		// Detection must fail closed rather than start a clock against a
		// substituted price.
		return nil, hawl.StateNone, err
	}
	if net.NetWealth.LessThan(thresholds.EffectiveNisab) {
		return record, hawl.DeriveState(record, now), nil
	}

	created := false
	if record == nil {
		record = &hawl.NisabYearRecord{
			ID:          id.NewRecordID(),
			UserID:      userID,
			Methodology: m.ID,
			Calendar:    calendar,
			NisabBasis:  m.NisabBasis,
			Status:      hawl.StatusDraft,
			IsPrimary:   true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		created = true
	}

	s.startClock(record, m, thresholds, net, now)
	if err := record.Validate(); err != nil {
		return nil, hawl.StateNone, err
	}
	if err := s.save(ctx, record); err != nil {
		return nil, hawl.StateNone, err
	}

	if created {
		if err := s.recorder.Record(ctx, audit.Entry{
			RecordID: record.ID, UserID: userID, Action: audit.ActionRecordCreated,
		}); err != nil {
			return nil, hawl.StateNone, err
		}
		s.metrics.RecordsCreated.Inc()
	}
	if err := s.recorder.Record(ctx, audit.Entry{
		RecordID: record.ID, UserID: userID, Action: audit.ActionNisabAchieved,
	}); err != nil {
		return nil, hawl.StateNone, err
	}
	s.metrics.HawlsStarted.Inc()
	s.logger.InfoContext(ctx, "hawl started",
		"user_id", userID,
		"record_id", record.ID,
		"threshold", record.NisabThresholdAtStart,
	)
	return record, hawl.StateInHawl, nil
}

// startClock freezes the threshold and stamps both calendars.
func (s *Service) startClock(record *hawl.NisabYearRecord, m methodology.Methodology, thresholds nisab.Thresholds, net *wealthsvc.NetWealth, now time.Time) {
	completion := now.AddDate(0, 0, record.Calendar.Days())

	record.HawlStartDate = now
	record.HawlStartDateHijri = hijri.FromTime(now).String()
	record.HawlCompletionDate = completion
	record.HawlCompletionDateHijri = hijri.FromTime(completion).String()
	record.NisabBasis = m.NisabBasis
	record.NisabThresholdAtStart = thresholds.EffectiveNisab
	record.TotalWealth = net.TotalWealth
	record.TotalLiabilities = net.TotalLiabilities
	record.ZakatableWealth = net.NetWealth
	record.ZakatAmount = zakat.Due(m, net)
	record.UpdatedAt = now
}

func (s *Service) interrupt(ctx context.Context, record *hawl.NisabYearRecord, now time.Time) error {
	record.HawlStartDate = time.Time{}
	record.HawlStartDateHijri = ""
	record.HawlCompletionDate = time.Time{}
	record.HawlCompletionDateHijri = ""
	record.UpdatedAt = now

	if err := s.save(ctx, record); err != nil {
		return err
	}
	if err := s.recorder.Record(ctx, audit.Entry{
		RecordID: record.ID, UserID: record.UserID, Action: audit.ActionHawlInterrupted,
	}); err != nil {
		return err
	}
	s.metrics.Interruptions.Inc()
	s.logger.InfoContext(ctx, "hawl interrupted", "user_id", record.UserID, "record_id", record.ID)
	return nil
}

func (s *Service) maybeOpenNextCycle(
	ctx context.Context,
	previous *hawl.NisabYearRecord,
	userID id.UserID,
	m methodology.Methodology,
	calendar hawl.Calendar,
	net *wealthsvc.NetWealth,
	now time.Time,
) (*hawl.NisabYearRecord, hawl.State, error) {
	thresholds, err := s.resolver.Resolve(ctx, m.NisabBasis, now)
	if err != nil {
		return nil, hawl.StateNone, err
	}
	if net.NetWealth.LessThan(thresholds.EffectiveNisab) {
		return nil, hawl.StateNone, nil
	}

	previous.IsPrimary = false
	previous.SupersededAt = &now
	previous.UpdatedAt = now
	if err := s.save(ctx, previous); err != nil {
		return nil, hawl.StateNone, err
	}

	return s.maybeStartHawl(ctx, nil, userID, m, calendar, net, now)
}

// CreateInput carries explicit record creation options.
type CreateInput struct {
	Methodology methodology.ID
	Calendar    hawl.Calendar
}

// CreateRecord opens a record explicitly before nisab is reached. The record
// starts accumulating; the clock starts on the first evaluation that finds
// wealth at or above nisab.
func (s *Service) CreateRecord(ctx context.Context, userID id.UserID, in CreateInput) (*hawl.NisabYearRecord, error) {
	if in.Methodology == "" {
		in.Methodology = s.defaults.Methodology
	}
	if in.Calendar == "" {
		in.Calendar = s.defaults.Calendar
	}
	m, err := s.registry.Get(in.Methodology)
	if err != nil {
		return nil, err
	}
	if !in.Calendar.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown calendar preference %q", in.Calendar)
	}

	var record *hawl.NisabYearRecord
	err = s.tx.RunInTx(ctx, userID.String(), func(ctx context.Context) error {
		existing, err := s.findPrimary(ctx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return dErrors.New(dErrors.CodeConflict, "an active record already exists for this user")
		}

		now := requestcontext.Now(ctx)
		record = &hawl.NisabYearRecord{
			ID:          id.NewRecordID(),
			UserID:      userID,
			Methodology: m.ID,
			Calendar:    in.Calendar,
			NisabBasis:  m.NisabBasis,
			Status:      hawl.StatusDraft,
			IsPrimary:   true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := record.Validate(); err != nil {
			return err
		}
		if err := s.save(ctx, record); err != nil {
			return err
		}
		if err := s.recorder.Record(ctx, audit.Entry{
			RecordID: record.ID, UserID: userID, Action: audit.ActionRecordCreated,
		}); err != nil {
			return err
		}
		s.metrics.RecordsCreated.Inc()
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The user may already be above nisab; evaluate immediately so the clock
	// does not wait for the next wealth write. Detection failures here are
	// non-fatal: the record exists either way.
	if evaluated, _, err := s.EvaluateNisab(ctx, userID); err == nil && evaluated != nil {
		record = evaluated
	}
	return record, nil
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, userID id.UserID, recordID id.RecordID) (*hawl.NisabYearRecord, error) {
	record, err := s.records.FindByID(ctx, userID, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find record")
	}
	return record, nil
}

// List returns the user's records, newest first, including superseded
// history.
func (s *Service) List(ctx context.Context, userID id.UserID) ([]*hawl.NisabYearRecord, error) {
	records, err := s.records.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list records")
	}
	return records, nil
}

// Overview is the hawl portion of the live wealth view.
type Overview struct {
	Record        *hawl.NisabYearRecord
	State         hawl.State
	DaysRemaining int
	CanFinalize   bool
}

// Status derives the user's current hawl overview without mutating anything.
func (s *Service) Status(ctx context.Context, userID id.UserID) (*Overview, error) {
	record, err := s.findPrimary(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	state := hawl.DeriveState(record, now)

	o := &Overview{Record: record, State: state}
	if state == hawl.StateInHawl {
		remaining := record.HawlCompletionDate.Sub(now)
		o.DaysRemaining = int((remaining + 24*time.Hour - time.Nanosecond) / (24 * time.Hour))
	}
	o.CanFinalize = record != nil && state == hawl.StateComplete &&
		(record.Status == hawl.StatusDraft || record.Status == hawl.StatusUnlocked)
	return o, nil
}

func (s *Service) findPrimary(ctx context.Context, userID id.UserID) (*hawl.NisabYearRecord, error) {
	record, err := s.records.FindPrimary(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find primary record")
	}
	return record, nil
}

func (s *Service) save(ctx context.Context, record *hawl.NisabYearRecord) error {
	if err := s.records.Save(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "record was modified concurrently")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "save record")
	}
	return nil
}
