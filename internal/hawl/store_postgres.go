package hawl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mizan/internal/methodology"
	id "mizan/pkg/domain"
	"mizan/pkg/platform/sentinel"
	txcontext "mizan/pkg/platform/tx"
)

// PostgresStore persists nisab year records in the nisab_year_records table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed record store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type queryExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) queryExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const recordColumns = `
	id, user_id, methodology, calendar,
	hawl_start_date, hawl_start_date_hijri,
	hawl_completion_date, hawl_completion_date_hijri,
	nisab_basis, nisab_threshold_at_start,
	total_wealth, total_liabilities, zakatable_wealth, zakat_amount,
	status, is_primary, finalization_notes,
	created_at, updated_at, finalized_at, unlocked_at, superseded_at, version
`

func (s *PostgresStore) Save(ctx context.Context, record *NisabYearRecord) error {
	q := s.execer(ctx)

	var (
		startDate, completionDate sql.NullTime
	)
	if record.HawlStarted() {
		startDate = sql.NullTime{Time: record.HawlStartDate, Valid: true}
		completionDate = sql.NullTime{Time: record.HawlCompletionDate, Valid: true}
	}

	if record.Version == 0 {
		_, err := q.ExecContext(ctx, `
			INSERT INTO nisab_year_records (`+recordColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,1)
		`,
			uuid.UUID(record.ID), uuid.UUID(record.UserID), string(record.Methodology), string(record.Calendar),
			startDate, record.HawlStartDateHijri, completionDate, record.HawlCompletionDateHijri,
			string(record.NisabBasis), record.NisabThresholdAtStart.String(),
			record.TotalWealth.String(), record.TotalLiabilities.String(),
			record.ZakatableWealth.String(), record.ZakatAmount.String(),
			string(record.Status), record.IsPrimary, record.FinalizationNotes,
			record.CreatedAt, record.UpdatedAt, record.FinalizedAt, record.UnlockedAt, record.SupersededAt,
		)
		if err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		record.Version = 1
		return nil
	}

	res, err := q.ExecContext(ctx, `
		UPDATE nisab_year_records SET
			methodology = $3, calendar = $4,
			hawl_start_date = $5, hawl_start_date_hijri = $6,
			hawl_completion_date = $7, hawl_completion_date_hijri = $8,
			nisab_basis = $9, nisab_threshold_at_start = $10,
			total_wealth = $11, total_liabilities = $12,
			zakatable_wealth = $13, zakat_amount = $14,
			status = $15, is_primary = $16, finalization_notes = $17,
			updated_at = $18, finalized_at = $19, unlocked_at = $20, superseded_at = $21,
			version = version + 1
		WHERE id = $1 AND user_id = $2 AND version = $22
	`,
		uuid.UUID(record.ID), uuid.UUID(record.UserID), string(record.Methodology), string(record.Calendar),
		startDate, record.HawlStartDateHijri, completionDate, record.HawlCompletionDateHijri,
		string(record.NisabBasis), record.NisabThresholdAtStart.String(),
		record.TotalWealth.String(), record.TotalLiabilities.String(),
		record.ZakatableWealth.String(), record.ZakatAmount.String(),
		string(record.Status), record.IsPrimary, record.FinalizationNotes,
		record.UpdatedAt, record.FinalizedAt, record.UnlockedAt, record.SupersededAt,
		record.Version,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	record.Version++
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID, recordID id.RecordID) (*NisabYearRecord, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM nisab_year_records WHERE id = $1 AND user_id = $2`,
		uuid.UUID(recordID), uuid.UUID(userID))
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) FindPrimary(ctx context.Context, userID id.UserID) (*NisabYearRecord, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM nisab_year_records
		WHERE user_id = $1 AND is_primary AND superseded_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, uuid.UUID(userID))
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find primary record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*NisabYearRecord, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+recordColumns+` FROM nisab_year_records WHERE user_id = $1 ORDER BY created_at DESC`,
		uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []*NisabYearRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*NisabYearRecord, error) {
	var (
		r                         NisabYearRecord
		recordID, userID          uuid.UUID
		methodologyID, calendar   string
		startDate, completionDate sql.NullTime
		basis, status             string
		threshold                 string
		wealth, liabilities       string
		zakatable, amount         string
		finalizedAt, unlockedAt   sql.NullTime
		supersededAt              sql.NullTime
	)
	err := row.Scan(
		&recordID, &userID, &methodologyID, &calendar,
		&startDate, &r.HawlStartDateHijri, &completionDate, &r.HawlCompletionDateHijri,
		&basis, &threshold,
		&wealth, &liabilities, &zakatable, &amount,
		&status, &r.IsPrimary, &r.FinalizationNotes,
		&r.CreatedAt, &r.UpdatedAt, &finalizedAt, &unlockedAt, &supersededAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}

	r.ID = id.RecordID(recordID)
	r.UserID = id.UserID(userID)
	r.Methodology = methodology.ID(methodologyID)
	r.Calendar = Calendar(calendar)
	r.NisabBasis = methodology.NisabBasis(basis)
	r.Status = Status(status)
	if startDate.Valid {
		r.HawlStartDate = startDate.Time
	}
	if completionDate.Valid {
		r.HawlCompletionDate = completionDate.Time
	}
	if finalizedAt.Valid {
		t := finalizedAt.Time
		r.FinalizedAt = &t
	}
	if unlockedAt.Valid {
		t := unlockedAt.Time
		r.UnlockedAt = &t
	}
	if supersededAt.Valid {
		t := supersededAt.Time
		r.SupersededAt = &t
	}

	for _, field := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&r.NisabThresholdAtStart, threshold},
		{&r.TotalWealth, wealth},
		{&r.TotalLiabilities, liabilities},
		{&r.ZakatableWealth, zakatable},
		{&r.ZakatAmount, amount},
	} {
		d, err := decimal.NewFromString(field.src)
		if err != nil {
			return nil, fmt.Errorf("parse decimal %q: %w", field.src, err)
		}
		*field.dst = d
	}
	return &r, nil
}
