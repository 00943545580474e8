package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "mizan/pkg/domain"
	txcontext "mizan/pkg/platform/tx"
)

// PostgresStore persists audit events in the audit_events table. Sequence
// numbers come from a per-record MAX+1 computed inside the caller's
// transaction, so concurrent appends to the same record serialize on the
// record lock held by the finalization path.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed audit store.
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

func (s *PostgresStore) Append(ctx context.Context, event *Event) error {
	q := s.execer(ctx)

	row := q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM audit_events WHERE record_id = $1`,
		uuid.UUID(event.RecordID),
	)
	if err := row.Scan(&event.Sequence); err != nil {
		return fmt.Errorf("next audit sequence: %w", err)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, record_id, user_id, sequence, action, timestamp,
			device_name, request_id, encrypted_note, payload
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		uuid.UUID(event.ID), uuid.UUID(event.RecordID), uuid.UUID(event.UserID),
		event.Sequence, string(event.Action), event.Timestamp,
		event.DeviceName, event.RequestID, event.EncryptedNote, event.Payload,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRecord(ctx context.Context, userID id.UserID, recordID id.RecordID) ([]Event, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, record_id, user_id, sequence, action, timestamp,
		       device_name, request_id, encrypted_note, payload
		FROM audit_events
		WHERE record_id = $1 AND user_id = $2
		ORDER BY sequence
	`, uuid.UUID(recordID), uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e                  Event
			eventID, recID, uid uuid.UUID
			action             string
		)
		err := rows.Scan(&eventID, &recID, &uid, &e.Sequence, &action,
			&e.Timestamp, &e.DeviceName, &e.RequestID, &e.EncryptedNote, &e.Payload)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.ID = id.EventID(eventID)
		e.RecordID = id.RecordID(recID)
		e.UserID = id.UserID(uid)
		e.Action = Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountByRecord(ctx context.Context, userID id.UserID, recordID id.RecordID) (int64, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_events WHERE record_id = $1 AND user_id = $2`,
		uuid.UUID(recordID), uuid.UUID(userID),
	)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return n, nil
}
