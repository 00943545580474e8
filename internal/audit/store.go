package audit

import (
	"context"

	id "mizan/pkg/domain"
)

// Store persists the append-only trail. Implementations assign Sequence on
// Append and must never expose update or delete operations.
type Store interface {
	Append(ctx context.Context, event *Event) error
	// ListByRecord returns the record's events in append order.
	ListByRecord(ctx context.Context, userID id.UserID, recordID id.RecordID) ([]Event, error)
	// CountByRecord returns the number of events appended for the record.
	CountByRecord(ctx context.Context, userID id.UserID, recordID id.RecordID) (int64, error)
}
