package hawl

import (
	"context"

	id "mizan/pkg/domain"
)

// Store persists nisab year records.
//
// Save is an optimistic-concurrency upsert: a record with Version 0 is
// inserted and its Version set to 1; otherwise the stored row must carry the
// same Version or Save fails with sentinel.ErrConflict. The version bumps on
// every successful update.
type Store interface {
	Save(ctx context.Context, record *NisabYearRecord) error
	FindByID(ctx context.Context, userID id.UserID, recordID id.RecordID) (*NisabYearRecord, error)
	// FindPrimary returns the user's current primary record, or
	// sentinel.ErrNotFound when none exists.
	FindPrimary(ctx context.Context, userID id.UserID) (*NisabYearRecord, error)
	// ListByUser returns all of the user's records, newest first. Superseded
	// records are included: history is never purged.
	ListByUser(ctx context.Context, userID id.UserID) ([]*NisabYearRecord, error)
}
