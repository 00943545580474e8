package wealth

import (
	"context"
	"time"

	id "mizan/pkg/domain"
)

// AssetStore persists assets. Implementations return sentinel.ErrNotFound
// for missing or cross-user lookups so the service never leaks existence.
type AssetStore interface {
	Save(ctx context.Context, asset *Asset) error
	FindByID(ctx context.Context, userID id.UserID, assetID id.AssetID) (*Asset, error)
	// ListByUser returns the user's assets; soft-deleted ones only when
	// includeDeleted is set.
	ListByUser(ctx context.Context, userID id.UserID, includeDeleted bool) ([]*Asset, error)
	SoftDelete(ctx context.Context, userID id.UserID, assetID id.AssetID, at time.Time) error
	Restore(ctx context.Context, userID id.UserID, assetID id.AssetID) error
	// ForceDelete removes the row permanently, bypassing the recovery
	// window.
	ForceDelete(ctx context.Context, userID id.UserID, assetID id.AssetID) error
}

// LiabilityStore persists liabilities.
type LiabilityStore interface {
	Save(ctx context.Context, liability *Liability) error
	FindByID(ctx context.Context, userID id.UserID, liabilityID id.LiabilityID) (*Liability, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*Liability, error)
	Delete(ctx context.Context, userID id.UserID, liabilityID id.LiabilityID) error
}
