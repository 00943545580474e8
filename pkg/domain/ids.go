// Package domain holds the typed identifiers shared across features.
//
// IDs are distinct types over uuid.UUID so the compiler rejects passing a
// record ID where an asset ID is expected. Parse functions enforce the
// invariant that IDs are valid, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "mizan/pkg/domain-errors"
)

type (
	// UserID identifies the owner of assets, liabilities and records.
	UserID uuid.UUID
	// RecordID identifies a nisab year record.
	RecordID uuid.UUID
	// AssetID identifies a single asset row.
	AssetID uuid.UUID
	// LiabilityID identifies a single liability row.
	LiabilityID uuid.UUID
	// EventID identifies an audit trail entry.
	EventID uuid.UUID
)

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is not a valid uuid")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be the nil uuid")
	}
	return u, nil
}

// ParseUserID validates and converts a string into a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user")
	return UserID(u), err
}

// ParseRecordID validates and converts a string into a RecordID.
func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID(s, "record")
	return RecordID(u), err
}

// ParseAssetID validates and converts a string into an AssetID.
func ParseAssetID(s string) (AssetID, error) {
	u, err := parseUUID(s, "asset")
	return AssetID(u), err
}

// ParseLiabilityID validates and converts a string into a LiabilityID.
func ParseLiabilityID(s string) (LiabilityID, error) {
	u, err := parseUUID(s, "liability")
	return LiabilityID(u), err
}

// NewUserID returns a fresh random UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewRecordID returns a fresh random RecordID.
func NewRecordID() RecordID { return RecordID(uuid.New()) }

// NewAssetID returns a fresh random AssetID.
func NewAssetID() AssetID { return AssetID(uuid.New()) }

// NewLiabilityID returns a fresh random LiabilityID.
func NewLiabilityID() LiabilityID { return LiabilityID(uuid.New()) }

// NewEventID returns a fresh random EventID.
func NewEventID() EventID { return EventID(uuid.New()) }

func (id UserID) String() string      { return uuid.UUID(id).String() }
func (id RecordID) String() string    { return uuid.UUID(id).String() }
func (id AssetID) String() string     { return uuid.UUID(id).String() }
func (id LiabilityID) String() string { return uuid.UUID(id).String() }
func (id EventID) String() string     { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id AssetID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id LiabilityID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
