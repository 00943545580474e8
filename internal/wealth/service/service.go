package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"mizan/internal/crypto"
	"mizan/internal/methodology"
	"mizan/internal/wealth"
	id "mizan/pkg/domain"
	dErrors "mizan/pkg/domain-errors"
	"mizan/pkg/platform/sentinel"
	"mizan/pkg/requestcontext"
)

// passiveDefaultModifier implements the thirty-percent rule applied when a
// passive minority holding is created without an explicit modifier.
var passiveDefaultModifier = decimal.NewFromFloat(0.30)

// ChangeListener is notified after every wealth-affecting write. Nisab
// detection and cache invalidation hang off this hook, which keeps monitoring
// pull-based: no watcher thread, just synchronous re-evaluation on change.
type ChangeListener interface {
	WealthChanged(ctx context.Context, userID id.UserID)
}

// Service manages assets and liabilities.
type Service struct {
	assets      wealth.AssetStore
	liabilities wealth.LiabilityStore
	cipher      crypto.Cipher
	listeners   []ChangeListener
	logger      *slog.Logger
}

// NewService constructs the wealth service.
func NewService(assets wealth.AssetStore, liabilities wealth.LiabilityStore, cipher crypto.Cipher, logger *slog.Logger) *Service {
	return &Service{
		assets:      assets,
		liabilities: liabilities,
		cipher:      cipher,
		logger:      logger,
	}
}

// AddListener registers a wealth-change listener. Not safe to call after the
// server starts handling requests.
func (s *Service) AddListener(l ChangeListener) {
	s.listeners = append(s.listeners, l)
}

func (s *Service) notify(ctx context.Context, userID id.UserID) {
	for _, l := range s.listeners {
		l.WealthChanged(ctx, userID)
	}
}

// AssetInput carries the plaintext fields for creating or updating an asset.
type AssetInput struct {
	Name       string
	Category   methodology.AssetCategory
	Value      decimal.Decimal
	Currency   string
	AcquiredAt time.Time
	Zakatable  bool
	// Modifier overrides the calculation modifier; nil applies the default
	// (0.30 for passive investments, 1.0 otherwise).
	Modifier          *decimal.Decimal
	PassiveInvestment bool
	RestrictedAccount bool
}

func (in AssetInput) modifier() decimal.Decimal {
	if in.Modifier != nil {
		return *in.Modifier
	}
	if in.PassiveInvestment {
		return passiveDefaultModifier
	}
	return decimal.NewFromInt(1)
}

// CreateAsset validates, encrypts and stores a new asset.
func (s *Service) CreateAsset(ctx context.Context, userID id.UserID, in AssetInput) (*wealth.Asset, error) {
	if in.Value.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "asset value must not be negative")
	}
	token, err := s.cipher.EncryptString(in.Value.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encrypt asset value")
	}

	now := requestcontext.Now(ctx)
	asset := &wealth.Asset{
		ID:                  id.NewAssetID(),
		UserID:              userID,
		Name:                in.Name,
		Category:            in.Category,
		EncryptedValue:      token,
		Currency:            in.Currency,
		AcquiredAt:          in.AcquiredAt,
		Zakatable:           in.Zakatable,
		CalculationModifier: in.modifier(),
		PassiveInvestment:   in.PassiveInvestment,
		RestrictedAccount:   in.RestrictedAccount,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := asset.Validate(); err != nil {
		return nil, err
	}
	if err := s.assets.Save(ctx, asset); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save asset")
	}
	s.notify(ctx, userID)
	return asset, nil
}

// UpdateAsset re-validates and overwrites an existing asset.
func (s *Service) UpdateAsset(ctx context.Context, userID id.UserID, assetID id.AssetID, in AssetInput) (*wealth.Asset, error) {
	asset, err := s.assets.FindByID(ctx, userID, assetID)
	if err != nil {
		return nil, translateNotFound(err, "asset")
	}
	if asset.Deleted() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "asset is deleted; restore it first")
	}
	if in.Value.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "asset value must not be negative")
	}
	token, err := s.cipher.EncryptString(in.Value.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encrypt asset value")
	}

	asset.Name = in.Name
	asset.Category = in.Category
	asset.EncryptedValue = token
	asset.Currency = in.Currency
	asset.AcquiredAt = in.AcquiredAt
	asset.Zakatable = in.Zakatable
	asset.CalculationModifier = in.modifier()
	asset.PassiveInvestment = in.PassiveInvestment
	asset.RestrictedAccount = in.RestrictedAccount
	asset.UpdatedAt = requestcontext.Now(ctx)

	if err := asset.Validate(); err != nil {
		return nil, err
	}
	if err := s.assets.Save(ctx, asset); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save asset")
	}
	s.notify(ctx, userID)
	return asset, nil
}

// DeleteAsset soft-deletes by default, leaving the recovery window open.
// force bypasses the window and removes the row permanently.
func (s *Service) DeleteAsset(ctx context.Context, userID id.UserID, assetID id.AssetID, force bool) error {
	var err error
	if force {
		err = s.assets.ForceDelete(ctx, userID, assetID)
	} else {
		err = s.assets.SoftDelete(ctx, userID, assetID, requestcontext.Now(ctx))
	}
	if err != nil {
		return translateNotFound(err, "asset")
	}
	s.notify(ctx, userID)
	return nil
}

// RestoreAsset undoes a soft delete within the recovery window.
func (s *Service) RestoreAsset(ctx context.Context, userID id.UserID, assetID id.AssetID) (*wealth.Asset, error) {
	asset, err := s.assets.FindByID(ctx, userID, assetID)
	if err != nil {
		return nil, translateNotFound(err, "asset")
	}
	if !asset.Deleted() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "asset is not deleted")
	}
	if requestcontext.Now(ctx).Sub(*asset.DeletedAt) > wealth.RecoveryWindow {
		return nil, dErrors.New(dErrors.CodeInvalidState, "recovery window has elapsed")
	}
	if err := s.assets.Restore(ctx, userID, assetID); err != nil {
		return nil, translateNotFound(err, "asset")
	}
	asset.DeletedAt = nil
	s.notify(ctx, userID)
	return asset, nil
}

// ListAssets returns the user's live assets.
func (s *Service) ListAssets(ctx context.Context, userID id.UserID) ([]*wealth.Asset, error) {
	assets, err := s.assets.ListByUser(ctx, userID, false)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list assets")
	}
	return assets, nil
}

// LiabilityInput carries the fields for creating or updating a liability.
type LiabilityInput struct {
	Name               string
	Type               wealth.LiabilityType
	Amount             decimal.Decimal
	Deductible         bool
	DueWithinYear      bool
	ImmediatelyPayable bool
}

// CreateLiability validates and stores a new liability.
func (s *Service) CreateLiability(ctx context.Context, userID id.UserID, in LiabilityInput) (*wealth.Liability, error) {
	now := requestcontext.Now(ctx)
	liability := &wealth.Liability{
		ID:                 id.NewLiabilityID(),
		UserID:             userID,
		Name:               in.Name,
		Type:               in.Type,
		Amount:             in.Amount,
		Deductible:         in.Deductible,
		DueWithinYear:      in.DueWithinYear,
		ImmediatelyPayable: in.ImmediatelyPayable,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := liability.Validate(); err != nil {
		return nil, err
	}
	if err := s.liabilities.Save(ctx, liability); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save liability")
	}
	s.notify(ctx, userID)
	return liability, nil
}

// UpdateLiability re-validates and overwrites an existing liability.
func (s *Service) UpdateLiability(ctx context.Context, userID id.UserID, liabilityID id.LiabilityID, in LiabilityInput) (*wealth.Liability, error) {
	liability, err := s.liabilities.FindByID(ctx, userID, liabilityID)
	if err != nil {
		return nil, translateNotFound(err, "liability")
	}
	liability.Name = in.Name
	liability.Type = in.Type
	liability.Amount = in.Amount
	liability.Deductible = in.Deductible
	liability.DueWithinYear = in.DueWithinYear
	liability.ImmediatelyPayable = in.ImmediatelyPayable
	liability.UpdatedAt = requestcontext.Now(ctx)

	if err := liability.Validate(); err != nil {
		return nil, err
	}
	if err := s.liabilities.Save(ctx, liability); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save liability")
	}
	s.notify(ctx, userID)
	return liability, nil
}

// DeleteLiability removes a liability.
func (s *Service) DeleteLiability(ctx context.Context, userID id.UserID, liabilityID id.LiabilityID) error {
	if err := s.liabilities.Delete(ctx, userID, liabilityID); err != nil {
		return translateNotFound(err, "liability")
	}
	s.notify(ctx, userID)
	return nil
}

// ListLiabilities returns the user's liabilities.
func (s *Service) ListLiabilities(ctx context.Context, userID id.UserID) ([]*wealth.Liability, error) {
	liabilities, err := s.liabilities.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list liabilities")
	}
	return liabilities, nil
}

func translateNotFound(err error, kind string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, kind+" not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "store failure")
}
