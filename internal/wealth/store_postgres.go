package wealth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mizan/internal/methodology"
	id "mizan/pkg/domain"
	"mizan/pkg/platform/sentinel"
)

// PostgresAssetStore persists assets in the assets table.
type PostgresAssetStore struct {
	db *sql.DB
}

// NewPostgresAssetStore constructs a PostgreSQL-backed asset store.
func NewPostgresAssetStore(db *sql.DB) *PostgresAssetStore {
	return &PostgresAssetStore{db: db}
}

func (s *PostgresAssetStore) Save(ctx context.Context, asset *Asset) error {
	query := `
		INSERT INTO assets (
			id, user_id, name, category, encrypted_value, currency,
			acquired_at, zakatable, calculation_modifier,
			passive_investment, restricted_account, created_at, updated_at, deleted_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			encrypted_value = EXCLUDED.encrypted_value,
			currency = EXCLUDED.currency,
			acquired_at = EXCLUDED.acquired_at,
			zakatable = EXCLUDED.zakatable,
			calculation_modifier = EXCLUDED.calculation_modifier,
			passive_investment = EXCLUDED.passive_investment,
			restricted_account = EXCLUDED.restricted_account,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(asset.ID), uuid.UUID(asset.UserID), asset.Name, string(asset.Category),
		asset.EncryptedValue, asset.Currency, asset.AcquiredAt, asset.Zakatable,
		asset.CalculationModifier.String(), asset.PassiveInvestment, asset.RestrictedAccount,
		asset.CreatedAt, asset.UpdatedAt, asset.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("save asset: %w", err)
	}
	return nil
}

const assetColumns = `
	id, user_id, name, category, encrypted_value, currency,
	acquired_at, zakatable, calculation_modifier,
	passive_investment, restricted_account, created_at, updated_at, deleted_at
`

func (s *PostgresAssetStore) FindByID(ctx context.Context, userID id.UserID, assetID id.AssetID) (*Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1 AND user_id = $2`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(assetID), uuid.UUID(userID))
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find asset: %w", err)
	}
	return asset, nil
}

func (s *PostgresAssetStore) ListByUser(ctx context.Context, userID id.UserID, includeDeleted bool) ([]*Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE user_id = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var out []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, asset)
	}
	return out, rows.Err()
}

func (s *PostgresAssetStore) SoftDelete(ctx context.Context, userID id.UserID, assetID id.AssetID, at time.Time) error {
	query := `UPDATE assets SET deleted_at = $3, updated_at = $3 WHERE id = $1 AND user_id = $2`
	return s.execExpectingRow(ctx, query, uuid.UUID(assetID), uuid.UUID(userID), at)
}

func (s *PostgresAssetStore) Restore(ctx context.Context, userID id.UserID, assetID id.AssetID) error {
	query := `UPDATE assets SET deleted_at = NULL WHERE id = $1 AND user_id = $2`
	return s.execExpectingRow(ctx, query, uuid.UUID(assetID), uuid.UUID(userID))
}

func (s *PostgresAssetStore) ForceDelete(ctx context.Context, userID id.UserID, assetID id.AssetID) error {
	query := `DELETE FROM assets WHERE id = $1 AND user_id = $2`
	return s.execExpectingRow(ctx, query, uuid.UUID(assetID), uuid.UUID(userID))
}

func (s *PostgresAssetStore) execExpectingRow(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*Asset, error) {
	var (
		asset       Asset
		assetID     uuid.UUID
		userID      uuid.UUID
		category    string
		modifierStr string
		deletedAt   sql.NullTime
	)
	err := row.Scan(
		&assetID, &userID, &asset.Name, &category, &asset.EncryptedValue,
		&asset.Currency, &asset.AcquiredAt, &asset.Zakatable, &modifierStr,
		&asset.PassiveInvestment, &asset.RestrictedAccount,
		&asset.CreatedAt, &asset.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	modifier, err := decimal.NewFromString(modifierStr)
	if err != nil {
		return nil, fmt.Errorf("parse calculation modifier %q: %w", modifierStr, err)
	}
	asset.ID = id.AssetID(assetID)
	asset.UserID = id.UserID(userID)
	asset.Category = methodology.AssetCategory(category)
	asset.CalculationModifier = modifier
	if deletedAt.Valid {
		t := deletedAt.Time
		asset.DeletedAt = &t
	}
	return &asset, nil
}

// PostgresLiabilityStore persists liabilities in the liabilities table.
type PostgresLiabilityStore struct {
	db *sql.DB
}

// NewPostgresLiabilityStore constructs a PostgreSQL-backed liability store.
func NewPostgresLiabilityStore(db *sql.DB) *PostgresLiabilityStore {
	return &PostgresLiabilityStore{db: db}
}

func (s *PostgresLiabilityStore) Save(ctx context.Context, liability *Liability) error {
	query := `
		INSERT INTO liabilities (
			id, user_id, name, type, amount, deductible,
			due_within_year, immediately_payable, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			amount = EXCLUDED.amount,
			deductible = EXCLUDED.deductible,
			due_within_year = EXCLUDED.due_within_year,
			immediately_payable = EXCLUDED.immediately_payable,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(liability.ID), uuid.UUID(liability.UserID), liability.Name,
		string(liability.Type), liability.Amount.String(), liability.Deductible,
		liability.DueWithinYear, liability.ImmediatelyPayable,
		liability.CreatedAt, liability.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save liability: %w", err)
	}
	return nil
}

const liabilityColumns = `
	id, user_id, name, type, amount, deductible,
	due_within_year, immediately_payable, created_at, updated_at
`

func (s *PostgresLiabilityStore) FindByID(ctx context.Context, userID id.UserID, liabilityID id.LiabilityID) (*Liability, error) {
	query := `SELECT ` + liabilityColumns + ` FROM liabilities WHERE id = $1 AND user_id = $2`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(liabilityID), uuid.UUID(userID))
	liability, err := scanLiability(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find liability: %w", err)
	}
	return liability, nil
}

func (s *PostgresLiabilityStore) ListByUser(ctx context.Context, userID id.UserID) ([]*Liability, error) {
	query := `SELECT ` + liabilityColumns + ` FROM liabilities WHERE user_id = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list liabilities: %w", err)
	}
	defer rows.Close()

	var out []*Liability
	for rows.Next() {
		liability, err := scanLiability(rows)
		if err != nil {
			return nil, fmt.Errorf("scan liability: %w", err)
		}
		out = append(out, liability)
	}
	return out, rows.Err()
}

func (s *PostgresLiabilityStore) Delete(ctx context.Context, userID id.UserID, liabilityID id.LiabilityID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM liabilities WHERE id = $1 AND user_id = $2`,
		uuid.UUID(liabilityID), uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("delete liability: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanLiability(row rowScanner) (*Liability, error) {
	var (
		liability   Liability
		liabilityID uuid.UUID
		userID      uuid.UUID
		typ         string
		amountStr   string
	)
	err := row.Scan(
		&liabilityID, &userID, &liability.Name, &typ, &amountStr,
		&liability.Deductible, &liability.DueWithinYear, &liability.ImmediatelyPayable,
		&liability.CreatedAt, &liability.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("parse liability amount %q: %w", amountStr, err)
	}
	liability.ID = id.LiabilityID(liabilityID)
	liability.UserID = id.UserID(userID)
	liability.Type = LiabilityType(typ)
	liability.Amount = amount
	return &liability, nil
}
