package wealth

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mizan/internal/methodology"
	id "mizan/pkg/domain"
	"mizan/pkg/platform/sentinel"
)

func newTestAsset(userID id.UserID, name string, createdAt time.Time) *Asset {
	return &Asset{
		ID:                  id.NewAssetID(),
		UserID:              userID,
		Name:                name,
		Category:            methodology.CategoryCash,
		EncryptedValue:      "token",
		Currency:            "USD",
		Zakatable:           true,
		CalculationModifier: decimal.NewFromInt(1),
		CreatedAt:           createdAt,
		UpdatedAt:           createdAt,
	}
}

func TestInMemoryAssetStore(t *testing.T) {
	ctx := context.Background()
	userID := id.NewUserID()
	otherID := id.NewUserID()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("save and find", func(t *testing.T) {
		store := NewInMemoryAssetStore()
		asset := newTestAsset(userID, "cash", base)
		require.NoError(t, store.Save(ctx, asset))

		found, err := store.FindByID(ctx, userID, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, asset.Name, found.Name)

		// Mutating the returned copy must not leak into the store.
		found.Name = "mutated"
		again, err := store.FindByID(ctx, userID, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, "cash", again.Name)
	})

	t.Run("cross-user lookup is not found", func(t *testing.T) {
		store := NewInMemoryAssetStore()
		asset := newTestAsset(userID, "cash", base)
		require.NoError(t, store.Save(ctx, asset))

		_, err := store.FindByID(ctx, otherID, asset.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.ErrorIs(t, store.SoftDelete(ctx, otherID, asset.ID, base), sentinel.ErrNotFound)
		assert.ErrorIs(t, store.ForceDelete(ctx, otherID, asset.ID), sentinel.ErrNotFound)
	})

	t.Run("list orders by creation time and filters deleted", func(t *testing.T) {
		store := NewInMemoryAssetStore()
		second := newTestAsset(userID, "second", base.Add(time.Hour))
		first := newTestAsset(userID, "first", base)
		require.NoError(t, store.Save(ctx, second))
		require.NoError(t, store.Save(ctx, first))
		require.NoError(t, store.Save(ctx, newTestAsset(otherID, "foreign", base)))

		list, err := store.ListByUser(ctx, userID, false)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "first", list[0].Name)
		assert.Equal(t, "second", list[1].Name)

		require.NoError(t, store.SoftDelete(ctx, userID, first.ID, base.Add(2*time.Hour)))

		list, err = store.ListByUser(ctx, userID, false)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "second", list[0].Name)

		list, err = store.ListByUser(ctx, userID, true)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("restore clears the deletion mark", func(t *testing.T) {
		store := NewInMemoryAssetStore()
		asset := newTestAsset(userID, "cash", base)
		require.NoError(t, store.Save(ctx, asset))
		require.NoError(t, store.SoftDelete(ctx, userID, asset.ID, base.Add(time.Hour)))

		found, err := store.FindByID(ctx, userID, asset.ID)
		require.NoError(t, err)
		require.NotNil(t, found.DeletedAt)

		require.NoError(t, store.Restore(ctx, userID, asset.ID))
		found, err = store.FindByID(ctx, userID, asset.ID)
		require.NoError(t, err)
		assert.Nil(t, found.DeletedAt)
	})

	t.Run("force delete removes the row", func(t *testing.T) {
		store := NewInMemoryAssetStore()
		asset := newTestAsset(userID, "cash", base)
		require.NoError(t, store.Save(ctx, asset))
		require.NoError(t, store.ForceDelete(ctx, userID, asset.ID))

		_, err := store.FindByID(ctx, userID, asset.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestInMemoryLiabilityStore(t *testing.T) {
	ctx := context.Background()
	userID := id.NewUserID()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newLiability := func(name string, createdAt time.Time) *Liability {
		return &Liability{
			ID:        id.NewLiabilityID(),
			UserID:    userID,
			Name:      name,
			Type:      LiabilityPersonal,
			Amount:    decimal.NewFromInt(100),
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}
	}

	t.Run("save, list, delete", func(t *testing.T) {
		store := NewInMemoryLiabilityStore()
		l1 := newLiability("first", base)
		l2 := newLiability("second", base.Add(time.Minute))
		require.NoError(t, store.Save(ctx, l2))
		require.NoError(t, store.Save(ctx, l1))

		list, err := store.ListByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "first", list[0].Name)

		require.NoError(t, store.Delete(ctx, userID, l1.ID))
		assert.ErrorIs(t, store.Delete(ctx, userID, l1.ID), sentinel.ErrNotFound)
	})

	t.Run("cross-user access is not found", func(t *testing.T) {
		store := NewInMemoryLiabilityStore()
		l := newLiability("loan", base)
		require.NoError(t, store.Save(ctx, l))

		other := id.NewUserID()
		_, err := store.FindByID(ctx, other, l.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, other, l.ID), sentinel.ErrNotFound)
	})
}
