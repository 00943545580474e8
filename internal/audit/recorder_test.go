package audit

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mizan/internal/crypto"
	id "mizan/pkg/domain"
	dErrors "mizan/pkg/domain-errors"
	"mizan/pkg/requestcontext"
)

func newRecorder(t *testing.T, outbox chan<- Event) (*Recorder, *InMemoryStore) {
	t.Helper()
	cipher, err := crypto.NewAEADCipher([]byte(strings.Repeat("a", 32)))
	require.NoError(t, err)
	store := NewInMemoryStore()
	return NewRecorder(store, cipher, outbox, slog.New(slog.DiscardHandler)), store
}

func TestRecorder_Record(t *testing.T) {
	userID := id.NewUserID()
	recordID := id.NewRecordID()

	t.Run("assigns monotonic sequences", func(t *testing.T) {
		r, _ := newRecorder(t, nil)
		ctx := context.Background()

		for _, action := range []Action{ActionRecordCreated, ActionNisabAchieved, ActionFinalized} {
			require.NoError(t, r.Record(ctx, Entry{RecordID: recordID, UserID: userID, Action: action}))
		}

		trail, err := r.Trail(ctx, userID, recordID, Filter{})
		require.NoError(t, err)
		require.Len(t, trail, 3)
		for i, e := range trail {
			assert.Equal(t, int64(i+1), e.Sequence)
		}
	})

	t.Run("encrypts notes at rest and decrypts on read", func(t *testing.T) {
		r, store := newRecorder(t, nil)
		ctx := context.Background()
		rec := id.NewRecordID()

		require.NoError(t, r.Record(ctx, Entry{
			RecordID: rec,
			UserID:   userID,
			Action:   ActionUnlocked,
			Note:     "found a forgotten savings account",
		}))

		raw, err := store.ListByRecord(ctx, userID, rec)
		require.NoError(t, err)
		require.Len(t, raw, 1)
		assert.NotContains(t, raw[0].EncryptedNote, "savings")

		trail, err := r.Trail(ctx, userID, rec, Filter{})
		require.NoError(t, err)
		assert.Equal(t, "found a forgotten savings account", trail[0].Note)
	})

	t.Run("stamps device and request context", func(t *testing.T) {
		r, _ := newRecorder(t, nil)
		rec := id.NewRecordID()
		ctx := requestcontext.WithDeviceName(context.Background(), "Chrome 120 on Linux")
		ctx = requestcontext.WithRequestID(ctx, "req-1234")

		require.NoError(t, r.Record(ctx, Entry{RecordID: rec, UserID: userID, Action: ActionRecordCreated}))

		trail, err := r.Trail(ctx, userID, rec, Filter{})
		require.NoError(t, err)
		assert.Equal(t, "Chrome 120 on Linux", trail[0].DeviceName)
	})

	t.Run("carries figure changes as a structured payload", func(t *testing.T) {
		r, store := newRecorder(t, nil)
		ctx := context.Background()
		rec := id.NewRecordID()

		require.NoError(t, r.Record(ctx, Entry{
			RecordID: rec,
			UserID:   userID,
			Action:   ActionFinalizedAfterUnlock,
			Changes: map[string]FieldChange{
				"zakatAmount": {Before: "137.5", After: "187.5"},
			},
		}))

		raw, err := store.ListByRecord(ctx, userID, rec)
		require.NoError(t, err)
		require.Len(t, raw, 1)
		assert.JSONEq(t, `{"zakatAmount":{"before":"137.5","after":"187.5"}}`, raw[0].Payload)

		trail, err := r.Trail(ctx, userID, rec, Filter{})
		require.NoError(t, err)
		require.Len(t, trail, 1)
		assert.Equal(t, FieldChange{Before: "137.5", After: "187.5"}, trail[0].Changes["zakatAmount"])
	})

	t.Run("an unreadable note degrades that entry, not the listing", func(t *testing.T) {
		r, store := newRecorder(t, nil)
		ctx := context.Background()
		rec := id.NewRecordID()

		require.NoError(t, r.Record(ctx, Entry{
			RecordID: rec,
			UserID:   userID,
			Action:   ActionUnlocked,
			Note:     "found a forgotten savings account",
		}))
		// A token written under a different key.
		require.NoError(t, store.Append(ctx, &Event{
			ID:            id.NewEventID(),
			RecordID:      rec,
			UserID:        userID,
			Action:        ActionFinalizedAfterUnlock,
			EncryptedNote: "bm90LWEtdG9rZW4=",
		}))

		trail, err := r.Trail(ctx, userID, rec, Filter{})
		require.NoError(t, err)
		require.Len(t, trail, 2)
		assert.Equal(t, "found a forgotten savings account", trail[0].Note)
		assert.Equal(t, ActionFinalizedAfterUnlock, trail[1].Action)
		assert.Empty(t, trail[1].Note)
	})

	t.Run("rejects unknown actions", func(t *testing.T) {
		r, _ := newRecorder(t, nil)
		err := r.Record(context.Background(), Entry{
			RecordID: recordID,
			UserID:   userID,
			Action:   "record_vaporized",
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("hands events to the outbox without blocking when full", func(t *testing.T) {
		outbox := make(chan Event, 1)
		r, _ := newRecorder(t, outbox)
		ctx := context.Background()
		rec := id.NewRecordID()

		require.NoError(t, r.Record(ctx, Entry{RecordID: rec, UserID: userID, Action: ActionRecordCreated}))
		// Outbox is now full; the next append must still succeed.
		require.NoError(t, r.Record(ctx, Entry{RecordID: rec, UserID: userID, Action: ActionNisabAchieved}))

		n, err := r.Count(ctx, userID, rec)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		assert.Len(t, outbox, 1)
	})
}

func TestRecorder_TrailFilters(t *testing.T) {
	r, _ := newRecorder(t, nil)
	userID := id.NewUserID()
	recordID := id.NewRecordID()

	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	steps := []struct {
		at     time.Time
		action Action
	}{
		{base, ActionRecordCreated},
		{base.Add(24 * time.Hour), ActionNisabAchieved},
		{base.Add(48 * time.Hour), ActionFinalized},
		{base.Add(72 * time.Hour), ActionUnlocked},
		{base.Add(96 * time.Hour), ActionFinalizedAfterUnlock},
	}
	for _, step := range steps {
		ctx := requestcontext.WithTime(context.Background(), step.at)
		require.NoError(t, r.Record(ctx, Entry{RecordID: recordID, UserID: userID, Action: step.action}))
	}
	ctx := context.Background()

	t.Run("by action", func(t *testing.T) {
		trail, err := r.Trail(ctx, userID, recordID, Filter{
			Actions: []Action{ActionFinalized, ActionFinalizedAfterUnlock},
		})
		require.NoError(t, err)
		require.Len(t, trail, 2)
		assert.Equal(t, ActionFinalized, trail[0].Action)
		assert.Equal(t, ActionFinalizedAfterUnlock, trail[1].Action)
	})

	t.Run("by date range", func(t *testing.T) {
		trail, err := r.Trail(ctx, userID, recordID, Filter{
			From: base.Add(24 * time.Hour),
			To:   base.Add(72 * time.Hour),
		})
		require.NoError(t, err)
		assert.Len(t, trail, 3)
	})

	t.Run("unknown filter action is rejected", func(t *testing.T) {
		_, err := r.Trail(ctx, userID, recordID, Filter{Actions: []Action{"bogus"}})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("other users see nothing", func(t *testing.T) {
		trail, err := r.Trail(ctx, id.NewUserID(), recordID, Filter{})
		require.NoError(t, err)
		assert.Empty(t, trail)
	})
}
