package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradesignal/backend/svc/ledger"
)

func activeEntry(userID uuid.UUID, position int, expiry time.Time) *ledger.Entry {
	activation := expiry.AddDate(0, 0, -30)
	paymentID := uuid.New()
	return &ledger.Entry{
		ID:             uuid.New(),
		UserID:         userID,
		PlanID:         uuid.New(),
		Status:         ledger.StatusActive,
		QueuePosition:  position,
		ActivationDate: &activation,
		ExpiryDate:     &expiry,
		PaymentID:      &paymentID,
		CreatedAt:      activation,
	}
}

func pendingEntry(userID uuid.UUID, position int) *ledger.Entry {
	paymentID := uuid.New()
	return &ledger.Entry{
		ID:            uuid.New(),
		UserID:        userID,
		PlanID:        uuid.New(),
		Status:        ledger.StatusPending,
		QueuePosition: position,
		PaymentID:     &paymentID,
		CreatedAt:     baseTime,
	}
}

func snapshotFor(expiry time.Time) *ledger.Snapshot {
	return &ledger.Snapshot{
		Tier:              "basic",
		StartDate:         expiry.AddDate(0, 0, -30),
		EndDate:           expiry,
		IsActive:          true,
		MaxVisibleTargets: 3,
		ReminderLeadHours: 24,
	}
}

func TestMemoryStore_InsertEntry(t *testing.T) {
	t.Parallel()

	t.Run("rejects a duplicate queue position", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()
		userID := uuid.New()

		require.NoError(t, store.InsertEntry(context.Background(), pendingEntry(userID, 1), nil))
		err := store.InsertEntry(context.Background(), pendingEntry(userID, 1), nil)
		assert.ErrorIs(t, err, ledger.ErrConflict)
	})

	t.Run("rejects a second active entry", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()
		userID := uuid.New()
		expiry := baseTime.AddDate(0, 0, 30)

		require.NoError(t, store.InsertEntry(context.Background(), activeEntry(userID, 1, expiry), snapshotFor(expiry)))
		err := store.InsertEntry(context.Background(), activeEntry(userID, 2, expiry), snapshotFor(expiry))
		assert.ErrorIs(t, err, ledger.ErrConflict)
	})

	t.Run("same position for different users is fine", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()

		require.NoError(t, store.InsertEntry(context.Background(), pendingEntry(uuid.New(), 1), nil))
		require.NoError(t, store.InsertEntry(context.Background(), pendingEntry(uuid.New(), 1), nil))
	})

	t.Run("pending insert leaves no snapshot behind", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()
		userID := uuid.New()

		require.NoError(t, store.InsertEntry(context.Background(), pendingEntry(userID, 1), nil))
		_, err := store.GetSnapshot(context.Background(), userID)
		assert.ErrorIs(t, err, ledger.ErrSnapshotNotFound)
	})
}

func TestMemoryStore_CompleteAndPromote(t *testing.T) {
	t.Parallel()

	t.Run("failed promotion leaves the queue untouched", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()
		userID := uuid.New()
		expiry := baseTime.AddDate(0, 0, 30)

		active := activeEntry(userID, 1, expiry)
		require.NoError(t, store.InsertEntry(context.Background(), active, snapshotFor(expiry)))

		// The named successor does not exist, so nothing may change.
		err := store.CompleteAndPromote(context.Background(), active.ID, &ledger.Promotion{
			EntryID:        uuid.New(),
			ActivationDate: expiry,
			ExpiryDate:     expiry.AddDate(0, 0, 30),
			Snapshot:       *snapshotFor(expiry.AddDate(0, 0, 30)),
		})
		assert.ErrorIs(t, err, ledger.ErrConflict)

		got, err := store.GetEntry(context.Background(), active.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusActive, got.Status)
	})

	t.Run("successor of another user is rejected", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()
		expiry := baseTime.AddDate(0, 0, 30)

		active := activeEntry(uuid.New(), 1, expiry)
		require.NoError(t, store.InsertEntry(context.Background(), active, snapshotFor(expiry)))
		stranger := pendingEntry(uuid.New(), 2)
		require.NoError(t, store.InsertEntry(context.Background(), stranger, nil))

		err := store.CompleteAndPromote(context.Background(), active.ID, &ledger.Promotion{
			EntryID:        stranger.ID,
			ActivationDate: expiry,
			ExpiryDate:     expiry.AddDate(0, 0, 30),
			Snapshot:       *snapshotFor(expiry.AddDate(0, 0, 30)),
		})
		assert.ErrorIs(t, err, ledger.ErrConflict)
	})

	t.Run("completing a pending entry is a conflict", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()
		entry := pendingEntry(uuid.New(), 1)
		require.NoError(t, store.InsertEntry(context.Background(), entry, nil))

		err := store.CompleteAndPromote(context.Background(), entry.ID, nil)
		assert.ErrorIs(t, err, ledger.ErrConflict)
	})

	t.Run("unknown entry", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()

		err := store.CompleteAndPromote(context.Background(), uuid.New(), nil)
		assert.ErrorIs(t, err, ledger.ErrEntryNotFound)
	})
}

func TestMemoryStore_NextPending(t *testing.T) {
	t.Parallel()

	store := ledger.NewMemoryStore()
	userID := uuid.New()
	require.NoError(t, store.InsertEntry(context.Background(), pendingEntry(userID, 3), nil))

	// Only the exact position matches; the store never skips ahead.
	_, err := store.NextPending(context.Background(), userID, 2)
	assert.ErrorIs(t, err, ledger.ErrEntryNotFound)

	got, err := store.NextPending(context.Background(), userID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, got.QueuePosition)
}

func TestMemoryStore_DueEntries(t *testing.T) {
	t.Parallel()

	store := ledger.NewMemoryStore()
	soon := activeEntry(uuid.New(), 1, baseTime.Add(24*time.Hour))
	later := activeEntry(uuid.New(), 1, baseTime.Add(72*time.Hour))
	require.NoError(t, store.InsertEntry(context.Background(), later, snapshotFor(*later.ExpiryDate)))
	require.NoError(t, store.InsertEntry(context.Background(), soon, snapshotFor(*soon.ExpiryDate)))

	due, err := store.DueEntries(context.Background(), baseTime.Add(100*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, soon.ID, due[0].ID)
	assert.Equal(t, later.ID, due[1].ID)

	due, err = store.DueEntries(context.Background(), baseTime)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	store := ledger.NewMemoryStore()
	userID := uuid.New()
	expiry := baseTime.AddDate(0, 0, 30)
	entry := activeEntry(userID, 1, expiry)
	require.NoError(t, store.InsertEntry(context.Background(), entry, snapshotFor(expiry)))

	got, err := store.GetEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	got.Status = ledger.StatusCompleted
	*got.ExpiryDate = baseTime

	snap, err := store.GetSnapshot(context.Background(), userID)
	require.NoError(t, err)
	snap.ReminderSent = true

	fresh, err := store.GetEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusActive, fresh.Status)
	assert.Equal(t, expiry, *fresh.ExpiryDate)

	freshSnap, err := store.GetSnapshot(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, freshSnap.ReminderSent)
}
