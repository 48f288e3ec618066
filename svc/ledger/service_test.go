package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradesignal/backend/svc/catalog"
	"github.com/tradesignal/backend/svc/ledger"
)

type fixture struct {
	svc       *ledger.Service
	store     ledger.Store
	monthly   catalog.Plan
	quarterly catalog.Plan
}

func newFixture(t *testing.T, opts ...ledger.Option) fixture {
	t.Helper()

	monthly := catalog.Plan{
		ID:                uuid.New(),
		Tier:              "basic",
		DurationDays:      30,
		MaxVisibleTargets: 3,
		ReminderLeadHours: 24,
		PriceCents:        1990,
		Currency:          "USD",
		Active:            true,
	}
	quarterly := catalog.Plan{
		ID:                uuid.New(),
		Tier:              "pro",
		DurationDays:      90,
		MaxVisibleTargets: 10,
		ReminderLeadHours: 72,
		PriceCents:        4990,
		Currency:          "USD",
		Active:            true,
	}

	store := ledger.NewMemoryStore()
	svc := ledger.NewService(store, catalog.NewMemorySource(monthly, quarterly), opts...)
	return fixture{svc: svc, store: store, monthly: monthly, quarterly: quarterly}
}

var baseTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestEnqueue(t *testing.T) {
	t.Parallel()

	t.Run("first purchase activates immediately", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		userID, paymentID := uuid.New(), uuid.New()

		entry, err := fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, paymentID, baseTime)
		require.NoError(t, err)

		assert.Equal(t, ledger.StatusActive, entry.Status)
		assert.Equal(t, 1, entry.QueuePosition)
		require.NotNil(t, entry.ActivationDate)
		assert.Equal(t, baseTime, *entry.ActivationDate)
		require.NotNil(t, entry.ExpiryDate)
		assert.Equal(t, baseTime.AddDate(0, 0, 30), entry.ExpiryDate.UTC())
		require.NotNil(t, entry.PaymentID)
		assert.Equal(t, paymentID, *entry.PaymentID)

		snap, err := fx.svc.Snapshot(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, "basic", snap.Tier)
		assert.Equal(t, baseTime, snap.StartDate)
		assert.Equal(t, *entry.ExpiryDate, snap.EndDate)
		assert.True(t, snap.IsActive)
		assert.Equal(t, 3, snap.MaxVisibleTargets)
		assert.Equal(t, 24, snap.ReminderLeadHours)
		assert.False(t, snap.ReminderSent)
	})

	t.Run("second purchase waits behind the active entry", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		userID := uuid.New()

		_, err := fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, uuid.New(), baseTime)
		require.NoError(t, err)

		entry, err := fx.svc.EnqueueAt(context.Background(), userID, fx.quarterly.ID, uuid.New(), baseTime.Add(time.Hour))
		require.NoError(t, err)

		assert.Equal(t, ledger.StatusPending, entry.Status)
		assert.Equal(t, 2, entry.QueuePosition)
		assert.Nil(t, entry.ActivationDate)
		assert.Nil(t, entry.ExpiryDate)

		// The snapshot still reflects the first, active entry.
		snap, err := fx.svc.Snapshot(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, "basic", snap.Tier)
	})

	t.Run("positions grow one by one", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		userID := uuid.New()

		for i := 0; i < 5; i++ {
			entry, err := fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, uuid.New(), baseTime)
			require.NoError(t, err)
			assert.Equal(t, i+1, entry.QueuePosition)
		}
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)

		_, err := fx.svc.EnqueueAt(context.Background(), uuid.New(), uuid.New(), uuid.New(), baseTime)
		assert.ErrorIs(t, err, catalog.ErrPlanNotFound)
	})

	t.Run("queue refills after draining", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		userID := uuid.New()

		first, err := fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, uuid.New(), baseTime)
		require.NoError(t, err)

		_, err = fx.svc.PromoteNext(context.Background(), first.ID, *first.ExpiryDate)
		require.NoError(t, err)

		later := first.ExpiryDate.Add(48 * time.Hour)
		entry, err := fx.svc.EnqueueAt(context.Background(), userID, fx.quarterly.ID, uuid.New(), later)
		require.NoError(t, err)

		// Completed entries keep their positions; the new entry continues
		// the sequence and activates because nothing is open.
		assert.Equal(t, 2, entry.QueuePosition)
		assert.Equal(t, ledger.StatusActive, entry.Status)

		snap, err := fx.svc.Snapshot(context.Background(), userID)
		require.NoError(t, err)
		assert.True(t, snap.IsActive)
		assert.Equal(t, "pro", snap.Tier)
	})
}

func TestGrant(t *testing.T) {
	t.Parallel()

	t.Run("grant carries no payment", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		userID := uuid.New()

		entry, err := fx.svc.GrantAt(context.Background(), userID, fx.monthly.ID, baseTime)
		require.NoError(t, err)

		assert.Nil(t, entry.PaymentID)
		assert.Equal(t, ledger.StatusActive, entry.Status)
		assert.Equal(t, 1, entry.QueuePosition)
	})

	t.Run("grant queues like a purchase", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		userID := uuid.New()

		_, err := fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, uuid.New(), baseTime)
		require.NoError(t, err)

		entry, err := fx.svc.GrantAt(context.Background(), userID, fx.quarterly.ID, baseTime)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPending, entry.Status)
		assert.Equal(t, 2, entry.QueuePosition)
	})
}

func TestPromoteNext(t *testing.T) {
	t.Parallel()

	t.Run("promotes the direct successor", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		userID := uuid.New()

		first, err := fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, uuid.New(), baseTime)
		require.NoError(t, err)
		second, err := fx.svc.EnqueueAt(context.Background(), userID, fx.quarterly.ID, uuid.New(), baseTime)
		require.NoError(t, err)

		// A reminder sent during the first term must not suppress the
		// reminder for the next one.
		require.NoError(t, fx.svc.MarkReminderSent(context.Background(), userID))

		due := *first.ExpiryDate
		promoted, err := fx.svc.PromoteNext(context.Background(), first.ID, due)
		require.NoError(t, err)
		require.NotNil(t, promoted)

		assert.Equal(t, second.ID, promoted.ID)
		assert.Equal(t, ledger.StatusActive, promoted.Status)
		require.NotNil(t, promoted.ActivationDate)
		assert.Equal(t, due, *promoted.ActivationDate)
		require.NotNil(t, promoted.ExpiryDate)
		assert.Equal(t, due.AddDate(0, 0, 90), promoted.ExpiryDate.UTC())

		done, err := fx.store.GetEntry(context.Background(), first.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusCompleted, done.Status)

		snap, err := fx.svc.Snapshot(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, "pro", snap.Tier)
		assert.Equal(t, due, snap.StartDate)
		assert.Equal(t, *promoted.ExpiryDate, snap.EndDate)
		assert.True(t, snap.IsActive)
		assert.Equal(t, 10, snap.MaxVisibleTargets)
		assert.False(t, snap.ReminderSent)
	})

	t.Run("drained queue disables the snapshot", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		userID := uuid.New()

		entry, err := fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, uuid.New(), baseTime)
		require.NoError(t, err)

		promoted, err := fx.svc.PromoteNext(context.Background(), entry.ID, *entry.ExpiryDate)
		require.NoError(t, err)
		assert.Nil(t, promoted)

		done, err := fx.store.GetEntry(context.Background(), entry.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusCompleted, done.Status)

		snap, err := fx.svc.Snapshot(context.Background(), userID)
		require.NoError(t, err)
		assert.False(t, snap.IsActive)
		assert.Equal(t, "basic", snap.Tier)
	})

	t.Run("entry not yet due", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		userID := uuid.New()

		entry, err := fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, uuid.New(), baseTime)
		require.NoError(t, err)

		_, err = fx.svc.PromoteNext(context.Background(), entry.ID, entry.ExpiryDate.Add(-time.Minute))
		assert.ErrorIs(t, err, ledger.ErrEntryNotDue)
	})

	t.Run("pending entry is not promotable", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		userID := uuid.New()

		_, err := fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, uuid.New(), baseTime)
		require.NoError(t, err)
		pending, err := fx.svc.EnqueueAt(context.Background(), userID, fx.quarterly.ID, uuid.New(), baseTime)
		require.NoError(t, err)

		_, err = fx.svc.PromoteNext(context.Background(), pending.ID, baseTime.AddDate(1, 0, 0))
		assert.ErrorIs(t, err, ledger.ErrEntryNotDue)
	})

	t.Run("second promotion of the same entry is a no-op", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		userID := uuid.New()

		first, err := fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, uuid.New(), baseTime)
		require.NoError(t, err)
		second, err := fx.svc.EnqueueAt(context.Background(), userID, fx.quarterly.ID, uuid.New(), baseTime)
		require.NoError(t, err)
		third, err := fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, uuid.New(), baseTime)
		require.NoError(t, err)

		due := *first.ExpiryDate
		promoted, err := fx.svc.PromoteNext(context.Background(), first.ID, due)
		require.NoError(t, err)
		require.NotNil(t, promoted)

		again, err := fx.svc.PromoteNext(context.Background(), first.ID, due)
		require.NoError(t, err)
		assert.Nil(t, again)

		// The queue advanced exactly one step.
		got, err := fx.store.GetEntry(context.Background(), second.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusActive, got.Status)
		got, err = fx.store.GetEntry(context.Background(), third.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPending, got.Status)
	})

	t.Run("unknown entry", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)

		_, err := fx.svc.PromoteNext(context.Background(), uuid.New(), baseTime)
		assert.ErrorIs(t, err, ledger.ErrEntryNotFound)
	})
}

func TestCurrentQueue(t *testing.T) {
	t.Parallel()

	t.Run("empty queue", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)

		items, err := fx.svc.CurrentQueue(context.Background(), uuid.New())
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("entries in position order with plan attributes", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		userID := uuid.New()

		first, err := fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, uuid.New(), baseTime)
		require.NoError(t, err)
		second, err := fx.svc.EnqueueAt(context.Background(), userID, fx.quarterly.ID, uuid.New(), baseTime)
		require.NoError(t, err)
		third, err := fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, uuid.New(), baseTime)
		require.NoError(t, err)

		_, err = fx.svc.PromoteNext(context.Background(), first.ID, *first.ExpiryDate)
		require.NoError(t, err)

		items, err := fx.svc.CurrentQueue(context.Background(), userID)
		require.NoError(t, err)
		require.Len(t, items, 3)

		// Completed history stays in the queue view.
		assert.Equal(t, first.ID, items[0].Entry.ID)
		assert.Equal(t, ledger.StatusCompleted, items[0].Entry.Status)
		assert.Equal(t, second.ID, items[1].Entry.ID)
		assert.Equal(t, ledger.StatusActive, items[1].Entry.Status)
		assert.Equal(t, "pro", items[1].Plan.Tier)
		assert.Equal(t, third.ID, items[2].Entry.ID)
		assert.Equal(t, ledger.StatusPending, items[2].Entry.Status)
		assert.Equal(t, "basic", items[2].Plan.Tier)
	})
}

func TestDueEntries(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	early, late := uuid.New(), uuid.New()

	shortTerm, err := fx.svc.EnqueueAt(context.Background(), early, fx.monthly.ID, uuid.New(), baseTime)
	require.NoError(t, err)
	longTerm, err := fx.svc.EnqueueAt(context.Background(), late, fx.quarterly.ID, uuid.New(), baseTime)
	require.NoError(t, err)
	// Pending entries are never due, whatever the cutoff.
	_, err = fx.svc.EnqueueAt(context.Background(), early, fx.monthly.ID, uuid.New(), baseTime)
	require.NoError(t, err)

	due, err := fx.svc.DueEntries(context.Background(), baseTime.AddDate(0, 0, 40))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, shortTerm.ID, due[0].ID)

	due, err = fx.svc.DueEntries(context.Background(), baseTime.AddDate(0, 0, 100))
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, shortTerm.ID, due[0].ID)
	assert.Equal(t, longTerm.ID, due[1].ID)
}

func TestMarkReminderSent(t *testing.T) {
	t.Parallel()

	t.Run("flips the snapshot flag", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		userID := uuid.New()

		_, err := fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, uuid.New(), baseTime)
		require.NoError(t, err)

		require.NoError(t, fx.svc.MarkReminderSent(context.Background(), userID))

		snap, err := fx.svc.Snapshot(context.Background(), userID)
		require.NoError(t, err)
		assert.True(t, snap.ReminderSent)
	})

	t.Run("no snapshot", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)

		err := fx.svc.MarkReminderSent(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ledger.ErrSnapshotNotFound)

		_, err = fx.svc.Snapshot(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ledger.ErrSnapshotNotFound)
	})
}

func TestEnqueue_ConcurrentPurchases(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, ledger.WithConflictRetry(25, time.Millisecond))
	userID := uuid.New()

	const buyers = 10
	errs := make([]error, buyers)
	var wg sync.WaitGroup
	wg.Add(buyers)
	for i := range buyers {
		go func() {
			defer wg.Done()
			_, errs[i] = fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, uuid.New(), baseTime)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	entries, err := fx.store.EntriesForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, entries, buyers)

	active := 0
	for i, e := range entries {
		// EntriesForUser is position ordered, so equality with i+1 proves
		// the sequence has no gaps and no duplicates.
		assert.Equal(t, i+1, e.QueuePosition)
		if e.Status == ledger.StatusActive {
			active++
		}
	}
	assert.Equal(t, 1, active, "exactly one entry may be active")
}

func TestPromoteNext_ConcurrentSweeps(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, ledger.WithConflictRetry(25, time.Millisecond))
	userID := uuid.New()

	first, err := fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, uuid.New(), baseTime)
	require.NoError(t, err)
	second, err := fx.svc.EnqueueAt(context.Background(), userID, fx.quarterly.ID, uuid.New(), baseTime)
	require.NoError(t, err)

	due := *first.ExpiryDate
	const sweeps = 4
	results := make([]*ledger.Entry, sweeps)
	errs := make([]error, sweeps)
	var wg sync.WaitGroup
	wg.Add(sweeps)
	for i := range sweeps {
		go func() {
			defer wg.Done()
			results[i], errs[i] = fx.svc.PromoteNext(context.Background(), first.ID, due)
		}()
	}
	wg.Wait()

	promotions := 0
	for i := range sweeps {
		require.NoError(t, errs[i])
		if results[i] != nil {
			promotions++
		}
	}
	assert.Equal(t, 1, promotions, "exactly one sweep may perform the promotion")

	got, err := fx.store.GetEntry(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusActive, got.Status)
}
