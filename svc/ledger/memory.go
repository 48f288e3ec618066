package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore is an in-memory Store used in tests and local development.
// A single mutex serializes all operations, which gives every method the
// same atomicity the SQL implementation gets from transactions and unique
// constraints.
type memoryStore struct {
	mu        sync.Mutex
	entries   map[uuid.UUID]*Entry
	snapshots map[uuid.UUID]*Snapshot
}

// NewMemoryStore creates an empty in-memory ledger store.
func NewMemoryStore() Store {
	return &memoryStore{
		entries:   make(map[uuid.UUID]*Entry),
		snapshots: make(map[uuid.UUID]*Snapshot),
	}
}

func (s *memoryStore) InsertEntry(_ context.Context, entry *Entry, snapshot *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.ID]; ok {
		return ErrConflict
	}
	for _, e := range s.entries {
		if e.UserID != entry.UserID {
			continue
		}
		if e.QueuePosition == entry.QueuePosition {
			return ErrConflict
		}
		if entry.Status == StatusActive && e.Status == StatusActive {
			return ErrConflict
		}
	}

	s.entries[entry.ID] = cloneEntry(entry)
	if snapshot != nil {
		s.snapshots[entry.UserID] = cloneSnapshot(snapshot)
	}
	return nil
}

func (s *memoryStore) GetEntry(_ context.Context, id uuid.UUID) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return cloneEntry(e), nil
}

func (s *memoryStore) EntriesForUser(_ context.Context, userID uuid.UUID) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, *cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QueuePosition < out[j].QueuePosition
	})
	return out, nil
}

func (s *memoryStore) QueueState(_ context.Context, userID uuid.UUID) (QueueState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var state QueueState
	for _, e := range s.entries {
		if e.UserID != userID {
			continue
		}
		if e.QueuePosition > state.MaxPosition {
			state.MaxPosition = e.QueuePosition
		}
		if e.Open() {
			state.HasOpen = true
		}
	}
	return state, nil
}

func (s *memoryStore) NextPending(_ context.Context, userID uuid.UUID, position int) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.UserID == userID && e.Status == StatusPending && e.QueuePosition == position {
			return cloneEntry(e), nil
		}
	}
	return nil, ErrEntryNotFound
}

func (s *memoryStore) DueEntries(_ context.Context, asOf time.Time) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for _, e := range s.entries {
		if e.ExpiredAt(asOf) {
			out = append(out, *cloneEntry(e))
		}
	}
	sortByExpiry(out)
	return out, nil
}

func (s *memoryStore) ActiveEntries(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for _, e := range s.entries {
		if e.Status == StatusActive {
			out = append(out, *cloneEntry(e))
		}
	}
	sortByExpiry(out)
	return out, nil
}

func (s *memoryStore) CompleteAndPromote(_ context.Context, expiredID uuid.UUID, promo *Promotion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired, ok := s.entries[expiredID]
	if !ok {
		return ErrEntryNotFound
	}
	if expired.Status != StatusActive {
		return ErrConflict
	}

	// Validate everything before mutating so a failed promotion leaves
	// the queue untouched.
	var next *Entry
	if promo != nil {
		next, ok = s.entries[promo.EntryID]
		if !ok || next.Status != StatusPending || next.UserID != expired.UserID {
			return ErrConflict
		}
	}

	expired.Status = StatusCompleted
	if promo == nil {
		if snap, ok := s.snapshots[expired.UserID]; ok {
			snap.IsActive = false
		}
		return nil
	}

	activation := promo.ActivationDate
	expiry := promo.ExpiryDate
	next.Status = StatusActive
	next.ActivationDate = &activation
	next.ExpiryDate = &expiry
	s.snapshots[expired.UserID] = cloneSnapshot(&promo.Snapshot)
	return nil
}

func (s *memoryStore) GetSnapshot(_ context.Context, userID uuid.UUID) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[userID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return cloneSnapshot(snap), nil
}

func (s *memoryStore) MarkReminderSent(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[userID]
	if !ok {
		return ErrSnapshotNotFound
	}
	snap.ReminderSent = true
	return nil
}

func sortByExpiry(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		ei, ej := entries[i].ExpiryDate, entries[j].ExpiryDate
		switch {
		case ei == nil:
			return false
		case ej == nil:
			return true
		case ei.Equal(*ej):
			return entries[i].QueuePosition < entries[j].QueuePosition
		default:
			return ei.Before(*ej)
		}
	})
}

func cloneEntry(e *Entry) *Entry {
	c := *e
	if e.ActivationDate != nil {
		t := *e.ActivationDate
		c.ActivationDate = &t
	}
	if e.ExpiryDate != nil {
		t := *e.ExpiryDate
		c.ExpiryDate = &t
	}
	if e.PaymentID != nil {
		id := *e.PaymentID
		c.PaymentID = &id
	}
	return &c
}

func cloneSnapshot(s *Snapshot) *Snapshot {
	c := *s
	return &c
}
