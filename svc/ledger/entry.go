package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EntryStatus tracks an entry through its one-way lifecycle.
type EntryStatus string

const (
	// StatusPending marks an entry waiting in the queue behind an earlier
	// one.
	StatusPending EntryStatus = "pending"
	// StatusActive marks the single entry currently granting access.
	StatusActive EntryStatus = "active"
	// StatusCompleted marks an entry whose term has ended.
	StatusCompleted EntryStatus = "completed"
)

// Entry is one purchased or granted plan instance in a user's queue.
type Entry struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	PlanID        uuid.UUID
	Status        EntryStatus
	QueuePosition int

	// ActivationDate and ExpiryDate are nil until the entry activates.
	ActivationDate *time.Time
	ExpiryDate     *time.Time

	// PaymentID references the payment that funded this entry. It is nil
	// for admin-granted entries.
	PaymentID *uuid.UUID

	CreatedAt time.Time
}

// Open reports whether the entry still occupies the queue, i.e. it is
// active or pending.
func (e *Entry) Open() bool {
	return e.Status == StatusActive || e.Status == StatusPending
}

// ExpiredAt reports whether the entry is active with an expiry date at or
// before now.
func (e *Entry) ExpiredAt(now time.Time) bool {
	return e.Status == StatusActive && e.ExpiryDate != nil && !e.ExpiryDate.After(now)
}

// Snapshot mirrors the currently active entry's plan attributes on the
// user record for fast request-path reads.
type Snapshot struct {
	Tier              string
	StartDate         time.Time
	EndDate           time.Time
	IsActive          bool
	MaxVisibleTargets int
	ReminderLeadHours int

	// ReminderSent flips to true once an expiry reminder went out for the
	// current active term, so a reminder is delivered at most once per
	// activation.
	ReminderSent bool
}

// ReminderLead converts the configured lead hours to a duration.
func (s *Snapshot) ReminderLead() time.Duration {
	return time.Duration(s.ReminderLeadHours) * time.Hour
}

// Promotion describes the pending entry to activate while its predecessor
// is completed. A nil Promotion completes the predecessor and disables the
// snapshot instead.
type Promotion struct {
	EntryID        uuid.UUID
	ActivationDate time.Time
	ExpiryDate     time.Time
	Snapshot       Snapshot
}

// QueueState summarizes a user's queue for an append decision.
type QueueState struct {
	// MaxPosition is the highest queue position ever assigned to the
	// user, zero when the queue is empty.
	MaxPosition int
	// HasOpen reports whether any entry is currently active or pending.
	HasOpen bool
}

// Store persists ledger entries and subscription snapshots.
//
// Implementations must make each method atomic and must reject writes
// that would give one user two entries at the same queue position or two
// simultaneously active entries, returning ErrConflict so callers can
// re-read and retry.
type Store interface {
	// InsertEntry appends a fully populated entry and, when the entry is
	// inserted as active, writes the accompanying snapshot in the same
	// atomic step. snapshot must be nil for pending entries.
	InsertEntry(ctx context.Context, entry *Entry, snapshot *Snapshot) error

	// GetEntry returns the entry with the given id or ErrEntryNotFound.
	GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error)

	// EntriesForUser returns all of the user's entries ordered by queue
	// position ascending.
	EntriesForUser(ctx context.Context, userID uuid.UUID) ([]Entry, error)

	// QueueState reports the user's highest assigned position and whether
	// an open entry exists.
	QueueState(ctx context.Context, userID uuid.UUID) (QueueState, error)

	// NextPending returns the user's pending entry at exactly the given
	// position, or ErrEntryNotFound.
	NextPending(ctx context.Context, userID uuid.UUID, position int) (*Entry, error)

	// DueEntries returns all active entries whose expiry date is at or
	// before asOf, ordered by expiry date ascending.
	DueEntries(ctx context.Context, asOf time.Time) ([]Entry, error)

	// ActiveEntries returns all currently active entries ordered by
	// expiry date ascending.
	ActiveEntries(ctx context.Context) ([]Entry, error)

	// CompleteAndPromote atomically marks the expired active entry
	// completed and, when promo is non-nil, activates the named pending
	// entry and replaces the user's snapshot; when promo is nil it
	// disables the snapshot. Returns ErrConflict if either entry is no
	// longer in the expected status.
	CompleteAndPromote(ctx context.Context, expiredID uuid.UUID, promo *Promotion) error

	// GetSnapshot returns the user's snapshot or ErrSnapshotNotFound.
	GetSnapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error)

	// MarkReminderSent records that the expiry reminder for the user's
	// current term went out.
	MarkReminderSent(ctx context.Context, userID uuid.UUID) error
}
