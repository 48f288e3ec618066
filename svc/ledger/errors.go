package ledger

import "errors"

var (
	// ErrEntryNotFound is returned when the requested ledger entry does not
	// exist.
	ErrEntryNotFound = errors.New("ledger: entry not found")

	// ErrSnapshotNotFound is returned when a user has no subscription
	// snapshot because no entry was ever activated for them.
	ErrSnapshotNotFound = errors.New("ledger: snapshot not found")

	// ErrConflict is returned when a concurrent writer modified the
	// user's queue between read and write. The operation is safe to retry;
	// the service does so automatically a bounded number of times.
	ErrConflict = errors.New("ledger: concurrent modification conflict")

	// ErrEntryNotDue is returned when promotion is requested for an entry
	// that is not an expired active entry.
	ErrEntryNotDue = errors.New("ledger: entry is not due for promotion")

	// ErrInvalidEntry is returned when an entry fails structural
	// validation before it is written.
	ErrInvalidEntry = errors.New("ledger: invalid entry")
)
