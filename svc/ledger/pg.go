package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradesignal/backend/pkg/pg"
)

// pgStore persists the ledger in the ledger_entries table and the
// snapshot columns of the users table. Queue integrity is enforced by a
// unique index on (user_id, queue_position) and a partial unique index on
// user_id for active rows; violations surface as ErrConflict.
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns a Store backed by PostgreSQL.
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const entryColumns = `id, user_id, plan_id, status, queue_position, activation_date, expiry_date, payment_id, created_at`

const insertEntryQuery = `
	INSERT INTO ledger_entries (` + entryColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const writeSnapshotQuery = `
	UPDATE users
	SET sub_tier = $2, sub_start_date = $3, sub_end_date = $4, sub_is_active = $5,
	    sub_max_visible_targets = $6, sub_reminder_lead_hours = $7, sub_reminder_sent = $8
	WHERE id = $1`

func (s *pgStore) InsertEntry(ctx context.Context, entry *Entry, snapshot *Snapshot) error {
	if snapshot == nil {
		_, err := s.pool.Exec(ctx, insertEntryQuery, entryArgs(entry)...)
		return classifyWriteError(err, "insert entry")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ledger: failed to begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, insertEntryQuery, entryArgs(entry)...); err != nil {
		return classifyWriteError(err, "insert entry")
	}
	if err := writeSnapshot(ctx, tx, entry.UserID, snapshot); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classifyWriteError(err, "commit insert")
	}
	return nil
}

func (s *pgStore) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id)
	return scanEntry(row)
}

func (s *pgStore) EntriesForUser(ctx context.Context, userID uuid.UUID) ([]Entry, error) {
	const query = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY queue_position`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to list entries: %w", err)
	}
	return collectEntries(rows)
}

func (s *pgStore) QueueState(ctx context.Context, userID uuid.UUID) (QueueState, error) {
	const query = `
		SELECT COALESCE(MAX(queue_position), 0),
		       COALESCE(BOOL_OR(status IN ('active', 'pending')), FALSE)
		FROM ledger_entries
		WHERE user_id = $1`

	var state QueueState
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&state.MaxPosition, &state.HasOpen); err != nil {
		return QueueState{}, fmt.Errorf("ledger: failed to read queue state: %w", err)
	}
	return state, nil
}

func (s *pgStore) NextPending(ctx context.Context, userID uuid.UUID, position int) (*Entry, error) {
	const query = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE user_id = $1 AND status = 'pending' AND queue_position = $2`

	return scanEntry(s.pool.QueryRow(ctx, query, userID, position))
}

func (s *pgStore) DueEntries(ctx context.Context, asOf time.Time) ([]Entry, error) {
	const query = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE status = 'active' AND expiry_date <= $1
		ORDER BY expiry_date, queue_position`

	rows, err := s.pool.Query(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to list due entries: %w", err)
	}
	return collectEntries(rows)
}

func (s *pgStore) ActiveEntries(ctx context.Context) ([]Entry, error) {
	const query = `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE status = 'active'
		ORDER BY expiry_date, queue_position`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to list active entries: %w", err)
	}
	return collectEntries(rows)
}

func (s *pgStore) CompleteAndPromote(ctx context.Context, expiredID uuid.UUID, promo *Promotion) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ledger: failed to begin promotion: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Guarded update: only an active entry can be completed, so a sweep
	// that lost the race to another writer backs off with ErrConflict.
	var userID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE ledger_entries
		SET status = 'completed'
		WHERE id = $1 AND status = 'active'
		RETURNING user_id`,
		expiredID,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.classifyMissedComplete(ctx, expiredID)
		}
		return classifyWriteError(err, "complete entry")
	}

	if promo == nil {
		tag, err := tx.Exec(ctx, `UPDATE users SET sub_is_active = FALSE WHERE id = $1`, userID)
		if err != nil {
			return classifyWriteError(err, "disable snapshot")
		}
		if tag.RowsAffected() == 0 {
			return ErrSnapshotNotFound
		}
		if err := tx.Commit(ctx); err != nil {
			return classifyWriteError(err, "commit promotion")
		}
		return nil
	}

	// The successor must still be pending; completing before activating
	// keeps the one-active-per-user index satisfied throughout.
	tag, err := tx.Exec(ctx, `
		UPDATE ledger_entries
		SET status = 'active', activation_date = $2, expiry_date = $3
		WHERE id = $1 AND status = 'pending' AND user_id = $4`,
		promo.EntryID, promo.ActivationDate, promo.ExpiryDate, userID,
	)
	if err != nil {
		return classifyWriteError(err, "activate successor")
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	if err := writeSnapshot(ctx, tx, userID, &promo.Snapshot); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classifyWriteError(err, "commit promotion")
	}
	return nil
}

func (s *pgStore) GetSnapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	const query = `
		SELECT sub_tier, sub_start_date, sub_end_date, sub_is_active,
		       sub_max_visible_targets, sub_reminder_lead_hours, sub_reminder_sent
		FROM users
		WHERE id = $1 AND sub_start_date IS NOT NULL`

	var snap Snapshot
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&snap.Tier, &snap.StartDate, &snap.EndDate, &snap.IsActive,
		&snap.MaxVisibleTargets, &snap.ReminderLeadHours, &snap.ReminderSent,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("ledger: failed to load snapshot: %w", err)
	}
	return &snap, nil
}

func (s *pgStore) MarkReminderSent(ctx context.Context, userID uuid.UUID) error {
	const query = `
		UPDATE users
		SET sub_reminder_sent = TRUE
		WHERE id = $1 AND sub_start_date IS NOT NULL`

	tag, err := s.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("ledger: failed to mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}

// classifyMissedComplete runs outside the failed promotion transaction to
// tell a vanished entry apart from one already moved on by another writer.
func (s *pgStore) classifyMissedComplete(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT TRUE FROM ledger_entries WHERE id = $1`, id).Scan(&exists)
	switch {
	case err == nil:
		return ErrConflict
	case errors.Is(err, pgx.ErrNoRows):
		return ErrEntryNotFound
	default:
		return fmt.Errorf("ledger: failed to check entry: %w", err)
	}
}

func writeSnapshot(ctx context.Context, tx pgx.Tx, userID uuid.UUID, snap *Snapshot) error {
	tag, err := tx.Exec(ctx, writeSnapshotQuery,
		userID, snap.Tier, snap.StartDate, snap.EndDate, snap.IsActive,
		snap.MaxVisibleTargets, snap.ReminderLeadHours, snap.ReminderSent,
	)
	if err != nil {
		return classifyWriteError(err, "write snapshot")
	}
	if tag.RowsAffected() == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}

func classifyWriteError(err error, op string) error {
	if err == nil {
		return nil
	}
	if pg.IsDuplicateKeyError(err) || pg.IsSerializationFailure(err) {
		return ErrConflict
	}
	return fmt.Errorf("ledger: failed to %s: %w", op, err)
}

func entryArgs(e *Entry) []any {
	return []any{
		e.ID, e.UserID, e.PlanID, e.Status, e.QueuePosition,
		e.ActivationDate, e.ExpiryDate, e.PaymentID, e.CreatedAt,
	}
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.UserID, &e.PlanID, &e.Status, &e.QueuePosition,
		&e.ActivationDate, &e.ExpiryDate, &e.PaymentID, &e.CreatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("ledger: failed to load entry: %w", err)
	}
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		err := rows.Scan(
			&e.ID, &e.UserID, &e.PlanID, &e.Status, &e.QueuePosition,
			&e.ActivationDate, &e.ExpiryDate, &e.PaymentID, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ledger: failed to scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: failed to read entries: %w", err)
	}
	return out, nil
}
