package auth

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

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns a Store backed by the refresh_tokens table.
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const insertTokenQuery = `
	INSERT INTO refresh_tokens (id, owner_id, owner_type, expires_at, created_at, issued_from_ip, issued_from_agent)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (s *pgStore) CreateToken(ctx context.Context, record *TokenRecord) error {
	_, err := s.pool.Exec(ctx, insertTokenQuery,
		record.ID, record.OwnerID, record.OwnerType, record.ExpiresAt,
		record.CreatedAt, record.IssuedFromIP, record.IssuedFromAgent,
	)
	if err != nil {
		return fmt.Errorf("auth: failed to insert token record: %w", err)
	}
	return nil
}

func (s *pgStore) GetToken(ctx context.Context, id uuid.UUID) (*TokenRecord, error) {
	const query = `
		SELECT id, owner_id, owner_type, expires_at, created_at, revoked_at, replaced_by,
		       issued_from_ip, issued_from_agent
		FROM refresh_tokens
		WHERE id = $1`

	var record TokenRecord
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&record.ID, &record.OwnerID, &record.OwnerType, &record.ExpiresAt,
		&record.CreatedAt, &record.RevokedAt, &record.ReplacedBy,
		&record.IssuedFromIP, &record.IssuedFromAgent,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrUnknownToken
		}
		return nil, fmt.Errorf("auth: failed to load token record: %w", err)
	}
	return &record, nil
}

func (s *pgStore) RevokeToken(ctx context.Context, id uuid.UUID, at time.Time) error {
	const query = `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL`

	tag, err := s.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("auth: failed to revoke token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing record from an already revoked one; the
		// latter is a successful no-op.
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT TRUE FROM refresh_tokens WHERE id = $1`, id).Scan(&exists); err != nil {
			if pg.IsNotFoundError(err) {
				return ErrUnknownToken
			}
			return fmt.Errorf("auth: failed to check token record: %w", err)
		}
	}
	return nil
}

func (s *pgStore) RotateToken(ctx context.Context, oldID uuid.UUID, replacement *TokenRecord, at time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("auth: failed to begin rotation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The replacement row must exist before the old row can reference it.
	_, err = tx.Exec(ctx, insertTokenQuery,
		replacement.ID, replacement.OwnerID, replacement.OwnerType, replacement.ExpiresAt,
		replacement.CreatedAt, replacement.IssuedFromIP, replacement.IssuedFromAgent,
	)
	if err != nil {
		return fmt.Errorf("auth: failed to insert replacement record: %w", err)
	}

	// Guarded update: only an unrevoked record can be rotated, so exactly
	// one of two concurrent rotations wins.
	tag, err := tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = $2, replaced_by = $3
		WHERE id = $1 AND revoked_at IS NULL`,
		oldID, at, replacement.ID,
	)
	if err != nil {
		return fmt.Errorf("auth: failed to revoke rotated record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := tx.QueryRow(ctx, `SELECT TRUE FROM refresh_tokens WHERE id = $1`, oldID).Scan(&exists)
		switch {
		case err == nil:
			return ErrRevokedToken
		case errors.Is(err, pgx.ErrNoRows):
			return ErrUnknownToken
		default:
			return fmt.Errorf("auth: failed to check rotated record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("auth: failed to commit rotation: %w", err)
	}
	return nil
}
