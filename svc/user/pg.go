package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradesignal/backend/pkg/pg"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns a Store backed by the users table.
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) CreateUser(ctx context.Context, u *User) error {
	const query = `
		INSERT INTO users (id, email, password_hash, role, active, notification_channel, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.Role, u.Active, u.NotificationChannel, u.CreatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("user: failed to create: %w", err)
	}
	return nil
}

func (s *pgStore) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *pgStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, "email = $1", email)
}

func (s *pgStore) getUser(ctx context.Context, where string, arg any) (*User, error) {
	query := `
		SELECT id, email, password_hash, role, active, notification_channel, created_at
		FROM users
		WHERE ` + where

	var u User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Active, &u.NotificationChannel, &u.CreatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user: failed to load: %w", err)
	}
	return &u, nil
}

func (s *pgStore) ActivateUser(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET active = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("user: failed to activate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *pgStore) SetNotificationChannel(ctx context.Context, id uuid.UUID, channel *string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET notification_channel = $2 WHERE id = $1`, id, channel)
	if err != nil {
		return fmt.Errorf("user: failed to set notification channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
