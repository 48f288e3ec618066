package payment

import (
	"context"
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

// NewPgStore returns a Store backed by the payments table.
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const paymentColumns = `id, user_id, plan_id, amount_cents, currency, status, transaction_id,
	gateway_transaction_id, is_new_user, temp_password, created_at, finalized_at`

func (s *pgStore) CreatePayment(ctx context.Context, p *Payment) error {
	const query = `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.UserID, p.PlanID, p.AmountCents, p.Currency, p.Status, p.TransactionID,
		p.GatewayTransactionID, p.IsNewUser, p.TempPassword, p.CreatedAt, p.FinalizedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("payment: failed to insert payment: %w", err)
	}
	return nil
}

func (s *pgStore) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *pgStore) GetByTransactionID(ctx context.Context, transactionID string) (*Payment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE transaction_id = $1`, transactionID)
	p, err := scanPayment(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrUnknownTransaction
		}
		return nil, err
	}
	return p, nil
}

func (s *pgStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]Payment, error) {
	const query = `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("payment: failed to list payments: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		err := rows.Scan(
			&p.ID, &p.UserID, &p.PlanID, &p.AmountCents, &p.Currency, &p.Status, &p.TransactionID,
			&p.GatewayTransactionID, &p.IsNewUser, &p.TempPassword, &p.CreatedAt, &p.FinalizedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("payment: failed to scan payment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("payment: failed to read payments: %w", err)
	}
	return out, nil
}

func (s *pgStore) FinalizePayment(ctx context.Context, id uuid.UUID, status Status, gatewayTransactionID *string, at time.Time) error {
	// Guarded update: only a pending payment can be finalized, so the
	// callback and a concurrent poll cannot both apply the result.
	const query = `
		UPDATE payments
		SET status = $2, gateway_transaction_id = COALESCE($3, gateway_transaction_id), finalized_at = $4
		WHERE id = $1 AND status = 'pending'`

	tag, err := s.pool.Exec(ctx, query, id, status, gatewayTransactionID, at)
	if err != nil {
		return fmt.Errorf("payment: failed to finalize payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := s.pool.QueryRow(ctx, `SELECT TRUE FROM payments WHERE id = $1`, id).Scan(&exists)
		switch {
		case err == nil:
			return ErrAlreadyFinalized
		case pg.IsNotFoundError(err):
			return ErrPaymentNotFound
		default:
			return fmt.Errorf("payment: failed to check payment: %w", err)
		}
	}
	return nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.UserID, &p.PlanID, &p.AmountCents, &p.Currency, &p.Status, &p.TransactionID,
		&p.GatewayTransactionID, &p.IsNewUser, &p.TempPassword, &p.CreatedAt, &p.FinalizedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
