package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status tracks a payment from creation to its terminal outcome.
type Status string

const (
	// StatusPending marks a payment awaiting a gateway result.
	StatusPending Status = "pending"
	// StatusCompleted marks a successfully settled payment.
	StatusCompleted Status = "completed"
	// StatusFailed marks a declined, errored or abandoned payment.
	StatusFailed Status = "failed"
)

// Payment is one checkout attempt. TransactionID is generated locally,
// handed to the gateway and echoed back in callbacks; it is globally
// unique and serves as the idempotency key for result processing.
type Payment struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	PlanID        uuid.UUID
	AmountCents   int64
	Currency      string
	Status        Status
	TransactionID string

	// GatewayTransactionID is the gateway's own reference, set when the
	// payment completes.
	GatewayTransactionID *string

	// IsNewUser and TempPassword describe an account created through the
	// register-and-pay flow alongside this payment.
	IsNewUser    bool
	TempPassword *string

	CreatedAt   time.Time
	FinalizedAt *time.Time
}

// Final reports whether the payment reached a terminal status.
func (p *Payment) Final() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}

// Store persists payment records.
type Store interface {
	// CreatePayment inserts a new pending payment. Returns
	// ErrDuplicateTransaction when the transaction id is already taken.
	CreatePayment(ctx context.Context, p *Payment) error

	// GetPayment returns the payment with the given id or
	// ErrPaymentNotFound.
	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)

	// GetByTransactionID returns the payment carrying the transaction id
	// or ErrUnknownTransaction.
	GetByTransactionID(ctx context.Context, transactionID string) (*Payment, error)

	// ListForUser returns the user's payments, newest first.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Payment, error)

	// FinalizePayment moves a pending payment to a terminal status. Only
	// one writer can win: if the payment already left pending the call
	// returns ErrAlreadyFinalized.
	FinalizePayment(ctx context.Context, id uuid.UUID, status Status, gatewayTransactionID *string, at time.Time) error
}
