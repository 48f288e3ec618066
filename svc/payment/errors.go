package payment

import "errors"

var (
	// ErrPaymentNotFound is returned when the requested payment record
	// does not exist.
	ErrPaymentNotFound = errors.New("payment: payment not found")

	// ErrUnknownTransaction is returned when a gateway result references a
	// transaction id that was never issued. Such events are logged and
	// dropped, never retried.
	ErrUnknownTransaction = errors.New("payment: unknown transaction")

	// ErrDuplicateTransaction is returned when a payment with the same
	// transaction id already exists.
	ErrDuplicateTransaction = errors.New("payment: duplicate transaction id")

	// ErrAlreadyFinalized is returned when a payment left the pending
	// status before this writer got to it. Callers treat it as a benign
	// replay.
	ErrAlreadyFinalized = errors.New("payment: payment already finalized")

	// ErrInvalidPlan is returned when a checkout references a plan that
	// does not exist or is not open for purchase.
	ErrInvalidPlan = errors.New("payment: invalid plan")
)
