package gateway

import "errors"

var (
	// ErrInvalidConfiguration is returned when the client is constructed with
	// missing or unusable settings.
	ErrInvalidConfiguration = errors.New("gateway: invalid configuration")

	// ErrGatewayUnavailable is returned when the gateway cannot be reached,
	// times out, or answers with a server-side failure. Callers must treat it
	// as "outcome unknown", never as success.
	ErrGatewayUnavailable = errors.New("gateway: service unavailable")

	// ErrInitiateRejected is returned when the gateway refuses to open a
	// payment session for the request.
	ErrInitiateRejected = errors.New("gateway: payment initiation rejected")

	// ErrTransactionNotFound is returned by CheckStatus when the gateway has
	// no record of the transaction.
	ErrTransactionNotFound = errors.New("gateway: transaction not found")

	// ErrMalformedResponse is returned when the gateway answers with a body
	// the client cannot interpret.
	ErrMalformedResponse = errors.New("gateway: malformed response")

	// ErrInvalidCallback is returned when a callback payload is not valid
	// JSON or is missing required fields.
	ErrInvalidCallback = errors.New("gateway: invalid callback payload")
)
