// Package payment sells plans through the external payment gateway and
// applies the outcome to the subscription ledger.
//
// A checkout creates a pending payment record keyed by a locally generated
// transaction id, opens a gateway session and hands the payment URL back to
// the caller. The outcome arrives either as a signed gateway callback or
// through an explicit status poll; both paths converge on the same
// transition. The transaction id is the idempotency key: a payment record
// in a terminal status absorbs any replay without touching the ledger
// again, so redelivered webhooks and webhook/poll races produce exactly one
// ledger entry per successful payment.
//
// The register-and-pay flow creates a disabled account with a generated
// password alongside the checkout; the account is enabled when the payment
// completes.
package payment
