// Package webhook delivers signed JSON payloads over HTTP POST with
// retries and circuit breaking, and verifies inbound signatures using
// the same scheme.
//
// Retries use exponential backoff (github.com/cenkalti/backoff/v4);
// 4xx responses other than 408, 425 and 429 abort immediately as
// permanent failures. Signing uses HMAC-SHA256 over
// "<timestamp>.<payload>" with the timestamp bound into the signature
// to block replays.
//
// # Sending
//
//	sender := webhook.NewSender()
//	err := sender.Send(ctx, endpoint, event,
//	    webhook.WithSignature(secret),
//	    webhook.WithTimeout(5*time.Second),
//	    webhook.WithCircuitBreaker(breaker),
//	)
//
// # Verifying
//
//	sig, err := webhook.ExtractSignatureHeaders(r.Header.Get)
//	if err != nil {
//	    // reject
//	}
//	if err := webhook.VerifySignature(secret, body, sig, 5*time.Minute); err != nil {
//	    // reject
//	}
//
// Reuse one CircuitBreaker per endpoint so failure state accumulates
// across sends.
package webhook
