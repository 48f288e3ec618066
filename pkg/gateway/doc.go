// Package gateway implements the HTTP client for the external redirect
// payment gateway.
//
// A checkout is a three-step exchange: Initiate registers the payment and
// returns a hosted payment URL the buyer is redirected to; the gateway then
// reports the outcome either through a signed server-to-server callback or
// through CheckStatus polling. Both report paths carry the merchant-side
// transaction ID, which is the correlation key for the whole exchange.
//
// Callback payloads are authenticated with an HMAC-SHA256 signature over
// "<timestamp>.<payload>" using the shared signing secret. Use
// VerifyCallback before acting on a callback body.
//
// All gateway calls run under a bounded timeout. Transport failures and
// gateway-side outages surface as ErrGatewayUnavailable; a timeout is never
// interpreted as a successful payment.
package gateway
