// Package notifier delivers user-facing notifications over a registered
// channel reference.
//
// Delivery is best effort: callers log failures and move on, so a flaky
// dispatcher can never block subscription processing. Two implementations
// ship here. LogNotifier writes notifications to the structured log and is
// the default for environments without a push backend. WebhookNotifier
// posts signed JSON messages to an external dispatcher endpoint, with
// retries and a circuit breaker around the delivery.
package notifier
