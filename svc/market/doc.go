// Package market serves current market prices for the signal targets
// shown to subscribers.
//
// Quotes come from an external price API and are cached in Redis under a
// short TTL, so bursts of status-page reads do not hammer the upstream.
// The cache is strictly best effort: a Redis outage or a corrupt cached
// record degrades to a direct fetch, never to a failed request.
package market
