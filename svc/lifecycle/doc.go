// Package lifecycle drives subscriptions through time.
//
// A Sweeper runs on a fixed interval and performs two passes over the
// ledger. The first pass completes every active entry whose expiry has
// passed and promotes its queued successor. The second pass looks at the
// remaining (and freshly promoted) active entries and sends an expiry
// reminder to users whose term ends within the configured lead time,
// exactly once per activation.
//
// Each pass isolates failures per entry: one user's broken promotion or
// reminder is logged and the sweep moves on. A sweep that cannot read the
// ledger at all gives up and relies on the next tick; there is no sweep
// state outside the ledger itself.
package lifecycle
