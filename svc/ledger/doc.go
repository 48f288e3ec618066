// Package ledger is the source of truth for what a user has purchased and
// what is currently in effect.
//
// Every paid (or granted) plan instance becomes one Entry in the user's
// queue, at the next strictly increasing queue position. At most one entry
// per user is active at any time; later purchases wait as pending entries
// and are promoted strictly in position order when the active entry
// expires. Entries only ever move forward: pending to active to completed.
//
// Alongside the queue the ledger maintains a denormalized Snapshot per
// user, mirroring the currently active entry's plan attributes. The
// snapshot is a fast-read cache for request-path authorization and reminder
// bookkeeping; the entries remain authoritative and the snapshot is
// rewritten on every activation and disabled when the queue drains.
//
// Stores serialize competing writers with unique constraints rather than
// locks: a duplicate queue position or a second concurrently active entry
// surfaces as ErrConflict, and the service retries the full
// read-decide-write cycle with backoff a bounded number of times.
package ledger
