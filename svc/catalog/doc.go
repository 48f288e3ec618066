// Package catalog provides read-only access to the subscription plan
// definitions other services resolve against.
//
// A Plan bundles the commercial attributes of a purchasable tier: how long
// it runs, how many signal targets it exposes, how far ahead of expiry the
// renewal reminder fires, and its price. Plans are referenced by ID from
// ledger entries and payment records; the catalog itself never changes as a
// side effect of a purchase.
//
// Three sources are provided: a seeded in-memory source for tests and
// single-binary deployments, a YAML file source for operator-managed
// catalogs, and a postgres source for a database-managed catalog.
package catalog
