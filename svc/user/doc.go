// Package user manages account identities: creation with bcrypt-hashed
// passwords, credential checks, activation, and the notification channel
// used for subscription reminders.
//
// Accounts created through the combined register-and-pay checkout start
// disabled and are activated by the first successful payment. Identity is
// deliberately separate from subscription state; the ledger owns what a
// user is entitled to, this package only answers who they are.
package user
