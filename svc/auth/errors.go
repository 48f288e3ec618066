package auth

import "errors"

var (
	// ErrInvalidSigningKey is returned at construction when the signing key
	// is missing or too short for HMAC-SHA256.
	ErrInvalidSigningKey = errors.New("auth: signing key must be at least 32 bytes")

	// ErrInvalidCredential is returned when a token fails verification at
	// the cryptographic layer: bad signature, malformed structure, wrong
	// kind, or expired signature.
	ErrInvalidCredential = errors.New("auth: invalid credential")

	// ErrUnknownToken is returned when a cryptographically valid refresh
	// token references a record that does not exist.
	ErrUnknownToken = errors.New("auth: unknown token")

	// ErrRevokedToken is returned when the referenced record has been
	// revoked, including the case where a concurrent rotation already
	// consumed it.
	ErrRevokedToken = errors.New("auth: token revoked")

	// ErrExpiredToken is returned when the referenced record is past its
	// expiry.
	ErrExpiredToken = errors.New("auth: token expired")
)
