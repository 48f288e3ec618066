// Package auth issues and verifies the signed credentials that guard every
// authenticated request: short-lived stateless access tokens and long-lived
// refresh tokens backed by a persisted record.
//
// Access tokens are plain HS256 JWTs binding an owner ID and owner type;
// nothing is stored for them. Refresh tokens additionally embed an opaque
// record identifier. The raw refresh token is never persisted, only its
// metadata row, looked up by that identifier on every verification, which is
// what makes server-side revocation possible.
//
// Refresh tokens are single-use. Rotation issues a replacement and revokes
// the old record in one atomic step, chaining the two through ReplacedBy.
// Exactly one rotation can win on a given record: a concurrent or replayed
// rotation attempt observes the record already revoked and fails with
// ErrRevokedToken, which bounds the lifetime of a leaked refresh token to a
// single rotation interval and preserves the evidence chain.
package auth
