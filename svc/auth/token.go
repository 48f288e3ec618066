package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// OwnerType distinguishes the two credential namespaces.
type OwnerType string

const (
	OwnerUser  OwnerType = "user"
	OwnerAdmin OwnerType = "admin"
)

// TokenRecord is the persisted metadata for one issued refresh token. The
// raw bearer token never appears here; ID is the opaque identifier embedded
// in the signed credential.
type TokenRecord struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	OwnerType       OwnerType
	ExpiresAt       time.Time
	CreatedAt       time.Time
	RevokedAt       *time.Time
	ReplacedBy      *uuid.UUID
	IssuedFromIP    string
	IssuedFromAgent string
}

// Revoked reports whether the record has been permanently invalidated.
func (r *TokenRecord) Revoked() bool {
	return r.RevokedAt != nil
}

// ExpiredAt reports whether the record is past its expiry at the given time.
func (r *TokenRecord) ExpiredAt(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// RequestMeta captures where a refresh token was issued from. Stored on the
// record for audit; never part of the signed credential.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Token kinds keep access and refresh credentials from standing in for each
// other even though both are signed with the same key.
const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// Claims is the JWT payload for both token kinds. Subject carries the owner
// ID; ID (jti) carries the token record identifier for refresh tokens and
// is empty for access tokens.
type Claims struct {
	OwnerType OwnerType `json:"owner_type"`
	Kind      string    `json:"kind"`
	jwt.RegisteredClaims
}

// OwnerID parses the subject claim.
func (c *Claims) OwnerID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Store persists refresh token records. Implementations must return
// ErrUnknownToken for missing records and make RotateToken atomic: either
// the new record exists and the old one is revoked with ReplacedBy set, or
// neither change happened.
type Store interface {
	// CreateToken inserts a new record.
	CreateToken(ctx context.Context, record *TokenRecord) error

	// GetToken returns the record with the given ID.
	GetToken(ctx context.Context, id uuid.UUID) (*TokenRecord, error)

	// RevokeToken sets RevokedAt if not already set. Revoking an already
	// revoked record is a no-op; a missing record is ErrUnknownToken.
	RevokeToken(ctx context.Context, id uuid.UUID, at time.Time) error

	// RotateToken inserts the replacement record and revokes the old one
	// with ReplacedBy pointing at it, as a single atomic step. If the old
	// record is already revoked the rotation fails with ErrRevokedToken
	// and the replacement is not created.
	RotateToken(ctx context.Context, oldID uuid.UUID, replacement *TokenRecord, at time.Time) error
}
