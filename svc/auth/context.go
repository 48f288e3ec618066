package auth

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the verified principal attached to a request after access
// token verification.
type Identity struct {
	OwnerID   uuid.UUID
	OwnerType OwnerType
}

// IsAdmin reports whether the identity belongs to the admin namespace.
func (i Identity) IsAdmin() bool {
	return i.OwnerType == OwnerAdmin
}

type identityContextKey struct{}

// SetIdentityToContext stores the verified identity for middleware chain access.
func SetIdentityToContext(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// GetIdentityFromContext retrieves the verified identity from context.
// The second return is false if no identity was previously stored.
func GetIdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	return identity, ok
}
