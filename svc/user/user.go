package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role distinguishes regular accounts from administrative ones.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is one account identity. PasswordHash is the bcrypt hash of the
// account password and must never leave the service layer.
type User struct {
	ID                  uuid.UUID
	Email               string
	PasswordHash        []byte
	Role                Role
	Active              bool
	NotificationChannel *string
	CreatedAt           time.Time
}

// IsAdmin reports whether the account holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Store persists account identities. Implementations must return
// ErrUserNotFound for missing accounts and ErrEmailTaken when a create
// collides with an existing email.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ActivateUser(ctx context.Context, id uuid.UUID) error
	SetNotificationChannel(ctx context.Context, id uuid.UUID, channel *string) error
}
