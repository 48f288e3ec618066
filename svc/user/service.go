package user

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// Service implements account operations on top of a Store.
type Service struct {
	store      Store
	bcryptCost int
	log        *slog.Logger
}

// Option customizes the service.
type Option func(*Service)

// WithBcryptCost overrides the bcrypt cost used for password hashing.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// WithLogger sets the logger used for non-fatal internal failures.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService returns an account service backed by the given store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		bcryptCost: bcrypt.DefaultCost,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams describes a new account. Active controls whether the account
// can authenticate immediately; the register-and-pay flow creates disabled
// accounts that the first successful payment enables.
type CreateParams struct {
	Email    string
	Password string
	Role     Role
	Active   bool
}

// Create registers a new account.
func (s *Service) Create(ctx context.Context, params CreateParams) (*User, error) {
	email, err := normalizeEmail(params.Email)
	if err != nil {
		return nil, err
	}
	if len(params.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: minimum %d characters", ErrWeakPassword, minPasswordLength)
	}

	role := params.Role
	if role == "" {
		role = RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("user: failed to hash password: %w", err)
	}

	u := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       params.Active,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate verifies the email and password pair. Every failure maps to
// ErrInvalidCredentials so callers cannot probe which emails exist; only a
// valid pair on a disabled account reveals more, as ErrUserDisabled.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	u, err := s.store.GetUserByEmail(ctx, normalized)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			s.log.ErrorContext(ctx, "user lookup failed", slog.Any("error", err))
		}
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, ErrUserDisabled
	}
	return u, nil
}

// Get returns the account with the given ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.store.GetUserByID(ctx, id)
}

// GetByEmail returns the account registered under the given email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return s.store.GetUserByEmail(ctx, normalized)
}

// Activate enables a disabled account. Activating an already active
// account is a no-op.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) error {
	return s.store.ActivateUser(ctx, id)
}

// SetNotificationChannel registers the address reminders are delivered to.
// An empty channel clears the registration.
func (s *Service) SetNotificationChannel(ctx context.Context, id uuid.UUID, channel string) error {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return s.store.SetNotificationChannel(ctx, id, nil)
	}
	return s.store.SetNotificationChannel(ctx, id, &channel)
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

const passwordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RandomPassword generates a temporary password for accounts created through
// the register-and-pay checkout. The alphabet omits easily confused glyphs
// since the password is shown to the buyer once.
func RandomPassword(length int) (string, error) {
	if length < minPasswordLength {
		length = minPasswordLength
	}
	out := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("user: failed to generate password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
