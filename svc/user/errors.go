package user

import "errors"

var (
	// ErrUserNotFound is returned when no account exists for the lookup key.
	ErrUserNotFound = errors.New("user: not found")

	// ErrEmailTaken is returned when registering an email that already has
	// an account.
	ErrEmailTaken = errors.New("user: email already registered")

	// ErrInvalidCredentials is returned for every authentication failure,
	// wrong password and unknown email alike, to prevent account
	// enumeration.
	ErrInvalidCredentials = errors.New("user: invalid credentials")

	// ErrUserDisabled is returned when a disabled account presents valid
	// credentials.
	ErrUserDisabled = errors.New("user: account is disabled")

	// ErrInvalidEmail is returned when the email address fails validation.
	ErrInvalidEmail = errors.New("user: invalid email address")

	// ErrWeakPassword is returned when the password does not meet the
	// minimum length requirement.
	ErrWeakPassword = errors.New("user: password is too weak")
)
