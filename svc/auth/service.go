package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const minSigningKeyBytes = 32

// Service signs, verifies, rotates, and revokes credentials.
type Service struct {
	signingKey      []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	issuer          string
	store           Store
}

// NewService validates the signing configuration and returns a token
// service. A bad signing key is a startup error, never a runtime one.
func NewService(cfg Config, store Store) (*Service, error) {
	if len(cfg.SigningKey) < minSigningKeyBytes {
		return nil, ErrInvalidSigningKey
	}
	s := &Service{
		signingKey:      []byte(cfg.SigningKey),
		accessTokenTTL:  cfg.AccessTokenTTL,
		refreshTokenTTL: cfg.RefreshTokenTTL,
		issuer:          cfg.Issuer,
		store:           store,
	}
	if s.accessTokenTTL <= 0 {
		s.accessTokenTTL = 168 * time.Hour
	}
	if s.refreshTokenTTL <= 0 {
		s.refreshTokenTTL = 720 * time.Hour
	}
	return s, nil
}

// IssueAccessToken signs a short-lived stateless credential binding the
// owner identity. Nothing is persisted.
func (s *Service) IssueAccessToken(ownerID uuid.UUID, ownerType OwnerType) (string, error) {
	now := time.Now().UTC()
	return s.sign(Claims{
		OwnerType: ownerType,
		Kind:      kindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
		},
	})
}

// IssueRefreshToken signs a long-lived credential with a fresh opaque
// identifier and persists the matching record.
func (s *Service) IssueRefreshToken(ctx context.Context, ownerID uuid.UUID, ownerType OwnerType, meta RequestMeta) (string, *TokenRecord, error) {
	record := s.newRecord(ownerID, ownerType, meta)
	token, err := s.signRefresh(record)
	if err != nil {
		return "", nil, err
	}
	if err := s.store.CreateToken(ctx, record); err != nil {
		return "", nil, fmt.Errorf("auth: failed to persist token record: %w", err)
	}
	return token, record, nil
}

// RotateRefreshToken replaces a verified refresh token with a fresh one.
// The old record is revoked and chained to its replacement atomically; if a
// concurrent rotation already consumed the old record, ErrRevokedToken is
// returned and no new credential is issued.
func (s *Service) RotateRefreshToken(ctx context.Context, old *TokenRecord, meta RequestMeta) (string, *TokenRecord, error) {
	replacement := s.newRecord(old.OwnerID, old.OwnerType, meta)
	token, err := s.signRefresh(replacement)
	if err != nil {
		return "", nil, err
	}
	if err := s.store.RotateToken(ctx, old.ID, replacement, time.Now().UTC()); err != nil {
		return "", nil, err
	}
	return token, replacement, nil
}

// VerifyAccessToken checks the signature and expiry of an access token and
// returns its claims. Any failure is ErrInvalidCredential.
func (s *Service) VerifyAccessToken(raw string) (*Claims, error) {
	claims, err := s.parse(raw)
	if err != nil || claims.Kind != kindAccess {
		return nil, ErrInvalidCredential
	}
	return claims, nil
}

// VerifyRefreshToken validates a refresh token end to end: cryptographic
// checks first (any failure is ErrInvalidCredential), then the record
// lookup, which distinguishes unknown, revoked, and expired records. On
// success the record is returned so the caller can rotate or revoke it.
func (s *Service) VerifyRefreshToken(ctx context.Context, raw string) (*Claims, *TokenRecord, error) {
	claims, err := s.parse(raw)
	if err != nil || claims.Kind != kindRefresh {
		return nil, nil, ErrInvalidCredential
	}
	recordID, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, nil, ErrInvalidCredential
	}

	record, err := s.store.GetToken(ctx, recordID)
	if err != nil {
		if errors.Is(err, ErrUnknownToken) {
			return nil, nil, ErrUnknownToken
		}
		return nil, nil, fmt.Errorf("auth: failed to load token record: %w", err)
	}
	if record.Revoked() {
		return nil, nil, ErrRevokedToken
	}
	if record.ExpiredAt(time.Now().UTC()) {
		return nil, nil, ErrExpiredToken
	}
	return claims, record, nil
}

// RevokeRefreshToken invalidates the record behind a refresh token.
// Deliberately idempotent and silent: revoking a malformed, unknown, or
// already revoked token succeeds, so logout responses leak nothing about
// token validity.
func (s *Service) RevokeRefreshToken(ctx context.Context, raw string) error {
	claims, err := s.parse(raw)
	if err != nil || claims.Kind != kindRefresh {
		return nil
	}
	recordID, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil
	}
	if err := s.store.RevokeToken(ctx, recordID, time.Now().UTC()); err != nil {
		if errors.Is(err, ErrUnknownToken) {
			return nil
		}
		return fmt.Errorf("auth: failed to revoke token: %w", err)
	}
	return nil
}

func (s *Service) newRecord(ownerID uuid.UUID, ownerType OwnerType, meta RequestMeta) *TokenRecord {
	now := time.Now().UTC()
	return &TokenRecord{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		OwnerType:       ownerType,
		ExpiresAt:       now.Add(s.refreshTokenTTL),
		CreatedAt:       now,
		IssuedFromIP:    meta.IP,
		IssuedFromAgent: meta.UserAgent,
	}
}

func (s *Service) signRefresh(record *TokenRecord) (string, error) {
	return s.sign(Claims{
		OwnerType: record.OwnerType,
		Kind:      kindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        record.ID.String(),
			Subject:   record.OwnerID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(record.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
		},
	})
}

func (s *Service) sign(claims Claims) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("auth: failed to sign token: %w", err)
	}
	return token, nil
}

func (s *Service) parse(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(s.issuer))
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredential
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidCredential
	}
	return claims, nil
}
