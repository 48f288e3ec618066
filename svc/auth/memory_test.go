package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradesignal/backend/svc/auth"
)

func seedRecord(t *testing.T, store auth.Store) *auth.TokenRecord {
	t.Helper()
	record := &auth.TokenRecord{
		ID:        uuid.New(),
		OwnerID:   uuid.New(),
		OwnerType: auth.OwnerUser,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.CreateToken(context.Background(), record))
	return record
}

func TestMemoryStore_RevokeToken(t *testing.T) {
	t.Parallel()

	t.Run("sets revoked at once", func(t *testing.T) {
		t.Parallel()
		store := auth.NewMemoryStore()
		record := seedRecord(t, store)

		first := time.Now().UTC()
		require.NoError(t, store.RevokeToken(context.Background(), record.ID, first))

		// A later revoke does not move the timestamp.
		require.NoError(t, store.RevokeToken(context.Background(), record.ID, first.Add(time.Hour)))

		got, err := store.GetToken(context.Background(), record.ID)
		require.NoError(t, err)
		require.NotNil(t, got.RevokedAt)
		assert.Equal(t, first, *got.RevokedAt)
	})

	t.Run("missing record", func(t *testing.T) {
		t.Parallel()
		store := auth.NewMemoryStore()
		err := store.RevokeToken(context.Background(), uuid.New(), time.Now())
		assert.ErrorIs(t, err, auth.ErrUnknownToken)
	})
}

func TestMemoryStore_RotateToken(t *testing.T) {
	t.Parallel()

	t.Run("failed rotation leaves no replacement behind", func(t *testing.T) {
		t.Parallel()
		store := auth.NewMemoryStore()
		record := seedRecord(t, store)
		require.NoError(t, store.RevokeToken(context.Background(), record.ID, time.Now().UTC()))

		replacement := &auth.TokenRecord{
			ID:        uuid.New(),
			OwnerID:   record.OwnerID,
			OwnerType: record.OwnerType,
			ExpiresAt: time.Now().Add(24 * time.Hour),
			CreatedAt: time.Now(),
		}
		err := store.RotateToken(context.Background(), record.ID, replacement, time.Now().UTC())
		require.ErrorIs(t, err, auth.ErrRevokedToken)

		_, err = store.GetToken(context.Background(), replacement.ID)
		assert.ErrorIs(t, err, auth.ErrUnknownToken)
	})

	t.Run("unknown old record", func(t *testing.T) {
		t.Parallel()
		store := auth.NewMemoryStore()

		replacement := &auth.TokenRecord{
			ID:        uuid.New(),
			OwnerID:   uuid.New(),
			OwnerType: auth.OwnerUser,
			ExpiresAt: time.Now().Add(24 * time.Hour),
			CreatedAt: time.Now(),
		}
		err := store.RotateToken(context.Background(), uuid.New(), replacement, time.Now().UTC())
		assert.ErrorIs(t, err, auth.ErrUnknownToken)
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	t.Parallel()
	store := auth.NewMemoryStore()
	record := seedRecord(t, store)

	got, err := store.GetToken(context.Background(), record.ID)
	require.NoError(t, err)
	revoked := time.Now()
	got.RevokedAt = &revoked

	again, err := store.GetToken(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Nil(t, again.RevokedAt)
}
