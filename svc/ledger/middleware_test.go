package ledger_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradesignal/backend/svc/auth"
	"github.com/tradesignal/backend/svc/ledger"
)

func TestRequireActiveSubscription(t *testing.T) {
	t.Parallel()

	newGate := func(fx fixture) (http.Handler, *bool, **ledger.Snapshot) {
		var (
			called bool
			snap   *ledger.Snapshot
		)
		gate := ledger.RequireActiveSubscription(fx.svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			snap, _ = ledger.GetSnapshotFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))
		return gate, &called, &snap
	}

	asIdentity := func(identity auth.Identity) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(auth.SetIdentityToContext(req.Context(), identity))
	}

	t.Run("active subscriber passes with snapshot in context", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		userID := uuid.New()
		_, err := fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, uuid.New(), time.Now().UTC())
		require.NoError(t, err)

		gate, called, snap := newGate(fx)
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, asIdentity(auth.Identity{OwnerID: userID, OwnerType: auth.OwnerUser}))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, *called)
		require.NotNil(t, *snap)
		assert.Equal(t, "basic", (*snap).Tier)
		assert.Equal(t, 3, (*snap).MaxVisibleTargets)
	})

	t.Run("never subscribed is rejected", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)

		gate, called, _ := newGate(fx)
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, asIdentity(auth.Identity{OwnerID: uuid.New(), OwnerType: auth.OwnerUser}))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, *called)
		assert.Contains(t, rec.Body.String(), "subscription_required")
	})

	t.Run("past end date is rejected before the sweep flips the flag", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)
		userID := uuid.New()
		// Activated long enough ago that the term is over, with no sweep
		// run since.
		start := time.Now().UTC().Add(-31 * 24 * time.Hour)
		_, err := fx.svc.EnqueueAt(context.Background(), userID, fx.monthly.ID, uuid.New(), start)
		require.NoError(t, err)

		gate, called, _ := newGate(fx)
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, asIdentity(auth.Identity{OwnerID: userID, OwnerType: auth.OwnerUser}))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, *called)
	})

	t.Run("admin bypasses the gate", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)

		gate, called, snap := newGate(fx)
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, asIdentity(auth.Identity{OwnerID: uuid.New(), OwnerType: auth.OwnerAdmin}))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, *called)
		assert.Nil(t, *snap)
	})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t)

		gate, called, _ := newGate(fx)
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, *called)
	})
}
