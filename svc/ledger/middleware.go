package ledger

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tradesignal/backend/pkg/response"
	"github.com/tradesignal/backend/svc/auth"
)

// SnapshotSource is the read side the subscription gate needs.
type SnapshotSource interface {
	Snapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error)
}

type snapshotContextKey struct{}

// SetSnapshotToContext stores the subscription snapshot for downstream
// handlers.
func SetSnapshotToContext(ctx context.Context, snap *Snapshot) context.Context {
	return context.WithValue(ctx, snapshotContextKey{}, snap)
}

// GetSnapshotFromContext returns the snapshot stored by the gate. The
// second return is false when the gate did not run, which is the case for
// admin identities.
func GetSnapshotFromContext(ctx context.Context) (*Snapshot, bool) {
	snap, ok := ctx.Value(snapshotContextKey{}).(*Snapshot)
	return snap, ok && snap != nil
}

// RequireActiveSubscription admits only identities whose subscription
// snapshot is active and not past its end date. The end date is checked
// directly because the flag flips only on the next sweep. Admins bypass
// the gate. The snapshot is stored in the request context so handlers can
// apply plan limits without a second read. Must run after auth.Middleware.
func RequireActiveSubscription(snapshots SnapshotSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.GetIdentityFromContext(r.Context())
			if !ok {
				response.Error(w, response.ErrUnauthorized)
				return
			}
			if identity.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}

			snap, err := snapshots.Snapshot(r.Context(), identity.OwnerID)
			if err != nil {
				if errors.Is(err, ErrSnapshotNotFound) {
					response.Error(w, response.ErrSubscriptionExpired)
					return
				}
				response.Error(w, err)
				return
			}
			if !snap.IsActive || !snap.EndDate.After(time.Now().UTC()) {
				response.Error(w, response.ErrSubscriptionExpired)
				return
			}

			next.ServeHTTP(w, r.WithContext(SetSnapshotToContext(r.Context(), snap)))
		})
	}
}
