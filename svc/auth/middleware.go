package auth

import (
	"net/http"
	"strings"

	"github.com/tradesignal/backend/pkg/response"
)

// Middleware verifies the bearer access token and stores the verified
// Identity in the request context. Every failure collapses to the same
// 401 so callers cannot probe which check rejected the credential.
func Middleware(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := svc.VerifyAccessToken(bearerToken(r))
			if err != nil {
				response.Error(w, response.ErrUnauthorized)
				return
			}
			ownerID, err := claims.OwnerID()
			if err != nil {
				response.Error(w, response.ErrUnauthorized)
				return
			}

			ctx := SetIdentityToContext(r.Context(), Identity{
				OwnerID:   ownerID,
				OwnerType: claims.OwnerType,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects identities outside the admin namespace. Must run
// after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := GetIdentityFromContext(r.Context())
		if !ok {
			response.Error(w, response.ErrUnauthorized)
			return
		}
		if !identity.IsAdmin() {
			response.Error(w, response.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the credential from "Authorization: Bearer <token>".
// Returns empty for any other shape; verification rejects it downstream.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
