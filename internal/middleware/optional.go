package middleware

import (
	"context"
	"net/http"

	"github.com/ceylongems/backoffice/internal/identity"
	"github.com/ceylongems/backoffice/internal/session"
)

// OptionalIdentity attempts to resolve the caller's identity but never
// denies. Used on the checkout endpoint so authenticated purchases are
// attributable while guest checkout stays open.
func OptionalIdentity(provider identity.Provider) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := session.AccessTokenFrom(r); token != "" {
				if user, err := provider.UserFromToken(r.Context(), token); err == nil {
					ctx := context.WithValue(r.Context(), UserIDKey, user.ID)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			// Continue without identity
			next.ServeHTTP(w, r)
		})
	}
}
