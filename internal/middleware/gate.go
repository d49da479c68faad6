// Package middleware provides HTTP middleware for the back-office API.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ceylongems/backoffice/internal/identity"
	"github.com/ceylongems/backoffice/internal/models"
	"github.com/ceylongems/backoffice/internal/pkg/response"
	"github.com/ceylongems/backoffice/internal/repository"
	"github.com/ceylongems/backoffice/internal/session"
)

// Deny reasons carried on the login redirect. CSRF and role denials get
// no reason: leaking which check failed helps an attacker, while
// authentication-stage reasons only improve UX.
const (
	ReasonSessionExpired  = "session_expired"
	ReasonUnauthenticated = "unauthenticated"
	ReasonUserNotFound    = "user_not_found"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the context key for the authenticated user id.
	UserIDKey contextKey = "user_id"
	// RoleKey is the context key for the authenticated user's role.
	RoleKey contextKey = "role"
)

// GetUserID retrieves the authenticated user id from context.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(UserIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetRole retrieves the authenticated role from context.
func GetRole(ctx context.Context) models.Role {
	if v := ctx.Value(RoleKey); v != nil {
		return v.(models.Role)
	}
	return ""
}

// GateConfig holds access gate configuration.
type GateConfig struct {
	// SessionTimeout is the idle timeout for admin sessions.
	SessionTimeout time.Duration
	// LoginPath receives authentication-stage denials with a reason param.
	LoginPath string
	// ForbiddenPath receives CSRF and role denials, with no param.
	ForbiddenPath string
	// PublicPaths bypass all checks (login page, forbidden page).
	PublicPaths []string
	// SuperAdminPrefixes are sub-paths restricted to the highest tier.
	SuperAdminPrefixes []string
}

// mutating reports whether the method requires the CSRF double-submit check.
func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Gate returns the single decision point for every administrative
// request. Checks run strictly in order and short-circuit: idle timeout,
// CSRF (mutating methods), session, profile existence, role, path tier.
// All checks are single-attempt; a provider error during session
// resolution counts as "no session".
func Gate(cfg GateConfig, provider identity.Provider, profiles repository.ProfileRepository, policy session.CookiePolicy, logger *slog.Logger) func(next http.Handler) http.Handler {
	publicPaths := make(map[string]bool)
	for _, path := range cfg.PublicPaths {
		publicPaths[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			now := time.Now()

			// 1. Idle timeout. An absent cookie is initialized on the way
			// out and the request proceeds: the first request after login
			// has no marker yet. (The alternative, treating absence as
			// expiry, would bounce every fresh session.)
			if last, ok := session.LastActivityFrom(r); ok {
				if now.Sub(last) > cfg.SessionTimeout {
					gateDenials.WithLabelValues(ReasonSessionExpired).Inc()
					redirectLogin(w, r, cfg.LoginPath, ReasonSessionExpired)
					return
				}
			}

			// 2. CSRF double-submit on mutating methods. Hard stop with no
			// reason and no cookie writes: re-login does not recover this.
			if mutating(r.Method) {
				header := r.Header.Get(session.HeaderCSRFToken)
				cookie := session.CSRFCookieFrom(r)
				if header == "" || cookie == "" || header != cookie {
					gateDenials.WithLabelValues("csrf").Inc()
					http.Redirect(w, r, cfg.ForbiddenPath, http.StatusFound)
					return
				}
			}

			// 3. Session resolution via the identity provider.
			user, err := provider.UserFromToken(r.Context(), session.AccessTokenFrom(r))
			if err != nil {
				gateDenials.WithLabelValues(ReasonUnauthenticated).Inc()
				redirectLogin(w, r, cfg.LoginPath, ReasonUnauthenticated)
				return
			}

			// 4. Profile existence. Distinct from "unauthenticated": the
			// identity is real but the application has no record for it.
			profile, err := profiles.GetByUserID(r.Context(), user.ID)
			if err != nil {
				logger.Error("profile lookup failed",
					slog.String("user_id", user.ID),
					slog.String("error", err.Error()),
				)
				response.InternalError(w)
				return
			}
			if profile == nil {
				gateDenials.WithLabelValues(ReasonUserNotFound).Inc()
				redirectLogin(w, r, cfg.LoginPath, ReasonUserNotFound)
				return
			}

			// 5. Role authorization. Roles are canonical-cased at the
			// repository boundary, so membership is a direct comparison.
			if !profile.IsActive || !profile.Role.Privileged() {
				gateDenials.WithLabelValues("role").Inc()
				http.Redirect(w, r, cfg.ForbiddenPath, http.StatusFound)
				return
			}

			// 6. Fine-grained path authorization: some sub-paths need the
			// highest tier even though step 5 passed.
			for _, prefix := range cfg.SuperAdminPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) && profile.Role != models.RoleSuperAdmin {
					gateDenials.WithLabelValues("tier").Inc()
					http.Redirect(w, r, cfg.ForbiddenPath, http.StatusFound)
					return
				}
			}

			// 7. Allowed. Refresh the activity marker on the way out;
			// this also initializes it when it was absent.
			policy.SetLastActivity(w, now)
			gateAllowed.Inc()

			ctx := context.WithValue(r.Context(), UserIDKey, profile.UserID)
			ctx = context.WithValue(ctx, RoleKey, profile.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func redirectLogin(w http.ResponseWriter, r *http.Request, loginPath, reason string) {
	http.Redirect(w, r, loginPath+"?reason="+reason, http.StatusFound)
}
