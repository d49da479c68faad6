// Package handler provides HTTP handlers for the back-office API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ceylongems/backoffice/internal/identity"
	"github.com/ceylongems/backoffice/internal/middleware"
	"github.com/ceylongems/backoffice/internal/models"
	apierrors "github.com/ceylongems/backoffice/internal/pkg/errors"
	"github.com/ceylongems/backoffice/internal/pkg/response"
	"github.com/ceylongems/backoffice/internal/service"
	"github.com/ceylongems/backoffice/internal/session"
)

// AuthHandler handles login and logout.
type AuthHandler struct {
	auth   *service.AuthService
	audit  *service.AuditRecorder
	policy session.CookiePolicy
	logger *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth *service.AuthService, audit *service.AuditRecorder, policy session.CookiePolicy, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		audit:  audit,
		policy: policy,
		logger: logger,
	}
}

// Routes returns a chi router with auth routes.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	return r
}

// LoginRequest is the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
}

// LoginResponse is the success-shaped login response. Requires2FA marks
// the pending second step; User is set only on a completed login.
type LoginResponse struct {
	Requires2FA bool                `json:"requires2FA,omitempty"`
	User        *models.UserProfile `json:"user,omitempty"`
}

// Login handles POST /admin/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Email and password are required"))
		return
	}

	result, err := h.auth.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Code:     req.Code,
	})
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	if result.Requires2FA {
		// No session cookies yet: the client repeats the request with a code.
		response.OK(w, LoginResponse{Requires2FA: true})
		return
	}

	now := time.Now()
	csrfToken, err := session.NewCSRFToken()
	if err != nil {
		h.logger.Error("csrf token generation failed", slog.String("error", err.Error()))
		response.InternalError(w)
		return
	}

	h.policy.SetTokens(w, result.Token.AccessToken, result.Token.RefreshToken)
	h.policy.SetLastActivity(w, now)
	h.policy.SetCSRFToken(w, csrfToken)

	h.audit.RecordBestEffort(r.Context(), service.NewEntry(r, result.Profile.UserID,
		models.AuditActionLogin, models.AuditResourceSession, "", nil))

	response.OK(w, LoginResponse{User: result.Profile})
}

func (h *AuthHandler) writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		response.Error(w, apierrors.ErrUnauthorized.WithMessage(err.Error()))
	case errors.Is(err, identity.ErrInvalidCode), errors.Is(err, service.ErrMalformedCode):
		response.Error(w, apierrors.ErrUnauthorized.WithMessage("Invalid verification code"))
	case errors.Is(err, service.ErrProfileNotFound):
		response.NotFound(w, "User profile")
	case errors.Is(err, service.ErrAccountDeactivated):
		response.Error(w, apierrors.ErrForbidden.WithMessage("Account is deactivated"))
	case errors.Is(err, service.ErrNotPrivileged):
		response.Forbidden(w)
	default:
		h.logger.Error("login failed", slog.String("error", err.Error()))
		response.InternalError(w)
	}
}

// Logout handles POST /admin/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), session.AccessTokenFrom(r)); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage(err.Error()))
		return
	}

	if userID := middleware.GetUserID(r.Context()); userID != "" {
		h.audit.RecordBestEffort(r.Context(), service.NewEntry(r, userID,
			models.AuditActionLogout, models.AuditResourceSession, "", nil))
	}

	h.policy.ClearAll(w)
	response.OK(w, map[string]string{"status": "signed_out"})
}
