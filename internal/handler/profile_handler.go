package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/ceylongems/backoffice/internal/middleware"
	"github.com/ceylongems/backoffice/internal/models"
	apierrors "github.com/ceylongems/backoffice/internal/pkg/errors"
	"github.com/ceylongems/backoffice/internal/pkg/response"
	"github.com/ceylongems/backoffice/internal/repository"
	"github.com/ceylongems/backoffice/internal/service"
)

// ProfileHandler handles admin user management.
type ProfileHandler struct {
	profiles repository.ProfileRepository
	audit    *service.AuditRecorder
	logger   *slog.Logger
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(profiles repository.ProfileRepository, audit *service.AuditRecorder, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, audit: audit, logger: logger}
}

// Routes returns the gate-protected profile routes.
func (h *ProfileHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/me", h.Me)
	r.Put("/me", h.UpdateMe)
	return r
}

// SettingsRoutes returns the routes that live under the superadmin-only
// settings sub-path; the gate enforces the tier by path prefix.
func (h *ProfileHandler) SettingsRoutes() chi.Router {
	r := chi.NewRouter()
	r.Put("/users/{id}/role", h.SetRole)
	r.Put("/users/{id}/active", h.SetActive)
	return r
}

// List handles GET /admin/users
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.List(r.Context(), 100)
	if err != nil {
		h.logger.Error("profile list failed", slog.String("error", err.Error()))
		response.InternalError(w)
		return
	}
	response.OK(w, profiles)
}

// Me handles GET /admin/users/me
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.GetByUserID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.logger.Error("profile lookup failed", slog.String("error", err.Error()))
		response.InternalError(w)
		return
	}
	if profile == nil {
		response.NotFound(w, "User profile")
		return
	}
	response.OK(w, profile)
}

// UpdateProfileRequest is the body for profile self-updates.
type UpdateProfileRequest struct {
	FirstName        string  `json:"first_name"`
	LastName         string  `json:"last_name"`
	Phone            *string `json:"phone,omitempty"`
	TwoFactorEnabled *bool   `json:"two_factor_enabled,omitempty"`
}

// UpdateMe handles PUT /admin/users/me
func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}

	userID := middleware.GetUserID(r.Context())
	profile, err := h.profiles.GetByUserID(r.Context(), userID)
	if err != nil {
		h.logger.Error("profile lookup failed", slog.String("error", err.Error()))
		response.InternalError(w)
		return
	}
	if profile == nil {
		response.NotFound(w, "User profile")
		return
	}

	profile.FirstName = req.FirstName
	profile.LastName = req.LastName
	profile.Phone = req.Phone
	if req.TwoFactorEnabled != nil {
		profile.TwoFactorEnabled = *req.TwoFactorEnabled
	}

	if err := h.profiles.Update(r.Context(), profile); err != nil {
		h.logger.Error("profile update failed", slog.String("error", err.Error()))
		response.InternalError(w)
		return
	}

	h.audit.RecordBestEffort(r.Context(), service.NewEntry(r, userID,
		models.AuditActionProfileUpdated, models.AuditResourceProfile, userID, nil))

	response.OK(w, profile)
}

// SetRoleRequest is the body for role changes.
type SetRoleRequest struct {
	Role string `json:"role"`
}

// SetRole handles PUT /admin/settings/users/{id}/role
func (h *ProfileHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")

	var req SetRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}

	role := models.NormalizeRole(req.Role)
	switch role {
	case models.RoleSuperAdmin, models.RoleAdmin, models.RoleModerator, models.RoleCustomer:
	default:
		response.Error(w, apierrors.NewValidationError("role", "unknown role"))
		return
	}

	if err := h.profiles.SetRole(r.Context(), targetID, role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(w, "User profile")
			return
		}
		h.logger.Error("role change failed", slog.String("error", err.Error()))
		response.InternalError(w)
		return
	}

	h.audit.RecordBestEffort(r.Context(), service.NewEntry(r, middleware.GetUserID(r.Context()),
		models.AuditActionProfileRoleChanged, models.AuditResourceProfile, targetID,
		map[string]string{"role": string(role)}))

	response.OK(w, map[string]string{"user_id": targetID, "role": string(role)})
}

// SetActiveRequest is the body for activation toggles.
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// SetActive handles PUT /admin/settings/users/{id}/active
func (h *ProfileHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}

	if err := h.profiles.SetActive(r.Context(), targetID, req.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(w, "User profile")
			return
		}
		h.logger.Error("activation change failed", slog.String("error", err.Error()))
		response.InternalError(w)
		return
	}

	action := models.AuditActionProfileDeactivated
	if req.Active {
		action = models.AuditActionProfileActivated
	}
	h.audit.RecordBestEffort(r.Context(), service.NewEntry(r, middleware.GetUserID(r.Context()),
		action, models.AuditResourceProfile, targetID, nil))

	response.OK(w, map[string]any{"user_id": targetID, "active": req.Active})
}
