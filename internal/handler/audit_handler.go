package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"

	"github.com/ceylongems/backoffice/internal/models"
	"github.com/ceylongems/backoffice/internal/pkg/response"
	"github.com/ceylongems/backoffice/internal/service"
)

// AuditHandler exposes the audit trail to administrators. Read-only:
// entries are append-only and the API offers no mutation.
type AuditHandler struct {
	audit  *service.AuditRecorder
	logger *slog.Logger
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(audit *service.AuditRecorder, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logger}
}

// Routes returns the gate-protected audit routes.
func (h *AuditHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/export", h.Export)
	return r
}

func auditQueryFrom(r *http.Request) models.AuditQuery {
	q := models.AuditQuery{}
	params := r.URL.Query()

	if v := params.Get("user_id"); v != "" {
		q.UserID = &v
	}
	if v := params.Get("action"); v != "" {
		action := models.AuditAction(v)
		q.Action = &action
	}
	if v := params.Get("resource_type"); v != "" {
		rt := models.AuditResourceType(v)
		q.ResourceType = &rt
	}
	if v := params.Get("start"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			q.StartTime = &t
		}
	}
	if v := params.Get("end"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			q.EndTime = &t
		}
	}
	return q
}

// List handles GET /admin/audit
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.List(r.Context(), auditQueryFrom(r))
	if err != nil {
		h.logger.Error("audit list failed", slog.String("error", err.Error()))
		response.InternalError(w)
		return
	}
	response.OK(w, entries)
}

// Export handles GET /admin/audit/export, streaming matching entries as
// gzip-compressed NDJSON.
func (h *AuditHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := auditQueryFrom(r)
	q.Limit = 1000

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-log.ndjson.gz"`)

	gz := gzip.NewWriter(w)
	defer gz.Close()

	enc := json.NewEncoder(gz)
	err := h.audit.Stream(r.Context(), q, func(e *models.AuditEntry) error {
		return enc.Encode(e)
	})
	if err != nil {
		// Headers are gone; all we can do is log and truncate the stream.
		h.logger.Error("audit export failed", slog.String("error", err.Error()))
	}
}
