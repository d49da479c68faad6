// Package service provides business logic implementations.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ceylongems/backoffice/internal/models"
	"github.com/ceylongems/backoffice/internal/repository"
)

// AuditRecorder writes append-only audit entries for privileged actions.
type AuditRecorder struct {
	repo   repository.AuditRepository
	logger *slog.Logger
}

// NewAuditRecorder creates a new audit recorder.
func NewAuditRecorder(repo repository.AuditRepository, logger *slog.Logger) *AuditRecorder {
	return &AuditRecorder{repo: repo, logger: logger}
}

// Record writes an audit entry, propagating any persistence error.
func (a *AuditRecorder) Record(ctx context.Context, entry *models.AuditEntry) error {
	return a.repo.Create(ctx, entry)
}

// RecordBestEffort writes an audit entry but never fails the caller.
// Failures go to the side-channel log only.
func (a *AuditRecorder) RecordBestEffort(ctx context.Context, entry *models.AuditEntry) {
	if err := a.repo.Create(ctx, entry); err != nil {
		a.logger.Warn("audit write failed",
			slog.String("action", string(entry.Action)),
			slog.String("user_id", entry.UserID),
			slog.String("error", err.Error()),
		)
	}
}

// List retrieves audit entries.
func (a *AuditRecorder) List(ctx context.Context, q models.AuditQuery) ([]*models.AuditEntry, error) {
	return a.repo.List(ctx, q)
}

// Stream invokes fn for each matching entry.
func (a *AuditRecorder) Stream(ctx context.Context, q models.AuditQuery, fn func(*models.AuditEntry) error) error {
	return a.repo.Stream(ctx, q, fn)
}

// NewEntry builds an audit entry attributed to the request's client.
func NewEntry(r *http.Request, userID string, action models.AuditAction, resourceType models.AuditResourceType, resourceID string, details any) *models.AuditEntry {
	entry := &models.AuditEntry{
		UserID:       userID,
		Action:       action,
		ResourceType: &resourceType,
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			entry.Details = raw
		}
	}
	if ip := ClientIP(r); ip != "" {
		entry.IPAddress = &ip
	}
	if ua := r.UserAgent(); ua != "" {
		entry.UserAgent = &ua
	}
	return entry
}

// ClientIP extracts the real client IP, considering proxies.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First hop is the client
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}
	return r.RemoteAddr
}
