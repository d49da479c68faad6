package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction identifies a security-relevant action.
type AuditAction string

const (
	// Auth actions
	AuditActionLogin  AuditAction = "auth.login"
	AuditActionLogout AuditAction = "auth.logout"

	// Profile actions
	AuditActionProfileUpdated     AuditAction = "profile.updated"
	AuditActionProfileRoleChanged AuditAction = "profile.role_changed"
	AuditActionProfileActivated   AuditAction = "profile.activated"
	AuditActionProfileDeactivated AuditAction = "profile.deactivated"

	// Payment actions
	AuditActionPaymentIntentCreated AuditAction = "payment.intent_created"
	AuditActionPaymentStatusChanged AuditAction = "payment.status_changed"
)

// AuditResourceType identifies the resource an action targets.
type AuditResourceType string

const (
	AuditResourceProfile AuditResourceType = "profile"
	AuditResourcePayment AuditResourceType = "payment"
	AuditResourceSession AuditResourceType = "session"
)

// AuditEntry is an immutable record of a privileged action. Entries are
// append-only: the application never updates or deletes them.
type AuditEntry struct {
	ID           uuid.UUID          `json:"id" db:"id"`
	UserID       string             `json:"user_id" db:"user_id"`
	Action       AuditAction        `json:"action" db:"action"`
	ResourceType *AuditResourceType `json:"resource_type,omitempty" db:"resource_type"`
	ResourceID   *string            `json:"resource_id,omitempty" db:"resource_id"`
	Details      json.RawMessage    `json:"details,omitempty" db:"details"`
	IPAddress    *string            `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent    *string            `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`
}

// AuditQuery filters audit log listings.
type AuditQuery struct {
	UserID       *string
	Action       *AuditAction
	ResourceType *AuditResourceType
	ResourceID   *string
	StartTime    *time.Time
	EndTime      *time.Time
	Limit        int
}
