package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ceylongems/backoffice/internal/models"
)

// AuditRepository defines the interface for audit log operations.
// Entries are append-only: there is deliberately no update or delete.
type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, query models.AuditQuery) ([]*models.AuditEntry, error)
	Stream(ctx context.Context, query models.AuditQuery, fn func(*models.AuditEntry) error) error
}

type auditRepo struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new audit log repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepo{pool: pool}
}

// Create inserts a new audit log entry.
func (r *auditRepo) Create(ctx context.Context, entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_logs (id, user_id, action, resource_type, resource_id, details, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	return r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.Details,
		entry.IPAddress,
		entry.UserAgent,
	).Scan(&entry.CreatedAt)
}

func buildAuditQuery(q models.AuditQuery) (string, []any) {
	baseQuery := `
		SELECT id, user_id, action, resource_type, resource_id, details, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE 1=1`

	var args []any
	argIndex := 1

	if q.UserID != nil {
		baseQuery += fmt.Sprintf(` AND user_id = $%d`, argIndex)
		args = append(args, *q.UserID)
		argIndex++
	}
	if q.Action != nil {
		baseQuery += fmt.Sprintf(` AND action = $%d`, argIndex)
		args = append(args, *q.Action)
		argIndex++
	}
	if q.ResourceType != nil {
		baseQuery += fmt.Sprintf(` AND resource_type = $%d`, argIndex)
		args = append(args, *q.ResourceType)
		argIndex++
	}
	if q.ResourceID != nil {
		baseQuery += fmt.Sprintf(` AND resource_id = $%d`, argIndex)
		args = append(args, *q.ResourceID)
		argIndex++
	}
	if q.StartTime != nil {
		baseQuery += fmt.Sprintf(` AND created_at >= $%d`, argIndex)
		args = append(args, *q.StartTime)
		argIndex++
	}
	if q.EndTime != nil {
		baseQuery += fmt.Sprintf(` AND created_at <= $%d`, argIndex)
		args = append(args, *q.EndTime)
		argIndex++
	}

	baseQuery += ` ORDER BY created_at DESC`

	limit := q.Limit
	if limit == 0 || limit > 1000 {
		limit = 100
	}
	baseQuery += fmt.Sprintf(` LIMIT $%d`, argIndex)
	args = append(args, limit)

	return baseQuery, args
}

func scanAuditEntry(rows pgx.Rows) (*models.AuditEntry, error) {
	var e models.AuditEntry
	if err := rows.Scan(
		&e.ID,
		&e.UserID,
		&e.Action,
		&e.ResourceType,
		&e.ResourceID,
		&e.Details,
		&e.IPAddress,
		&e.UserAgent,
		&e.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

// List retrieves audit entries based on query parameters.
func (r *auditRepo) List(ctx context.Context, q models.AuditQuery) ([]*models.AuditEntry, error) {
	query, args := buildAuditQuery(q)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stream invokes fn for each matching entry without materializing the
// whole result set. Used by the export endpoint.
func (r *auditRepo) Stream(ctx context.Context, q models.AuditQuery, fn func(*models.AuditEntry) error) error {
	query, args := buildAuditQuery(q)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Compile-time check to ensure auditRepo implements AuditRepository.
var _ AuditRepository = (*auditRepo)(nil)
