package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ceylongems/backoffice/internal/models"
)

// ErrDuplicateOrder is returned when a payment record already exists for
// the order id. Raised by the database unique constraint, which closes
// the race two concurrent creations would win together under a pure
// read-then-write check.
var ErrDuplicateOrder = errors.New("payment already exists for order")

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

// PaymentRepository defines the interface for payment record operations.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	List(ctx context.Context, query models.PaymentQuery) ([]*models.Payment, error)
	UpdateStatus(ctx context.Context, orderID string, from, to models.PaymentStatus) error
	CountByStatus(ctx context.Context, status models.PaymentStatus) (int64, error)
}

// ErrInvalidTransition is returned when a status update would leave a
// terminal state or skip the expected current state.
var ErrInvalidTransition = errors.New("invalid payment status transition")

type paymentRepo struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new payment repository.
func NewPaymentRepository(pool *pgxpool.Pool) PaymentRepository {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, order_id, user_id, amount, currency, status, first_name, last_name, email, phone, address, city, country, items, merchant_id, metadata, created_at, updated_at`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.UserID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.Phone,
		&p.Address,
		&p.City,
		&p.Country,
		&p.Items,
		&p.MerchantID,
		&p.Metadata,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new payment record. A unique violation on order_id is
// mapped to ErrDuplicateOrder.
func (r *paymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (id, order_id, user_id, amount, currency, status, first_name, last_name, email, phone, address, city, country, items, merchant_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		payment.ID,
		payment.OrderID,
		payment.UserID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.FirstName,
		payment.LastName,
		payment.Email,
		payment.Phone,
		payment.Address,
		payment.City,
		payment.Country,
		payment.Items,
		payment.MerchantID,
		payment.Metadata,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateOrder
	}
	return err
}

// GetByID retrieves a payment by id. Returns nil without error when not found.
func (r *paymentRepo) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByOrderID retrieves a payment by its order id.
func (r *paymentRepo) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List retrieves payments based on query parameters.
func (r *paymentRepo) List(ctx context.Context, q models.PaymentQuery) ([]*models.Payment, error) {
	baseQuery := `SELECT ` + paymentColumns + ` FROM payments WHERE 1=1`

	var args []any
	argIndex := 1

	if q.Status != nil {
		baseQuery += fmt.Sprintf(` AND status = $%d`, argIndex)
		args = append(args, *q.Status)
		argIndex++
	}
	if q.UserID != nil {
		baseQuery += fmt.Sprintf(` AND user_id = $%d`, argIndex)
		args = append(args, *q.UserID)
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
	if limit == 0 || limit > 100 {
		limit = 100
	}
	baseQuery += fmt.Sprintf(` LIMIT $%d`, argIndex)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, baseQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// UpdateStatus transitions a payment from one status to another. The
// WHERE clause enforces the one-way lifecycle: updating a row that is no
// longer in the expected state affects nothing and returns
// ErrInvalidTransition.
func (r *paymentRepo) UpdateStatus(ctx context.Context, orderID string, from, to models.PaymentStatus) error {
	query := `UPDATE payments SET status = $3, updated_at = NOW() WHERE order_id = $1 AND status = $2`
	tag, err := r.pool.Exec(ctx, query, orderID, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// CountByStatus counts payments in the given status.
func (r *paymentRepo) CountByStatus(ctx context.Context, status models.PaymentStatus) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE status = $1`, status).Scan(&count)
	return count, err
}

// Compile-time check to ensure paymentRepo implements PaymentRepository.
var _ PaymentRepository = (*paymentRepo)(nil)
