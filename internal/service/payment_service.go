package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ceylongems/backoffice/internal/gateway"
	"github.com/ceylongems/backoffice/internal/models"
	"github.com/ceylongems/backoffice/internal/pkg/ulid"
	"github.com/ceylongems/backoffice/internal/repository"
)

// maxPaymentAmount is the exclusive-lower/inclusive-upper bound on a
// checkout amount: amount must be in (0, 10,000,000].
const maxPaymentAmount = 10_000_000

// ValidationError carries every violated rule of a checkout payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("checkout validation failed: %d field(s)", len(e.Fields))
}

// CheckoutRequest is the checkout payload for a payment intent.
type CheckoutRequest struct {
	OrderID   string  `json:"order_id" validate:"required"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Currency  string  `json:"currency" validate:"required"`
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name" validate:"required"`
	Email     string  `json:"email" validate:"required,email"`
	Phone     string  `json:"phone" validate:"required"`
	Address   string  `json:"address" validate:"required"`
	City      string  `json:"city" validate:"required"`
	Country   string  `json:"country" validate:"required"`
	Items     string  `json:"items"`
}

// PaymentIntent is the result of building a payment intent: the persisted
// record id plus the signed fields for the hosted-checkout redirect.
type PaymentIntent struct {
	PaymentID string                 `json:"payment_id"`
	Checkout  gateway.CheckoutFields `json:"checkout"`
}

// PaymentService validates checkout payloads, persists payment records
// and produces signed gateway field sets.
type PaymentService struct {
	payments repository.PaymentRepository
	signer   *gateway.Signer
	audit    *AuditRecorder
	validate *validator.Validate
	logger   *slog.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(payments repository.PaymentRepository, signer *gateway.Signer, audit *AuditRecorder, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		payments: payments,
		signer:   signer,
		audit:    audit,
		validate: validator.New(),
		logger:   logger,
	}
}

// Validate runs both validation passes and collects every violation:
// field-level rules first, then domain-specific payment rules.
func (s *PaymentService) Validate(req *CheckoutRequest) error {
	fields := make(map[string]string)

	// Pass (a): generic field rules
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				switch fe.Tag() {
				case "required":
					fields[fieldName(fe)] = "is required"
				case "email":
					fields[fieldName(fe)] = "must be a valid email address"
				case "gt":
					fields[fieldName(fe)] = "must be greater than 0"
				default:
					fields[fieldName(fe)] = "is invalid"
				}
			}
		} else {
			return err
		}
	}

	// Pass (b): domain-specific payment rules
	if req.Amount > maxPaymentAmount {
		fields["amount"] = fmt.Sprintf("must not exceed %d", maxPaymentAmount)
	}
	if req.Currency != "" && !validCurrency(req.Currency) {
		fields["currency"] = "must be a 3-letter ISO currency code"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func fieldName(fe validator.FieldError) string {
	// Report the wire name, not the Go field
	switch fe.Field() {
	case "OrderID":
		return "order_id"
	case "FirstName":
		return "first_name"
	case "LastName":
		return "last_name"
	default:
		return strings.ToLower(fe.Field())
	}
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// CreateIntent validates the payload, persists a pending payment record
// and returns the signed gateway fields. The pre-insert existence check
// gives a friendly conflict early; the unique constraint on order_id is
// what actually closes the concurrent-create race.
func (s *PaymentService) CreateIntent(ctx context.Context, req *CheckoutRequest, userID *string, httpReq *http.Request) (*PaymentIntent, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	existing, err := s.payments.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, repository.ErrDuplicateOrder
	}

	checkout := s.signer.BuildCheckout(gateway.CheckoutInput{
		OrderID:   req.OrderID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		City:      req.City,
		Country:   req.Country,
		Items:     req.Items,
	})

	payment := &models.Payment{
		ID:         ulid.New(),
		OrderID:    req.OrderID,
		UserID:     userID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Status:     models.PaymentStatusPending,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		Address:    req.Address,
		City:       req.City,
		Country:    req.Country,
		Items:      req.Items,
		MerchantID: checkout.MerchantID,
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	// Guest checkouts are not audited: entries require an attributable user.
	if userID != nil && httpReq != nil {
		s.audit.RecordBestEffort(ctx, NewEntry(httpReq, *userID,
			models.AuditActionPaymentIntentCreated, models.AuditResourcePayment, payment.ID,
			map[string]string{
				"order_id": payment.OrderID,
				"amount":   gateway.FormatAmount(payment.Amount),
				"currency": payment.Currency,
			},
		))
	}

	return &PaymentIntent{PaymentID: payment.ID, Checkout: checkout}, nil
}

// Notification failure modes surfaced to the webhook handler.
var (
	// ErrBadSignature is returned when a gateway notification fails
	// signature verification.
	ErrBadSignature = errors.New("payment: notification signature mismatch")
	// ErrUnknownOrder is returned when a well-signed notification names
	// an order no payment record exists for.
	ErrUnknownOrder = errors.New("payment: no record for order")
)

// HandleNotification verifies a gateway webhook and applies the one-way
// status transition it carries. Unknown status codes, unknown orders and
// bad signatures change nothing.
func (s *PaymentService) HandleNotification(ctx context.Context, n gateway.Notification) error {
	if !s.signer.VerifyNotification(n) {
		return ErrBadSignature
	}

	var target models.PaymentStatus
	switch n.StatusCode {
	case gateway.StatusCodeSuccess:
		target = models.PaymentStatusCompleted
	case gateway.StatusCodeCanceled:
		target = models.PaymentStatusCanceled
	case gateway.StatusCodeFailed:
		target = models.PaymentStatusFailed
	default:
		return fmt.Errorf("payment: unknown status code %q", n.StatusCode)
	}

	// The lookup separates "no such order" from "already settled": both
	// would otherwise surface as the guarded update affecting zero rows.
	existing, err := s.payments.GetByOrderID(ctx, n.OrderID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrUnknownOrder
	}

	if err := s.payments.UpdateStatus(ctx, n.OrderID, models.PaymentStatusPending, target); err != nil {
		return err
	}

	s.logger.Info("payment status updated",
		slog.String("order_id", n.OrderID),
		slog.String("status", string(target)),
	)
	return nil
}

// Get retrieves a payment by id.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.Payment, error) {
	return s.payments.GetByID(ctx, id)
}

// List retrieves payments.
func (s *PaymentService) List(ctx context.Context, q models.PaymentQuery) ([]*models.Payment, error) {
	return s.payments.List(ctx, q)
}
