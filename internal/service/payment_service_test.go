package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceylongems/backoffice/internal/config"
	"github.com/ceylongems/backoffice/internal/gateway"
	"github.com/ceylongems/backoffice/internal/models"
	"github.com/ceylongems/backoffice/internal/repository"
)

// mockPaymentRepo is a mock repository.PaymentRepository for testing.
type mockPaymentRepo struct {
	createFunc       func(ctx context.Context, payment *models.Payment) error
	getByOrderIDFunc func(ctx context.Context, orderID string) (*models.Payment, error)
	updateStatusFunc func(ctx context.Context, orderID string, from, to models.PaymentStatus) error
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, payment)
	}
	return nil
}

func (m *mockPaymentRepo) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	return nil, nil
}

func (m *mockPaymentRepo) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	if m.getByOrderIDFunc != nil {
		return m.getByOrderIDFunc(ctx, orderID)
	}
	return nil, nil
}

func (m *mockPaymentRepo) List(ctx context.Context, query models.PaymentQuery) ([]*models.Payment, error) {
	return nil, nil
}

func (m *mockPaymentRepo) UpdateStatus(ctx context.Context, orderID string, from, to models.PaymentStatus) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, orderID, from, to)
	}
	return nil
}

func (m *mockPaymentRepo) CountByStatus(ctx context.Context, status models.PaymentStatus) (int64, error) {
	return 0, nil
}

// mockAuditRepo is a mock repository.AuditRepository for testing.
type mockAuditRepo struct {
	createFunc func(ctx context.Context, entry *models.AuditEntry) error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *models.AuditEntry) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, entry)
	}
	return nil
}

func (m *mockAuditRepo) List(ctx context.Context, query models.AuditQuery) ([]*models.AuditEntry, error) {
	return nil, nil
}

func (m *mockAuditRepo) Stream(ctx context.Context, query models.AuditQuery, fn func(*models.AuditEntry) error) error {
	return nil
}

var testPaymentConfig = config.PaymentConfig{
	MerchantID:     "1211149",
	MerchantSecret: "test-secret",
	BaseURL:        "https://shop.example.com",
	ReturnPath:     "/checkout/return",
	CancelPath:     "/checkout/cancel",
	NotifyPath:     "/api/payments/notify",
}

func newTestPaymentService(payments *mockPaymentRepo, audits *mockAuditRepo) *PaymentService {
	if audits == nil {
		audits = &mockAuditRepo{}
	}
	recorder := NewAuditRecorder(audits, testLogger())
	return NewPaymentService(payments, gateway.NewSigner(testPaymentConfig), recorder, testLogger())
}

func validCheckout() *CheckoutRequest {
	return &CheckoutRequest{
		OrderID:   "ORD-1001",
		Amount:    45000,
		Currency:  "LKR",
		FirstName: "Nimal",
		LastName:  "Perera",
		Email:     "nimal@example.com",
		Phone:     "+94771234567",
		Address:   "12 Galle Road",
		City:      "Colombo",
		Country:   "Sri Lanka",
		Items:     "Blue Sapphire 2.1ct",
	}
}

func TestPaymentService_Validate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*CheckoutRequest)
		wantFields []string
	}{
		{
			name:   "valid payload",
			mutate: func(r *CheckoutRequest) {},
		},
		{
			name:       "amount over cap",
			mutate:     func(r *CheckoutRequest) { r.Amount = 10_000_001 },
			wantFields: []string{"amount"},
		},
		{
			name:   "amount at cap is valid",
			mutate: func(r *CheckoutRequest) { r.Amount = 10_000_000 },
		},
		{
			name:       "zero amount",
			mutate:     func(r *CheckoutRequest) { r.Amount = 0 },
			wantFields: []string{"amount"},
		},
		{
			name:       "negative amount",
			mutate:     func(r *CheckoutRequest) { r.Amount = -5 },
			wantFields: []string{"amount"},
		},
		{
			name:       "bad currency code",
			mutate:     func(r *CheckoutRequest) { r.Currency = "rupees" },
			wantFields: []string{"currency"},
		},
		{
			name:       "bad email",
			mutate:     func(r *CheckoutRequest) { r.Email = "not-an-email" },
			wantFields: []string{"email"},
		},
		{
			name: "every violation reported at once",
			mutate: func(r *CheckoutRequest) {
				r.OrderID = ""
				r.Amount = -1
				r.Currency = "xx"
				r.Email = "bad"
				r.FirstName = ""
			},
			wantFields: []string{"order_id", "amount", "currency", "email", "first_name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestPaymentService(&mockPaymentRepo{}, nil)
			req := validCheckout()
			tt.mutate(req)

			err := svc.Validate(req)

			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Fields, len(tt.wantFields))
			for _, field := range tt.wantFields {
				assert.Contains(t, verr.Fields, field)
			}
		})
	}
}

func TestPaymentService_CreateIntent(t *testing.T) {
	var created *models.Payment
	repo := &mockPaymentRepo{
		createFunc: func(ctx context.Context, payment *models.Payment) error {
			created = payment
			return nil
		},
	}
	svc := newTestPaymentService(repo, nil)

	userID := "user-1"
	intent, err := svc.CreateIntent(context.Background(), validCheckout(), &userID, nil)
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, models.PaymentStatusPending, created.Status)
	assert.Equal(t, "ORD-1001", created.OrderID)
	assert.Equal(t, intent.PaymentID, created.ID)

	// Signed checkout fields carry the gateway contract
	assert.Equal(t, testPaymentConfig.MerchantID, intent.Checkout.MerchantID)
	assert.Equal(t, "45000.00", intent.Checkout.Amount)
	assert.Equal(t, "LKR", intent.Checkout.Currency)
	assert.Len(t, intent.Checkout.Hash, 32)
	assert.Equal(t, strings.ToUpper(intent.Checkout.Hash), intent.Checkout.Hash)
}

func TestPaymentService_CreateIntent_RejectsInvalid(t *testing.T) {
	repo := &mockPaymentRepo{
		createFunc: func(ctx context.Context, payment *models.Payment) error {
			t.Fatal("invalid payload reached the store")
			return nil
		},
	}
	svc := newTestPaymentService(repo, nil)

	req := validCheckout()
	req.Amount = 10_000_001

	_, err := svc.CreateIntent(context.Background(), req, nil, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "amount")
}

func TestPaymentService_CreateIntent_DuplicateOrder(t *testing.T) {
	t.Run("pre-check", func(t *testing.T) {
		repo := &mockPaymentRepo{
			getByOrderIDFunc: func(ctx context.Context, orderID string) (*models.Payment, error) {
				return &models.Payment{OrderID: orderID}, nil
			},
		}
		svc := newTestPaymentService(repo, nil)

		_, err := svc.CreateIntent(context.Background(), validCheckout(), nil, nil)
		assert.ErrorIs(t, err, repository.ErrDuplicateOrder)
	})

	t.Run("unique constraint on concurrent create", func(t *testing.T) {
		repo := &mockPaymentRepo{
			createFunc: func(ctx context.Context, payment *models.Payment) error {
				return repository.ErrDuplicateOrder
			},
		}
		svc := newTestPaymentService(repo, nil)

		_, err := svc.CreateIntent(context.Background(), validCheckout(), nil, nil)
		assert.ErrorIs(t, err, repository.ErrDuplicateOrder)
	})
}

func TestPaymentService_CreateIntent_GuestNotAudited(t *testing.T) {
	audited := false
	audits := &mockAuditRepo{
		createFunc: func(ctx context.Context, entry *models.AuditEntry) error {
			audited = true
			return nil
		},
	}
	svc := newTestPaymentService(&mockPaymentRepo{}, audits)

	_, err := svc.CreateIntent(context.Background(), validCheckout(), nil, nil)
	require.NoError(t, err)
	assert.False(t, audited, "guest checkout must not produce an audit entry")
}

// notifySig replicates the gateway's notification signature so tests can
// forge well-formed webhooks.
func notifySig(merchantID, orderID, amount, currency, statusCode, secret string) string {
	upper := func(s string) string {
		sum := md5.Sum([]byte(s))
		return strings.ToUpper(hex.EncodeToString(sum[:]))
	}
	return upper(merchantID + orderID + amount + currency + statusCode + upper(secret))
}

func testNotification(statusCode string) gateway.Notification {
	return gateway.Notification{
		MerchantID: testPaymentConfig.MerchantID,
		OrderID:    "ORD-1001",
		PaymentID:  "320025471",
		Amount:     "45000.00",
		Currency:   "LKR",
		StatusCode: statusCode,
		MD5Sig: notifySig(testPaymentConfig.MerchantID, "ORD-1001", "45000.00", "LKR",
			statusCode, testPaymentConfig.MerchantSecret),
	}
}

func TestPaymentService_HandleNotification(t *testing.T) {
	tests := []struct {
		statusCode string
		wantStatus models.PaymentStatus
	}{
		{gateway.StatusCodeSuccess, models.PaymentStatusCompleted},
		{gateway.StatusCodeCanceled, models.PaymentStatusCanceled},
		{gateway.StatusCodeFailed, models.PaymentStatusFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.wantStatus), func(t *testing.T) {
			var gotFrom, gotTo models.PaymentStatus
			repo := &mockPaymentRepo{
				getByOrderIDFunc: func(ctx context.Context, orderID string) (*models.Payment, error) {
					return &models.Payment{OrderID: orderID, Status: models.PaymentStatusPending}, nil
				},
				updateStatusFunc: func(ctx context.Context, orderID string, from, to models.PaymentStatus) error {
					gotFrom, gotTo = from, to
					return nil
				},
			}
			svc := newTestPaymentService(repo, nil)

			err := svc.HandleNotification(context.Background(), testNotification(tt.statusCode))
			require.NoError(t, err)
			assert.Equal(t, models.PaymentStatusPending, gotFrom)
			assert.Equal(t, tt.wantStatus, gotTo)
		})
	}
}

func TestPaymentService_HandleNotification_BadSignature(t *testing.T) {
	repo := &mockPaymentRepo{
		updateStatusFunc: func(ctx context.Context, orderID string, from, to models.PaymentStatus) error {
			t.Fatal("unverified notification reached the store")
			return nil
		},
	}
	svc := newTestPaymentService(repo, nil)

	n := testNotification(gateway.StatusCodeSuccess)
	n.Amount = "1.00" // tampered after signing

	err := svc.HandleNotification(context.Background(), n)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestPaymentService_HandleNotification_UnknownStatusCode(t *testing.T) {
	svc := newTestPaymentService(&mockPaymentRepo{}, nil)

	err := svc.HandleNotification(context.Background(), testNotification("0"))
	assert.Error(t, err)
}

func TestPaymentService_HandleNotification_UnknownOrder(t *testing.T) {
	repo := &mockPaymentRepo{
		updateStatusFunc: func(ctx context.Context, orderID string, from, to models.PaymentStatus) error {
			t.Fatal("notification for unknown order reached the store")
			return nil
		},
	}
	svc := newTestPaymentService(repo, nil)

	err := svc.HandleNotification(context.Background(), testNotification(gateway.StatusCodeSuccess))
	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestPaymentService_HandleNotification_AlreadyTerminal(t *testing.T) {
	repo := &mockPaymentRepo{
		getByOrderIDFunc: func(ctx context.Context, orderID string) (*models.Payment, error) {
			return &models.Payment{OrderID: orderID, Status: models.PaymentStatusCompleted}, nil
		},
		updateStatusFunc: func(ctx context.Context, orderID string, from, to models.PaymentStatus) error {
			return repository.ErrInvalidTransition
		},
	}
	svc := newTestPaymentService(repo, nil)

	err := svc.HandleNotification(context.Background(), testNotification(gateway.StatusCodeSuccess))
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)
}

func TestValidCurrency(t *testing.T) {
	assert.True(t, validCurrency("LKR"))
	assert.True(t, validCurrency("USD"))
	assert.False(t, validCurrency("lkr"))
	assert.False(t, validCurrency("LK"))
	assert.False(t, validCurrency("LKRS"))
	assert.False(t, validCurrency("L1R"))
}
