package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/ceylongems/backoffice/internal/identity"
	"github.com/ceylongems/backoffice/internal/models"
)

// Test doubles shared across handler tests. Each struct mirrors an
// interface with per-method func fields so individual tests override only
// what they exercise.

type mockProvider struct {
	passwordGrantFunc func(ctx context.Context, email, password string) (*oauth2.Token, error)
	verifyCodeFunc    func(ctx context.Context, email, code string) (*oauth2.Token, error)
	userFromTokenFunc func(ctx context.Context, accessToken string) (*identity.User, error)
	signOutFunc       func(ctx context.Context, accessToken string) error
}

func (m *mockProvider) PasswordGrant(ctx context.Context, email, password string) (*oauth2.Token, error) {
	if m.passwordGrantFunc != nil {
		return m.passwordGrantFunc(ctx, email, password)
	}
	return &oauth2.Token{AccessToken: "access-1", RefreshToken: "refresh-1"}, nil
}

func (m *mockProvider) VerifyCode(ctx context.Context, email, code string) (*oauth2.Token, error) {
	if m.verifyCodeFunc != nil {
		return m.verifyCodeFunc(ctx, email, code)
	}
	return &oauth2.Token{AccessToken: "access-2fa"}, nil
}

func (m *mockProvider) UserFromToken(ctx context.Context, accessToken string) (*identity.User, error) {
	if m.userFromTokenFunc != nil {
		return m.userFromTokenFunc(ctx, accessToken)
	}
	return &identity.User{ID: "user-1", Email: "admin@example.com"}, nil
}

func (m *mockProvider) SignOut(ctx context.Context, accessToken string) error {
	if m.signOutFunc != nil {
		return m.signOutFunc(ctx, accessToken)
	}
	return nil
}

type mockProfileRepo struct {
	getByUserIDFunc     func(ctx context.Context, userID string) (*models.UserProfile, error)
	updateFunc          func(ctx context.Context, profile *models.UserProfile) error
	setRoleFunc         func(ctx context.Context, userID string, role models.Role) error
	setActiveFunc       func(ctx context.Context, userID string, active bool) error
	updateLastLoginFunc func(ctx context.Context, userID string) error
	listFunc            func(ctx context.Context, limit int) ([]*models.UserProfile, error)
}

func (m *mockProfileRepo) GetByUserID(ctx context.Context, userID string) (*models.UserProfile, error) {
	if m.getByUserIDFunc != nil {
		return m.getByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockProfileRepo) GetByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	return nil, nil
}

func (m *mockProfileRepo) List(ctx context.Context, limit int) ([]*models.UserProfile, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, limit)
	}
	return nil, nil
}

func (m *mockProfileRepo) Update(ctx context.Context, profile *models.UserProfile) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, profile)
	}
	return nil
}

func (m *mockProfileRepo) SetRole(ctx context.Context, userID string, role models.Role) error {
	if m.setRoleFunc != nil {
		return m.setRoleFunc(ctx, userID, role)
	}
	return nil
}

func (m *mockProfileRepo) SetActive(ctx context.Context, userID string, active bool) error {
	if m.setActiveFunc != nil {
		return m.setActiveFunc(ctx, userID, active)
	}
	return nil
}

func (m *mockProfileRepo) UpdateLastLogin(ctx context.Context, userID string) error {
	if m.updateLastLoginFunc != nil {
		return m.updateLastLoginFunc(ctx, userID)
	}
	return nil
}

func (m *mockProfileRepo) CountActiveAdmins(ctx context.Context) (int64, error) {
	return 0, nil
}

type mockAuditRepo struct {
	createFunc func(ctx context.Context, entry *models.AuditEntry) error
	listFunc   func(ctx context.Context, query models.AuditQuery) ([]*models.AuditEntry, error)
	streamFunc func(ctx context.Context, query models.AuditQuery, fn func(*models.AuditEntry) error) error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *models.AuditEntry) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, entry)
	}
	return nil
}

func (m *mockAuditRepo) List(ctx context.Context, query models.AuditQuery) ([]*models.AuditEntry, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, query)
	}
	return nil, nil
}

func (m *mockAuditRepo) Stream(ctx context.Context, query models.AuditQuery, fn func(*models.AuditEntry) error) error {
	if m.streamFunc != nil {
		return m.streamFunc(ctx, query, fn)
	}
	return nil
}

type mockPaymentRepo struct {
	createFunc       func(ctx context.Context, payment *models.Payment) error
	getByIDFunc      func(ctx context.Context, id string) (*models.Payment, error)
	getByOrderIDFunc func(ctx context.Context, orderID string) (*models.Payment, error)
	listFunc         func(ctx context.Context, query models.PaymentQuery) ([]*models.Payment, error)
	updateStatusFunc func(ctx context.Context, orderID string, from, to models.PaymentStatus) error
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, payment)
	}
	return nil
}

func (m *mockPaymentRepo) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockPaymentRepo) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	if m.getByOrderIDFunc != nil {
		return m.getByOrderIDFunc(ctx, orderID)
	}
	return nil, nil
}

func (m *mockPaymentRepo) List(ctx context.Context, query models.PaymentQuery) ([]*models.Payment, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, query)
	}
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

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
