package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/ceylongems/backoffice/internal/identity"
	"github.com/ceylongems/backoffice/internal/models"
	"github.com/ceylongems/backoffice/internal/repository"
)

// Auth failure modes surfaced to the handler. Each maps to a distinct
// status: deactivation and missing privilege are not the same outcome as
// bad credentials.
var (
	ErrProfileNotFound    = errors.New("auth: no profile for identity")
	ErrAccountDeactivated = errors.New("auth: account is deactivated")
	ErrNotPrivileged      = errors.New("auth: role is not permitted")
	ErrMalformedCode      = errors.New("auth: malformed verification code")
)

// twoFactorCodeLength is the exact length a TOTP code must have before it
// is forwarded to the provider.
const twoFactorCodeLength = 6

// fireAndForgetTimeout bounds background side effects detached from the
// request context.
const fireAndForgetTimeout = 5 * time.Second

// LoginInput carries the login request fields.
type LoginInput struct {
	Email    string
	Password string
	Code     string // optional two-factor code
}

// LoginResult is the outcome of a successful (or 2FA-pending) login.
type LoginResult struct {
	// Requires2FA is set when credentials and role checks passed but a
	// second factor is still needed. Token and Profile are nil in that
	// case and no session may be issued.
	Requires2FA bool
	Profile     *models.UserProfile
	Token       *oauth2.Token
}

// AuthService implements the login and logout flows on top of the
// identity provider and the profile store.
type AuthService struct {
	provider identity.Provider
	profiles repository.ProfileRepository
	logger   *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(provider identity.Provider, profiles repository.ProfileRepository, logger *slog.Logger) *AuthService {
	return &AuthService{
		provider: provider,
		profiles: profiles,
		logger:   logger,
	}
}

// Login verifies credentials with the identity provider and authorizes
// the profile behind them. The order of checks matters: the 2FA branch
// runs only after full credential and role validation, so an
// unprivileged caller never learns whether 2FA is enabled.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	token, err := s.provider.PasswordGrant(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.provider.UserFromToken(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	if !profile.IsActive {
		return nil, ErrAccountDeactivated
	}
	if !profile.Role.Privileged() {
		return nil, ErrNotPrivileged
	}

	if profile.TwoFactorEnabled {
		if in.Code == "" {
			// Success-shaped envelope, not an error: the client runs a
			// second step with the code.
			return &LoginResult{Requires2FA: true}, nil
		}
		if len(in.Code) != twoFactorCodeLength {
			return nil, ErrMalformedCode
		}
		token, err = s.provider.VerifyCode(ctx, in.Email, in.Code)
		if err != nil {
			return nil, err
		}
	}

	s.touchLastLogin(profile.UserID)

	return &LoginResult{Profile: profile, Token: token}, nil
}

// touchLastLogin stamps the last-login time in the background. Failures
// never abort a login; they only reach the log.
func (s *AuthService) touchLastLogin(userID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), fireAndForgetTimeout)
		defer cancel()
		if err := s.profiles.UpdateLastLogin(ctx, userID); err != nil {
			s.logger.Warn("last-login update failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Logout revokes the provider session behind the access token.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	return s.provider.SignOut(ctx, accessToken)
}
