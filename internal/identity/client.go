// Package identity wraps the remote authentication service. It issues and
// validates sessions on behalf of the application; user credentials are
// never verified locally.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/ceylongems/backoffice/internal/config"
)

// Typed provider errors. Anything else coming out of the client is an
// upstream failure and maps to a generic 5xx at the handler boundary.
var (
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrInvalidCode        = errors.New("identity: invalid verification code")
	ErrNoSession          = errors.New("identity: no valid session")
)

// User is the provider-side identity attached to a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Provider is the identity service interface consumed by the access gate
// and the auth service.
type Provider interface {
	// PasswordGrant exchanges email/password for a token pair.
	PasswordGrant(ctx context.Context, email, password string) (*oauth2.Token, error)
	// VerifyCode completes a two-factor challenge and returns a token pair.
	VerifyCode(ctx context.Context, email, code string) (*oauth2.Token, error)
	// UserFromToken resolves the identity behind an access token.
	UserFromToken(ctx context.Context, accessToken string) (*User, error)
	// SignOut revokes the session behind an access token.
	SignOut(ctx context.Context, accessToken string) error
}

// HTTPClient interface for making HTTP requests (allows mocking in tests).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a REST client for a GoTrue-compatible auth service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPClient
}

// NewClient creates an identity client from configuration.
func NewClient(cfg config.IdentityConfig) *Client {
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP creates an identity client with a custom HTTP client.
// This is primarily used for testing.
func NewClientWithHTTP(cfg config.IdentityConfig, httpClient HTTPClient) *Client {
	c := NewClient(cfg)
	c.httpClient = httpClient
	return c
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Message     string `json:"msg"`
}

func (e *errorResponse) text() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// PasswordGrant exchanges email/password for a token pair.
func (c *Client) PasswordGrant(ctx context.Context, email, password string) (*oauth2.Token, error) {
	body := map[string]string{"email": email, "password": password}
	return c.tokenRequest(ctx, "/token?grant_type=password", body)
}

// VerifyCode completes a two-factor challenge and returns a token pair.
func (c *Client) VerifyCode(ctx context.Context, email, code string) (*oauth2.Token, error) {
	body := map[string]string{"email": email, "token": code, "type": "totp"}
	tok, err := c.tokenRequest(ctx, "/verify", body)
	if errors.Is(err, ErrInvalidCredentials) {
		return nil, ErrInvalidCode
	}
	return tok, err
}

func (c *Client) tokenRequest(ctx context.Context, path string, body map[string]string) (*oauth2.Token, error) {
	resp, err := c.do(ctx, http.MethodPost, path, "", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusUnprocessableEntity {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if msg := e.text(); msg != "" {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, msg)
		}
		return nil, ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity: token endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("identity: failed to decode token response: %w", err)
	}

	return &oauth2.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		Expiry:       time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// UserFromToken resolves the identity behind an access token. Provider
// errors during resolution are reported as ErrNoSession; the gate treats
// them as "no session", not retried.
func (c *Client) UserFromToken(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, ErrNoSession
	}

	resp, err := c.do(ctx, http.MethodGet, "/user", accessToken, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrNoSession
	}

	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if u.ID == "" {
		return nil, ErrNoSession
	}
	return &u, nil
}

// SignOut revokes the session behind an access token.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	resp, err := c.do(ctx, http.MethodPost, "/logout", accessToken, nil)
	if err != nil {
		return fmt.Errorf("identity: sign-out failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity: sign-out returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	return c.httpClient.Do(req)
}

// Compile-time check to ensure Client implements Provider.
var _ Provider = (*Client)(nil)
