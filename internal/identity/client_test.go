package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/ceylongems/backoffice/internal/config"
)

// mockHTTPClient is a mock HTTP client for testing.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func jsonResponse(status int, body any) *http.Response {
	buf, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(buf)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func testClient(doFunc func(req *http.Request) (*http.Response, error)) *Client {
	return NewClientWithHTTP(config.IdentityConfig{
		BaseURL: "https://auth.example.com",
		APIKey:  "test-key",
	}, &mockHTTPClient{doFunc: doFunc})
}

func TestClient_PasswordGrant(t *testing.T) {
	var gotReq *http.Request
	client := testClient(func(req *http.Request) (*http.Response, error) {
		gotReq = req
		return jsonResponse(http.StatusOK, map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
			"token_type":    "bearer",
		}), nil
	})

	token, err := client.PasswordGrant(context.Background(), "admin@example.com", "secret")
	if err != nil {
		t.Fatalf("PasswordGrant() error = %v", err)
	}
	if token.AccessToken != "access-1" || token.RefreshToken != "refresh-1" {
		t.Errorf("token = %+v, want access-1/refresh-1", token)
	}

	if gotReq.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", gotReq.Method)
	}
	if !strings.HasSuffix(gotReq.URL.String(), "/token?grant_type=password") {
		t.Errorf("URL = %s, want password grant endpoint", gotReq.URL)
	}
	if gotReq.Header.Get("apikey") != "test-key" {
		t.Error("apikey header not set")
	}
}

func TestClient_PasswordGrant_InvalidCredentials(t *testing.T) {
	client := testClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid login credentials",
		}), nil
	})

	_, err := client.PasswordGrant(context.Background(), "admin@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("error = %v, want ErrInvalidCredentials", err)
	}
}

func TestClient_VerifyCode_MapsToInvalidCode(t *testing.T) {
	client := testClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, map[string]string{"msg": "Token has expired"}), nil
	})

	_, err := client.VerifyCode(context.Background(), "admin@example.com", "123456")
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("error = %v, want ErrInvalidCode", err)
	}
}

func TestClient_UserFromToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		doFunc  func(req *http.Request) (*http.Response, error)
		wantErr bool
	}{
		{
			name:  "valid session",
			token: "access-1",
			doFunc: func(req *http.Request) (*http.Response, error) {
				if got := req.Header.Get("Authorization"); got != "Bearer access-1" {
					t.Errorf("Authorization = %q, want bearer token", got)
				}
				return jsonResponse(http.StatusOK, User{ID: "user-1", Email: "admin@example.com"}), nil
			},
		},
		{
			name:    "empty token short-circuits",
			token:   "",
			doFunc:  func(req *http.Request) (*http.Response, error) { t.Fatal("request made with empty token"); return nil, nil },
			wantErr: true,
		},
		{
			name:  "expired token",
			token: "stale",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusUnauthorized, map[string]string{"msg": "JWT expired"}), nil
			},
			wantErr: true,
		},
		{
			name:  "transport failure is no session",
			token: "access-1",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("connection refused")
			},
			wantErr: true,
		},
		{
			name:  "response without id rejected",
			token: "access-1",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, map[string]string{"email": "admin@example.com"}), nil
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient(tt.doFunc)

			user, err := client.UserFromToken(context.Background(), tt.token)

			if tt.wantErr {
				if !errors.Is(err, ErrNoSession) {
					t.Fatalf("error = %v, want ErrNoSession", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("UserFromToken() error = %v", err)
			}
			if user.ID != "user-1" {
				t.Errorf("user.ID = %q, want user-1", user.ID)
			}
		})
	}
}

func TestClient_SignOut(t *testing.T) {
	client := testClient(func(req *http.Request) (*http.Response, error) {
		if !strings.HasSuffix(req.URL.Path, "/logout") {
			t.Errorf("URL = %s, want logout endpoint", req.URL)
		}
		return &http.Response{StatusCode: http.StatusNoContent, Body: io.NopCloser(strings.NewReader(""))}, nil
	})

	if err := client.SignOut(context.Background(), "access-1"); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
}

func TestClient_SignOut_UpstreamFailure(t *testing.T) {
	client := testClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError, nil), nil
	})

	if err := client.SignOut(context.Background(), "access-1"); err == nil {
		t.Fatal("SignOut() error = nil, want upstream failure")
	}
}
