// Package session manages the application-side session cookies: the
// identity provider token pair, the idle-activity marker, and the CSRF
// double-submit token.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Cookie names.
const (
	CookieAccessToken  = "accessToken"
	CookieRefreshToken = "refreshToken"
	CookieLastActivity = "lastActivity"
	CookieCSRFToken    = "csrfToken"
)

// HeaderCSRFToken is the request header that must echo the csrfToken
// cookie on mutating requests.
const HeaderCSRFToken = "x-csrf-token"

// CookiePolicy holds the cookie attributes resolved once at startup and
// passed by value into every cookie writer.
type CookiePolicy struct {
	Secure bool // true in production
	Path   string
	MaxAge time.Duration
}

// NewCookiePolicy builds the policy for the given environment.
func NewCookiePolicy(production bool, maxAge time.Duration) CookiePolicy {
	return CookiePolicy{
		Secure: production,
		Path:   "/",
		MaxAge: maxAge,
	}
}

// SetTokens writes the identity provider token pair as httpOnly cookies.
func (p CookiePolicy) SetTokens(w http.ResponseWriter, accessToken, refreshToken string) {
	p.set(w, CookieAccessToken, accessToken, true, http.SameSiteStrictMode)
	p.set(w, CookieRefreshToken, refreshToken, true, http.SameSiteStrictMode)
}

// SetLastActivity writes the idle-activity marker as epoch milliseconds.
func (p CookiePolicy) SetLastActivity(w http.ResponseWriter, t time.Time) {
	p.set(w, CookieLastActivity, strconv.FormatInt(t.UnixMilli(), 10), true, http.SameSiteStrictMode)
}

// SetCSRFToken writes the double-submit token. Not httpOnly: client
// script must read it back into the x-csrf-token header.
func (p CookiePolicy) SetCSRFToken(w http.ResponseWriter, token string) {
	p.set(w, CookieCSRFToken, token, false, http.SameSiteLaxMode)
}

// ClearAll expires every session-bearing cookie with the same attribute
// policy they were set with.
func (p CookiePolicy) ClearAll(w http.ResponseWriter) {
	p.clear(w, CookieAccessToken, true, http.SameSiteStrictMode)
	p.clear(w, CookieRefreshToken, true, http.SameSiteStrictMode)
	p.clear(w, CookieLastActivity, true, http.SameSiteStrictMode)
	p.clear(w, CookieCSRFToken, false, http.SameSiteLaxMode)
}

func (p CookiePolicy) set(w http.ResponseWriter, name, value string, httpOnly bool, sameSite http.SameSite) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     p.Path,
		MaxAge:   int(p.MaxAge.Seconds()),
		HttpOnly: httpOnly,
		Secure:   p.Secure,
		SameSite: sameSite,
	})
}

func (p CookiePolicy) clear(w http.ResponseWriter, name string, httpOnly bool, sameSite http.SameSite) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     p.Path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: httpOnly,
		Secure:   p.Secure,
		SameSite: sameSite,
	})
}

// NewCSRFToken generates a cryptographically random double-submit token.
func NewCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate csrf token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// LastActivityFrom parses the idle-activity cookie value. The second
// return is false when the value is absent or malformed.
func LastActivityFrom(r *http.Request) (time.Time, bool) {
	c, err := r.Cookie(CookieLastActivity)
	if err != nil || c.Value == "" {
		return time.Time{}, false
	}
	millis, err := strconv.ParseInt(c.Value, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}

// AccessTokenFrom extracts the provider access token from request cookies.
func AccessTokenFrom(r *http.Request) string {
	c, err := r.Cookie(CookieAccessToken)
	if err != nil {
		return ""
	}
	return c.Value
}

// CSRFCookieFrom extracts the csrfToken cookie value.
func CSRFCookieFrom(r *http.Request) string {
	c, err := r.Cookie(CookieCSRFToken)
	if err != nil {
		return ""
	}
	return c.Value
}
