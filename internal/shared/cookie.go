package shared

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// AuthStatusCookie mirrors "a session exists" for route guards that run before any state is hydrated.
//
// It is readable by scripts and carries no credential; it is a routing hint only.
const AuthStatusCookie = "isAuthenticated"

// CookieMirror keeps [AuthStatusCookie] in a cookie jar in step with the session.
type CookieMirror struct {
	jar http.CookieJar
	url *url.URL
}

// NewCookieMirror binds the mirror to the jar entry for baseURL.
func NewCookieMirror(jar http.CookieJar, baseURL string) (*CookieMirror, error) {
	if jar == nil {
		return nil, fmt.Errorf("%w: cookie jar is required", ErrInvalidInput)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %v", ErrInvalidInput, err)
	}
	root := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}

	return &CookieMirror{jar: jar, url: root}, nil
}

// Set writes the status cookie. expiresIn is in seconds; zero or less makes it a session cookie.
func (m *CookieMirror) Set(expiresIn int) {
	c := &http.Cookie{
		Name:     AuthStatusCookie,
		Value:    strconv.FormatBool(true),
		Path:     "/",
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	}
	if expiresIn > 0 {
		c.MaxAge = expiresIn
	}
	m.jar.SetCookies(m.url, []*http.Cookie{c})
}

// Clear deletes the status cookie.
func (m *CookieMirror) Clear() {
	m.jar.SetCookies(m.url, []*http.Cookie{{
		Name:   AuthStatusCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	}})
}

// Present reports whether the status cookie is currently in the jar.
func (m *CookieMirror) Present() bool {
	for _, c := range m.jar.Cookies(m.url) {
		if c.Name == AuthStatusCookie && c.Value == "true" {
			return true
		}
	}
	return false
}
