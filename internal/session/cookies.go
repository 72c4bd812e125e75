package session

import (
	"net/http"
	"time"
)

// Cookie names carried by the browser.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

func (m *Manager) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Cookies renders t as Set-Cookie values. The refresh cookie is omitted
// when t carries no refresh token.
func (m *Manager) Cookies(t Tokens) []*http.Cookie {
	out := []*http.Cookie{m.cookie(AccessCookie, t.Access.Token, m.codec.AccessTTL())}
	if t.Refresh != nil {
		out = append(out, m.cookie(RefreshCookie, t.Refresh.Token, m.codec.RefreshTTL()))
	}
	return out
}

// ClearedCookies expires both session cookies.
func (m *Manager) ClearedCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, 2)
	for _, name := range []string{AccessCookie, RefreshCookie} {
		c := m.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0).UTC()
		out = append(out, c)
	}
	return out
}
