package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/apperr"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/session"
)

// SessionConfig scopes how denied requests are answered.
type SessionConfig struct {
	// LoginPath receives browser page navigations that are denied.
	LoginPath string
	// APIPrefix marks paths that always get a JSON 401 instead of a redirect.
	APIPrefix string
	// Timeout bounds the store work done while admitting a request.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Session returns an Echo middleware that admits, denies or silently
// refreshes the caller from the accessToken/refreshToken cookies. On a
// refresh the new tokens are written to the response and swapped into the
// current request before the original handler runs; the pipeline is never
// re-entered.
func Session(m *session.Manager, cfg SessionConfig) echo.MiddlewareFunc {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx, cancel := context.WithTimeout(req.Context(), cfg.Timeout)
			out := m.Admit(ctx, cookieValue(c, session.AccessCookie), cookieValue(c, session.RefreshCookie))
			cancel()

			if out.State != session.StateAdmitted {
				if out.Err != nil {
					return out.Err
				}
				return deny(c, cfg)
			}

			if out.Issued != nil {
				for _, ck := range m.Cookies(*out.Issued) {
					c.SetCookie(ck)
					replaceRequestCookie(req, ck.Name, ck.Value)
				}
				cfg.Logger.DebugContext(req.Context(), "session refreshed", "user_id", out.Principal.UserID)
			}
			setPrincipal(c, out.Principal)
			return next(c)
		}
	}
}

// deny answers API calls with 401 and browser navigations with a redirect
// to the login page.
func deny(c echo.Context, cfg SessionConfig) error {
	req := c.Request()
	wantsJSON := strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
	isPage := req.Method == http.MethodGet || req.Method == http.MethodHead
	if !isPage || wantsJSON || (cfg.APIPrefix != "" && strings.HasPrefix(req.URL.Path, cfg.APIPrefix)) {
		return apperr.Unauthorized("Not authenticated")
	}
	return c.Redirect(http.StatusSeeOther, cfg.LoginPath)
}

func cookieValue(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

// replaceRequestCookie rewrites the Cookie header so handlers further down
// see the freshly issued value.
func replaceRequestCookie(r *http.Request, name, value string) {
	cookies := r.Cookies()
	r.Header.Del("Cookie")
	found := false
	for _, ck := range cookies {
		if ck.Name == name {
			ck.Value = value
			found = true
		}
		r.AddCookie(ck)
	}
	if !found {
		r.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}
