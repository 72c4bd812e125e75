package middleware

// identity.go holds the context accessors shared by the session middleware
// and the handlers.

import (
	"github.com/labstack/echo/v4"

	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/session"
)

const principalKey = "session.principal"

func setPrincipal(c echo.Context, p session.Principal) {
	c.Set(principalKey, p)
}

// CurrentPrincipal returns the caller admitted by Session.
func CurrentPrincipal(c echo.Context) (session.Principal, bool) {
	p, ok := c.Get(principalKey).(session.Principal)
	return p, ok && p.UserID != ""
}
