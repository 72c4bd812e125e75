package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/handler"
)

// Configure installs the strict JSON binder, the request validator, the
// error renderer and the stock middleware shared by every route.
func Configure(e *echo.Echo, log *slog.Logger) {
	e.HideBanner = true
	e.HidePort = true
	e.Binder = handler.StrictBinder{}
	e.Validator = handler.RequestValidator{}
	e.HTTPErrorHandler = handler.ErrorHandler(log)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= 500 {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.Any("err", v.Error))
			}
			log.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	}))
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints. Credential endpoints
// sit behind limiter; change-password and /api routes behind sessionMW.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, sessionMW, limiter echo.MiddlewareFunc) {
	g := e.Group("/auth")
	g.POST("/signup", a.Signup, limiter)
	g.POST("/login", a.Login, limiter)
	g.POST("/refresh", a.Refresh, limiter)
	g.POST("/logout", a.Logout)
	g.GET("/check", a.Check)
	g.POST("/change-password", a.ChangePassword, sessionMW)

	api := e.Group("/api", sessionMW)
	api.GET("/me", a.Me)
}
