package router

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/apperr"
)

// requestLines returns the "request" records written to buf.
func requestLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		if rec["msg"] == "request" {
			out = append(out, rec)
		}
	}
	return out
}

func TestConfigure_RequestLogIncludesError(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	Configure(e, slog.New(slog.NewJSONHandler(&buf, nil)))
	e.POST("/fail", func(c echo.Context) error { return apperr.Validation("userName is required") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/fail", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	lines := requestLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, float64(http.StatusBadRequest), lines[0]["status"])
	assert.Equal(t, "POST", lines[0]["method"])
	assert.Contains(t, lines[0]["err"], "userName is required")
}

func TestConfigure_RequestLogOmitsErrorOnSuccess(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	Configure(e, slog.New(slog.NewJSONHandler(&buf, nil)))
	RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	lines := requestLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, float64(http.StatusOK), lines[0]["status"])
	assert.NotContains(t, lines[0], "err")
}
