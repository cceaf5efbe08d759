package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/geoclock/timekeeper/internal/logger"
)

func TestRequestLogger_RedactsQueryCredentials(t *testing.T) {
	buf := &bytes.Buffer{}
	e := echo.New()
	e.Use(NewRequestLogger(logger.NewSlogLogger(buf, logger.LogLevelInfo, time.UTC)))
	e.GET("/api/v2/workdays", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v2/workdays?token=eyJsecretvalue", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	out := buf.String()
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, out, "status=204")
	assert.Contains(t, out, "token=[REDACTED]")
	assert.NotContains(t, out, "eyJsecretvalue")
}

func TestRequestID_PropagatesTraceIDToLogs(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelInfo, time.UTC)

	e := echo.New()
	e.Use(NewRequestID())
	e.Use(NewRequestLogger(log))
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-42")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(echo.HeaderXRequestID))
	assert.Contains(t, buf.String(), "trace_id=req-42")

	buf.Reset()
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	generated := rec.Header().Get(echo.HeaderXRequestID)
	assert.Len(t, generated, 36)
	assert.Contains(t, buf.String(), "trace_id="+generated)
}
