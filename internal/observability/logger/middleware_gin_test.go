package logger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	auditcontext "github.com/smallbiznis/licensehub/internal/auditcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observeGlobal(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestGinMiddlewareLogsRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logs := observeGlobal(t)

	var seenRequestID string
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{
		ErrorClassifier: func(error) (string, string) { return "validation_error", "invalid_license_key" },
	}))
	r.POST("/api/v1/teams/:teamId/verification/verify", func(c *gin.Context) {
		seenRequestID = auditcontext.RequestIDFromContext(c.Request.Context())
		c.Set("verification_code", "LICENSE_NOT_FOUND")
		_ = c.Error(errors.New("invalid_license_key"))
		c.Status(http.StatusBadRequest)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/teams/7/verification/verify", nil))

	requestID := w.Header().Get(RequestIDHeader)
	_, err := ulid.Parse(requestID)
	require.NoError(t, err)
	assert.Equal(t, requestID, seenRequestID)

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/v1/teams/:teamId/verification/verify", fields["route"])
	assert.Equal(t, "LICENSE_NOT_FOUND", fields["verification_code"])
	assert.Equal(t, "invalid_license_key", fields["error_code"])
	assert.Equal(t, requestID, fields["request_id"])
}

func TestGinMiddlewareKeepsCallerRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observeGlobal(t)

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

func TestRequestLevel(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, requestLevel("/api/v1/licenses", http.StatusOK, ""))
	assert.Equal(t, zapcore.ErrorLevel, requestLevel("/api/v1/licenses", http.StatusInternalServerError, "api_error"))
	assert.Equal(t, zapcore.InfoLevel, requestLevel("/api/v1/teams/:teamId/verification/verify", http.StatusTooManyRequests, "rate_limit_error"))
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/metrics", http.StatusOK, ""))
}
