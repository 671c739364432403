package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestGinMiddlewareSpans(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := gin.New()
	r.Use(GinMiddleware())
	r.POST("/api/v1/teams/:teamId/verification/verify", func(c *gin.Context) {
		c.Set("verification_code", "VALID")
		c.Status(http.StatusOK)
	})
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("select licenses: ABCDE-FGHIJ"))
		c.Status(http.StatusInternalServerError)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/teams/42/verification/verify", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	verify := spans[0]
	assert.Equal(t, "POST /api/v1/teams/:teamId/verification/verify", verify.Name())
	attrs := attribute.NewSet(verify.Attributes()...)
	team, ok := attrs.Value("team.id")
	require.True(t, ok)
	assert.Equal(t, "42", team.AsString())
	code, ok := attrs.Value("license.verification_code")
	require.True(t, ok)
	assert.Equal(t, "VALID", code.AsString())
	assert.Equal(t, codes.Unset, verify.Status().Code)

	boom := spans[1]
	assert.Equal(t, codes.Error, boom.Status().Code)
	require.Len(t, boom.Events(), 1)
	eventAttrs := attribute.NewSet(boom.Events()[0].Attributes...)
	msg, ok := eventAttrs.Value("exception.message")
	require.True(t, ok)
	assert.Equal(t, "select licenses", msg.AsString())
}
