package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	contextutils "sportstrivia/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTracedRouter(t *testing.T) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	router := gin.New()
	router.Use(GinMiddlewareWithErrorHandling("test-service", otelgin.WithTracerProvider(tp))...)
	return router, recorder
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestGinMiddlewareWithErrorHandling_SuccessfulRequests(t *testing.T) {
	router, recorder := newTracedRouter(t)
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
	assert.NotContains(t, attrMap(spans[0].Attributes()), "error.severity")
}

func TestGinMiddlewareWithErrorHandling_AppError(t *testing.T) {
	router, recorder := newTracedRouter(t)
	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(contextutils.ErrStoreUnavailable)
		c.Status(http.StatusServiceUnavailable)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "STORE_UNAVAILABLE", attrs["error.code"].AsString())
	assert.Equal(t, "error", attrs["error.severity"].AsString())
	assert.True(t, attrs["error.retryable"].AsBool())
	assert.True(t, attrs["error.server_error"].AsBool())
}

func TestGinMiddlewareWithErrorHandling_ClientError(t *testing.T) {
	router, recorder := newTracedRouter(t)
	router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bad", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "warn", attrs["error.severity"].AsString())
	assert.Equal(t, int64(http.StatusBadRequest), attrs["http.status_code"].AsInt64())
	assert.NotContains(t, attrs, "error.server_error")
}

func TestDetermineErrorSeverity(t *testing.T) {
	assert.Equal(t, "error", determineErrorSeverity(500, nil))
	assert.Equal(t, "warn", determineErrorSeverity(404, nil))
	assert.Equal(t, "info", determineErrorSeverity(200, nil))
	assert.Equal(t, "warn", determineErrorSeverity(500, []*gin.Error{{Err: contextutils.ErrInvalidInput}}))
}
