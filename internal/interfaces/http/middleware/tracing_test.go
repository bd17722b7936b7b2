package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/infrastructure/auth"
	"github.com/helpdesk/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	tenantID := uuid.New()
	r := gin.New()
	r.Use(
		RequestID(),
		Tracing(TracingConfig{ServiceName: "helpdesk-test", Enabled: true, SkipPaths: []string{"/health"}}),
		AnnotateServerSpan(),
		func(c *gin.Context) {
			c.Set(IdentityKey, &auth.Identity{TenantID: tenantID, UserID: uuid.New()})
			c.Next()
		},
		TracingAttributeInjector(),
	)
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/locations/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.POST("/api/v1/chatbots/:id/flows", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	send := func(method, path string) {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set(RequestIDHeader, "req-"+method)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	send(http.MethodGet, "/health")
	send(http.MethodGet, "/api/v1/locations/42")
	send(http.MethodPost, "/api/v1/chatbots/7/flows")

	spans := recorder.Ended()
	require.Len(t, spans, 2, "probe requests are not traced")

	notFound, failed := spans[0], spans[1]
	assert.Equal(t, codes.Unset, notFound.Status().Code)
	assert.Equal(t, codes.Error, failed.Status().Code)

	attrs := map[string]string{}
	for _, kv := range failed.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "req-POST", attrs[telemetry.SpanAttrRequestID])
	assert.Equal(t, tenantID.String(), attrs[telemetry.SpanAttrTenantID])
	assert.NotEmpty(t, attrs[telemetry.SpanAttrUserID])
}

func TestTracing_Disabled(t *testing.T) {
	r := gin.New()
	r.Use(Tracing(TracingConfig{Enabled: false}), AnnotateServerSpan())
	r.GET("/api/v1/locations", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/locations", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
