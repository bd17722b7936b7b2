package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/helpdesk/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength is the maximum accepted length of a client request ID
const MaxRequestIDLength = 128

// TracingConfig configures Tracing
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// SkipPaths are served without a server span (probes, /metrics)
	SkipPaths []string
}

// Tracing starts the server span of each request with otelgin
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	start := otelgin.Middleware(cfg.ServiceName, otelgin.WithFilter(func(r *http.Request) bool {
		_, skipped := skip[r.URL.Path]
		return !skipped
	}))

	return start
}

// AnnotateServerSpan must directly follow Tracing: otelgin runs the rest
// of the chain inside its span, so the span only exists from here on.
func AnnotateServerSpan() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}
		if requestID := GetRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String(telemetry.SpanAttrRequestID, requestID))
		}

		c.Next()

		// 4xx responses are client outcomes and keep an unset status.
		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// TracingAttributeInjector tags the server span with the verified tenant
// and user. It must run after JWTAuthMiddleware.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if id := GetIdentity(c); id != nil && span.IsRecording() {
			span.SetAttributes(
				attribute.String(telemetry.SpanAttrTenantID, id.TenantID.String()),
				attribute.String(telemetry.SpanAttrUserID, id.UserID.String()),
			)
		}
		c.Next()
	}
}
