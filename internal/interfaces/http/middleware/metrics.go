package middleware

import (
	"github.com/gin-gonic/gin"
)

// RequestObserver tracks in-flight requests and records their outcome.
// telemetry.Metrics implements it.
type RequestObserver interface {
	RequestStarted() func(method, route string, status int)
}

// HTTPMetrics records request count, latency and in-flight requests. The
// route label is the matched route template so raw paths carrying IDs do
// not create new series.
func HTTPMetrics(observer RequestObserver, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		done := observer.RequestStarted()
		c.Next()
		done(c.Request.Method, c.FullPath(), c.Writer.Status())
	}
}
