package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/helpdesk/backend/internal/interfaces/http/dto"
)

// BodyLimits caps request bodies. Routes holds caps for specific routes,
// keyed by "METHOD /full/:pattern" as produced by RouteKey.
type BodyLimits struct {
	Default int64
	Routes  map[string]int64
}

// RouteKey builds the BodyLimits.Routes key of a route
func RouteKey(method, fullPath string) string {
	return method + " " + fullPath
}

func (l BodyLimits) limitFor(c *gin.Context) int64 {
	if limit, ok := l.Routes[RouteKey(c.Request.Method, c.FullPath())]; ok {
		return limit
	}
	return l.Default
}

// BodyLimit rejects bodies whose declared length exceeds the route's cap
// with 413. Chunked bodies are capped while reading; the bind that trips
// the reader answers 413 through HandleValidationError.
func BodyLimit(limits BodyLimits) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := limits.limitFor(c)
		if limit <= 0 || c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}
		if c.Request.ContentLength > limit {
			abortWithError(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge,
				"Request body exceeds maximum allowed size")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
