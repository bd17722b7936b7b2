package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// requestIDKey is the gin key the RequestID middleware stores under
const requestIDKey = "request_id"

// AccessLog puts a request logger into the request context and writes
// one entry per finished request. Paths listed in quiet (probes, metrics)
// are served without an entry. The level follows the status class.
func AccessLog(base *zap.Logger, quiet ...string) gin.HandlerFunc {
	silent := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		silent[p] = true
	}

	return func(c *gin.Context) {
		began := time.Now()
		req := c.Request
		requestLog := base.With(zap.String("method", req.Method), zap.String("path", req.URL.Path))

		ctx := WithContext(req.Context(), requestLog)
		if id := c.GetString(requestIDKey); id != "" {
			ctx = WithRequestID(ctx, id)
		}
		c.Request = req.WithContext(ctx)

		c.Next()

		if silent[req.URL.Path] {
			return
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(began)),
			zap.String("route", c.FullPath()),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if req.URL.RawQuery != "" {
			fields = append(fields, zap.String("query", req.URL.RawQuery))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		// c.Request now carries the tenant and user set by authentication.
		entry := L(c.Request.Context())
		switch level := statusLevel(status); level {
		case zapcore.ErrorLevel:
			entry.Error("HTTP Request", fields...)
		case zapcore.WarnLevel:
			entry.Warn("HTTP Request", fields...)
		default:
			entry.Info("HTTP Request", fields...)
		}
	}
}

func statusLevel(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}

// Recover turns a handler panic into a logged stack and a 500 carrying
// the usual error envelope
func Recover(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			WithLogger(c.Request.Context(), base).Error("Panic recovered",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", recovered),
				zap.Stack("stacktrace"),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   gin.H{"code": "ERR_INTERNAL", "message": "An unexpected error occurred"},
			})
		}()
		c.Next()
	}
}
