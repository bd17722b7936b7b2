package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// scope is the request state carried in a context. It is stored by value
// so that each With* call leaves the parent context untouched.
type scope struct {
	logger    *zap.Logger
	requestID string
	tenantID  string
	userID    string
}

type scopeKey struct{}

func scopeOf(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, edit func(*scope)) context.Context {
	s := scopeOf(ctx)
	edit(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithContext attaches the request logger to ctx
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return withScope(ctx, func(s *scope) { s.logger = l })
}

// FromContext returns the logger of ctx, a no-op logger when none is set
func FromContext(ctx context.Context) *zap.Logger {
	if l := scopeOf(ctx).logger; l != nil {
		return l
	}
	return zap.NewNop()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(s *scope) { s.requestID = id })
}

// WithTenantID records the tenant proven by the access token. Only
// authentication middleware should call it.
func WithTenantID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(s *scope) { s.tenantID = id })
}

func WithUserID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(s *scope) { s.userID = id })
}

func GetRequestID(ctx context.Context) string { return scopeOf(ctx).requestID }
func GetTenantID(ctx context.Context) string  { return scopeOf(ctx).tenantID }
func GetUserID(ctx context.Context) string    { return scopeOf(ctx).userID }

// ContextFields returns the trace, request, tenant and user fields set on
// ctx. Unset values are omitted.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.Stringer("trace_id", sc.TraceID()),
			zap.Stringer("span_id", sc.SpanID()),
		)
	}
	s := scopeOf(ctx)
	for _, kv := range [...]struct{ key, value string }{
		{"request_id", s.requestID},
		{"tenant_id", s.tenantID},
		{"user_id", s.userID},
	} {
		if kv.value != "" {
			fields = append(fields, zap.String(kv.key, kv.value))
		}
	}
	return fields
}

// ContextLogger writes through a zap logger and appends the fields of
// its context to every entry.
type ContextLogger struct {
	ctx    context.Context
	logger *zap.Logger
}

// L returns the request logger of ctx:
//
//	logger.L(ctx).Info("Flow saved", zap.Int("nodes", n))
func L(ctx context.Context) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: FromContext(ctx)}
}

// WithLogger is L with an explicit base logger, for components that own a
// named logger but still want the request fields.
func WithLogger(ctx context.Context, l *zap.Logger) *ContextLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ContextLogger{ctx: ctx, logger: l}
}

func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	return &ContextLogger{ctx: cl.ctx, logger: cl.logger.With(fields...)}
}

// Zap returns the base logger with the context fields attached
func (cl *ContextLogger) Zap() *zap.Logger {
	return cl.logger.With(ContextFields(cl.ctx)...)
}

func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) {
	cl.log(zapcore.DebugLevel, msg, fields)
}

func (cl *ContextLogger) Info(msg string, fields ...zap.Field) {
	cl.log(zapcore.InfoLevel, msg, fields)
}

func (cl *ContextLogger) Warn(msg string, fields ...zap.Field) {
	cl.log(zapcore.WarnLevel, msg, fields)
}

func (cl *ContextLogger) Error(msg string, fields ...zap.Field) {
	cl.log(zapcore.ErrorLevel, msg, fields)
}

// log skips building the context fields when the level is disabled
func (cl *ContextLogger) log(level zapcore.Level, msg string, fields []zap.Field) {
	ce := cl.logger.Check(level, msg)
	if ce == nil {
		return
	}
	ce.Write(append(ContextFields(cl.ctx), fields...)...)
}
