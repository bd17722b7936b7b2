package logger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// maxLoggedSQL bounds the SQL text kept in log entries unless full SQL
// logging is enabled
const maxLoggedSQL = 1024

// tenantSchemaPattern matches the quoted tenant schema of a statement
var tenantSchemaPattern = regexp.MustCompile(`"(tenant_[0-9a-f]{8}_[0-9a-f]{4}_[0-9a-f]{4}_[0-9a-f]{4}_[0-9a-f]{12})"\.`)

// GormLogger writes GORM's SQL log through zap. Entries carry the request
// fields of the query context and the tenant schema the statement touched.
type GormLogger struct {
	logger         *zap.Logger
	level          gormlogger.LogLevel
	slowThreshold  time.Duration
	fullSQL        bool
	logNotFound    bool
	schemaMismatch func(ctx context.Context, schema string)
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the duration above which a statement is logged
// as slow. Zero disables slow query warnings.
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) {
		l.slowThreshold = threshold
	}
}

// WithFullSQL disables truncation of logged statements
func WithFullSQL(full bool) GormLoggerOption {
	return func(l *GormLogger) {
		l.fullSQL = full
	}
}

// WithRecordNotFoundLogged logs gorm.ErrRecordNotFound as an error. It is
// skipped by default: repositories map it to a 404.
func WithRecordNotFoundLogged(logged bool) GormLoggerOption {
	return func(l *GormLogger) {
		l.logNotFound = logged
	}
}

// WithSchemaMismatchHook is called when a statement touches a tenant
// schema other than the one of the tenant in ctx
func WithSchemaMismatchHook(hook func(ctx context.Context, schema string)) GormLoggerOption {
	return func(l *GormLogger) {
		l.schemaMismatch = hook
	}
}

// NewGormLogger creates a GORM logger backed by zap
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	l := &GormLogger{
		logger:        zapLogger.Named("gorm"),
		level:         level,
		slowThreshold: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.logger.Info(fmt.Sprintf(msg, data...), ContextFields(ctx)...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.logger.Warn(fmt.Sprintf(msg, data...), ContextFields(ctx)...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.logger.Error(fmt.Sprintf(msg, data...), ContextFields(ctx)...)
	}
}

// Trace logs one executed statement. A statement reaching into another
// tenant's schema is always logged as an error, whatever the level.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	schema := statementSchema(sql)
	if !l.fullSQL && len(sql) > maxLoggedSQL {
		sql = sql[:maxLoggedSQL] + "..."
	}

	fields := append([]zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}, ContextFields(ctx)...)
	if schema != "" {
		fields = append(fields, zap.String("schema", schema))
	}

	if schema != "" && !schemaOwnedByContext(ctx, schema) {
		l.logger.Error("SQL touched a foreign tenant schema", fields...)
		if l.schemaMismatch != nil {
			l.schemaMismatch(ctx, schema)
		}
		return
	}

	switch {
	case err != nil && errors.Is(err, context.Canceled):
		if l.level >= gormlogger.Warn {
			l.logger.Warn("SQL cancelled", append(fields, zap.Error(err))...)
		}
	case err != nil && l.level >= gormlogger.Error:
		if !l.logNotFound && errors.Is(err, gormlogger.ErrRecordNotFound) {
			return
		}
		l.logger.Error("SQL error", append(fields, zap.Error(err))...)
	case l.slowThreshold != 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.logger.Warn("Slow SQL", append(fields, zap.Duration("threshold", l.slowThreshold))...)
	case l.level >= gormlogger.Info:
		l.logger.Debug("SQL", fields...)
	}
}

// statementSchema returns the first tenant schema named in sql
func statementSchema(sql string) string {
	m := tenantSchemaPattern.FindStringSubmatch(sql)
	if m == nil {
		return ""
	}
	return m[1]
}

// schemaOwnedByContext reports whether schema belongs to the tenant of
// ctx. Statements without a tenant in ctx (provisioning, migrations, admin
// routes) may touch any schema.
func schemaOwnedByContext(ctx context.Context, schema string) bool {
	tenantID := GetTenantID(ctx)
	if tenantID == "" {
		return true
	}
	return schema == "tenant_"+strings.ReplaceAll(strings.ToLower(tenantID), "-", "_")
}

// MapGormLogLevel maps a log level name to the GORM log level
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
