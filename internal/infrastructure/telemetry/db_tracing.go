package telemetry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QueryTracing configures the spans otelgorm opens for every statement
type QueryTracing struct {
	// QueryVariables keeps bound values in db.statement. Development only.
	QueryVariables bool
	SlowThreshold  time.Duration
}

const defaultSlowQuery = 200 * time.Millisecond

type queryStartKey struct{}

// TraceQueries installs otelgorm on db and tags its spans with the tenant
// schema, the affected rows and a slow query marker.
func TraceQueries(db *gorm.DB, cfg QueryTracing, log *zap.Logger) error {
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = defaultSlowQuery
	}

	opts := []otelgorm.Option{otelgorm.WithDBName("postgresql")}
	if !cfg.QueryVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	annotate := func(string) func(*gorm.DB) { return cfg.annotate }
	if err := registerAround(db, "tracing", markQueryStart, annotate); err != nil {
		return err
	}

	log.Info("Query tracing enabled",
		zap.Bool("query_variables", cfg.QueryVariables),
		zap.Duration("slow_threshold", cfg.SlowThreshold),
	)
	return nil
}

func markQueryStart(db *gorm.DB) {
	if ctx := db.Statement.Context; ctx != nil {
		db.Statement.Context = context.WithValue(ctx, queryStartKey{}, time.Now())
	}
}

func queryElapsed(db *gorm.DB) (time.Duration, bool) {
	if db.Statement.Context == nil {
		return 0, false
	}
	start, ok := db.Statement.Context.Value(queryStartKey{}).(time.Time)
	return time.Since(start), ok
}

func (cfg QueryTracing) annotate(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if schema, table := splitTable(db.Statement.Table); table != "" {
		span.SetAttributes(attribute.String("db.sql.table", table))
		if schema != "" {
			span.SetAttributes(attribute.String("db.schema", schema))
		}
	}
	if err := db.Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if elapsed, ok := queryElapsed(db); ok && elapsed > cfg.SlowThreshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}

// splitTable separates "schema.table" into its parts
func splitTable(qualified string) (string, string) {
	qualified = strings.ReplaceAll(qualified, `"`, "")
	if schema, table, ok := strings.Cut(qualified, "."); ok {
		return schema, table
	}
	return "", qualified
}

// registerAround installs before and after callbacks on every gorm
// processor under names prefixed with name. after receives the operation.
func registerAround(db *gorm.DB, name string, before func(*gorm.DB), after func(op string) func(*gorm.DB)) error {
	cb := db.Callback()
	steps := []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, s := range steps {
		if before != nil {
			if err := s.before(name+":before_"+s.op, before); err != nil {
				return err
			}
		}
		if after != nil {
			if err := s.after(name+":after_"+s.op, after(s.op)); err != nil {
				return err
			}
		}
	}
	return nil
}
