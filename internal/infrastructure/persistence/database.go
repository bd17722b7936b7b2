package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/helpdesk/backend/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database is the shared connection pool. Tenant data lives in per-tenant
// schemas of this one database, so every repository shares DB.
type Database struct {
	DB  *gorm.DB
	SQL *sql.DB
}

// OpenOption configures Open
type OpenOption func(*gorm.Config)

// WithGormLogger routes GORM's SQL logging through l, normally the zap
// adapter from the logger package.
func WithGormLogger(l logger.Interface) OpenOption {
	return func(c *gorm.Config) {
		c.Logger = l
	}
}

// Open connects to PostgreSQL, sizes the pool and waits for the first
// ping. PrepareStmt stays off since every tenant schema turns the same
// query into a distinct statement.
func Open(ctx context.Context, cfg *config.DatabaseConfig, opts ...OpenOption) (*Database, error) {
	gormCfg := &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	}
	for _, opt := range opts {
		opt(gormCfg)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Database{DB: db, SQL: sqlDB}, nil
}

// Close closes the pool
func (d *Database) Close() error {
	return d.SQL.Close()
}

// PingContext checks the connection; used by the readiness probe
func (d *Database) PingContext(ctx context.Context) error {
	return d.SQL.PingContext(ctx)
}
