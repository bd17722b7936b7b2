// Package tenant maps tenants to their PostgreSQL schemas and scopes GORM
// queries to them.
//
// Every tenant owns one schema named tenant_<uuid with '-' replaced by '_'>.
// Schema names occupy identifier positions in SQL and cannot be bound as
// parameters, so they are only ever built from a parsed, canonical UUID.
//
// Usage:
//
//	db := tenant.NewTenantDB(gormDB)
//	db.Table(ctx, tenantID, "locations").Find(&rows)
//	// SELECT * FROM "tenant_..."."locations" WHERE tenant_id = $1
package tenant

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SchemaPrefix prefixes every tenant schema name
const SchemaPrefix = "tenant_"

// canonicalUUIDLen is the length of the hyphenated textual UUID form
const canonicalUUIDLen = 36

// ErrTenantIDRequired is returned when tenant_id is required but not found
var ErrTenantIDRequired = errors.New("tenant_id is required")

// ErrInvalidTenantID is returned when tenant_id format is invalid
var ErrInvalidTenantID = errors.New("invalid tenant_id format")

// Schema is the validated physical schema name of one tenant.
type Schema string

// ResolveSchema maps a tenant identifier to its schema name.
// Only the canonical hyphenated UUID form is accepted; braces, urn prefixes
// and the compact 32 digit form are rejected.
func ResolveSchema(tenantID string) (Schema, error) {
	if tenantID == "" {
		return "", ErrTenantIDRequired
	}
	if len(tenantID) != canonicalUUIDLen {
		return "", ErrInvalidTenantID
	}
	id, err := uuid.Parse(tenantID)
	if err != nil {
		return "", ErrInvalidTenantID
	}
	return SchemaFor(id)
}

// SchemaFor maps an already parsed tenant ID to its schema name.
func SchemaFor(id uuid.UUID) (Schema, error) {
	if id == uuid.Nil {
		return "", ErrTenantIDRequired
	}
	return Schema(SchemaPrefix + strings.ReplaceAll(id.String(), "-", "_")), nil
}

// Name returns the bare schema name
func (s Schema) Name() string {
	return string(s)
}

// Qualify returns schema.table for use with gorm's Table, which quotes
// each part separately.
func (s Schema) Qualify(table string) string {
	return string(s) + "." + table
}

// Quoted returns "schema"."table" for hand-written SQL.
func (s Schema) Quoted(table string) string {
	return `"` + string(s) + `"."` + table + `"`
}

// Scope restricts a query to one table of the tenant schema and to rows
// carrying the tenant's ID.
func Scope(schema Schema, tenantID uuid.UUID, table string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Table(schema.Qualify(table)).Where("tenant_id = ?", tenantID)
	}
}

// TenantDB wraps GORM DB with schema-per-tenant scoping
type TenantDB struct {
	db *gorm.DB
}

// NewTenantDB creates a new TenantDB
func NewTenantDB(db *gorm.DB) *TenantDB {
	return &TenantDB{db: db}
}

// DB returns the underlying GORM DB without tenant scoping.
// Only the public schema may be addressed through it.
func (t *TenantDB) DB() *gorm.DB {
	return t.db
}

// Table returns a query bound to ctx, targeting table inside the tenant
// schema and filtered by tenant_id. An invalid tenant yields a DB that
// fails on execution.
func (t *TenantDB) Table(ctx context.Context, tenantID uuid.UUID, table string) *gorm.DB {
	return From(t.db.WithContext(ctx), tenantID, table)
}

// Raw returns the tenant schema for hand-written SQL together with a
// context-bound DB.
func (t *TenantDB) Raw(ctx context.Context, tenantID uuid.UUID) (Schema, *gorm.DB, error) {
	schema, err := SchemaFor(tenantID)
	if err != nil {
		return "", nil, err
	}
	return schema, t.db.WithContext(ctx), nil
}

// Transaction executes fn within a database transaction. Use From to scope
// statements inside fn.
func (t *TenantDB) Transaction(ctx context.Context, tenantID uuid.UUID, fn func(tx *gorm.DB, schema Schema) error) error {
	schema, err := SchemaFor(tenantID)
	if err != nil {
		return err
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, schema)
	})
}

// From scopes an existing session (for example a transaction) to a table
// of the tenant schema. The scope is applied eagerly so the tenant
// predicate always leads the WHERE clause.
func From(db *gorm.DB, tenantID uuid.UUID, table string) *gorm.DB {
	schema, err := SchemaFor(tenantID)
	if err != nil {
		db = db.Session(&gorm.Session{NewDB: true})
		_ = db.AddError(err)
		return db
	}
	return Scope(schema, tenantID, table)(db)
}
