package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/identity"
	"github.com/helpdesk/backend/internal/infrastructure/persistence/tenant"
	"go.uber.org/zap"
)

// Provisioner owns the lifecycle of tenant schemas
type Provisioner struct {
	db  *sql.DB
	log *zap.Logger
}

var _ identity.SchemaProvisioner = (*Provisioner)(nil)

func NewProvisioner(db *sql.DB, log *zap.Logger) *Provisioner {
	return &Provisioner{db: db, log: log}
}

// Provision creates the schema of tenantID when missing and brings it to
// the latest tenant migration. Running it again only applies what is
// pending.
func (p *Provisioner) Provision(ctx context.Context, tenantID uuid.UUID) error {
	schema, err := tenant.SchemaFor(tenantID)
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(schema.Name())); err != nil {
		return fmt.Errorf("create schema %s: %w", schema.Name(), err)
	}
	return p.withTenantMigrator(ctx, tenantID, (*Migrator).Up)
}

// Rollback reverts every tenant migration of the schema but keeps the
// schema itself
func (p *Provisioner) Rollback(ctx context.Context, tenantID uuid.UUID) error {
	return p.withTenantMigrator(ctx, tenantID, (*Migrator).Down)
}

// TenantStatus reports the migration state of one tenant schema
func (p *Provisioner) TenantStatus(ctx context.Context, tenantID uuid.UUID) (Status, error) {
	var status Status
	err := p.withTenantMigrator(ctx, tenantID, func(m *Migrator) (err error) {
		status, err = m.Status()
		return err
	})
	return status, err
}

// ProvisionAll migrates the schema of every registered tenant. A failing
// tenant does not stop the others; the failures are returned joined.
func (p *Provisioner) ProvisionAll(ctx context.Context) (int, error) {
	ids, err := p.registeredTenants(ctx)
	if err != nil {
		return 0, err
	}
	var errs []error
	migrated := 0
	for _, id := range ids {
		if err := p.Provision(ctx, id); err != nil {
			p.log.Error("Tenant schema migration failed", zap.Stringer("tenant_id", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("tenant %s: %w", id, err))
			continue
		}
		migrated++
	}
	return migrated, errors.Join(errs...)
}

// Drop removes the tenant schema with all of its tables
func (p *Provisioner) Drop(ctx context.Context, tenantID uuid.UUID) error {
	schema, err := tenant.SchemaFor(tenantID)
	if err != nil {
		return err
	}
	p.log.Warn("Dropping tenant schema", zap.String("schema", schema.Name()))
	if _, err := p.db.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+quoteIdent(schema.Name())+" CASCADE"); err != nil {
		return fmt.Errorf("drop schema %s: %w", schema.Name(), err)
	}
	return nil
}

func (p *Provisioner) withTenantMigrator(ctx context.Context, tenantID uuid.UUID, fn func(*Migrator) error) error {
	m, err := NewForTenant(ctx, p.db, tenantID, p.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			p.log.Warn("Closing tenant migrator", zap.String("schema", m.Schema()), zap.Error(err))
		}
	}()
	return fn(m)
}

func (p *Provisioner) registeredTenants(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT id FROM public.tenants ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
