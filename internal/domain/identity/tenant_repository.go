package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/shared"
)

// TenantRepository persists the tenant registry held in the public schema.
// Lookups return shared.ErrNotFound for unknown tenants.
type TenantRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	// List returns one page of tenants and the number matching filter
	List(ctx context.Context, filter shared.Filter) ([]Tenant, int64, error)
	SlugInUse(ctx context.Context, slug string) (bool, error)
	// Create registers a new tenant; a taken slug yields ErrSlugTaken
	Create(ctx context.Context, tenant *Tenant) error
	// UpdateStatus writes the status of an existing tenant
	UpdateStatus(ctx context.Context, tenant *Tenant) error
}

// SchemaProvisioner manages the private schema of each tenant
type SchemaProvisioner interface {
	// Provision creates the schema and applies every tenant migration
	Provision(ctx context.Context, tenantID uuid.UUID) error
	// Drop removes the schema with all tenant data
	Drop(ctx context.Context, tenantID uuid.UUID) error
}
