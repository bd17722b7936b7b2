package location

import (
	"context"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/shared"
)

// Stats aggregates location counts for a tenant
type Stats struct {
	Total     int64
	Favorites int64
	ByType    map[LocationType]int64
	ByStatus  map[LocationStatus]int64
}

// LocationRepository defines persistence operations for locations.
// Every method is scoped to the tenant schema of tenantID.
type LocationRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Location, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Location, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
	Create(ctx context.Context, location *Location) error
	// Update writes only the fields named in patch and returns the stored row.
	// An empty patch issues no write.
	Update(ctx context.Context, tenantID, id uuid.UUID, patch shared.Patch) (*Location, error)
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error

	// IsAncestorOrSelf reports whether candidate is id itself or appears in
	// the ancestor chain of id.
	IsAncestorOrSelf(ctx context.Context, tenantID, id, candidate uuid.UUID) (bool, error)
	FindChildren(ctx context.Context, tenantID, parentID uuid.UUID) ([]Location, error)
	// FindAncestors returns the ancestor chain of id ordered root first.
	FindAncestors(ctx context.Context, tenantID, id uuid.UUID) ([]Location, error)
	FindByStatus(ctx context.Context, tenantID uuid.UUID, status LocationStatus) ([]Location, error)
	Stats(ctx context.Context, tenantID uuid.UUID) (*Stats, error)
}
