package template

import (
	"context"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/shared"
)

// Filter keys understood by TicketTemplateRepository beyond plain columns
const (
	// FilterCompanyID selects one company's templates plus the global ones
	FilterCompanyID = "company_id"
	// FilterGlobalOnly selects templates without a company
	FilterGlobalOnly = "global_only"
)

// UsageStat is one entry of the most used templates ranking
type UsageStat struct {
	ID         uuid.UUID
	Name       string
	Category   string
	UsageCount int64
}

// Stats aggregates template counts for a tenant
type Stats struct {
	Total      int64
	Active     int64
	ByCategory map[string]int64
	MostUsed   []UsageStat
}

// TicketTemplateRepository defines persistence operations for templates
type TicketTemplateRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*TicketTemplate, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]TicketTemplate, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
	Create(ctx context.Context, template *TicketTemplate) error
	Update(ctx context.Context, tenantID, id uuid.UUID, patch shared.Patch) (*TicketTemplate, error)
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
	// IncrementUsage atomically bumps usage_count and last_used_at and
	// returns the new count.
	IncrementUsage(ctx context.Context, tenantID, id uuid.UUID) (int64, error)
	Stats(ctx context.Context, tenantID uuid.UUID, topN int) (*Stats, error)
}
