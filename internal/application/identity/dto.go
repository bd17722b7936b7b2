package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/identity"
	"github.com/helpdesk/backend/internal/domain/shared"
)

// ProvisionTenantRequest represents a request to create a tenant
type ProvisionTenantRequest struct {
	Name string `json:"name" binding:"required,min=1,max=200"`
	Slug string `json:"slug" binding:"required,min=2,max=63"`
}

// TenantListFilter represents the tenant list query string
type TenantListFilter struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"pageSize" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"orderBy"`
	OrderDir string `form:"orderDir" binding:"omitempty,oneof=asc desc ASC DESC"`
	Search   string `form:"search" binding:"max=200"`
	Status   string `form:"status" binding:"omitempty,oneof=active suspended"`
}

// ToSharedFilter converts the query into a repository filter
func (f TenantListFilter) ToSharedFilter() shared.Filter {
	filter := shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
		Search:   f.Search,
		Filters:  map[string]interface{}{},
	}
	if f.Status != "" {
		filter.Filters["status"] = f.Status
	}
	return filter.Normalize()
}

// TenantResponse represents a tenant in API responses
type TenantResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Status    string    `json:"status"`
	Schema    string    `json:"schema"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ToTenantResponse converts a domain tenant to a response.
// schema is the name of the tenant's data schema.
func ToTenantResponse(t *identity.Tenant, schema string) TenantResponse {
	return TenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		Slug:      t.Slug,
		Status:    string(t.Status),
		Schema:    schema,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
