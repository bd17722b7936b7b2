package identity

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/helpdesk/backend/internal/domain/shared"
)

// TenantStatus represents the status of a tenant
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Tenant-specific domain errors
var (
	ErrTenantNotFound  = shared.NewDomainError("NOT_FOUND", "Tenant not found")
	ErrTenantSuspended = shared.NewDomainError("FORBIDDEN", "Tenant is suspended")
	ErrSlugTaken       = shared.NewDomainError("ALREADY_EXISTS", "Tenant slug is already in use")
)

// Tenant is an isolated customer workspace. Its data lives in a dedicated
// PostgreSQL schema derived from ID.
type Tenant struct {
	shared.BaseEntity
	Name   string
	Slug   string
	Status TenantStatus
}

// NewTenant creates a new active tenant
func NewTenant(name, slug string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Tenant name cannot be empty")
	}
	if utf8.RuneCountInString(name) > 200 {
		return nil, shared.NewDomainError("INVALID_NAME", "Tenant name cannot exceed 200 characters")
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if len(slug) < 2 || len(slug) > 63 || !slugPattern.MatchString(slug) {
		return nil, shared.NewDomainError("INVALID_SLUG", "Slug must be 2-63 lowercase letters, digits or hyphens")
	}

	return &Tenant{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
		Slug:       slug,
		Status:     TenantStatusActive,
	}, nil
}

// IsActive returns true if the tenant may serve requests
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// Suspend blocks all requests of the tenant
func (t *Tenant) Suspend() error {
	if t.Status == TenantStatusSuspended {
		return shared.NewDomainError("INVALID_STATE", "Tenant is already suspended")
	}
	t.Status = TenantStatusSuspended
	t.Touch()
	return nil
}

// Activate re-enables a suspended tenant
func (t *Tenant) Activate() error {
	if t.Status == TenantStatusActive {
		return shared.NewDomainError("INVALID_STATE", "Tenant is already active")
	}
	t.Status = TenantStatusActive
	t.Touch()
	return nil
}
