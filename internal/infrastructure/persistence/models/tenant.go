package models

import (
	"github.com/helpdesk/backend/internal/domain/identity"
)

// TenantRegistryModel is the persistence model for the Tenant registry entry.
// Tenants are the only rows stored in the public schema.
type TenantRegistryModel struct {
	BaseModel
	Name   string                `gorm:"type:varchar(200);not null"`
	Slug   string                `gorm:"type:varchar(63);not null;uniqueIndex"`
	Status identity.TenantStatus `gorm:"type:varchar(20);not null"`
}

// TableName returns the table name for GORM
func (TenantRegistryModel) TableName() string {
	return "public.tenants"
}

// ToDomain converts the persistence model to a domain Tenant entity
func (m *TenantRegistryModel) ToDomain() *identity.Tenant {
	return &identity.Tenant{
		BaseEntity: m.baseEntity(),
		Name:       m.Name,
		Slug:       m.Slug,
		Status:     m.Status,
	}
}

// FromDomain populates the persistence model from a domain Tenant entity
func (m *TenantRegistryModel) FromDomain(t *identity.Tenant) {
	m.BaseModel = baseModelOf(t.BaseEntity)
	m.Name = t.Name
	m.Slug = t.Slug
	m.Status = t.Status
}

// TenantRegistryModelFromDomain creates a new persistence model from a domain Tenant entity
func TenantRegistryModelFromDomain(t *identity.Tenant) *TenantRegistryModel {
	m := &TenantRegistryModel{}
	m.FromDomain(t)
	return m
}
