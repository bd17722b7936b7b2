// Package models holds the GORM row types. Tenant rows are written to the
// schema of their tenant; repositories pick the table with tenant.Schema.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/shared"
)

// BaseModel holds the columns shared by the registry and every tenant table
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func baseModelOf(e shared.BaseEntity) BaseModel {
	return BaseModel{ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
}

func (m BaseModel) baseEntity() shared.BaseEntity {
	return shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

// TenantModel adds the owner columns of a tenant table. tenant_id repeats
// the schema's tenant so queries can filter on it as well.
type TenantModel struct {
	BaseModel
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy *uuid.UUID `gorm:"type:uuid"`
}

func tenantModelOf(e shared.TenantEntity) TenantModel {
	return TenantModel{BaseModel: baseModelOf(e.BaseEntity), TenantID: e.TenantID, CreatedBy: e.CreatedBy}
}

func (m TenantModel) tenantEntity() shared.TenantEntity {
	return shared.TenantEntity{BaseEntity: m.baseEntity(), TenantID: m.TenantID, CreatedBy: m.CreatedBy}
}
