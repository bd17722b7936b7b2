package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries the identity and UTC timestamps of every record,
// tenants included
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Touch marks the entity as modified now
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// TenantEntity is a record stored in one tenant's schema. TenantID is kept
// on the row as well so queries can filter on it.
type TenantEntity struct {
	BaseEntity
	TenantID uuid.UUID
	// CreatedBy is the agent that created the record; nil for seeded rows
	CreatedBy *uuid.UUID
}

func NewTenantEntity(tenantID uuid.UUID, createdBy *uuid.UUID) TenantEntity {
	return TenantEntity{BaseEntity: NewBaseEntity(), TenantID: tenantID, CreatedBy: createdBy}
}

// OwnedBy reports whether the record belongs to tenantID
func (e TenantEntity) OwnedBy(tenantID uuid.UUID) bool {
	return e.TenantID == tenantID
}
