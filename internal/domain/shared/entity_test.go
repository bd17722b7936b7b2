package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewTenantEntity(t *testing.T) {
	tenantID, agent := uuid.New(), uuid.New()
	e := NewTenantEntity(tenantID, &agent)

	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, time.UTC, e.CreatedAt.Location())
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)
	assert.True(t, e.OwnedBy(tenantID))
	assert.False(t, e.OwnedBy(uuid.New()))
	assert.Equal(t, agent, *e.CreatedBy)
}

func TestBaseEntity_Touch(t *testing.T) {
	e := NewBaseEntity()
	e.UpdatedAt = e.UpdatedAt.Add(-time.Minute)
	e.Touch()
	assert.True(t, e.UpdatedAt.After(e.CreatedAt))
}
