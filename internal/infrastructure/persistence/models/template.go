package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/template"
	"gorm.io/datatypes"
)

// TicketTemplateTable is the tenant-schema table holding ticket templates
const TicketTemplateTable = "ticket_templates"

// TicketTemplateModel is the persistence model for the TicketTemplate domain entity.
type TicketTemplateModel struct {
	TenantModel
	CustomerCompanyID *uuid.UUID                   `gorm:"type:uuid;index"`
	Name              string                       `gorm:"type:varchar(200);not null"`
	Description       string                       `gorm:"type:text;not null"`
	Category          string                       `gorm:"type:varchar(100);not null;index"`
	Subcategory       string                       `gorm:"type:varchar(100);not null"`
	DefaultType       string                       `gorm:"type:varchar(50);not null"`
	DefaultPriority   template.Priority            `gorm:"type:varchar(20);not null"`
	DefaultStatus     string                       `gorm:"type:varchar(50);not null"`
	DefaultAssigneeID *uuid.UUID                   `gorm:"type:uuid"`
	DefaultGroupID    *uuid.UUID                   `gorm:"type:uuid"`
	DefaultTags       datatypes.JSONType[[]string] `gorm:"type:jsonb;not null"`
	CustomFields      datatypes.JSON               `gorm:"type:jsonb;not null"`
	IsActive          bool                         `gorm:"not null"`
	UsageCount        int64                        `gorm:"not null"`
	LastUsedAt        *time.Time
}

// TableName returns the table name for GORM
func (TicketTemplateModel) TableName() string {
	return TicketTemplateTable
}

// ToDomain converts the persistence model to a domain TicketTemplate entity.
func (m *TicketTemplateModel) ToDomain() *template.TicketTemplate {
	tags := m.DefaultTags.Data()
	if tags == nil {
		tags = []string{}
	}
	customFields := json.RawMessage(m.CustomFields)
	if len(customFields) == 0 {
		customFields = json.RawMessage(`{}`)
	}
	return &template.TicketTemplate{
		TenantEntity:      m.tenantEntity(),
		CustomerCompanyID: m.CustomerCompanyID,
		Name:              m.Name,
		Description:       m.Description,
		Category:          m.Category,
		Subcategory:       m.Subcategory,
		DefaultType:       m.DefaultType,
		DefaultPriority:   m.DefaultPriority,
		DefaultStatus:     m.DefaultStatus,
		DefaultAssigneeID: m.DefaultAssigneeID,
		DefaultGroupID:    m.DefaultGroupID,
		DefaultTags:       tags,
		CustomFields:      customFields,
		IsActive:          m.IsActive,
		UsageCount:        m.UsageCount,
		LastUsedAt:        m.LastUsedAt,
	}
}

// FromDomain populates the persistence model from a domain TicketTemplate entity.
func (m *TicketTemplateModel) FromDomain(t *template.TicketTemplate) {
	m.TenantModel = tenantModelOf(t.TenantEntity)
	m.CustomerCompanyID = t.CustomerCompanyID
	m.Name = t.Name
	m.Description = t.Description
	m.Category = t.Category
	m.Subcategory = t.Subcategory
	m.DefaultType = t.DefaultType
	m.DefaultPriority = t.DefaultPriority
	m.DefaultStatus = t.DefaultStatus
	m.DefaultAssigneeID = t.DefaultAssigneeID
	m.DefaultGroupID = t.DefaultGroupID
	tags := t.DefaultTags
	if tags == nil {
		tags = []string{}
	}
	m.DefaultTags = datatypes.NewJSONType(tags)
	m.CustomFields = datatypes.JSON(t.CustomFields)
	if len(m.CustomFields) == 0 {
		m.CustomFields = datatypes.JSON(`{}`)
	}
	m.IsActive = t.IsActive
	m.UsageCount = t.UsageCount
	m.LastUsedAt = t.LastUsedAt
}

// TicketTemplateModelFromDomain creates a new persistence model from a domain TicketTemplate entity.
func TicketTemplateModelFromDomain(t *template.TicketTemplate) *TicketTemplateModel {
	m := &TicketTemplateModel{}
	m.FromDomain(t)
	return m
}
