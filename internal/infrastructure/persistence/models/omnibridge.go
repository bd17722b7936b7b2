package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/omnibridge"
	"gorm.io/datatypes"
)

// OmniBridgeSettingsTable is the tenant-schema table holding the settings row
const OmniBridgeSettingsTable = "omnibridge_settings"

// OmniBridgeSettingsModel is the persistence model for the Settings domain entity.
// Each section is one jsonb column; secrets inside channels are stored as
// ciphertext plus hint.
type OmniBridgeSettingsModel struct {
	ID        uuid.UUID                               `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID                               `gorm:"type:uuid;not null;uniqueIndex"`
	Channels  datatypes.JSONType[omnibridge.Channels] `gorm:"type:jsonb;not null"`
	Filters   datatypes.JSONType[omnibridge.Filters]  `gorm:"type:jsonb;not null"`
	Search    datatypes.JSONType[omnibridge.Search]   `gorm:"type:jsonb;not null"`
	UpdatedBy *uuid.UUID                              `gorm:"type:uuid"`
	CreatedAt time.Time                               `gorm:"not null"`
	UpdatedAt time.Time                               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OmniBridgeSettingsModel) TableName() string {
	return OmniBridgeSettingsTable
}

// ToDomain converts the persistence model to domain Settings.
func (m *OmniBridgeSettingsModel) ToDomain() *omnibridge.Settings {
	filters := m.Filters.Data()
	if filters.BlockedSenders == nil {
		filters.BlockedSenders = []string{}
	}
	if filters.SpamKeywords == nil {
		filters.SpamKeywords = []string{}
	}
	return &omnibridge.Settings{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Channels:  m.Channels.Data(),
		Filters:   filters,
		Search:    m.Search.Data(),
		UpdatedBy: m.UpdatedBy,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from domain Settings.
func (m *OmniBridgeSettingsModel) FromDomain(s *omnibridge.Settings) {
	m.ID = s.ID
	m.TenantID = s.TenantID
	m.Channels = datatypes.NewJSONType(s.Channels)
	m.Filters = datatypes.NewJSONType(s.Filters)
	m.Search = datatypes.NewJSONType(s.Search)
	m.UpdatedBy = s.UpdatedBy
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
}

// OmniBridgeSettingsModelFromDomain creates a new persistence model from domain Settings.
func OmniBridgeSettingsModelFromDomain(s *omnibridge.Settings) *OmniBridgeSettingsModel {
	m := &OmniBridgeSettingsModel{}
	m.FromDomain(s)
	return m
}
