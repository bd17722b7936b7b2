package models

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/location"
	"gorm.io/datatypes"
)

// LocationTable is the tenant-schema table holding locations
const LocationTable = "locations"

// LocationModel is the persistence model for the Location domain entity.
type LocationModel struct {
	TenantModel
	Name         string                                             `gorm:"type:varchar(200);not null"`
	Description  string                                             `gorm:"type:text;not null"`
	LocationType location.LocationType                              `gorm:"type:varchar(20);not null"`
	GeometryType location.GeometryType                              `gorm:"type:varchar(20);not null"`
	Coordinates  datatypes.JSON                                     `gorm:"type:jsonb;not null"`
	Status       location.LocationStatus                            `gorm:"type:varchar(20);not null"`
	Tags         datatypes.JSONType[[]string]                       `gorm:"type:jsonb;not null"`
	IsFavorite   bool                                               `gorm:"not null"`
	ParentID     *uuid.UUID                                         `gorm:"type:uuid;index"`
	Attachments  datatypes.JSONType[map[string]location.Attachment] `gorm:"type:jsonb;not null"`
	Address      string                                             `gorm:"type:varchar(500);not null"`
}

// TableName returns the table name for GORM
func (LocationModel) TableName() string {
	return LocationTable
}

// ToDomain converts the persistence model to a domain Location entity.
func (m *LocationModel) ToDomain() *location.Location {
	tags := m.Tags.Data()
	if tags == nil {
		tags = []string{}
	}
	attachments := m.Attachments.Data()
	if attachments == nil {
		attachments = map[string]location.Attachment{}
	}
	return &location.Location{
		TenantEntity: m.tenantEntity(),
		Name:         m.Name,
		Description:  m.Description,
		LocationType: m.LocationType,
		GeometryType: m.GeometryType,
		Coordinates:  json.RawMessage(m.Coordinates),
		Status:       m.Status,
		Tags:         tags,
		IsFavorite:   m.IsFavorite,
		ParentID:     m.ParentID,
		Attachments:  attachments,
		Address:      m.Address,
	}
}

// FromDomain populates the persistence model from a domain Location entity.
func (m *LocationModel) FromDomain(l *location.Location) {
	m.TenantModel = tenantModelOf(l.TenantEntity)
	m.Name = l.Name
	m.Description = l.Description
	m.LocationType = l.LocationType
	m.GeometryType = l.GeometryType
	m.Coordinates = datatypes.JSON(l.Coordinates)
	m.Status = l.Status
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	m.Tags = datatypes.NewJSONType(tags)
	m.IsFavorite = l.IsFavorite
	m.ParentID = l.ParentID
	attachments := l.Attachments
	if attachments == nil {
		attachments = map[string]location.Attachment{}
	}
	m.Attachments = datatypes.NewJSONType(attachments)
	m.Address = l.Address
}

// LocationModelFromDomain creates a new persistence model from a domain Location entity.
func LocationModelFromDomain(l *location.Location) *LocationModel {
	m := &LocationModel{}
	m.FromDomain(l)
	return m
}
