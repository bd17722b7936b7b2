package location

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/shared"
)

// LocationType classifies what a location represents on the map
type LocationType string

const (
	LocationTypePoint   LocationType = "point"
	LocationTypeSegment LocationType = "segment"
	LocationTypeArea    LocationType = "area"
	LocationTypeRegion  LocationType = "region"
	LocationTypeRoute   LocationType = "route"
)

// LocationTypes lists the known types in display order
var LocationTypes = []LocationType{
	LocationTypePoint, LocationTypeSegment, LocationTypeArea, LocationTypeRegion, LocationTypeRoute,
}

// IsValid reports whether the type is one of LocationTypes
func (t LocationType) IsValid() bool {
	return slices.Contains(LocationTypes, t)
}

// LocationStatus represents the lifecycle status of a location
type LocationStatus string

const (
	LocationStatusActive   LocationStatus = "active"
	LocationStatusInactive LocationStatus = "inactive"
	LocationStatusArchived LocationStatus = "archived"
)

// IsValid reports whether the status is known
func (s LocationStatus) IsValid() bool {
	switch s {
	case LocationStatusActive, LocationStatusInactive, LocationStatusArchived:
		return true
	}
	return false
}

// GeometryType is the GeoJSON geometry kind derived from the coordinates
type GeometryType string

const (
	GeometryPoint      GeometryType = "Point"
	GeometryLineString GeometryType = "LineString"
	GeometryPolygon    GeometryType = "Polygon"
)

const (
	maxNameLength        = 200
	maxDescriptionLength = 2000
	maxAddressLength     = 500
)

// Location-specific domain errors
var (
	ErrLocationNotFound = shared.NewDomainError("NOT_FOUND", "Location not found")
	ErrLocationCycle    = shared.NewDomainError("LOCATION_CYCLE", "Parent would create a cycle in the location hierarchy")
	ErrParentNotFound   = shared.NewDomainError("PARENT_NOT_FOUND", "Parent location not found")
	ErrAttachmentAbsent = shared.NewDomainError("NOT_FOUND", "Attachment not found")
)

// Attachment is the metadata of a file stored for a location
type Attachment struct {
	StorageKey  string     `json:"storageKey"`
	ContentType string     `json:"contentType"`
	Size        int64      `json:"size"`
	UploadedAt  time.Time  `json:"uploadedAt"`
	UploadedBy  *uuid.UUID `json:"uploadedBy,omitempty"`
}

// Location is a named geographic feature owned by a tenant.
// Coordinates are kept verbatim as submitted; GeometryType is derived
// from them when they are set.
type Location struct {
	shared.TenantEntity
	Name         string
	Description  string
	LocationType LocationType
	GeometryType GeometryType
	Coordinates  json.RawMessage
	Status       LocationStatus
	Tags         []string
	IsFavorite   bool
	ParentID     *uuid.UUID
	Attachments  map[string]Attachment
	Address      string
}

// NewLocation creates a new active location after validating its shape
func NewLocation(tenantID uuid.UUID, createdBy *uuid.UUID, name string, locationType LocationType, coordinates json.RawMessage) (*Location, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if !locationType.IsValid() {
		return nil, shared.NewDomainError("INVALID_LOCATION_TYPE", "Location type must be one of point, segment, area, region, route")
	}
	_, geometryType, err := ParseCoordinates(coordinates, locationType)
	if err != nil {
		return nil, err
	}

	return &Location{
		TenantEntity: shared.NewTenantEntity(tenantID, createdBy),
		Name:         strings.TrimSpace(name),
		LocationType: locationType,
		GeometryType: geometryType,
		Coordinates:  coordinates,
		Status:       LocationStatusActive,
		Tags:         []string{},
		Attachments:  map[string]Attachment{},
	}, nil
}

// SetDetails sets the free-text fields
func (l *Location) SetDetails(description, address string) error {
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return shared.NewDomainError("INVALID_INPUT", "Description cannot exceed 2000 characters")
	}
	if utf8.RuneCountInString(address) > maxAddressLength {
		return shared.NewDomainError("INVALID_INPUT", "Address cannot exceed 500 characters")
	}
	l.Description = description
	l.Address = address
	return nil
}

// SetStatus changes the lifecycle status
func (l *Location) SetStatus(status LocationStatus) error {
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Status must be one of active, inactive, archived")
	}
	l.Status = status
	return nil
}

// SetTags replaces the tag list with its normalized form
func (l *Location) SetTags(tags []string) {
	l.Tags = NormalizeTags(tags)
}

// SetParent assigns the parent; the hierarchy check happens in the repository
func (l *Location) SetParent(parentID *uuid.UUID) error {
	if parentID != nil && *parentID == l.ID {
		return ErrLocationCycle
	}
	l.ParentID = parentID
	return nil
}

// PutAttachment records the metadata of an uploaded file
func (l *Location) PutAttachment(fileName string, a Attachment) {
	if l.Attachments == nil {
		l.Attachments = map[string]Attachment{}
	}
	l.Attachments[fileName] = a
}

// RemoveAttachment forgets an attachment, returning it if it existed
func (l *Location) RemoveAttachment(fileName string) (Attachment, bool) {
	a, ok := l.Attachments[fileName]
	if ok {
		delete(l.Attachments, fileName)
	}
	return a, ok
}

// ValidateName checks a location name
func ValidateName(name string) error {
	return validateName(name)
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Location name cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return shared.NewDomainError("INVALID_NAME", "Location name cannot exceed 200 characters")
	}
	return nil
}
