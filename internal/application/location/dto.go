package location

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/location"
	"github.com/helpdesk/backend/internal/domain/shared"
)

// ============================================================================
// Request DTOs
// ============================================================================

// CreateLocationRequest represents a request to create a location
type CreateLocationRequest struct {
	Name         string          `json:"name" binding:"required,min=1,max=200"`
	Description  string          `json:"description" binding:"max=2000"`
	LocationType string          `json:"locationType" binding:"required,location_type"`
	Coordinates  json.RawMessage `json:"coordinates" binding:"required"`
	Status       string          `json:"status" binding:"omitempty,oneof=active inactive archived"`
	Tags         []string        `json:"tags" binding:"omitempty,max=50,dive,max=50"`
	IsFavorite   bool            `json:"isFavorite"`
	ParentID     *uuid.UUID      `json:"parentId"`
	Address      string          `json:"address" binding:"max=500"`
}

// UpdateLocationRequest is a partial update. Absent fields are left
// untouched; parentId may be set to null to detach the location.
type UpdateLocationRequest struct {
	Name         *string                    `json:"name" binding:"omitempty,min=1,max=200"`
	Description  *string                    `json:"description" binding:"omitempty,max=2000"`
	LocationType *string                    `json:"locationType" binding:"omitempty,location_type"`
	Coordinates  json.RawMessage            `json:"coordinates"`
	Status       *string                    `json:"status" binding:"omitempty,oneof=active inactive archived"`
	Tags         *[]string                  `json:"tags" binding:"omitempty,max=50,dive,max=50"`
	IsFavorite   *bool                      `json:"isFavorite"`
	ParentID     shared.Nullable[uuid.UUID] `json:"parentId"`
	Address      *string                    `json:"address" binding:"omitempty,max=500"`
}

// SetFavoriteRequest toggles the favorite flag
type SetFavoriteRequest struct {
	IsFavorite *bool `json:"isFavorite" binding:"required"`
}

// LocationListFilter represents the list query string
type LocationListFilter struct {
	Page         int    `form:"page" binding:"omitempty,min=1"`
	PageSize     int    `form:"pageSize" binding:"omitempty,min=1,max=100"`
	OrderBy      string `form:"orderBy"`
	OrderDir     string `form:"orderDir" binding:"omitempty,oneof=asc desc ASC DESC"`
	Search       string `form:"search" binding:"max=200"`
	LocationType string `form:"locationType" binding:"omitempty,location_type"`
	Status       string `form:"status" binding:"omitempty,oneof=active inactive archived"`
	IsFavorite   *bool  `form:"isFavorite"`
	ParentID     string `form:"parentId" binding:"omitempty,uuid"`
	Tag          string `form:"tag" binding:"max=50"`
}

// ToSharedFilter converts the query into a repository filter
func (f LocationListFilter) ToSharedFilter() shared.Filter {
	filter := shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
		Search:   f.Search,
		Filters:  map[string]interface{}{},
	}
	if f.LocationType != "" {
		filter.Filters["location_type"] = f.LocationType
	}
	if f.Status != "" {
		filter.Filters["status"] = f.Status
	}
	if f.IsFavorite != nil {
		filter.Filters["is_favorite"] = *f.IsFavorite
	}
	if f.ParentID != "" {
		if id, err := uuid.Parse(f.ParentID); err == nil {
			filter.Filters["parent_id"] = id
		}
	}
	if f.Tag != "" {
		filter.Filters["tag"] = f.Tag
	}
	return filter.Normalize()
}

// NearbyQuery represents a proximity search around a point
type NearbyQuery struct {
	Lat    *float64 `form:"lat" binding:"required,latitude"`
	Lng    *float64 `form:"lng" binding:"required,longitude"`
	Radius float64  `form:"radius" binding:"omitempty,gt=0,max=100000"`
	Limit  int      `form:"limit" binding:"omitempty,min=1,max=100"`
}

// InitiateUploadRequest asks for a presigned upload URL
type InitiateUploadRequest struct {
	FileName    string `json:"fileName" binding:"required,min=1,max=255"`
	ContentType string `json:"contentType" binding:"required,max=127"`
	Size        int64  `json:"size" binding:"required,gt=0"`
}

// ============================================================================
// Response DTOs
// ============================================================================

// LocationResponse represents a location in API responses
type LocationResponse struct {
	ID           uuid.UUID                      `json:"id"`
	TenantID     uuid.UUID                      `json:"tenantId"`
	Name         string                         `json:"name"`
	Description  string                         `json:"description"`
	LocationType string                         `json:"locationType"`
	GeometryType string                         `json:"geometryType"`
	Coordinates  json.RawMessage                `json:"coordinates"`
	Status       string                         `json:"status"`
	Tags         []string                       `json:"tags"`
	IsFavorite   bool                           `json:"isFavorite"`
	ParentID     *uuid.UUID                     `json:"parentId"`
	Attachments  map[string]location.Attachment `json:"attachments"`
	Address      string                         `json:"address"`
	CreatedBy    *uuid.UUID                     `json:"createdBy,omitempty"`
	CreatedAt    time.Time                      `json:"createdAt"`
	UpdatedAt    time.Time                      `json:"updatedAt"`
}

// NearbyLocation is a location with its distance from the query point
type NearbyLocation struct {
	LocationResponse
	DistanceMeters float64 `json:"distanceMeters"`
}

// StatsResponse aggregates location counts
type StatsResponse struct {
	Total     int64            `json:"total"`
	Favorites int64            `json:"favorites"`
	ByType    map[string]int64 `json:"byType"`
	ByStatus  map[string]int64 `json:"byStatus"`
}

// InitiateUploadResponse carries the presigned upload URL
type InitiateUploadResponse struct {
	FileName   string       `json:"fileName"`
	StorageKey string       `json:"storageKey"`
	Upload     PresignedURL `json:"upload"`
}

// DownloadResponse carries the presigned download URL
type DownloadResponse struct {
	FileName    string       `json:"fileName"`
	ContentType string       `json:"contentType"`
	Size        int64        `json:"size"`
	Download    PresignedURL `json:"download"`
}

// ToLocationResponse converts a domain location to a response
func ToLocationResponse(l *location.Location) LocationResponse {
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	attachments := l.Attachments
	if attachments == nil {
		attachments = map[string]location.Attachment{}
	}
	return LocationResponse{
		ID:           l.ID,
		TenantID:     l.TenantID,
		Name:         l.Name,
		Description:  l.Description,
		LocationType: string(l.LocationType),
		GeometryType: string(l.GeometryType),
		Coordinates:  l.Coordinates,
		Status:       string(l.Status),
		Tags:         tags,
		IsFavorite:   l.IsFavorite,
		ParentID:     l.ParentID,
		Attachments:  attachments,
		Address:      l.Address,
		CreatedBy:    l.CreatedBy,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

// ToLocationResponses converts a slice of locations
func ToLocationResponses(locations []location.Location) []LocationResponse {
	out := make([]LocationResponse, len(locations))
	for i := range locations {
		out[i] = ToLocationResponse(&locations[i])
	}
	return out
}

func toStatsResponse(s *location.Stats) StatsResponse {
	resp := StatsResponse{
		Total:     s.Total,
		Favorites: s.Favorites,
		ByType:    make(map[string]int64, len(s.ByType)),
		ByStatus:  make(map[string]int64, len(s.ByStatus)),
	}
	for k, v := range s.ByType {
		resp.ByType[string(k)] = v
	}
	for k, v := range s.ByStatus {
		resp.ByStatus[string(k)] = v
	}
	return resp
}
