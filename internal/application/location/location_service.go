package location

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/location"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/infrastructure/logger"
	"github.com/helpdesk/backend/internal/infrastructure/telemetry"
	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	// DefaultNearbyRadius is the search radius in meters when none is given
	DefaultNearbyRadius = 1000.0
	// MaxNearbyRadius caps the search radius in meters
	MaxNearbyRadius = 100_000.0

	defaultNearbyLimit = 20
)

// LocationService handles location business operations
type LocationService struct {
	repo            location.LocationRepository
	storage         ObjectStorage
	config          AttachmentConfig
	logger          *zap.Logger
	businessMetrics *telemetry.BusinessMetrics
}

// NewLocationService creates a new LocationService. storage may be nil
// when attachments are not configured.
func NewLocationService(repo location.LocationRepository, storage ObjectStorage, logger *zap.Logger) *LocationService {
	return &LocationService{
		repo:    repo,
		storage: storage,
		config:  DefaultAttachmentConfig(),
		logger:  logger,
	}
}

// SetBusinessMetrics sets the business metrics collector
func (s *LocationService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// SetAttachmentConfig overrides the attachment limits
func (s *LocationService) SetAttachmentConfig(cfg AttachmentConfig) {
	s.config = cfg
}

// Create creates a new location
func (s *LocationService) Create(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, req CreateLocationRequest) (_ *LocationResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "location", "create", tenantID)
	defer telemetry.EndSpan(span, &err)

	loc, err := location.NewLocation(tenantID, userID, req.Name, location.LocationType(req.LocationType), req.Coordinates)
	if err != nil {
		return nil, err
	}
	if err := loc.SetDetails(req.Description, req.Address); err != nil {
		return nil, err
	}
	if req.Status != "" {
		if err := loc.SetStatus(location.LocationStatus(req.Status)); err != nil {
			return nil, err
		}
	}
	loc.SetTags(req.Tags)
	loc.IsFavorite = req.IsFavorite

	if req.ParentID != nil {
		// A new location has no descendants, so an existing parent cannot close a cycle
		if err := s.ensureParentExists(ctx, tenantID, *req.ParentID); err != nil {
			return nil, err
		}
		if err := loc.SetParent(req.ParentID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, loc); err != nil {
		return nil, s.internal(ctx, "Failed to create location", err)
	}

	s.log(ctx).Info("Location created",
		zap.String("location_id", loc.ID.String()),
		zap.String("location_type", string(loc.LocationType)))

	resp := ToLocationResponse(loc)
	return &resp, nil
}

// GetByID retrieves a location
func (s *LocationService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*LocationResponse, error) {
	loc, err := s.find(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToLocationResponse(loc)
	return &resp, nil
}

// List retrieves a page of locations with the total count
func (s *LocationService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[LocationResponse], error) {
	filter = filter.Normalize()
	items, err := s.repo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, s.internal(ctx, "Failed to list locations", err)
	}
	total, err := s.repo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, s.internal(ctx, "Failed to count locations", err)
	}
	page := shared.NewPaginated(ToLocationResponses(items), total, filter.Page, filter.PageSize)
	return &page, nil
}

// Update applies a partial update. A request with no field set writes
// nothing and returns the current location.
func (s *LocationService) Update(ctx context.Context, tenantID, id uuid.UUID, req UpdateLocationRequest) (_ *LocationResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "location", "update", tenantID, telemetry.LocationID(id))
	defer telemetry.EndSpan(span, &err)

	current, err := s.find(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	patch, err := s.buildPatch(ctx, current, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("patch.fields", len(patch)))

	updated, err := s.repo.Update(ctx, tenantID, id, patch)
	if errors.Is(err, location.ErrLocationCycle) {
		// a concurrent move closed the loop after checkParent passed
		s.businessMetrics.RecordLocationCycleRejected()
	}
	if err != nil {
		return nil, s.translate(ctx, "Failed to update location", err)
	}
	resp := ToLocationResponse(updated)
	return &resp, nil
}

// buildPatch validates each present field against the current state and
// collects the columns to write
func (s *LocationService) buildPatch(ctx context.Context, current *location.Location, req UpdateLocationRequest) (shared.Patch, error) {
	patch := shared.Patch{}

	if req.Name != nil {
		if err := location.ValidateName(*req.Name); err != nil {
			return nil, err
		}
		patch.Set("name", strings.TrimSpace(*req.Name))
	}

	if req.Description != nil || req.Address != nil {
		description, address := current.Description, current.Address
		if req.Description != nil {
			description = *req.Description
		}
		if req.Address != nil {
			address = *req.Address
		}
		draft := *current
		if err := draft.SetDetails(description, address); err != nil {
			return nil, err
		}
		if req.Description != nil {
			patch.Set("description", description)
		}
		if req.Address != nil {
			patch.Set("address", address)
		}
	}

	if req.LocationType != nil || len(req.Coordinates) > 0 {
		locationType := current.LocationType
		if req.LocationType != nil {
			locationType = location.LocationType(*req.LocationType)
			if !locationType.IsValid() {
				return nil, shared.NewDomainError("INVALID_LOCATION_TYPE", "Location type must be one of point, segment, area, region, route")
			}
		}
		coordinates := current.Coordinates
		if len(req.Coordinates) > 0 {
			coordinates = req.Coordinates
		}
		// Changing either side revalidates the pair
		_, geometryType, err := location.ParseCoordinates(coordinates, locationType)
		if err != nil {
			return nil, err
		}
		if req.LocationType != nil {
			patch.Set("locationType", string(locationType))
		}
		if len(req.Coordinates) > 0 {
			patch.Set("coordinates", json.RawMessage(coordinates))
		}
		if geometryType != current.GeometryType {
			patch.Set("geometryType", string(geometryType))
		}
	}

	if req.Status != nil {
		status := location.LocationStatus(*req.Status)
		if !status.IsValid() {
			return nil, shared.NewDomainError("INVALID_STATUS", "Status must be one of active, inactive, archived")
		}
		patch.Set("status", string(status))
	}

	if req.Tags != nil {
		patch.Set("tags", location.NormalizeTags(*req.Tags))
	}

	if req.IsFavorite != nil {
		patch.Set("isFavorite", *req.IsFavorite)
	}

	if req.ParentID.Set {
		parentID := req.ParentID.Ptr()
		if parentID != nil {
			if err := s.checkParent(ctx, current, *parentID); err != nil {
				return nil, err
			}
			patch.Set("parentId", *parentID)
		} else {
			patch.Set("parentId", (*uuid.UUID)(nil))
		}
	}

	return patch, nil
}

// checkParent rejects a parent that is missing or that would close a cycle
func (s *LocationService) checkParent(ctx context.Context, loc *location.Location, parentID uuid.UUID) error {
	moved := *loc
	if err := moved.SetParent(&parentID); err != nil {
		s.businessMetrics.RecordLocationCycleRejected()
		return err
	}
	if err := s.ensureParentExists(ctx, loc.TenantID, parentID); err != nil {
		return err
	}
	cycle, err := s.repo.IsAncestorOrSelf(ctx, loc.TenantID, parentID, loc.ID)
	if err != nil {
		return s.internal(ctx, "Failed to check location hierarchy", err)
	}
	if cycle {
		s.businessMetrics.RecordLocationCycleRejected()
		s.log(ctx).Info("Rejected cyclic parent assignment",
			zap.String("location_id", loc.ID.String()),
			zap.String("parent_id", parentID.String()))
		return location.ErrLocationCycle
	}
	return nil
}

func (s *LocationService) ensureParentExists(ctx context.Context, tenantID, parentID uuid.UUID) error {
	parent, err := s.repo.FindByIDForTenant(ctx, tenantID, parentID)
	if errors.Is(err, shared.ErrNotFound) {
		return location.ErrParentNotFound
	}
	if err != nil {
		return s.internal(ctx, "Failed to load parent location", err)
	}
	if !parent.OwnedBy(tenantID) {
		return location.ErrParentNotFound
	}
	return nil
}

// SetFavorite sets the favorite flag
func (s *LocationService) SetFavorite(ctx context.Context, tenantID, id uuid.UUID, favorite bool) (*LocationResponse, error) {
	updated, err := s.repo.Update(ctx, tenantID, id, shared.Patch{"isFavorite": favorite})
	if err != nil {
		return nil, s.translate(ctx, "Failed to update favorite flag", err)
	}
	resp := ToLocationResponse(updated)
	return &resp, nil
}

// Delete removes a location. Children are detached by the database and
// stored attachments are removed on a best-effort basis.
func (s *LocationService) Delete(ctx context.Context, tenantID, id uuid.UUID) (err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "location", "delete", tenantID, telemetry.LocationID(id))
	defer telemetry.EndSpan(span, &err)

	loc, err := s.find(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteForTenant(ctx, tenantID, id); err != nil {
		return s.translate(ctx, "Failed to delete location", err)
	}

	if s.storage != nil {
		for name, a := range loc.Attachments {
			if err := s.storage.Delete(ctx, a.StorageKey); err != nil {
				s.log(ctx).Warn("Failed to delete attachment object of deleted location",
					zap.String("location_id", id.String()),
					zap.String("file_name", name),
					zap.Error(err))
			}
		}
	}
	return nil
}

// Children returns the direct children of a location
func (s *LocationService) Children(ctx context.Context, tenantID, id uuid.UUID) ([]LocationResponse, error) {
	if _, err := s.find(ctx, tenantID, id); err != nil {
		return nil, err
	}
	children, err := s.repo.FindChildren(ctx, tenantID, id)
	if err != nil {
		return nil, s.internal(ctx, "Failed to load child locations", err)
	}
	return ToLocationResponses(children), nil
}

// Ancestors returns the path from the root down to the parent of id
func (s *LocationService) Ancestors(ctx context.Context, tenantID, id uuid.UUID) ([]LocationResponse, error) {
	if _, err := s.find(ctx, tenantID, id); err != nil {
		return nil, err
	}
	ancestors, err := s.repo.FindAncestors(ctx, tenantID, id)
	if err != nil {
		return nil, s.internal(ctx, "Failed to load location ancestors", err)
	}
	return ToLocationResponses(ancestors), nil
}

// Nearby returns active locations whose representative point lies
// within the radius, nearest first
func (s *LocationService) Nearby(ctx context.Context, tenantID uuid.UUID, q NearbyQuery) ([]NearbyLocation, error) {
	if q.Lat == nil || q.Lng == nil || !location.ValidLatLng(*q.Lat, *q.Lng) {
		return nil, shared.NewDomainError("INVALID_COORDINATES", "lat and lng must be valid WGS84 coordinates")
	}
	radius := q.Radius
	if radius <= 0 {
		radius = DefaultNearbyRadius
	}
	if radius > MaxNearbyRadius {
		radius = MaxNearbyRadius
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultNearbyLimit
	}
	if limit > shared.MaxPageSize {
		limit = shared.MaxPageSize
	}

	candidates, err := s.repo.FindByStatus(ctx, tenantID, location.LocationStatusActive)
	if err != nil {
		return nil, s.internal(ctx, "Failed to load locations", err)
	}

	origin := orb.Point{*q.Lng, *q.Lat}
	results := make([]NearbyLocation, 0)
	for i := range candidates {
		loc := &candidates[i]
		geometry, _, err := location.ParseCoordinates(loc.Coordinates, loc.LocationType)
		if err != nil {
			s.log(ctx).Warn("Skipping location with unreadable coordinates",
				zap.String("location_id", loc.ID.String()), zap.Error(err))
			continue
		}
		distance := location.DistanceMeters(origin, location.RepresentativePoint(geometry))
		if distance > radius {
			continue
		}
		results = append(results, NearbyLocation{
			LocationResponse: ToLocationResponse(loc),
			DistanceMeters:   distance,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceMeters < results[j].DistanceMeters
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Stats returns location counts by type and status
func (s *LocationService) Stats(ctx context.Context, tenantID uuid.UUID) (*StatsResponse, error) {
	stats, err := s.repo.Stats(ctx, tenantID)
	if err != nil {
		return nil, s.internal(ctx, "Failed to compute location stats", err)
	}
	resp := toStatsResponse(stats)
	return &resp, nil
}

func (s *LocationService) find(ctx context.Context, tenantID, id uuid.UUID) (*location.Location, error) {
	loc, err := s.repo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, s.translate(ctx, "Failed to load location", err)
	}
	return loc, nil
}

// translate keeps domain errors and hides everything else behind an
// internal error
func (s *LocationService) translate(ctx context.Context, msg string, err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return location.ErrLocationNotFound
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return s.internal(ctx, msg, err)
}

func (s *LocationService) internal(ctx context.Context, msg string, err error) error {
	s.log(ctx).Error(msg, zap.Error(err))
	return shared.NewDomainError("INTERNAL_ERROR", msg)
}

func (s *LocationService) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, s.logger)
}
