package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/location"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/infrastructure/persistence/models"
	"github.com/helpdesk/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxHierarchyDepth bounds the recursive ancestor walk
const maxHierarchyDepth = 256

// locationUpdatableColumns lists the columns a partial update may write
var locationUpdatableColumns = map[string]bool{
	"name":          true,
	"description":   true,
	"location_type": true,
	"geometry_type": true,
	"coordinates":   true,
	"status":        true,
	"tags":          true,
	"is_favorite":   true,
	"parent_id":     true,
	"attachments":   true,
	"address":       true,
}

var locationList = listSpec{
	searchColumns: []string{"name", "description", "address"},
	filterColumns: map[string]bool{
		"location_type": true,
		"status":        true,
		"is_favorite":   true,
		"parent_id":     true,
	},
	sortColumns: locationSortColumns,
	defaultSort: "created_at",
	custom: func(query *gorm.DB, key string, value interface{}) (*gorm.DB, bool) {
		if key != "tag" {
			return query, false
		}
		tag, ok := value.(string)
		if !ok || tag == "" {
			return query, true
		}
		doc, _ := json.Marshal([]string{location.NormalizeTag(tag)})
		return query.Where("tags @> ?::jsonb", string(doc)), true
	},
}

// GormLocationRepository implements LocationRepository using GORM
type GormLocationRepository struct {
	db *tenant.TenantDB
}

// NewGormLocationRepository creates a new GormLocationRepository
func NewGormLocationRepository(db *gorm.DB) *GormLocationRepository {
	return &GormLocationRepository{db: tenant.NewTenantDB(db)}
}

func (r *GormLocationRepository) table(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.Table(ctx, tenantID, models.LocationTable)
}

// FindByIDForTenant finds a location by ID within a tenant
func (r *GormLocationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*location.Location, error) {
	var model models.LocationModel
	if err := r.table(ctx, tenantID).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds all locations for a tenant
func (r *GormLocationRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]location.Location, error) {
	var rows []models.LocationModel
	if err := locationList.applyFilter(r.table(ctx, tenantID), filter).Find(&rows).Error; err != nil {
		return nil, err
	}
	return locationsToDomain(rows), nil
}

// CountForTenant counts locations for a tenant
func (r *GormLocationRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := locationList.applyFilterWithoutPagination(r.table(ctx, tenantID), filter.Normalize())
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create inserts a new location
func (r *GormLocationRepository) Create(ctx context.Context, loc *location.Location) error {
	model := models.LocationModelFromDomain(loc)
	return r.table(ctx, loc.TenantID).Create(model).Error
}

// Update writes the patched columns and returns the stored row.
// An empty patch returns the current row without writing. A new parent is
// rechecked inside the write transaction while parent changes of the tenant
// are serialized, so concurrent moves cannot store a cycle.
func (r *GormLocationRepository) Update(ctx context.Context, tenantID, id uuid.UUID, patch shared.Patch) (*location.Location, error) {
	if patch.IsEmpty() {
		return r.FindByIDForTenant(ctx, tenantID, id)
	}
	updates, err := patchColumns(patch, locationUpdatableColumns)
	if err != nil {
		return nil, err
	}

	parentID, reparent := newParent(patch)
	if !reparent {
		return updateLocation(r.table(ctx, tenantID), id, updates)
	}

	var updated *location.Location
	err = r.db.Transaction(ctx, tenantID, func(tx *gorm.DB, schema tenant.Schema) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", hierarchyLockKey(schema)).Error; err != nil {
			return err
		}
		var n int64
		if err := tenant.From(tx, tenantID, models.LocationTable).
			Where("id = ?", parentID).
			Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return location.ErrParentNotFound
		}
		cycle, err := ancestorOrSelf(tx, schema, tenantID, parentID, id)
		if err != nil {
			return err
		}
		if cycle {
			return location.ErrLocationCycle
		}
		updated, err = updateLocation(tenant.From(tx, tenantID, models.LocationTable), id, updates)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func updateLocation(query *gorm.DB, id uuid.UUID, updates map[string]interface{}) (*location.Location, error) {
	var model models.LocationModel
	result := query.
		Model(&model).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, shared.ErrNotFound
	}
	return model.ToDomain(), nil
}

// newParent returns the parent a patch moves the location under, if any
func newParent(patch shared.Patch) (uuid.UUID, bool) {
	switch v := patch["parentId"].(type) {
	case uuid.UUID:
		return v, true
	case *uuid.UUID:
		if v != nil {
			return *v, true
		}
	}
	return uuid.Nil, false
}

// hierarchyLockKey names the advisory lock taken by parent changes
func hierarchyLockKey(schema tenant.Schema) string {
	return schema.Qualify(models.LocationTable) + ".parent_id"
}

// DeleteForTenant deletes a location within a tenant. Children keep
// existing and become roots.
func (r *GormLocationRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.table(ctx, tenantID).Where("id = ?", id).Delete(&models.LocationModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// IsAncestorOrSelf walks the parent chain of id with a recursive CTE and
// reports whether candidate is on it. UNION drops repeated rows, so a
// corrupt chain cannot loop forever.
func (r *GormLocationRepository) IsAncestorOrSelf(ctx context.Context, tenantID, id, candidate uuid.UUID) (bool, error) {
	schema, db, err := r.db.Raw(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return ancestorOrSelf(db, schema, tenantID, id, candidate)
}

func ancestorOrSelf(db *gorm.DB, schema tenant.Schema, tenantID, id, candidate uuid.UUID) (bool, error) {
	table := schema.Quoted(models.LocationTable)
	sql := fmt.Sprintf(`WITH RECURSIVE chain AS (
	SELECT id, parent_id FROM %[1]s WHERE tenant_id = ? AND id = ?
	UNION
	SELECT l.id, l.parent_id FROM %[1]s l JOIN chain c ON l.id = c.parent_id WHERE l.tenant_id = ?
)
SELECT EXISTS (SELECT 1 FROM chain WHERE id = ?)`, table)

	var found bool
	if err := db.Raw(sql, tenantID, id, tenantID, candidate).Scan(&found).Error; err != nil {
		return false, err
	}
	return found, nil
}

// FindChildren returns the direct children of a location
func (r *GormLocationRepository) FindChildren(ctx context.Context, tenantID, parentID uuid.UUID) ([]location.Location, error) {
	var rows []models.LocationModel
	if err := r.table(ctx, tenantID).
		Where("parent_id = ?", parentID).
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return locationsToDomain(rows), nil
}

// FindAncestors returns the ancestors of a location ordered from the root
// down to its direct parent.
func (r *GormLocationRepository) FindAncestors(ctx context.Context, tenantID, id uuid.UUID) ([]location.Location, error) {
	schema, db, err := r.db.Raw(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	table := schema.Quoted(models.LocationTable)
	sql := fmt.Sprintf(`WITH RECURSIVE chain AS (
	SELECT parent_id, 1 AS depth FROM %[1]s WHERE tenant_id = ? AND id = ?
	UNION ALL
	SELECT l.parent_id, c.depth + 1 FROM %[1]s l JOIN chain c ON l.id = c.parent_id
	WHERE l.tenant_id = ? AND c.depth < ?
)
SELECT l.* FROM %[1]s l JOIN chain c ON l.id = c.parent_id
WHERE l.tenant_id = ?
ORDER BY c.depth DESC`, table)

	var rows []models.LocationModel
	if err := db.Raw(sql, tenantID, id, tenantID, maxHierarchyDepth, tenantID).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return locationsToDomain(rows), nil
}

// FindByStatus returns every location of a tenant with the given status
func (r *GormLocationRepository) FindByStatus(ctx context.Context, tenantID uuid.UUID, status location.LocationStatus) ([]location.Location, error) {
	var rows []models.LocationModel
	if err := r.table(ctx, tenantID).Where("status = ?", status).Find(&rows).Error; err != nil {
		return nil, err
	}
	return locationsToDomain(rows), nil
}

// locationStatsRow is one group of the stats aggregation
type locationStatsRow struct {
	LocationType location.LocationType
	Status       location.LocationStatus
	IsFavorite   bool
	Count        int64
}

// Stats aggregates counts by type, status and favorite flag in one query
func (r *GormLocationRepository) Stats(ctx context.Context, tenantID uuid.UUID) (*location.Stats, error) {
	var rows []locationStatsRow
	if err := r.table(ctx, tenantID).
		Select("location_type, status, is_favorite, COUNT(*) AS count").
		Group("location_type, status, is_favorite").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := &location.Stats{
		ByType:   make(map[location.LocationType]int64),
		ByStatus: make(map[location.LocationStatus]int64),
	}
	for _, row := range rows {
		stats.Total += row.Count
		stats.ByType[row.LocationType] += row.Count
		stats.ByStatus[row.Status] += row.Count
		if row.IsFavorite {
			stats.Favorites += row.Count
		}
	}
	return stats, nil
}

func locationsToDomain(rows []models.LocationModel) []location.Location {
	locations := make([]location.Location, len(rows))
	for i := range rows {
		locations[i] = *rows[i].ToDomain()
	}
	return locations
}

// Ensure GormLocationRepository implements LocationRepository
var _ location.LocationRepository = (*GormLocationRepository)(nil)
