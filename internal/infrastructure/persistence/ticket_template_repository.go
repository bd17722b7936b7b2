package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/domain/template"
	"github.com/helpdesk/backend/internal/infrastructure/persistence/models"
	"github.com/helpdesk/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ticketTemplateUpdatableColumns lists the columns a partial update may write.
// usage_count and last_used_at only change through IncrementUsage.
var ticketTemplateUpdatableColumns = map[string]bool{
	"customer_company_id": true,
	"name":                true,
	"description":         true,
	"category":            true,
	"subcategory":         true,
	"default_type":        true,
	"default_priority":    true,
	"default_status":      true,
	"default_assignee_id": true,
	"default_group_id":    true,
	"default_tags":        true,
	"custom_fields":       true,
	"is_active":           true,
}

var ticketTemplateList = listSpec{
	searchColumns: []string{"name", "description", "category"},
	filterColumns: map[string]bool{
		"category":    true,
		"subcategory": true,
		"is_active":   true,
	},
	sortColumns: ticketTemplateSortColumns,
	defaultSort: "created_at",
	custom: func(query *gorm.DB, key string, value interface{}) (*gorm.DB, bool) {
		switch key {
		case template.FilterCompanyID:
			// A company sees its own templates and the global ones
			return query.Where("(customer_company_id IS NULL OR customer_company_id = ?)", value), true
		case template.FilterGlobalOnly:
			if only, ok := value.(bool); ok && only {
				return query.Where("customer_company_id IS NULL"), true
			}
			return query, true
		}
		return query, false
	},
}

// GormTicketTemplateRepository implements TicketTemplateRepository using GORM
type GormTicketTemplateRepository struct {
	db *tenant.TenantDB
}

// NewGormTicketTemplateRepository creates a new GormTicketTemplateRepository
func NewGormTicketTemplateRepository(db *gorm.DB) *GormTicketTemplateRepository {
	return &GormTicketTemplateRepository{db: tenant.NewTenantDB(db)}
}

func (r *GormTicketTemplateRepository) table(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.Table(ctx, tenantID, models.TicketTemplateTable)
}

// FindByIDForTenant finds a template by ID within a tenant
func (r *GormTicketTemplateRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*template.TicketTemplate, error) {
	var model models.TicketTemplateModel
	if err := r.table(ctx, tenantID).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds all templates for a tenant
func (r *GormTicketTemplateRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]template.TicketTemplate, error) {
	var rows []models.TicketTemplateModel
	if err := ticketTemplateList.applyFilter(r.table(ctx, tenantID), filter).Find(&rows).Error; err != nil {
		return nil, err
	}
	templates := make([]template.TicketTemplate, len(rows))
	for i := range rows {
		templates[i] = *rows[i].ToDomain()
	}
	return templates, nil
}

// CountForTenant counts templates for a tenant
func (r *GormTicketTemplateRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := ticketTemplateList.applyFilterWithoutPagination(r.table(ctx, tenantID), filter.Normalize())
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create inserts a new template
func (r *GormTicketTemplateRepository) Create(ctx context.Context, t *template.TicketTemplate) error {
	return r.table(ctx, t.TenantID).Create(models.TicketTemplateModelFromDomain(t)).Error
}

// Update writes the patched columns and returns the stored row.
// An empty patch returns the current row without writing.
func (r *GormTicketTemplateRepository) Update(ctx context.Context, tenantID, id uuid.UUID, patch shared.Patch) (*template.TicketTemplate, error) {
	if patch.IsEmpty() {
		return r.FindByIDForTenant(ctx, tenantID, id)
	}
	updates, err := patchColumns(patch, ticketTemplateUpdatableColumns)
	if err != nil {
		return nil, err
	}

	var model models.TicketTemplateModel
	result := r.table(ctx, tenantID).
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

// DeleteForTenant deletes a template within a tenant
func (r *GormTicketTemplateRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.table(ctx, tenantID).Where("id = ?", id).Delete(&models.TicketTemplateModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// IncrementUsage bumps the usage counter in a single UPDATE so concurrent
// applies are never lost, and returns the new count.
func (r *GormTicketTemplateRepository) IncrementUsage(ctx context.Context, tenantID, id uuid.UUID) (int64, error) {
	now := time.Now().UTC()
	var model models.TicketTemplateModel
	result := r.table(ctx, tenantID).
		Model(&model).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "usage_count"}}}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"usage_count":  gorm.Expr("usage_count + ?", 1),
			"last_used_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, shared.ErrNotFound
	}
	return model.UsageCount, nil
}

type templateCategoryRow struct {
	Category string
	IsActive bool
	Count    int64
}

// Stats returns per-category counts and the topN most used templates
func (r *GormTicketTemplateRepository) Stats(ctx context.Context, tenantID uuid.UUID, topN int) (*template.Stats, error) {
	var groups []templateCategoryRow
	if err := r.table(ctx, tenantID).
		Select("category, is_active, COUNT(*) AS count").
		Group("category, is_active").
		Scan(&groups).Error; err != nil {
		return nil, err
	}

	stats := &template.Stats{
		ByCategory: make(map[string]int64),
		MostUsed:   []template.UsageStat{},
	}
	for _, g := range groups {
		stats.Total += g.Count
		stats.ByCategory[g.Category] += g.Count
		if g.IsActive {
			stats.Active += g.Count
		}
	}

	if topN <= 0 || stats.Total == 0 {
		return stats, nil
	}
	if err := r.table(ctx, tenantID).
		Select("id, name, category, usage_count").
		Where("usage_count > 0").
		Order("usage_count DESC, name ASC").
		Limit(topN).
		Scan(&stats.MostUsed).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// Ensure GormTicketTemplateRepository implements TicketTemplateRepository
var _ template.TicketTemplateRepository = (*GormTicketTemplateRepository)(nil)
