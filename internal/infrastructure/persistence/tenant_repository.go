package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/identity"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

var tenantList = listSpec{
	searchColumns: []string{"name", "slug"},
	filterColumns: map[string]bool{"status": true},
	sortColumns:   tenantSortColumns,
	defaultSort:   "created_at",
}

// GormTenantRepository stores the tenant registry in public.tenants. It is
// the only repository that works outside a tenant schema.
type GormTenantRepository struct {
	db *gorm.DB
}

// NewGormTenantRepository creates a registry repository. db must be opened
// with TranslateError so slug conflicts surface as gorm.ErrDuplicatedKey.
func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

func (r *GormTenantRepository) registry(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.TenantRegistryModel{})
}

func (r *GormTenantRepository) first(ctx context.Context, column string, value any) (*identity.Tenant, error) {
	var row models.TenantRegistryModel
	err := r.registry(ctx).Where(column+" = ?", value).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.ToDomain(), nil
}

func (r *GormTenantRepository) Get(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	return r.first(ctx, "id", id)
}

// GetBySlug matches slugs case-insensitively; they are stored lower case
func (r *GormTenantRepository) GetBySlug(ctx context.Context, slug string) (*identity.Tenant, error) {
	return r.first(ctx, "slug", strings.ToLower(slug))
}

func (r *GormTenantRepository) List(ctx context.Context, filter shared.Filter) ([]identity.Tenant, int64, error) {
	filter = filter.Normalize()

	var total int64
	if err := tenantList.applyFilterWithoutPagination(r.registry(ctx), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []identity.Tenant{}, 0, nil
	}

	var rows []models.TenantRegistryModel
	if err := tenantList.applyFilter(r.registry(ctx), filter).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	tenants := make([]identity.Tenant, len(rows))
	for i := range rows {
		tenants[i] = *rows[i].ToDomain()
	}
	return tenants, total, nil
}

func (r *GormTenantRepository) SlugInUse(ctx context.Context, slug string) (bool, error) {
	var n int64
	err := r.registry(ctx).Where("slug = ?", strings.ToLower(slug)).Count(&n).Error
	return n > 0, err
}

func (r *GormTenantRepository) Create(ctx context.Context, tenant *identity.Tenant) error {
	err := r.db.WithContext(ctx).Create(models.TenantRegistryModelFromDomain(tenant)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return identity.ErrSlugTaken
	}
	return err
}

func (r *GormTenantRepository) UpdateStatus(ctx context.Context, tenant *identity.Tenant) error {
	tenant.UpdatedAt = time.Now().UTC()
	res := r.registry(ctx).Where("id = ?", tenant.ID).Updates(map[string]any{
		"status":     tenant.Status,
		"updated_at": tenant.UpdatedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ identity.TenantRepository = (*GormTenantRepository)(nil)
