package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/omnibridge"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/infrastructure/persistence/models"
	"github.com/helpdesk/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// settingsConflictTarget is the unique column one settings row per tenant hangs on
var settingsConflictTarget = []clause.Column{{Name: "tenant_id"}}

// GormOmniBridgeSettingsRepository implements SettingsRepository using GORM
type GormOmniBridgeSettingsRepository struct {
	db *tenant.TenantDB
}

// NewGormOmniBridgeSettingsRepository creates a new GormOmniBridgeSettingsRepository
func NewGormOmniBridgeSettingsRepository(db *gorm.DB) *GormOmniBridgeSettingsRepository {
	return &GormOmniBridgeSettingsRepository{db: tenant.NewTenantDB(db)}
}

// GetOrCreate inserts the defaults unless a row exists, then reads the row.
// Concurrent first reads all succeed: the losers' inserts are no-ops.
func (r *GormOmniBridgeSettingsRepository) GetOrCreate(ctx context.Context, tenantID uuid.UUID, defaults *omnibridge.Settings) (*omnibridge.Settings, bool, error) {
	var (
		settings *omnibridge.Settings
		created  bool
	)
	err := r.db.Transaction(ctx, tenantID, func(tx *gorm.DB, _ tenant.Schema) error {
		inserted, err := ensureSettings(tx, tenantID, defaults)
		if err != nil {
			return err
		}
		created = inserted

		var model models.OmniBridgeSettingsModel
		if err := tenant.From(tx, tenantID, models.OmniBridgeSettingsTable).First(&model).Error; err != nil {
			return err
		}
		settings = model.ToDomain()
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return settings, created, nil
}

// Update runs ensure, lock, mutate and upsert in one transaction so two
// concurrent updates of different fields never overwrite each other.
func (r *GormOmniBridgeSettingsRepository) Update(ctx context.Context, tenantID uuid.UUID, defaults *omnibridge.Settings, mutate func(*omnibridge.Settings) error) (*omnibridge.Settings, error) {
	var saved *omnibridge.Settings
	err := r.db.Transaction(ctx, tenantID, func(tx *gorm.DB, _ tenant.Schema) error {
		if _, err := ensureSettings(tx, tenantID, defaults); err != nil {
			return err
		}

		var current models.OmniBridgeSettingsModel
		if err := tenant.From(tx, tenantID, models.OmniBridgeSettingsTable).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current).Error; err != nil {
			return err
		}

		settings := current.ToDomain()
		if err := mutate(settings); err != nil {
			return err
		}

		model := models.OmniBridgeSettingsModelFromDomain(settings)
		if err := tenant.From(tx, tenantID, models.OmniBridgeSettingsTable).
			Clauses(clause.OnConflict{
				Columns:   settingsConflictTarget,
				DoUpdates: clause.AssignmentColumns([]string{"channels", "filters", "search", "updated_by", "updated_at"}),
			}).
			Create(model).Error; err != nil {
			return err
		}
		saved = model.ToDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Delete removes the tenant's settings row
func (r *GormOmniBridgeSettingsRepository) Delete(ctx context.Context, tenantID uuid.UUID) error {
	result := r.db.Table(ctx, tenantID, models.OmniBridgeSettingsTable).Delete(&models.OmniBridgeSettingsModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ensureSettings inserts defaults with ON CONFLICT DO NOTHING and reports
// whether this call created the row.
func ensureSettings(tx *gorm.DB, tenantID uuid.UUID, defaults *omnibridge.Settings) (bool, error) {
	if defaults == nil {
		return false, errors.New("omnibridge settings defaults are required")
	}
	model := models.OmniBridgeSettingsModelFromDomain(defaults)
	model.TenantID = tenantID
	result := tenant.From(tx, tenantID, models.OmniBridgeSettingsTable).
		Clauses(clause.OnConflict{Columns: settingsConflictTarget, DoNothing: true}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Ensure GormOmniBridgeSettingsRepository implements SettingsRepository
var _ omnibridge.SettingsRepository = (*GormOmniBridgeSettingsRepository)(nil)
