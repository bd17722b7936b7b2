package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/chatbot"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/infrastructure/persistence/models"
	"github.com/helpdesk/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var chatbotUpdatableColumns = map[string]bool{
	"name":        true,
	"description": true,
	"channel":     true,
	"is_enabled":  true,
}

var chatbotList = listSpec{
	searchColumns: []string{"name", "description"},
	filterColumns: map[string]bool{
		"channel":    true,
		"is_enabled": true,
	},
	sortColumns: chatbotSortColumns,
	defaultSort: "created_at",
}

// GormChatbotRepository implements ChatbotRepository using GORM
type GormChatbotRepository struct {
	db *tenant.TenantDB
}

// NewGormChatbotRepository creates a new GormChatbotRepository
func NewGormChatbotRepository(db *gorm.DB) *GormChatbotRepository {
	return &GormChatbotRepository{db: tenant.NewTenantDB(db)}
}

func (r *GormChatbotRepository) table(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.Table(ctx, tenantID, models.ChatbotTable)
}

// FindByIDForTenant finds a chatbot by ID within a tenant
func (r *GormChatbotRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*chatbot.Chatbot, error) {
	var model models.ChatbotModel
	if err := r.table(ctx, tenantID).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds all chatbots for a tenant
func (r *GormChatbotRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]chatbot.Chatbot, error) {
	var rows []models.ChatbotModel
	if err := chatbotList.applyFilter(r.table(ctx, tenantID), filter).Find(&rows).Error; err != nil {
		return nil, err
	}
	bots := make([]chatbot.Chatbot, len(rows))
	for i := range rows {
		bots[i] = *rows[i].ToDomain()
	}
	return bots, nil
}

// CountForTenant counts chatbots for a tenant
func (r *GormChatbotRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := chatbotList.applyFilterWithoutPagination(r.table(ctx, tenantID), filter.Normalize())
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create inserts a new chatbot
func (r *GormChatbotRepository) Create(ctx context.Context, bot *chatbot.Chatbot) error {
	model := &models.ChatbotModel{}
	model.FromDomain(bot)
	return r.table(ctx, bot.TenantID).Create(model).Error
}

// Update writes the patched columns and returns the stored row
func (r *GormChatbotRepository) Update(ctx context.Context, tenantID, id uuid.UUID, patch shared.Patch) (*chatbot.Chatbot, error) {
	if patch.IsEmpty() {
		return r.FindByIDForTenant(ctx, tenantID, id)
	}
	updates, err := patchColumns(patch, chatbotUpdatableColumns)
	if err != nil {
		return nil, err
	}

	var model models.ChatbotModel
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

// DeleteForTenant removes the chatbot, its flows and their graphs in one
// transaction.
func (r *GormChatbotRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.Transaction(ctx, tenantID, func(tx *gorm.DB, schema tenant.Schema) error {
		flows := tenant.From(tx, tenantID, models.ChatbotFlowTable).
			Select("id").
			Where("chatbot_id = ?", id)

		if err := tenant.From(tx, tenantID, models.ChatbotEdgeTable).
			Where("flow_id IN (?)", flows).
			Delete(&models.ChatbotEdgeModel{}).Error; err != nil {
			return err
		}
		if err := tenant.From(tx, tenantID, models.ChatbotNodeTable).
			Where("flow_id IN (?)", flows).
			Delete(&models.ChatbotNodeModel{}).Error; err != nil {
			return err
		}
		if err := tenant.From(tx, tenantID, models.ChatbotFlowTable).
			Where("chatbot_id = ?", id).
			Delete(&models.ChatbotFlowModel{}).Error; err != nil {
			return err
		}

		result := tenant.From(tx, tenantID, models.ChatbotTable).
			Where("id = ?", id).
			Delete(&models.ChatbotModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// Ensure GormChatbotRepository implements ChatbotRepository
var _ chatbot.ChatbotRepository = (*GormChatbotRepository)(nil)
