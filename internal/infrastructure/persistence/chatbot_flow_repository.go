package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/chatbot"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/infrastructure/persistence/models"
	"github.com/helpdesk/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// graphInsertBatchSize bounds the rows of one multi-row INSERT
const graphInsertBatchSize = 200

var flowUpdatableColumns = map[string]bool{
	"name":        true,
	"description": true,
	"is_active":   true,
}

// GormFlowRepository implements FlowRepository using GORM
type GormFlowRepository struct {
	db *tenant.TenantDB
}

// NewGormFlowRepository creates a new GormFlowRepository
func NewGormFlowRepository(db *gorm.DB) *GormFlowRepository {
	return &GormFlowRepository{db: tenant.NewTenantDB(db)}
}

func (r *GormFlowRepository) table(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.Table(ctx, tenantID, models.ChatbotFlowTable)
}

// FindByIDForTenant finds a flow of a chatbot
func (r *GormFlowRepository) FindByIDForTenant(ctx context.Context, tenantID, chatbotID, id uuid.UUID) (*chatbot.Flow, error) {
	var model models.ChatbotFlowModel
	if err := r.table(ctx, tenantID).
		Where("chatbot_id = ? AND id = ?", chatbotID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByChatbot lists the flows of a chatbot, newest first
func (r *GormFlowRepository) FindByChatbot(ctx context.Context, tenantID, chatbotID uuid.UUID) ([]chatbot.Flow, error) {
	var rows []models.ChatbotFlowModel
	if err := r.table(ctx, tenantID).
		Where("chatbot_id = ?", chatbotID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	flows := make([]chatbot.Flow, len(rows))
	for i := range rows {
		flows[i] = *rows[i].ToDomain()
	}
	return flows, nil
}

// Create inserts a new flow
func (r *GormFlowRepository) Create(ctx context.Context, flow *chatbot.Flow) error {
	model := &models.ChatbotFlowModel{}
	model.FromDomain(flow)
	return r.table(ctx, flow.TenantID).Create(model).Error
}

// Update writes the patched flow metadata and returns the stored row
func (r *GormFlowRepository) Update(ctx context.Context, tenantID, chatbotID, id uuid.UUID, patch shared.Patch) (*chatbot.Flow, error) {
	if patch.IsEmpty() {
		return r.FindByIDForTenant(ctx, tenantID, chatbotID, id)
	}
	updates, err := patchColumns(patch, flowUpdatableColumns)
	if err != nil {
		return nil, err
	}

	var model models.ChatbotFlowModel
	result := r.table(ctx, tenantID).
		Model(&model).
		Clauses(clause.Returning{}).
		Where("chatbot_id = ? AND id = ?", chatbotID, id).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, shared.ErrNotFound
	}
	return model.ToDomain(), nil
}

// DeleteForTenant removes the flow with its nodes and edges in one transaction
func (r *GormFlowRepository) DeleteForTenant(ctx context.Context, tenantID, chatbotID, id uuid.UUID) error {
	return r.db.Transaction(ctx, tenantID, func(tx *gorm.DB, _ tenant.Schema) error {
		result := tenant.From(tx, tenantID, models.ChatbotFlowTable).
			Where("chatbot_id = ? AND id = ?", chatbotID, id).
			Delete(&models.ChatbotFlowModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return deleteGraph(tx, tenantID, id)
	})
}

// FindGraph loads the nodes and edges of a flow
func (r *GormFlowRepository) FindGraph(ctx context.Context, tenantID, flowID uuid.UUID) (*chatbot.Graph, error) {
	var nodes []models.ChatbotNodeModel
	if err := r.db.Table(ctx, tenantID, models.ChatbotNodeTable).
		Where("flow_id = ?", flowID).
		Order("id").
		Find(&nodes).Error; err != nil {
		return nil, err
	}
	var edges []models.ChatbotEdgeModel
	if err := r.db.Table(ctx, tenantID, models.ChatbotEdgeTable).
		Where("flow_id = ?", flowID).
		Order("id").
		Find(&edges).Error; err != nil {
		return nil, err
	}

	graph := &chatbot.Graph{
		Nodes: make([]chatbot.Node, len(nodes)),
		Edges: make([]chatbot.Edge, len(edges)),
	}
	for i := range nodes {
		graph.Nodes[i] = nodes[i].ToDomain()
	}
	for i := range edges {
		graph.Edges[i] = edges[i].ToDomain()
	}
	return graph, nil
}

// ReplaceGraph swaps the whole node and edge set of a flow. The flow row is
// locked first so concurrent saves serialize; any failure rolls back and
// leaves the previous graph in place.
func (r *GormFlowRepository) ReplaceGraph(ctx context.Context, tenantID, chatbotID, flowID uuid.UUID, graph *chatbot.Graph) (*chatbot.Flow, error) {
	var saved models.ChatbotFlowModel
	err := r.db.Transaction(ctx, tenantID, func(tx *gorm.DB, _ tenant.Schema) error {
		var locked models.ChatbotFlowModel
		if err := tenant.From(tx, tenantID, models.ChatbotFlowTable).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("chatbot_id = ? AND id = ?", chatbotID, flowID).
			First(&locked).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}

		if err := deleteGraph(tx, tenantID, flowID); err != nil {
			return err
		}
		if err := reassignForeignNodes(tx, tenantID, graph); err != nil {
			return err
		}

		if len(graph.Nodes) > 0 {
			nodes := make([]models.ChatbotNodeModel, len(graph.Nodes))
			for i, n := range graph.Nodes {
				nodes[i] = models.ChatbotNodeModelFromDomain(n)
			}
			if err := tenant.From(tx, tenantID, models.ChatbotNodeTable).
				CreateInBatches(&nodes, graphInsertBatchSize).Error; err != nil {
				return err
			}
		}
		if len(graph.Edges) > 0 {
			edges := make([]models.ChatbotEdgeModel, len(graph.Edges))
			for i, e := range graph.Edges {
				edges[i] = models.ChatbotEdgeModelFromDomain(e)
			}
			if err := tenant.From(tx, tenantID, models.ChatbotEdgeTable).
				CreateInBatches(&edges, graphInsertBatchSize).Error; err != nil {
				return err
			}
		}

		return tenant.From(tx, tenantID, models.ChatbotFlowTable).
			Model(&saved).
			Clauses(clause.Returning{}).
			Where("id = ?", flowID).
			Updates(map[string]interface{}{
				"version":    gorm.Expr("version + ?", 1),
				"updated_at": time.Now().UTC(),
			}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// a concurrent save claimed one of the node IDs after the lookup
		return nil, shared.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return saved.ToDomain(), nil
}

// reassignForeignNodes gives fresh IDs to submitted nodes whose ID is held
// by another flow, as when a graph is copied between flows. The flow's own
// nodes are already deleted at this point.
func reassignForeignNodes(tx *gorm.DB, tenantID uuid.UUID, graph *chatbot.Graph) error {
	if len(graph.Nodes) == 0 {
		return nil
	}
	var taken []uuid.UUID
	if err := tenant.From(tx, tenantID, models.ChatbotNodeTable).
		Where("id IN ?", graph.NodeIDs()).
		Pluck("id", &taken).Error; err != nil {
		return err
	}
	graph.ReassignNodes(taken)
	return nil
}

// deleteGraph removes edges before nodes so edge foreign keys never dangle
func deleteGraph(tx *gorm.DB, tenantID, flowID uuid.UUID) error {
	if err := tenant.From(tx, tenantID, models.ChatbotEdgeTable).
		Where("flow_id = ?", flowID).
		Delete(&models.ChatbotEdgeModel{}).Error; err != nil {
		return err
	}
	return tenant.From(tx, tenantID, models.ChatbotNodeTable).
		Where("flow_id = ?", flowID).
		Delete(&models.ChatbotNodeModel{}).Error
}

// Ensure GormFlowRepository implements FlowRepository
var _ chatbot.FlowRepository = (*GormFlowRepository)(nil)
