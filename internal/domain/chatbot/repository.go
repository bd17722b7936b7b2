package chatbot

import (
	"context"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/shared"
)

// ChatbotRepository defines persistence operations for chatbots
type ChatbotRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Chatbot, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Chatbot, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
	Create(ctx context.Context, bot *Chatbot) error
	Update(ctx context.Context, tenantID, id uuid.UUID, patch shared.Patch) (*Chatbot, error)
	// DeleteForTenant removes the chatbot with all of its flows and graphs
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

// FlowRepository defines persistence operations for flows and their graphs
type FlowRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, chatbotID, id uuid.UUID) (*Flow, error)
	FindByChatbot(ctx context.Context, tenantID, chatbotID uuid.UUID) ([]Flow, error)
	Create(ctx context.Context, flow *Flow) error
	Update(ctx context.Context, tenantID, chatbotID, id uuid.UUID, patch shared.Patch) (*Flow, error)
	// DeleteForTenant removes the flow together with its nodes and edges
	DeleteForTenant(ctx context.Context, tenantID, chatbotID, id uuid.UUID) error
	FindGraph(ctx context.Context, tenantID, flowID uuid.UUID) (*Graph, error)
	// ReplaceGraph atomically swaps the flow's node and edge set for graph
	// and returns the flow with its bumped version. On failure the previous
	// set is left intact.
	ReplaceGraph(ctx context.Context, tenantID, chatbotID, flowID uuid.UUID, graph *Graph) (*Flow, error)
}
