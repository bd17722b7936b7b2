package chatbot

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/chatbot"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ListFlows returns the flows of a chatbot
func (s *ChatbotService) ListFlows(ctx context.Context, tenantID, chatbotID uuid.UUID) ([]FlowResponse, error) {
	if _, err := s.findBot(ctx, tenantID, chatbotID); err != nil {
		return nil, err
	}
	flows, err := s.flows.FindByChatbot(ctx, tenantID, chatbotID)
	if err != nil {
		return nil, s.internal(ctx, "Failed to list flows", err)
	}
	out := make([]FlowResponse, len(flows))
	for i := range flows {
		out[i] = ToFlowResponse(&flows[i])
	}
	return out, nil
}

// CreateFlow creates an empty flow for a chatbot
func (s *ChatbotService) CreateFlow(ctx context.Context, tenantID, chatbotID uuid.UUID, userID *uuid.UUID, req CreateFlowRequest) (*FlowDetailResponse, error) {
	if _, err := s.findBot(ctx, tenantID, chatbotID); err != nil {
		return nil, err
	}
	flow, err := chatbot.NewFlow(tenantID, chatbotID, userID, req.Name)
	if err != nil {
		return nil, err
	}
	flow.Description = req.Description
	flow.IsActive = req.IsActive

	if err := s.flows.Create(ctx, flow); err != nil {
		return nil, s.internal(ctx, "Failed to create flow", err)
	}
	resp := ToFlowDetailResponse(flow, nil)
	return &resp, nil
}

// GetFlow returns a flow with its nodes and edges
func (s *ChatbotService) GetFlow(ctx context.Context, tenantID, chatbotID, flowID uuid.UUID) (*FlowDetailResponse, error) {
	flow, err := s.flows.FindByIDForTenant(ctx, tenantID, chatbotID, flowID)
	if err != nil {
		return nil, s.translate(ctx, chatbot.ErrFlowNotFound, "Failed to load flow", err)
	}
	graph, err := s.flows.FindGraph(ctx, tenantID, flowID)
	if err != nil {
		return nil, s.internal(ctx, "Failed to load flow graph", err)
	}
	resp := ToFlowDetailResponse(flow, graph)
	return &resp, nil
}

// UpdateFlow applies a partial update to flow metadata
func (s *ChatbotService) UpdateFlow(ctx context.Context, tenantID, chatbotID, flowID uuid.UUID, req UpdateFlowRequest) (*FlowResponse, error) {
	patch := shared.Patch{}
	if req.Name != nil {
		if err := chatbot.ValidateName(*req.Name); err != nil {
			return nil, err
		}
		patch.Set("name", strings.TrimSpace(*req.Name))
	}
	if req.Description != nil {
		patch.Set("description", *req.Description)
	}
	if req.IsActive != nil {
		patch.Set("isActive", *req.IsActive)
	}

	flow, err := s.flows.Update(ctx, tenantID, chatbotID, flowID, patch)
	if err != nil {
		return nil, s.translate(ctx, chatbot.ErrFlowNotFound, "Failed to update flow", err)
	}
	resp := ToFlowResponse(flow)
	return &resp, nil
}

// DeleteFlow removes a flow and its graph
func (s *ChatbotService) DeleteFlow(ctx context.Context, tenantID, chatbotID, flowID uuid.UUID) error {
	if err := s.flows.DeleteForTenant(ctx, tenantID, chatbotID, flowID); err != nil {
		return s.translate(ctx, chatbot.ErrFlowNotFound, "Failed to delete flow", err)
	}
	return nil
}

// SaveGraph validates the submitted graph and replaces the stored one in
// a single transaction. The previous graph survives any failure.
func (s *ChatbotService) SaveGraph(ctx context.Context, tenantID, chatbotID, flowID uuid.UUID, req SaveGraphRequest) (_ *FlowDetailResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "chatbot_flow", "save_graph", tenantID,
		telemetry.ChatbotID(chatbotID),
		telemetry.FlowID(flowID),
		attribute.Int("graph.nodes", len(req.Nodes)),
		attribute.Int("graph.edges", len(req.Edges)))
	defer telemetry.EndSpan(span, &err)
	defer func() { s.businessMetrics.RecordFlowGraphSaved(len(req.Nodes), err) }()

	nodes, edges := req.specs()
	graph, err := chatbot.BuildGraph(tenantID, flowID, nodes, edges)
	if err != nil {
		return nil, err
	}

	flow, err := s.flows.ReplaceGraph(ctx, tenantID, chatbotID, flowID, graph)
	if err != nil {
		return nil, s.translate(ctx, chatbot.ErrFlowNotFound, "Failed to save flow graph", err)
	}

	s.log(ctx).Info("Flow graph saved",
		zap.String("flow_id", flowID.String()),
		zap.Int("version", flow.Version),
		zap.Int("nodes", len(graph.Nodes)),
		zap.Int("edges", len(graph.Edges)))

	resp := ToFlowDetailResponse(flow, graph)
	return &resp, nil
}
