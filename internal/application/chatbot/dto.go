package chatbot

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/chatbot"
	"github.com/helpdesk/backend/internal/domain/shared"
)

// CreateChatbotRequest represents a request to create a chatbot
type CreateChatbotRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=200"`
	Description string `json:"description" binding:"max=2000"`
	Channel     string `json:"channel" binding:"required,chatbot_channel"`
	IsEnabled   bool   `json:"isEnabled"`
}

// UpdateChatbotRequest is a partial update of a chatbot
type UpdateChatbotRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	Channel     *string `json:"channel" binding:"omitempty,chatbot_channel"`
	IsEnabled   *bool   `json:"isEnabled"`
}

// ChatbotListFilter represents the list query string
type ChatbotListFilter struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"pageSize" binding:"omitempty,min=1,max=100"`
	OrderBy   string `form:"orderBy"`
	OrderDir  string `form:"orderDir" binding:"omitempty,oneof=asc desc ASC DESC"`
	Search    string `form:"search" binding:"max=200"`
	Channel   string `form:"channel" binding:"omitempty,chatbot_channel"`
	IsEnabled *bool  `form:"isEnabled"`
}

// ToSharedFilter converts the query into a repository filter
func (f ChatbotListFilter) ToSharedFilter() shared.Filter {
	filter := shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
		Search:   f.Search,
		Filters:  map[string]interface{}{},
	}
	if f.Channel != "" {
		filter.Filters["channel"] = f.Channel
	}
	if f.IsEnabled != nil {
		filter.Filters["is_enabled"] = *f.IsEnabled
	}
	return filter.Normalize()
}

// CreateFlowRequest represents a request to create a flow
type CreateFlowRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=200"`
	Description string `json:"description" binding:"max=2000"`
	IsActive    bool   `json:"isActive"`
}

// UpdateFlowRequest is a partial update of flow metadata
type UpdateFlowRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	IsActive    *bool   `json:"isActive"`
}

// NodeRequest is a submitted node. ID is the client's key for the node.
type NodeRequest struct {
	ID        string          `json:"id" binding:"required,max=100"`
	NodeType  string          `json:"nodeType" binding:"required,oneof=start message question condition action handoff end"`
	Label     string          `json:"label" binding:"max=200"`
	PositionX float64         `json:"positionX"`
	PositionY float64         `json:"positionY"`
	Config    json.RawMessage `json:"config"`
}

// EdgeRequest is a submitted edge between two node keys
type EdgeRequest struct {
	Source       string          `json:"source" binding:"required,max=100"`
	Target       string          `json:"target" binding:"required,max=100"`
	SourceHandle string          `json:"sourceHandle" binding:"max=100"`
	Label        string          `json:"label" binding:"max=200"`
	Condition    json.RawMessage `json:"condition"`
}

// SaveGraphRequest replaces the whole graph of a flow
type SaveGraphRequest struct {
	Nodes []NodeRequest `json:"nodes" binding:"max=500,dive"`
	Edges []EdgeRequest `json:"edges" binding:"max=2000,dive"`
}

func (r SaveGraphRequest) specs() ([]chatbot.NodeSpec, []chatbot.EdgeSpec) {
	nodes := make([]chatbot.NodeSpec, len(r.Nodes))
	for i, n := range r.Nodes {
		nodes[i] = chatbot.NodeSpec{
			Key:       n.ID,
			NodeType:  chatbot.NodeType(n.NodeType),
			Label:     n.Label,
			PositionX: n.PositionX,
			PositionY: n.PositionY,
			Config:    n.Config,
		}
	}
	edges := make([]chatbot.EdgeSpec, len(r.Edges))
	for i, e := range r.Edges {
		edges[i] = chatbot.EdgeSpec{
			Source:       e.Source,
			Target:       e.Target,
			SourceHandle: e.SourceHandle,
			Label:        e.Label,
			Condition:    e.Condition,
		}
	}
	return nodes, edges
}

// ChatbotResponse represents a chatbot in API responses
type ChatbotResponse struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    uuid.UUID  `json:"tenantId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Channel     string     `json:"channel"`
	IsEnabled   bool       `json:"isEnabled"`
	CreatedBy   *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// FlowResponse represents flow metadata in API responses
type FlowResponse struct {
	ID          uuid.UUID  `json:"id"`
	ChatbotID   uuid.UUID  `json:"chatbotId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	IsActive    bool       `json:"isActive"`
	Version     int        `json:"version"`
	CreatedBy   *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NodeResponse represents a stored node
type NodeResponse struct {
	ID        uuid.UUID       `json:"id"`
	NodeType  string          `json:"nodeType"`
	Label     string          `json:"label"`
	PositionX float64         `json:"positionX"`
	PositionY float64         `json:"positionY"`
	Config    json.RawMessage `json:"config"`
}

// EdgeResponse represents a stored edge
type EdgeResponse struct {
	ID           uuid.UUID       `json:"id"`
	Source       uuid.UUID       `json:"source"`
	Target       uuid.UUID       `json:"target"`
	SourceHandle string          `json:"sourceHandle"`
	Label        string          `json:"label"`
	Condition    json.RawMessage `json:"condition"`
}

// FlowDetailResponse is a flow with its complete graph
type FlowDetailResponse struct {
	FlowResponse
	Nodes []NodeResponse `json:"nodes"`
	Edges []EdgeResponse `json:"edges"`
}

// ToChatbotResponse converts a domain chatbot to a response
func ToChatbotResponse(b *chatbot.Chatbot) ChatbotResponse {
	return ChatbotResponse{
		ID:          b.ID,
		TenantID:    b.TenantID,
		Name:        b.Name,
		Description: b.Description,
		Channel:     string(b.Channel),
		IsEnabled:   b.IsEnabled,
		CreatedBy:   b.CreatedBy,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

// ToFlowResponse converts a domain flow to a response
func ToFlowResponse(f *chatbot.Flow) FlowResponse {
	return FlowResponse{
		ID:          f.ID,
		ChatbotID:   f.ChatbotID,
		Name:        f.Name,
		Description: f.Description,
		IsActive:    f.IsActive,
		Version:     f.Version,
		CreatedBy:   f.CreatedBy,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// ToFlowDetailResponse combines a flow and its graph
func ToFlowDetailResponse(f *chatbot.Flow, g *chatbot.Graph) FlowDetailResponse {
	resp := FlowDetailResponse{
		FlowResponse: ToFlowResponse(f),
		Nodes:        []NodeResponse{},
		Edges:        []EdgeResponse{},
	}
	if g == nil {
		return resp
	}
	for _, n := range g.Nodes {
		resp.Nodes = append(resp.Nodes, NodeResponse{
			ID:        n.ID,
			NodeType:  string(n.NodeType),
			Label:     n.Label,
			PositionX: n.PositionX,
			PositionY: n.PositionY,
			Config:    n.Config,
		})
	}
	for _, e := range g.Edges {
		resp.Edges = append(resp.Edges, EdgeResponse{
			ID:           e.ID,
			Source:       e.SourceNodeID,
			Target:       e.TargetNodeID,
			SourceHandle: e.SourceHandle,
			Label:        e.Label,
			Condition:    e.Condition,
		})
	}
	return resp
}
