package models

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/chatbot"
	"gorm.io/datatypes"
)

// Tenant-schema tables of the chatbot context
const (
	ChatbotTable     = "chatbots"
	ChatbotFlowTable = "chatbot_flows"
	ChatbotNodeTable = "chatbot_nodes"
	ChatbotEdgeTable = "chatbot_edges"
)

// ChatbotModel is the persistence model for the Chatbot domain entity.
type ChatbotModel struct {
	TenantModel
	Name        string          `gorm:"type:varchar(200);not null"`
	Description string          `gorm:"type:text;not null"`
	Channel     chatbot.Channel `gorm:"type:varchar(20);not null"`
	IsEnabled   bool            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ChatbotModel) TableName() string {
	return ChatbotTable
}

// ToDomain converts the persistence model to a domain Chatbot entity.
func (m *ChatbotModel) ToDomain() *chatbot.Chatbot {
	return &chatbot.Chatbot{
		TenantEntity: m.tenantEntity(),
		Name:         m.Name,
		Description:  m.Description,
		Channel:      m.Channel,
		IsEnabled:    m.IsEnabled,
	}
}

// FromDomain populates the persistence model from a domain Chatbot entity.
func (m *ChatbotModel) FromDomain(b *chatbot.Chatbot) {
	m.TenantModel = tenantModelOf(b.TenantEntity)
	m.Name = b.Name
	m.Description = b.Description
	m.Channel = b.Channel
	m.IsEnabled = b.IsEnabled
}

// ChatbotFlowModel is the persistence model for the Flow domain entity.
type ChatbotFlowModel struct {
	TenantModel
	ChatbotID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Name        string    `gorm:"type:varchar(200);not null"`
	Description string    `gorm:"type:text;not null"`
	IsActive    bool      `gorm:"not null"`
	Version     int       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ChatbotFlowModel) TableName() string {
	return ChatbotFlowTable
}

// ToDomain converts the persistence model to a domain Flow entity.
func (m *ChatbotFlowModel) ToDomain() *chatbot.Flow {
	return &chatbot.Flow{
		TenantEntity: m.tenantEntity(),
		ChatbotID:    m.ChatbotID,
		Name:         m.Name,
		Description:  m.Description,
		IsActive:     m.IsActive,
		Version:      m.Version,
	}
}

// FromDomain populates the persistence model from a domain Flow entity.
func (m *ChatbotFlowModel) FromDomain(f *chatbot.Flow) {
	m.TenantModel = tenantModelOf(f.TenantEntity)
	m.ChatbotID = f.ChatbotID
	m.Name = f.Name
	m.Description = f.Description
	m.IsActive = f.IsActive
	m.Version = f.Version
}

// ChatbotNodeModel is the persistence model for a flow node.
type ChatbotNodeModel struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID        `gorm:"type:uuid;not null"`
	FlowID    uuid.UUID        `gorm:"type:uuid;not null;index"`
	NodeType  chatbot.NodeType `gorm:"type:varchar(20);not null"`
	Label     string           `gorm:"type:varchar(200);not null"`
	PositionX float64          `gorm:"not null"`
	PositionY float64          `gorm:"not null"`
	Config    datatypes.JSON   `gorm:"type:jsonb;not null"`
}

// TableName returns the table name for GORM
func (ChatbotNodeModel) TableName() string {
	return ChatbotNodeTable
}

// ToDomain converts the persistence model to a domain Node.
func (m *ChatbotNodeModel) ToDomain() chatbot.Node {
	return chatbot.Node{
		ID:        m.ID,
		TenantID:  m.TenantID,
		FlowID:    m.FlowID,
		NodeType:  m.NodeType,
		Label:     m.Label,
		PositionX: m.PositionX,
		PositionY: m.PositionY,
		Config:    json.RawMessage(m.Config),
	}
}

// ChatbotNodeModelFromDomain creates a new persistence model from a domain Node.
func ChatbotNodeModelFromDomain(n chatbot.Node) ChatbotNodeModel {
	return ChatbotNodeModel{
		ID:        n.ID,
		TenantID:  n.TenantID,
		FlowID:    n.FlowID,
		NodeType:  n.NodeType,
		Label:     n.Label,
		PositionX: n.PositionX,
		PositionY: n.PositionY,
		Config:    datatypes.JSON(n.Config),
	}
}

// ChatbotEdgeModel is the persistence model for a flow edge.
type ChatbotEdgeModel struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID      `gorm:"type:uuid;not null"`
	FlowID       uuid.UUID      `gorm:"type:uuid;not null;index"`
	SourceNodeID uuid.UUID      `gorm:"type:uuid;not null"`
	TargetNodeID uuid.UUID      `gorm:"type:uuid;not null"`
	SourceHandle string         `gorm:"type:varchar(100);not null"`
	Label        string         `gorm:"type:varchar(200);not null"`
	Condition    datatypes.JSON `gorm:"type:jsonb;not null"`
}

// TableName returns the table name for GORM
func (ChatbotEdgeModel) TableName() string {
	return ChatbotEdgeTable
}

// ToDomain converts the persistence model to a domain Edge.
func (m *ChatbotEdgeModel) ToDomain() chatbot.Edge {
	return chatbot.Edge{
		ID:           m.ID,
		TenantID:     m.TenantID,
		FlowID:       m.FlowID,
		SourceNodeID: m.SourceNodeID,
		TargetNodeID: m.TargetNodeID,
		SourceHandle: m.SourceHandle,
		Label:        m.Label,
		Condition:    json.RawMessage(m.Condition),
	}
}

// ChatbotEdgeModelFromDomain creates a new persistence model from a domain Edge.
func ChatbotEdgeModelFromDomain(e chatbot.Edge) ChatbotEdgeModel {
	return ChatbotEdgeModel{
		ID:           e.ID,
		TenantID:     e.TenantID,
		FlowID:       e.FlowID,
		SourceNodeID: e.SourceNodeID,
		TargetNodeID: e.TargetNodeID,
		SourceHandle: e.SourceHandle,
		Label:        e.Label,
		Condition:    datatypes.JSON(e.Condition),
	}
}
