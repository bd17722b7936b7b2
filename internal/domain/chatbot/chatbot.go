package chatbot

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/shared"
)

// Channel is the messaging channel a chatbot answers on
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
	ChannelWhatsApp Channel = "whatsapp"
)

// Channels lists the supported channels
var Channels = []Channel{ChannelWeb, ChannelEmail, ChannelTelegram, ChannelWhatsApp}

// IsValid reports whether the channel is one of Channels
func (c Channel) IsValid() bool {
	return slices.Contains(Channels, c)
}

// Chatbot-specific domain errors
var (
	ErrChatbotNotFound = shared.NewDomainError("NOT_FOUND", "Chatbot not found")
	ErrFlowNotFound    = shared.NewDomainError("NOT_FOUND", "Chatbot flow not found")
)

// Chatbot is an automated responder bound to one channel
type Chatbot struct {
	shared.TenantEntity
	Name        string
	Description string
	Channel     Channel
	IsEnabled   bool
}

// NewChatbot creates a disabled chatbot
func NewChatbot(tenantID uuid.UUID, createdBy *uuid.UUID, name string, channel Channel) (*Chatbot, error) {
	if err := validateName(name, "Chatbot"); err != nil {
		return nil, err
	}
	if !channel.IsValid() {
		return nil, shared.NewDomainError("INVALID_CHANNEL", "Channel must be one of web, email, telegram, whatsapp")
	}
	return &Chatbot{
		TenantEntity: shared.NewTenantEntity(tenantID, createdBy),
		Name:         strings.TrimSpace(name),
		Channel:      channel,
	}, nil
}

// Flow is a conversation graph of a chatbot. Version increases by one on
// every graph save.
type Flow struct {
	shared.TenantEntity
	ChatbotID   uuid.UUID
	Name        string
	Description string
	IsActive    bool
	Version     int
}

// NewFlow creates an inactive flow with an empty graph
func NewFlow(tenantID, chatbotID uuid.UUID, createdBy *uuid.UUID, name string) (*Flow, error) {
	if err := validateName(name, "Flow"); err != nil {
		return nil, err
	}
	return &Flow{
		TenantEntity: shared.NewTenantEntity(tenantID, createdBy),
		ChatbotID:    chatbotID,
		Name:         strings.TrimSpace(name),
		Version:      1,
	}, nil
}

// ValidateName checks a chatbot or flow name
func ValidateName(name string) error {
	return validateName(name, "Name")
}

func validateName(name, subject string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", subject+" name cannot be empty")
	}
	if utf8.RuneCountInString(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", subject+" name cannot exceed 200 characters")
	}
	return nil
}
