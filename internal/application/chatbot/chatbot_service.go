package chatbot

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/chatbot"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/infrastructure/logger"
	"github.com/helpdesk/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ChatbotService handles chatbots, their flows and flow graphs
type ChatbotService struct {
	bots            chatbot.ChatbotRepository
	flows           chatbot.FlowRepository
	logger          *zap.Logger
	businessMetrics *telemetry.BusinessMetrics
}

// NewChatbotService creates a new ChatbotService
func NewChatbotService(bots chatbot.ChatbotRepository, flows chatbot.FlowRepository, logger *zap.Logger) *ChatbotService {
	return &ChatbotService{bots: bots, flows: flows, logger: logger}
}

// SetBusinessMetrics sets the business metrics collector
func (s *ChatbotService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// Create creates a new chatbot
func (s *ChatbotService) Create(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, req CreateChatbotRequest) (*ChatbotResponse, error) {
	bot, err := chatbot.NewChatbot(tenantID, userID, req.Name, chatbot.Channel(req.Channel))
	if err != nil {
		return nil, err
	}
	bot.Description = req.Description
	bot.IsEnabled = req.IsEnabled

	if err := s.bots.Create(ctx, bot); err != nil {
		return nil, s.internal(ctx, "Failed to create chatbot", err)
	}
	resp := ToChatbotResponse(bot)
	return &resp, nil
}

// GetByID retrieves a chatbot
func (s *ChatbotService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*ChatbotResponse, error) {
	bot, err := s.findBot(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToChatbotResponse(bot)
	return &resp, nil
}

// List retrieves a page of chatbots with the total count
func (s *ChatbotService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[ChatbotResponse], error) {
	filter = filter.Normalize()
	bots, err := s.bots.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, s.internal(ctx, "Failed to list chatbots", err)
	}
	total, err := s.bots.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, s.internal(ctx, "Failed to count chatbots", err)
	}
	items := make([]ChatbotResponse, len(bots))
	for i := range bots {
		items[i] = ToChatbotResponse(&bots[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Update applies a partial update to a chatbot
func (s *ChatbotService) Update(ctx context.Context, tenantID, id uuid.UUID, req UpdateChatbotRequest) (*ChatbotResponse, error) {
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
	if req.Channel != nil {
		if !chatbot.Channel(*req.Channel).IsValid() {
			return nil, shared.NewDomainError("INVALID_CHANNEL", "Channel must be one of web, email, telegram, whatsapp")
		}
		patch.Set("channel", *req.Channel)
	}
	if req.IsEnabled != nil {
		patch.Set("isEnabled", *req.IsEnabled)
	}

	bot, err := s.bots.Update(ctx, tenantID, id, patch)
	if err != nil {
		return nil, s.translate(ctx, chatbot.ErrChatbotNotFound, "Failed to update chatbot", err)
	}
	resp := ToChatbotResponse(bot)
	return &resp, nil
}

// Delete removes a chatbot with all of its flows
func (s *ChatbotService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.bots.DeleteForTenant(ctx, tenantID, id); err != nil {
		return s.translate(ctx, chatbot.ErrChatbotNotFound, "Failed to delete chatbot", err)
	}
	s.log(ctx).Info("Chatbot deleted", zap.String("chatbot_id", id.String()))
	return nil
}

func (s *ChatbotService) findBot(ctx context.Context, tenantID, id uuid.UUID) (*chatbot.Chatbot, error) {
	bot, err := s.bots.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, s.translate(ctx, chatbot.ErrChatbotNotFound, "Failed to load chatbot", err)
	}
	return bot, nil
}

// translate maps not-found to notFound, keeps other domain errors and
// hides everything else behind an internal error
func (s *ChatbotService) translate(ctx context.Context, notFound error, msg string, err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return notFound
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return s.internal(ctx, msg, err)
}

func (s *ChatbotService) internal(ctx context.Context, msg string, err error) error {
	s.log(ctx).Error(msg, zap.Error(err))
	return shared.NewDomainError("INTERNAL_ERROR", msg)
}

func (s *ChatbotService) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, s.logger)
}
