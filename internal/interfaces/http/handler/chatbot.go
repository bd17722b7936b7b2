package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	chatbotapp "github.com/helpdesk/backend/internal/application/chatbot"
)

// ChatbotHandler serves /chatbots and their flows
type ChatbotHandler struct {
	BaseHandler
	service *chatbotapp.ChatbotService
}

// NewChatbotHandler creates a new ChatbotHandler
func NewChatbotHandler(service *chatbotapp.ChatbotService) *ChatbotHandler {
	return &ChatbotHandler{service: service}
}

// List handles GET /chatbots
func (h *ChatbotHandler) List(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	var q chatbotapp.ChatbotListFilter
	if !h.bindQuery(c, &q) {
		return
	}

	page, err := h.service.List(c.Request.Context(), id.TenantID, q.ToSharedFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	writePage(c, page)
}

// Get handles GET /chatbots/:id
func (h *ChatbotHandler) Get(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	botID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	bot, err := h.service.GetByID(c.Request.Context(), id.TenantID, botID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, bot)
}

// Create handles POST /chatbots
func (h *ChatbotHandler) Create(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	var req chatbotapp.CreateChatbotRequest
	if !h.bindJSON(c, &req) {
		return
	}

	bot, err := h.service.Create(c.Request.Context(), id.TenantID, userRef(id), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, bot)
}

// Update handles PATCH and PUT /chatbots/:id
func (h *ChatbotHandler) Update(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	botID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req chatbotapp.UpdateChatbotRequest
	if !h.bindJSON(c, &req) {
		return
	}

	bot, err := h.service.Update(c.Request.Context(), id.TenantID, botID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, bot)
}

// Delete handles DELETE /chatbots/:id. Flows go with the bot.
func (h *ChatbotHandler) Delete(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	botID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id.TenantID, botID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Message(c, "Chatbot deleted")
}

// ListFlows handles GET /chatbots/:id/flows
func (h *ChatbotHandler) ListFlows(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	botID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	flows, err := h.service.ListFlows(c.Request.Context(), id.TenantID, botID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, flows)
}

// CreateFlow handles POST /chatbots/:id/flows
func (h *ChatbotHandler) CreateFlow(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	botID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req chatbotapp.CreateFlowRequest
	if !h.bindJSON(c, &req) {
		return
	}

	flow, err := h.service.CreateFlow(c.Request.Context(), id.TenantID, botID, userRef(id), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, flow)
}

// GetFlow handles GET /chatbots/:id/flows/:flowId
func (h *ChatbotHandler) GetFlow(c *gin.Context) {
	tenantID, botID, flowID, ok := h.flowPath(c)
	if !ok {
		return
	}

	flow, err := h.service.GetFlow(c.Request.Context(), tenantID, botID, flowID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, flow)
}

// UpdateFlow handles PATCH and PUT /chatbots/:id/flows/:flowId
func (h *ChatbotHandler) UpdateFlow(c *gin.Context) {
	tenantID, botID, flowID, ok := h.flowPath(c)
	if !ok {
		return
	}
	var req chatbotapp.UpdateFlowRequest
	if !h.bindJSON(c, &req) {
		return
	}

	flow, err := h.service.UpdateFlow(c.Request.Context(), tenantID, botID, flowID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, flow)
}

// DeleteFlow handles DELETE /chatbots/:id/flows/:flowId
func (h *ChatbotHandler) DeleteFlow(c *gin.Context) {
	tenantID, botID, flowID, ok := h.flowPath(c)
	if !ok {
		return
	}

	if err := h.service.DeleteFlow(c.Request.Context(), tenantID, botID, flowID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Message(c, "Flow deleted")
}

// SaveGraph handles PUT /chatbots/:id/flows/:flowId/graph.
// The submitted nodes and edges replace the stored graph as a whole.
func (h *ChatbotHandler) SaveGraph(c *gin.Context) {
	tenantID, botID, flowID, ok := h.flowPath(c)
	if !ok {
		return
	}
	var req chatbotapp.SaveGraphRequest
	if !h.bindJSON(c, &req) {
		return
	}

	flow, err := h.service.SaveGraph(c.Request.Context(), tenantID, botID, flowID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, flow)
}

// flowPath resolves the caller's tenant and the bot and flow path parameters
func (h *ChatbotHandler) flowPath(c *gin.Context) (tenantID, botID, flowID uuid.UUID, ok bool) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	if botID, ok = h.pathUUID(c, "id"); !ok {
		return
	}
	if flowID, ok = h.pathUUID(c, "flowId"); !ok {
		return
	}
	return id.TenantID, botID, flowID, true
}
