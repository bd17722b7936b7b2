package handler

import (
	"github.com/gin-gonic/gin"
	templateapp "github.com/helpdesk/backend/internal/application/template"
)

// TicketTemplateHandler serves /ticket-templates
type TicketTemplateHandler struct {
	BaseHandler
	service *templateapp.TemplateService
}

// NewTicketTemplateHandler creates a new TicketTemplateHandler
func NewTicketTemplateHandler(service *templateapp.TemplateService) *TicketTemplateHandler {
	return &TicketTemplateHandler{service: service}
}

// List handles GET /ticket-templates
func (h *TicketTemplateHandler) List(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	var q templateapp.TemplateListFilter
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

// Get handles GET /ticket-templates/:id
func (h *TicketTemplateHandler) Get(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	templateID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	t, err := h.service.GetByID(c.Request.Context(), id.TenantID, templateID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, t)
}

// Create handles POST /ticket-templates
func (h *TicketTemplateHandler) Create(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	var req templateapp.CreateTemplateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	t, err := h.service.Create(c.Request.Context(), id.TenantID, userRef(id), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, t)
}

// Update handles PATCH and PUT /ticket-templates/:id
func (h *TicketTemplateHandler) Update(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	templateID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req templateapp.UpdateTemplateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	t, err := h.service.Update(c.Request.Context(), id.TenantID, templateID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, t)
}

// Delete handles DELETE /ticket-templates/:id
func (h *TicketTemplateHandler) Delete(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	templateID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id.TenantID, templateID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Message(c, "Ticket template deleted")
}

// Apply handles POST /ticket-templates/:id/apply. The body is optional.
func (h *TicketTemplateHandler) Apply(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	templateID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req templateapp.ApplyTemplateRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	applied, err := h.service.Apply(c.Request.Context(), id.TenantID, templateID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, applied)
}

// Stats handles GET /ticket-templates/stats
func (h *TicketTemplateHandler) Stats(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), id.TenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
