package handler

import (
	"github.com/gin-gonic/gin"
	omnibridgeapp "github.com/helpdesk/backend/internal/application/omnibridge"
)

// OmniBridgeHandler serves /omnibridge/settings
type OmniBridgeHandler struct {
	BaseHandler
	service *omnibridgeapp.SettingsService
}

// NewOmniBridgeHandler creates a new OmniBridgeHandler
func NewOmniBridgeHandler(service *omnibridgeapp.SettingsService) *OmniBridgeHandler {
	return &OmniBridgeHandler{service: service}
}

// Get handles GET /omnibridge/settings. The first read creates the defaults.
func (h *OmniBridgeHandler) Get(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	settings, err := h.service.Get(c.Request.Context(), id.TenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, settings)
}

// Update handles PATCH and PUT /omnibridge/settings
func (h *OmniBridgeHandler) Update(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	var req omnibridgeapp.UpdateSettingsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	settings, err := h.service.Update(c.Request.Context(), id.TenantID, userRef(id), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, settings)
}

// Reset handles DELETE /omnibridge/settings
func (h *OmniBridgeHandler) Reset(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	if err := h.service.Reset(c.Request.Context(), id.TenantID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Message(c, "OmniBridge settings reset")
}
