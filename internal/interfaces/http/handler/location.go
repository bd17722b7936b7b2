package handler

import (
	"github.com/gin-gonic/gin"
	locationapp "github.com/helpdesk/backend/internal/application/location"
)

// LocationHandler serves /locations
type LocationHandler struct {
	BaseHandler
	service *locationapp.LocationService
}

// NewLocationHandler creates a new LocationHandler
func NewLocationHandler(service *locationapp.LocationService) *LocationHandler {
	return &LocationHandler{service: service}
}

// List handles GET /locations
func (h *LocationHandler) List(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	var q locationapp.LocationListFilter
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

// Get handles GET /locations/:id
func (h *LocationHandler) Get(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	locationID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	loc, err := h.service.GetByID(c.Request.Context(), id.TenantID, locationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, loc)
}

// Create handles POST /locations
func (h *LocationHandler) Create(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	var req locationapp.CreateLocationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	loc, err := h.service.Create(c.Request.Context(), id.TenantID, userRef(id), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, loc)
}

// Update handles PATCH and PUT /locations/:id. Both are partial.
func (h *LocationHandler) Update(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	locationID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req locationapp.UpdateLocationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	loc, err := h.service.Update(c.Request.Context(), id.TenantID, locationID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, loc)
}

// Delete handles DELETE /locations/:id
func (h *LocationHandler) Delete(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	locationID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id.TenantID, locationID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Message(c, "Location deleted")
}

// SetFavorite handles POST /locations/:id/favorite
func (h *LocationHandler) SetFavorite(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	locationID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req locationapp.SetFavoriteRequest
	if !h.bindJSON(c, &req) {
		return
	}

	loc, err := h.service.SetFavorite(c.Request.Context(), id.TenantID, locationID, *req.IsFavorite)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, loc)
}

// Children handles GET /locations/:id/children
func (h *LocationHandler) Children(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	locationID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	children, err := h.service.Children(c.Request.Context(), id.TenantID, locationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, children)
}

// Ancestors handles GET /locations/:id/ancestors
func (h *LocationHandler) Ancestors(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	locationID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	ancestors, err := h.service.Ancestors(c.Request.Context(), id.TenantID, locationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ancestors)
}

// Nearby handles GET /locations/nearby
func (h *LocationHandler) Nearby(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	var q locationapp.NearbyQuery
	if !h.bindQuery(c, &q) {
		return
	}

	found, err := h.service.Nearby(c.Request.Context(), id.TenantID, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, found)
}

// Stats handles GET /locations/stats
func (h *LocationHandler) Stats(c *gin.Context) {
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

// InitiateUpload handles POST /locations/:id/attachments
func (h *LocationHandler) InitiateUpload(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	locationID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req locationapp.InitiateUploadRequest
	if !h.bindJSON(c, &req) {
		return
	}

	upload, err := h.service.InitiateUpload(c.Request.Context(), id.TenantID, userRef(id), locationID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, upload)
}

// DownloadAttachment handles GET /locations/:id/attachments/:fileName
func (h *LocationHandler) DownloadAttachment(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	locationID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	download, err := h.service.DownloadURL(c.Request.Context(), id.TenantID, locationID, c.Param("fileName"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, download)
}

// DeleteAttachment handles DELETE /locations/:id/attachments/:fileName
func (h *LocationHandler) DeleteAttachment(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	locationID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteAttachment(c.Request.Context(), id.TenantID, locationID, c.Param("fileName")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Message(c, "Attachment deleted")
}
