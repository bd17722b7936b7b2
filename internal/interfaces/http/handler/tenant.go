package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	identityapp "github.com/helpdesk/backend/internal/application/identity"
)

// TenantHandler serves /admin/tenants for platform operators. Routes are
// guarded by the admin role, not by a tenant.
type TenantHandler struct {
	BaseHandler
	tenants *identityapp.TenantService
}

func NewTenantHandler(tenants *identityapp.TenantService) *TenantHandler {
	return &TenantHandler{tenants: tenants}
}

// Provision registers a tenant and builds its migrated schema
func (h *TenantHandler) Provision(c *gin.Context) {
	var req identityapp.ProvisionTenantRequest
	if !h.bindJSON(c, &req) {
		return
	}
	tenant, err := h.tenants.Provision(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, tenant)
}

func (h *TenantHandler) List(c *gin.Context) {
	var q identityapp.TenantListFilter
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := h.tenants.List(c.Request.Context(), q.ToSharedFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	writePage(c, page)
}

func (h *TenantHandler) GetByID(c *gin.Context) { h.onTenant(c, h.tenants.GetByID) }

// Suspend makes every request of the tenant answer 403 until reactivated
func (h *TenantHandler) Suspend(c *gin.Context) { h.onTenant(c, h.tenants.Suspend) }

func (h *TenantHandler) Activate(c *gin.Context) { h.onTenant(c, h.tenants.Activate) }

// onTenant runs op on the tenant named by the :id parameter and answers
// with the resulting tenant
func (h *TenantHandler) onTenant(c *gin.Context, op func(context.Context, uuid.UUID) (*identityapp.TenantResponse, error)) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	tenant, err := op(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tenant)
}
