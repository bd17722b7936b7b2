package router

import (
	"net/http"

	"github.com/helpdesk/backend/internal/interfaces/http/handler"
)

func LocationRoutes(h *handler.LocationHandler) *Resource {
	return NewResource("/locations").
		GET("", h.List).
		POST("", h.Create).
		GET("/nearby", h.Nearby).
		GET("/stats", h.Stats).
		GET("/:id", h.Get).
		Update("/:id", h.Update).
		DELETE("/:id", h.Delete).
		POST("/:id/favorite", h.SetFavorite).
		GET("/:id/children", h.Children).
		GET("/:id/ancestors", h.Ancestors).
		POST("/:id/attachments", h.InitiateUpload).
		GET("/:id/attachments/:fileName", h.DownloadAttachment).
		DELETE("/:id/attachments/:fileName", h.DeleteAttachment)
}

func TicketTemplateRoutes(h *handler.TicketTemplateHandler) *Resource {
	return NewResource("/ticket-templates").
		GET("", h.List).
		POST("", h.Create).
		GET("/stats", h.Stats).
		GET("/:id", h.Get).
		Update("/:id", h.Update).
		DELETE("/:id", h.Delete).
		POST("/:id/apply", h.Apply)
}

// graphSuffix ends the flow graph route, which gets the larger body cap
const graphSuffix = "/graph"

// ChatbotRoutes mounts /chatbots with flows nested below each bot
func ChatbotRoutes(h *handler.ChatbotHandler) *Resource {
	bots := NewResource("/chatbots").
		GET("", h.List).
		POST("", h.Create).
		GET("/:id", h.Get).
		Update("/:id", h.Update).
		DELETE("/:id", h.Delete)

	bots.Nest("/:id/flows").
		GET("", h.ListFlows).
		POST("", h.CreateFlow).
		GET("/:flowId", h.GetFlow).
		Update("/:flowId", h.UpdateFlow).
		DELETE("/:flowId", h.DeleteFlow).
		Handle(http.MethodPut, "/:flowId"+graphSuffix, h.SaveGraph)
	return bots
}

func OmniBridgeRoutes(h *handler.OmniBridgeHandler) *Resource {
	return NewResource("/omnibridge").
		GET("/settings", h.Get).
		Update("/settings", h.Update).
		DELETE("/settings", h.Reset)
}

func AuthRoutes(h *handler.AuthHandler) *Resource {
	return NewResource("/auth").
		GET("/me", h.Me).
		POST("/logout", h.Logout)
}

// TenantAdminRoutes mounts /admin/tenants. The caller adds the role check.
func TenantAdminRoutes(h *handler.TenantHandler) *Resource {
	return NewResource("/admin/tenants").
		GET("", h.List).
		POST("", h.Provision).
		GET("/:id", h.GetByID).
		POST("/:id/suspend", h.Suspend).
		POST("/:id/activate", h.Activate)
}
