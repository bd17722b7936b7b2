package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/infrastructure/auth"
	"github.com/helpdesk/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// AuthHandler serves /auth routes. Tokens are issued by the identity
// provider; this service only verifies and revokes them.
type AuthHandler struct {
	BaseHandler
	blacklist auth.TokenBlacklist
	now       func() time.Time
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(blacklist auth.TokenBlacklist) *AuthHandler {
	return &AuthHandler{blacklist: blacklist, now: time.Now}
}

// MeResponse describes the verified caller
type MeResponse struct {
	TenantID  uuid.UUID `json:"tenantId"`
	UserID    uuid.UUID `json:"userId"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	roles := id.Roles
	if roles == nil {
		roles = []string{}
	}
	h.Success(c, MeResponse{
		TenantID:  id.TenantID,
		UserID:    id.UserID,
		Roles:     roles,
		ExpiresAt: id.ExpiresAt,
	})
}

// Logout handles POST /auth/logout. The caller's token is revoked until it
// would have expired anyway.
func (h *AuthHandler) Logout(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	if id.TokenID == "" {
		h.Message(c, "Logged out")
		return
	}

	ttl := id.ExpiresAt.Sub(h.now())
	if err := h.blacklist.Revoke(c.Request.Context(), id.TokenID, ttl); err != nil {
		h.HandleError(c, err)
		return
	}
	logger.L(c.Request.Context()).Info("Token revoked", zap.String("jti", id.TokenID))
	h.Message(c, "Logged out")
}
