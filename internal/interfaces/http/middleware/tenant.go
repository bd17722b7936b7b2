package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/identity"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// TenantAuthorizer looks up the tenant of a verified token.
// identity.ErrTenantNotFound and identity.ErrTenantSuspended are expected.
type TenantAuthorizer interface {
	Authorize(ctx context.Context, id uuid.UUID) (*identity.Tenant, error)
}

// TenantMiddlewareConfig holds configuration for the tenant guard
type TenantMiddlewareConfig struct {
	Authorizer TenantAuthorizer
	Metrics    AuthFailureRecorder
	Logger     *zap.Logger
}

// TenantGuard runs after JWTAuthMiddleware. It rejects tokens whose tenant
// is unknown (401) or suspended (403).
func TenantGuard(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		id := GetIdentity(c)
		if id == nil {
			abortWithError(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}

		_, err := cfg.Authorizer.Authorize(c.Request.Context(), id.TenantID)
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, identity.ErrTenantSuspended):
			recordFailure(cfg.Metrics, "suspended_tenant")
			abortWithError(c, http.StatusForbidden, dto.ErrCodeForbidden, "Tenant is suspended")
		case errors.Is(err, shared.ErrNotFound):
			recordFailure(cfg.Metrics, "unknown_tenant")
			abortWithError(c, http.StatusUnauthorized, dto.ErrCodeTenantInvalid, "Unknown tenant")
		default:
			cfg.Logger.Error("Tenant lookup failed",
				zap.String("tenant_id", id.TenantID.String()),
				zap.String("request_id", GetRequestID(c)),
				zap.Error(err))
			abortWithError(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
		}
	}
}

func recordFailure(m AuthFailureRecorder, reason string) {
	if m != nil {
		m.RecordAuthFailure(reason)
	}
}
