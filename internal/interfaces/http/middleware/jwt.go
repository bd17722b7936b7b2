package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/helpdesk/backend/internal/infrastructure/auth"
	"github.com/helpdesk/backend/internal/infrastructure/logger"
	"github.com/helpdesk/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// JWT context keys
const (
	IdentityKey   = "identity"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// AuthFailureRecorder counts rejected identities by reason
type AuthFailureRecorder interface {
	RecordAuthFailure(reason string)
}

// JWTMiddlewareConfig holds configuration for JWT middleware
type JWTMiddlewareConfig struct {
	// JWTService is required for token validation
	JWTService *auth.JWTService
	// TokenBlacklist is optional for checking revoked tokens
	TokenBlacklist auth.TokenBlacklist
	// Metrics is optional
	Metrics AuthFailureRecorder
	// Logger for middleware logging
	Logger *zap.Logger
}

// JWTAuthMiddleware creates JWT authentication middleware
func JWTAuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{JWTService: jwtService})
}

// JWTAuthMiddlewareWithConfig authenticates the bearer token and stores the
// verified Identity in the context. Tenant and user are taken from the
// token only; X-Tenant-ID and X-User-ID headers are never consulted.
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			rejectIdentity(c, cfg, "missing_token", auth.ErrInvalidToken)
			return
		}

		id, err := cfg.JWTService.Verify(tokenString)
		if err != nil {
			reason := "invalid_token"
			if errors.Is(err, auth.ErrMissingTenantID) || errors.Is(err, auth.ErrInvalidTenantID) {
				reason = "invalid_tenant"
			}
			rejectIdentity(c, cfg, reason, err)
			return
		}

		if cfg.TokenBlacklist != nil && id.TokenID != "" {
			revoked, err := cfg.TokenBlacklist.IsRevoked(c.Request.Context(), id.TokenID)
			if err != nil {
				// Fail open: a Redis outage must not log every user out.
				cfg.Logger.Error("Failed to check token blacklist",
					zap.String("jti", id.TokenID),
					zap.Error(err))
			} else if revoked {
				rejectIdentity(c, cfg, "revoked_token", auth.ErrTokenRevoked)
				return
			}
		}

		c.Set(IdentityKey, id)

		ctx := logger.WithTenantID(c.Request.Context(), id.TenantID.String())
		ctx = logger.WithUserID(ctx, id.UserID.String())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader(AuthHeaderKey)
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	return token, token != ""
}

// rejectIdentity answers 401 with a code describing the failure
func rejectIdentity(c *gin.Context, cfg JWTMiddlewareConfig, reason string, err error) {
	if cfg.Metrics != nil {
		cfg.Metrics.RecordAuthFailure(reason)
	}
	cfg.Logger.Warn("JWT authentication failed",
		zap.String("reason", reason),
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", GetRequestID(c)),
	)

	code, message := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenRevoked):
		code, message = dto.ErrCodeTokenInvalid, "Token has been revoked"
	case errors.Is(err, auth.ErrMissingTenantID), errors.Is(err, auth.ErrInvalidTenantID):
		code, message = dto.ErrCodeTenantInvalid, "Token carries no valid tenant"
	case reason == "missing_token":
		message = "Missing or malformed authorization header"
	default:
		code, message = dto.ErrCodeTokenInvalid, "Invalid token"
	}
	abortWithError(c, http.StatusUnauthorized, code, message)
}

// GetIdentity returns the verified identity, or nil on routes that are not
// behind JWTAuthMiddleware
func GetIdentity(c *gin.Context) *auth.Identity {
	if v, ok := c.Get(IdentityKey); ok {
		if id, ok := v.(*auth.Identity); ok {
			return id
		}
	}
	return nil
}

// RequireRole rejects callers whose token lacks role with 403
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := GetIdentity(c)
		if id == nil {
			abortWithError(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}
		if !id.HasRole(role) {
			abortWithError(c, http.StatusForbidden, dto.ErrCodeForbidden, "Insufficient role")
			return
		}
		c.Next()
	}
}
