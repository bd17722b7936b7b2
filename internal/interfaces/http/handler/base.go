package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/infrastructure/auth"
	"github.com/helpdesk/backend/internal/infrastructure/logger"
	"github.com/helpdesk/backend/internal/infrastructure/telemetry"
	"github.com/helpdesk/backend/internal/interfaces/http/dto"
	"github.com/helpdesk/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// internalErrorMessage is the only text a client sees for a 500
const internalErrorMessage = "An unexpected error occurred"

// TraceIDHeader carries the trace of a failed request when tracing is on
const TraceIDHeader = "X-Trace-ID"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// identity returns the verified caller. Handlers are mounted behind
// JWTAuthMiddleware, so a missing identity answers 401 and returns false.
func (h *BaseHandler) identity(c *gin.Context) (*auth.Identity, bool) {
	id := middleware.GetIdentity(c)
	if id == nil {
		h.Unauthorized(c, "Authentication required")
		return nil, false
	}
	return id, true
}

// userRef returns the caller's user ID for created_by/updated_by columns
func userRef(id *auth.Identity) *uuid.UUID {
	userID := id.UserID
	return &userID
}

// pathUUID parses a UUID path parameter, answering 400 when malformed
func (h *BaseHandler) pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.ErrorWithCode(c, dto.ErrCodeInvalidInput, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds the body, answering the validation error when it fails
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// bindQuery binds the query string, answering the validation error when it fails
func (h *BaseHandler) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// writePage sends one page of a list with its pagination meta
func writePage[T any](c *gin.Context, page *shared.Paginated[T]) {
	c.JSON(http.StatusOK, dto.NewPageResponse(*page))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Message sends a 200 response carrying only a message
func (h *BaseHandler) Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, dto.NewMessageResponse(message))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	code = dto.NormalizeErrorCode(code)
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// HandleError converts an error into a response. Domain errors keep their
// code and message; anything else is logged with the request ID and
// answered with an opaque 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		h.internalError(c, err)
		return
	}
	code := dto.NormalizeErrorCode(domainErr.Code)
	if status := dto.GetHTTPStatus(code); status < http.StatusInternalServerError {
		h.Error(c, status, code, domainErr.Message)
		return
	}
	h.internalError(c, err)
}

func (h *BaseHandler) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	ctx := c.Request.Context()
	if traceID := telemetry.GetTraceID(ctx); traceID != "" {
		c.Header(TraceIDHeader, traceID)
	}
	logger.L(ctx).Error("Request failed", zap.String("route", c.FullPath()), zap.Error(err))

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) && dto.NormalizeErrorCode(domainErr.Code) == dto.ErrCodeServiceUnavailable {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeServiceUnavailable, domainErr.Message)
		return
	}
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, internalErrorMessage)
}
