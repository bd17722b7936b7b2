package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/helpdesk/backend/internal/interfaces/http/dto"
	"github.com/helpdesk/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// readyTimeout bounds a single readiness probe
const readyTimeout = 2 * time.Second

// ReadinessCheck reports whether a backing service is usable
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// SystemHandler serves the unauthenticated probe endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	checks    []ReadinessCheck
	logger    *zap.Logger
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name, version string, logger *zap.Logger, checks ...ReadinessCheck) *SystemHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		checks:    checks,
		logger:    logger,
	}
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	Status    string `json:"status"`
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"goVersion"`
	Uptime    string `json:"uptime"`
}

// Health handles GET /health. It never touches a dependency.
func (h *SystemHandler) Health(c *gin.Context) {
	h.Success(c, HealthResponse{
		Status:    "ok",
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// ReadyResponse lists the result of every readiness check
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Ready handles GET /ready. Any failed check answers 503.
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("check", check.Name), zap.Error(err))
			resp.Status = "not_ready"
			resp.Checks[check.Name] = "down"
			continue
		}
		resp.Checks[check.Name] = "up"
	}

	if resp.Status != "ready" {
		out := dto.NewErrorResponseWithRequestID(dto.ErrCodeServiceUnavailable, "A backing service is unavailable", middleware.GetRequestID(c))
		out.Data = resp
		c.JSON(http.StatusServiceUnavailable, out)
		return
	}
	h.Success(c, resp)
}
