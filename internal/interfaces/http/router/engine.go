package router

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/helpdesk/backend/internal/infrastructure/auth"
	"github.com/helpdesk/backend/internal/infrastructure/config"
	"github.com/helpdesk/backend/internal/infrastructure/logger"
	"github.com/helpdesk/backend/internal/infrastructure/telemetry"
	"github.com/helpdesk/backend/internal/interfaces/http/handler"
	"github.com/helpdesk/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Probe paths are served without authentication, request logs or metrics
const (
	HealthPath = "/health"
	ReadyPath  = "/ready"
)

// Handlers groups the HTTP handlers mounted on the engine
type Handlers struct {
	System         *handler.SystemHandler
	Auth           *handler.AuthHandler
	Location       *handler.LocationHandler
	TicketTemplate *handler.TicketTemplateHandler
	Chatbot        *handler.ChatbotHandler
	OmniBridge     *handler.OmniBridgeHandler
	Tenant         *handler.TenantHandler
}

// Options holds everything NewEngine wires together
type Options struct {
	Config    *config.Config
	Logger    *zap.Logger
	JWT       *auth.JWTService
	Blacklist auth.TokenBlacklist
	Tenants   middleware.TenantAuthorizer
	// Metrics is nil when Prometheus metrics are disabled
	Metrics *telemetry.Metrics
	// RateLimiter is nil when rate limiting is disabled
	RateLimiter middleware.Limiter
	Handlers    Handlers
}

// NewEngine builds the gin engine with the global middleware chain, the
// probe endpoints and the authenticated /api/v1 routes.
func NewEngine(opts Options) (*gin.Engine, error) {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	unlogged := []string{HealthPath, ReadyPath, cfg.Metrics.Path}

	engine.Use(
		middleware.RequestID(),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
			SkipPaths:   unlogged,
		}),
		middleware.AnnotateServerSpan(),
		logger.AccessLog(log, unlogged...),
		logger.Recover(log),
	)
	var failures middleware.AuthFailureRecorder
	if opts.Metrics != nil {
		engine.Use(middleware.HTTPMetrics(opts.Metrics, unlogged...))
		failures = opts.Metrics
	}
	h := opts.Handlers
	chatbots := ChatbotRoutes(h.Chatbot)

	engine.Use(
		middleware.CORS(corsConfig(cfg.HTTP)),
		middleware.APISecurityHeaders(cfg.HTTP.HSTSMaxAge),
		middleware.BodyLimit(bodyLimits(cfg.HTTP, chatbots)),
		middleware.Timeout(cfg.HTTP.RequestTimeout),
	)

	engine.GET(HealthPath, h.System.Health)
	engine.GET(ReadyPath, h.System.Ready)
	if opts.Metrics != nil && cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, gin.WrapH(opts.Metrics.Handler()))
	}

	api := []gin.HandlerFunc{
		middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
			JWTService:     opts.JWT,
			TokenBlacklist: opts.Blacklist,
			Metrics:        failures,
			Logger:         log,
		}),
		middleware.TracingAttributeInjector(),
		middleware.TenantGuard(middleware.TenantMiddlewareConfig{
			Authorizer: opts.Tenants,
			Metrics:    failures,
			Logger:     log,
		}),
	}
	if opts.RateLimiter != nil {
		api = append(api, middleware.RateLimit(opts.RateLimiter, middleware.TenantKey, log))
	}

	Mount(engine, api,
		AuthRoutes(h.Auth),
		LocationRoutes(h.Location),
		TicketTemplateRoutes(h.TicketTemplate),
		chatbots,
		OmniBridgeRoutes(h.OmniBridge),
		TenantAdminRoutes(h.Tenant).Use(middleware.RequireRole(auth.RoleAdmin)),
	)

	return engine, nil
}

// bodyLimits raises the body cap of flow graph saves, which carry whole
// node and edge sets.
func bodyLimits(httpCfg config.HTTPConfig, chatbots *Resource) middleware.BodyLimits {
	limits := middleware.BodyLimits{Default: httpCfg.MaxBodySize, Routes: map[string]int64{}}
	if httpCfg.MaxGraphBodySize <= 0 {
		return limits
	}
	for _, route := range chatbots.Routes(APIPrefix) {
		if strings.HasSuffix(route.Path, graphSuffix) {
			limits.Routes[middleware.RouteKey(route.Method, route.Path)] = httpCfg.MaxGraphBodySize
		}
	}
	return limits
}

func corsConfig(httpCfg config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = httpCfg.CORSAllowOrigins
	if len(httpCfg.CORSAllowMethods) > 0 {
		cors.AllowMethods = httpCfg.CORSAllowMethods
	}
	if len(httpCfg.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = httpCfg.CORSAllowHeaders
	}
	return cors
}
