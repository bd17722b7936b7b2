package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	chatbotapp "github.com/helpdesk/backend/internal/application/chatbot"
	identityapp "github.com/helpdesk/backend/internal/application/identity"
	locationapp "github.com/helpdesk/backend/internal/application/location"
	omnibridgeapp "github.com/helpdesk/backend/internal/application/omnibridge"
	templateapp "github.com/helpdesk/backend/internal/application/template"
	"github.com/helpdesk/backend/internal/infrastructure/auth"
	"github.com/helpdesk/backend/internal/infrastructure/cache"
	"github.com/helpdesk/backend/internal/infrastructure/config"
	"github.com/helpdesk/backend/internal/infrastructure/crypto"
	"github.com/helpdesk/backend/internal/infrastructure/logger"
	"github.com/helpdesk/backend/internal/infrastructure/migration"
	"github.com/helpdesk/backend/internal/infrastructure/persistence"
	"github.com/helpdesk/backend/internal/infrastructure/storage"
	"github.com/helpdesk/backend/internal/infrastructure/telemetry"
	"github.com/helpdesk/backend/internal/interfaces/http/handler"
	"github.com/helpdesk/backend/internal/interfaces/http/middleware"
	"github.com/helpdesk/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.ISO8601Millis,
		Service:    cfg.App.Name,
		Env:        cfg.App.Env,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	log.Info("Starting helpdesk backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	var metrics *telemetry.Metrics
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewMetrics()
	}

	gormOpts := []logger.GormLoggerOption{logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL)}
	if cfg.Telemetry.DBSlowQueryThresh > 0 {
		gormOpts = append(gormOpts, logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	}
	if metrics != nil {
		gormOpts = append(gormOpts, logger.WithSchemaMismatchHook(func(context.Context, string) {
			metrics.RecordSchemaViolation()
		}))
	}
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel), gormOpts...)
	connectCtx, cancelConnect := context.WithTimeout(ctx, 30*time.Second)
	db, err := persistence.Open(connectCtx, &cfg.Database, persistence.WithGormLogger(gormLog))
	cancelConnect()
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	sqlDB := db.SQL
	log.Info("Database connected successfully")

	var businessMetrics *telemetry.BusinessMetrics
	if metrics != nil {
		if err := metrics.RegisterDBStats(sqlDB, cfg.Database.DBName); err != nil {
			log.Fatal("Failed to register database stats", zap.Error(err))
		}
		dbMetrics, err := telemetry.NewDBMetricsPlugin(metrics.Registry())
		if err != nil {
			log.Fatal("Failed to create database metrics", zap.Error(err))
		}
		if err := dbMetrics.Register(db.DB); err != nil {
			log.Fatal("Failed to register database metrics", zap.Error(err))
		}
		businessMetrics, err = telemetry.NewBusinessMetrics(metrics.Registry())
		if err != nil {
			log.Fatal("Failed to create business metrics", zap.Error(err))
		}
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		if err := telemetry.TraceQueries(db.DB, telemetry.QueryTracing{
			QueryVariables: cfg.Telemetry.DBLogFullSQL,
			SlowThreshold:  cfg.Telemetry.DBSlowQueryThresh,
		}, log); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	store, err := cache.NewStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create cache store", zap.Error(err))
	}
	defer func() {
		_ = store.Close()
	}()

	readiness := []handler.ReadinessCheck{{
		Name: "postgres",
		Ping: db.PingContext,
	}}
	if rs, ok := store.(*cache.RedisStore); ok {
		readiness = append(readiness, handler.ReadinessCheck{Name: "redis", Ping: rs.Ping})
	}
	blacklist := auth.NewStoreTokenBlacklist(store, cfg.Cache.KeyPrefix)

	key, err := cfg.Secrets.Key()
	if err != nil {
		log.Fatal("Invalid secrets configuration", zap.Error(err))
	}
	sealer := crypto.NewSecretBoxSealer(key)

	var objects locationapp.ObjectStorage = storage.NewDisabledStorage()
	if cfg.Storage.Enabled() {
		bucket, err := storage.NewBucket(ctx, cfg.Storage, log)
		if err != nil {
			log.Fatal("Failed to initialize attachment storage", zap.Error(err))
		}
		ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := bucket.EnsureBucket(ensureCtx); err != nil {
			log.Warn("Attachment bucket not reachable yet", zap.Error(err))
		}
		cancel()
		objects = bucket
		readiness = append(readiness, handler.ReadinessCheck{Name: "storage", Ping: bucket.Ping})
		log.Info("Attachment storage enabled", zap.String("bucket", bucket.Name()))
	} else {
		log.Warn("Attachment storage not configured; attachment endpoints answer 503")
	}

	// Repositories
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	locationRepo := persistence.NewGormLocationRepository(db.DB)
	templateRepo := persistence.NewGormTicketTemplateRepository(db.DB)
	chatbotRepo := persistence.NewGormChatbotRepository(db.DB)
	flowRepo := persistence.NewGormFlowRepository(db.DB)
	settingsRepo := persistence.NewGormOmniBridgeSettingsRepository(db.DB)

	// Services
	tenantService := identityapp.NewTenantService(
		tenantRepo,
		migration.NewProvisioner(sqlDB, log),
		cache.NewTenantCache(store, cfg.Cache.KeyPrefix, cfg.Cache.TenantTTL, log),
		log,
	)
	tenantService.SetBusinessMetrics(businessMetrics)

	locationService := locationapp.NewLocationService(locationRepo, objects, log)
	locationService.SetBusinessMetrics(businessMetrics)
	if cfg.Storage.MaxUploadSize > 0 {
		attachmentCfg := locationapp.DefaultAttachmentConfig()
		attachmentCfg.MaxUploadSize = cfg.Storage.MaxUploadSize
		locationService.SetAttachmentConfig(attachmentCfg)
	}

	templateService := templateapp.NewTemplateService(templateRepo, log)
	templateService.SetBusinessMetrics(businessMetrics)

	chatbotService := chatbotapp.NewChatbotService(chatbotRepo, flowRepo, log)
	chatbotService.SetBusinessMetrics(businessMetrics)

	settingsService := omnibridgeapp.NewSettingsService(
		settingsRepo,
		sealer,
		cache.NewSettingsCache(store, cfg.Cache.KeyPrefix, cfg.Cache.SettingsTTL, log),
		log,
	)
	settingsService.SetBusinessMetrics(businessMetrics)

	var limiter middleware.Limiter
	if cfg.HTTP.RateLimitEnabled {
		if rs, ok := store.(*cache.RedisStore); ok {
			limiter = middleware.NewRedisLimiter(rs.Client(), cfg.Cache.KeyPrefix,
				cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		} else {
			memLimiter := middleware.NewMemoryLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
			defer memLimiter.Stop()
			limiter = memLimiter
		}
	}

	engine, err := router.NewEngine(router.Options{
		Config:      cfg,
		Logger:      log,
		JWT:         auth.NewJWTService(cfg.JWT),
		Blacklist:   blacklist,
		Tenants:     tenantService,
		Metrics:     metrics,
		RateLimiter: limiter,
		Handlers: router.Handlers{
			System:         handler.NewSystemHandler(cfg.App.Name, version, log, readiness...),
			Auth:           handler.NewAuthHandler(blacklist),
			Location:       handler.NewLocationHandler(locationService),
			TicketTemplate: handler.NewTicketTemplateHandler(templateService),
			Chatbot:        handler.NewChatbotHandler(chatbotService),
			OmniBridge:     handler.NewOmniBridgeHandler(settingsService),
			Tenant:         handler.NewTenantHandler(tenantService),
		},
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to flush traces", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
