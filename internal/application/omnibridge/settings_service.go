package omnibridge

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/omnibridge"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/infrastructure/logger"
	"github.com/helpdesk/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SettingsCache is the read-through cache in front of the settings row.
// Cached values keep their secrets sealed.
type SettingsCache interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*omnibridge.Settings, bool)
	Set(ctx context.Context, settings *omnibridge.Settings)
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}

// SettingsService manages the omnichannel settings of a tenant
type SettingsService struct {
	repo            omnibridge.SettingsRepository
	sealer          omnibridge.Sealer
	cache           SettingsCache
	logger          *zap.Logger
	businessMetrics *telemetry.BusinessMetrics

	// cacheGen counts invalidations per tenant. A read only fills the cache
	// when no invalidation happened while it was loading the row. Across
	// replicas the cache TTL bounds staleness.
	cacheMu  sync.Mutex
	cacheGen map[uuid.UUID]uint64
}

// NewSettingsService creates a new SettingsService. cache may be nil.
func NewSettingsService(repo omnibridge.SettingsRepository, sealer omnibridge.Sealer, cache SettingsCache, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		repo:     repo,
		sealer:   sealer,
		cache:    cache,
		logger:   logger,
		cacheGen: make(map[uuid.UUID]uint64),
	}
}

// SetBusinessMetrics sets the business metrics collector
func (s *SettingsService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// Get returns the tenant's settings, creating the defaults on first access
func (s *SettingsService) Get(ctx context.Context, tenantID uuid.UUID) (*SettingsResponse, error) {
	settings, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	resp := ToSettingsResponse(settings)
	return &resp, nil
}

// Update merges the present fields over the stored settings.
// Secrets are sealed before they reach the repository.
func (s *SettingsService) Update(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, req UpdateSettingsRequest) (_ *SettingsResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "omnibridge_settings", "update", tenantID)
	defer telemetry.EndSpan(span, &err)

	patch := req.ToPatch()
	saved, err := s.repo.Update(ctx, tenantID, omnibridge.DefaultSettings(tenantID), func(current *omnibridge.Settings) error {
		return current.Apply(patch, userID, s.sealer)
	})
	if err != nil {
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			return nil, domainErr
		}
		return nil, s.internal(ctx, "Failed to update omnibridge settings", err)
	}

	s.invalidate(ctx, tenantID)
	s.businessMetrics.RecordSettingsUpdated()
	s.log(ctx).Info("OmniBridge settings updated", zap.Stringp("updated_by", uuidString(userID)))

	resp := ToSettingsResponse(saved)
	return &resp, nil
}

// Reset drops the stored settings; the next Get recreates the defaults
func (s *SettingsService) Reset(ctx context.Context, tenantID uuid.UUID) error {
	if err := s.repo.Delete(ctx, tenantID); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return s.internal(ctx, "Failed to reset omnibridge settings", err)
	}
	s.invalidate(ctx, tenantID)
	s.log(ctx).Info("OmniBridge settings reset")
	return nil
}

// credentials opens the stored secret of a channel. Unconfigured secrets
// yield an empty string. Channel connectors live outside this service.
func (s *SettingsService) credentials(ctx context.Context, tenantID uuid.UUID, channel string) (string, error) {
	settings, err := s.load(ctx, tenantID)
	if err != nil {
		return "", err
	}
	var secret omnibridge.Secret
	switch channel {
	case omnibridge.SearchChannelEmail:
		secret = settings.Channels.Email.Password
	case omnibridge.SearchChannelTelegram:
		secret = settings.Channels.Telegram.BotToken
	case omnibridge.SearchChannelWhatsApp:
		secret = settings.Channels.WhatsApp.AccessToken
	default:
		return "", shared.NewDomainError("INVALID_CHANNEL", "Channel must be one of email, telegram, whatsapp")
	}
	if !secret.Configured() {
		return "", nil
	}
	plaintext, err := s.sealer.Open(secret.Ciphertext)
	if err != nil {
		return "", s.internal(ctx, "Failed to open channel credentials", err)
	}
	return plaintext, nil
}

func (s *SettingsService) load(ctx context.Context, tenantID uuid.UUID) (*omnibridge.Settings, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, tenantID); ok {
			return cached, nil
		}
	}

	gen := s.generation(tenantID)
	settings, created, err := s.repo.GetOrCreate(ctx, tenantID, omnibridge.DefaultSettings(tenantID))
	if err != nil {
		return nil, s.internal(ctx, "Failed to load omnibridge settings", err)
	}
	if created {
		s.businessMetrics.RecordSettingsCreated()
		s.log(ctx).Info("OmniBridge default settings created")
	}
	s.fill(ctx, settings, gen)
	return settings, nil
}

func (s *SettingsService) generation(tenantID uuid.UUID) uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cacheGen[tenantID]
}

// fill caches settings unless the tenant was invalidated after gen was taken
func (s *SettingsService) fill(ctx context.Context, settings *omnibridge.Settings, gen uint64) {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheGen[settings.TenantID] != gen {
		return
	}
	s.cache.Set(ctx, settings)
}

func (s *SettingsService) invalidate(ctx context.Context, tenantID uuid.UUID) {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheGen[tenantID]++
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		s.log(ctx).Warn("Failed to invalidate omnibridge settings cache", zap.Error(err))
	}
}

func (s *SettingsService) internal(ctx context.Context, msg string, err error) error {
	s.log(ctx).Error(msg, zap.Error(err))
	return shared.NewDomainError("INTERNAL_ERROR", msg)
}

func (s *SettingsService) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, s.logger)
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	v := id.String()
	return &v
}
