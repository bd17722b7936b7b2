package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/identity"
	"github.com/helpdesk/backend/internal/domain/omnibridge"
	"go.uber.org/zap"
)

// tenantCache stores JSON encoded values keyed by tenant ID.
// Cache failures are logged and reported as misses so callers fall back
// to the database.
type tenantCache[T any] struct {
	store     Store
	namespace string
	ttl       time.Duration
	logger    *zap.Logger
}

func (c *tenantCache[T]) key(tenantID uuid.UUID) string {
	return c.namespace + tenantID.String()
}

func (c *tenantCache[T]) get(ctx context.Context, tenantID uuid.UUID) (*T, bool) {
	key := c.key(tenantID)
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		c.logger.Warn("Dropping corrupted cache entry", zap.String("key", key), zap.Error(err))
		_ = c.store.Delete(ctx, key)
		return nil, false
	}
	return &value, true
}

func (c *tenantCache[T]) set(ctx context.Context, tenantID uuid.UUID, value *T) {
	if value == nil {
		return
	}
	key := c.key(tenantID)
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *tenantCache[T]) invalidate(ctx context.Context, tenantID uuid.UUID) error {
	return c.store.Delete(ctx, c.key(tenantID))
}

// SettingsCache caches the omnichannel settings row of each tenant.
// Secrets stay sealed inside the cached value.
type SettingsCache struct {
	c tenantCache[omnibridge.Settings]
}

// NewSettingsCache creates a settings cache under keyPrefix
func NewSettingsCache(store Store, keyPrefix string, ttl time.Duration, logger *zap.Logger) *SettingsCache {
	return &SettingsCache{c: tenantCache[omnibridge.Settings]{
		store:     store,
		namespace: keyPrefix + "omnibridge:settings:",
		ttl:       ttl,
		logger:    logger,
	}}
}

// Get returns the cached settings of a tenant
func (s *SettingsCache) Get(ctx context.Context, tenantID uuid.UUID) (*omnibridge.Settings, bool) {
	return s.c.get(ctx, tenantID)
}

// Set caches the settings of a tenant
func (s *SettingsCache) Set(ctx context.Context, settings *omnibridge.Settings) {
	s.c.set(ctx, settings.TenantID, settings)
}

// Invalidate drops the cached settings of a tenant
func (s *SettingsCache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	return s.c.invalidate(ctx, tenantID)
}

// TenantCache caches registry lookups made on every authenticated request
type TenantCache struct {
	c tenantCache[identity.Tenant]
}

// NewTenantCache creates a tenant cache under keyPrefix
func NewTenantCache(store Store, keyPrefix string, ttl time.Duration, logger *zap.Logger) *TenantCache {
	return &TenantCache{c: tenantCache[identity.Tenant]{
		store:     store,
		namespace: keyPrefix + "tenant:",
		ttl:       ttl,
		logger:    logger,
	}}
}

// Get returns the cached tenant
func (t *TenantCache) Get(ctx context.Context, tenantID uuid.UUID) (*identity.Tenant, bool) {
	return t.c.get(ctx, tenantID)
}

// Set caches a tenant
func (t *TenantCache) Set(ctx context.Context, tenant *identity.Tenant) {
	t.c.set(ctx, tenant.ID, tenant)
}

// Invalidate drops a cached tenant
func (t *TenantCache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	return t.c.invalidate(ctx, tenantID)
}
