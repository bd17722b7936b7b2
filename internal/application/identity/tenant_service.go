package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/identity"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/infrastructure/logger"
	"github.com/helpdesk/backend/internal/infrastructure/persistence/tenant"
	"github.com/helpdesk/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TenantCache caches registry lookups made by the tenant guard
type TenantCache interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*identity.Tenant, bool)
	Set(ctx context.Context, tenant *identity.Tenant)
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}

// TenantService handles the tenant registry and schema provisioning
type TenantService struct {
	tenantRepo      identity.TenantRepository
	provisioner     identity.SchemaProvisioner
	cache           TenantCache
	logger          *zap.Logger
	businessMetrics *telemetry.BusinessMetrics
}

// NewTenantService creates a new tenant service. cache may be nil.
func NewTenantService(
	tenantRepo identity.TenantRepository,
	provisioner identity.SchemaProvisioner,
	cache TenantCache,
	logger *zap.Logger,
) *TenantService {
	return &TenantService{
		tenantRepo:  tenantRepo,
		provisioner: provisioner,
		cache:       cache,
		logger:      logger,
	}
}

// SetBusinessMetrics sets the business metrics collector
func (s *TenantService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// Provision registers a tenant and creates its migrated schema.
// The schema is built before the registry row is written so a registered
// tenant always has its tables; a failed registration drops the schema.
func (s *TenantService) Provision(ctx context.Context, req ProvisionTenantRequest) (_ *TenantResponse, err error) {
	t, err := identity.NewTenant(req.Name, req.Slug)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "tenant", "provision", t.ID,
		attribute.String(telemetry.SpanAttrTenantSlug, t.Slug))
	defer telemetry.EndSpan(span, &err)
	defer func() {
		// Rejected requests are not provisioning attempts
		if code := shared.CodeOf(err); code == "" || code == "INTERNAL_ERROR" {
			s.businessMetrics.RecordTenantProvisioned(err)
		}
	}()

	exists, err := s.tenantRepo.SlugInUse(ctx, t.Slug)
	if err != nil {
		return nil, s.internal(ctx, "Failed to check slug availability", err)
	}
	if exists {
		return nil, identity.ErrSlugTaken
	}

	s.logger.Info("Provisioning tenant",
		zap.String("tenant_id", t.ID.String()),
		zap.String("slug", t.Slug))

	if err := s.provisioner.Provision(ctx, t.ID); err != nil {
		return nil, s.internal(ctx, "Failed to provision tenant schema", err)
	}

	if err := s.tenantRepo.Create(ctx, t); err != nil {
		if dropErr := s.provisioner.Drop(ctx, t.ID); dropErr != nil {
			s.log(ctx).Error("Failed to drop schema of unregistered tenant",
				zap.String("tenant_id", t.ID.String()), zap.Error(dropErr))
		}
		if errors.Is(err, identity.ErrSlugTaken) {
			return nil, err
		}
		return nil, s.internal(ctx, "Failed to register tenant", err)
	}

	s.logger.Info("Tenant provisioned",
		zap.String("tenant_id", t.ID.String()),
		zap.String("slug", t.Slug))

	resp := toResponse(t)
	return &resp, nil
}

// GetByID retrieves a tenant by ID
func (s *TenantService) GetByID(ctx context.Context, id uuid.UUID) (*TenantResponse, error) {
	t, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(t)
	return &resp, nil
}

// List retrieves a page of tenants with the total count
func (s *TenantService) List(ctx context.Context, filter shared.Filter) (*shared.Paginated[TenantResponse], error) {
	filter = filter.Normalize()
	tenants, total, err := s.tenantRepo.List(ctx, filter)
	if err != nil {
		return nil, s.internal(ctx, "Failed to list tenants", err)
	}

	items := make([]TenantResponse, len(tenants))
	for i := range tenants {
		items[i] = toResponse(&tenants[i])
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Suspend blocks every request of a tenant
func (s *TenantService) Suspend(ctx context.Context, id uuid.UUID) (*TenantResponse, error) {
	return s.transition(ctx, id, (*identity.Tenant).Suspend, "Tenant suspended")
}

// Activate lifts a suspension
func (s *TenantService) Activate(ctx context.Context, id uuid.UUID) (*TenantResponse, error) {
	return s.transition(ctx, id, (*identity.Tenant).Activate, "Tenant activated")
}

// Authorize resolves the tenant of an authenticated request. Unknown
// tenants yield ErrTenantNotFound, suspended ones ErrTenantSuspended.
func (s *TenantService) Authorize(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	t, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, identity.ErrTenantSuspended
	}
	return t, nil
}

func (s *TenantService) transition(ctx context.Context, id uuid.UUID, apply func(*identity.Tenant) error, msg string) (*TenantResponse, error) {
	t, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(t); err != nil {
		return nil, err
	}
	if err := s.tenantRepo.UpdateStatus(ctx, t); err != nil {
		return nil, s.internal(ctx, "Failed to update tenant", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.log(ctx).Warn("Failed to invalidate tenant cache", zap.Error(err))
		}
	}
	s.log(ctx).Info(msg, zap.String("tenant_id", id.String()))

	resp := toResponse(t)
	return &resp, nil
}

func (s *TenantService) lookup(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	if s.cache != nil {
		if t, ok := s.cache.Get(ctx, id); ok {
			return t, nil
		}
	}
	t, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, t)
	}
	return t, nil
}

func (s *TenantService) find(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	t, err := s.tenantRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, identity.ErrTenantNotFound
		}
		return nil, s.internal(ctx, "Failed to find tenant", err)
	}
	return t, nil
}

func (s *TenantService) internal(ctx context.Context, msg string, err error) error {
	s.log(ctx).Error(msg, zap.Error(err))
	return shared.NewDomainError("INTERNAL_ERROR", msg)
}

func (s *TenantService) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, s.logger)
}

func toResponse(t *identity.Tenant) TenantResponse {
	schema, _ := tenant.SchemaFor(t.ID)
	return ToTenantResponse(t, schema.Name())
}
