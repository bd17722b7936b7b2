package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/identity"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockTenantRepository is a mock implementation of TenantRepository
type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) tenant(args mock.Arguments) (*identity.Tenant, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *MockTenantRepository) Get(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	return m.tenant(m.Called(ctx, id))
}

func (m *MockTenantRepository) GetBySlug(ctx context.Context, slug string) (*identity.Tenant, error) {
	return m.tenant(m.Called(ctx, slug))
}

func (m *MockTenantRepository) List(ctx context.Context, filter shared.Filter) ([]identity.Tenant, int64, error) {
	args := m.Called(ctx, filter)
	tenants, _ := args.Get(0).([]identity.Tenant)
	return tenants, args.Get(1).(int64), args.Error(2)
}

func (m *MockTenantRepository) SlugInUse(ctx context.Context, slug string) (bool, error) {
	args := m.Called(ctx, slug)
	return args.Bool(0), args.Error(1)
}

func (m *MockTenantRepository) Create(ctx context.Context, tenant *identity.Tenant) error {
	return m.Called(ctx, tenant).Error(0)
}

func (m *MockTenantRepository) UpdateStatus(ctx context.Context, tenant *identity.Tenant) error {
	return m.Called(ctx, tenant).Error(0)
}

// MockProvisioner is a mock implementation of SchemaProvisioner
type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) Provision(ctx context.Context, tenantID uuid.UUID) error {
	return m.Called(ctx, tenantID).Error(0)
}

func (m *MockProvisioner) Drop(ctx context.Context, tenantID uuid.UUID) error {
	return m.Called(ctx, tenantID).Error(0)
}

// mapCache is a map backed TenantCache
type mapCache map[uuid.UUID]*identity.Tenant

func (c mapCache) Get(_ context.Context, id uuid.UUID) (*identity.Tenant, bool) {
	t, ok := c[id]
	return t, ok
}

func (c mapCache) Set(_ context.Context, t *identity.Tenant) { c[t.ID] = t }

func (c mapCache) Invalidate(_ context.Context, id uuid.UUID) error {
	delete(c, id)
	return nil
}

func newTestService(t *testing.T, log *zap.Logger) (*TenantService, *MockTenantRepository, *MockProvisioner, mapCache) {
	t.Helper()
	repo := new(MockTenantRepository)
	prov := new(MockProvisioner)
	t.Cleanup(func() {
		repo.AssertExpectations(t)
		prov.AssertExpectations(t)
	})
	if log == nil {
		log = zap.NewNop()
	}
	cache := mapCache{}
	return NewTenantService(repo, prov, cache, log), repo, prov, cache
}

func newTenant(t *testing.T) *identity.Tenant {
	t.Helper()
	tn, err := identity.NewTenant("Acme Support", "acme")
	require.NoError(t, err)
	return tn
}

func TestTenantService_Provision(t *testing.T) {
	t.Run("creates the schema then the registry row", func(t *testing.T) {
		svc, repo, prov, _ := newTestService(t, nil)
		var provisioned uuid.UUID
		repo.On("SlugInUse", mock.Anything, "acme-support").Return(false, nil)
		prov.On("Provision", mock.Anything, mock.AnythingOfType("uuid.UUID")).
			Run(func(args mock.Arguments) { provisioned = args.Get(1).(uuid.UUID) }).
			Return(nil)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(tn *identity.Tenant) bool {
			return tn.ID == provisioned && tn.Status == identity.TenantStatusActive
		})).Return(nil)

		resp, err := svc.Provision(context.Background(), ProvisionTenantRequest{Name: "Acme", Slug: "Acme-Support"})
		require.NoError(t, err)
		assert.Equal(t, "acme-support", resp.Slug)
		assert.Equal(t, "active", resp.Status)
		assert.Regexp(t, `^tenant_[0-9a-f]{8}_[0-9a-f]{4}_[0-9a-f]{4}_[0-9a-f]{4}_[0-9a-f]{12}$`, resp.Schema)
	})

	t.Run("taken slug", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t, nil)
		repo.On("SlugInUse", mock.Anything, "acme").Return(true, nil)

		_, err := svc.Provision(context.Background(), ProvisionTenantRequest{Name: "Acme", Slug: "acme"})
		assert.ErrorIs(t, err, identity.ErrSlugTaken)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("invalid slug never reaches storage", func(t *testing.T) {
		svc, _, _, _ := newTestService(t, nil)
		_, err := svc.Provision(context.Background(), ProvisionTenantRequest{Name: "Acme", Slug: "a b"})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_SLUG", domainErr.Code)
	})

	t.Run("failed registration drops the new schema", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		svc, repo, prov, _ := newTestService(t, zap.New(core))
		repo.On("SlugInUse", mock.Anything, "acme").Return(false, nil)
		prov.On("Provision", mock.Anything, mock.Anything).Return(nil)
		repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
		prov.On("Drop", mock.Anything, mock.Anything).Return(nil)

		_, err := svc.Provision(context.Background(), ProvisionTenantRequest{Name: "Acme", Slug: "acme"})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INTERNAL_ERROR", domainErr.Code)
		assert.Equal(t, 1, logs.FilterMessage("Failed to register tenant").Len())
	})

	t.Run("slug claimed concurrently", func(t *testing.T) {
		svc, repo, prov, _ := newTestService(t, nil)
		repo.On("SlugInUse", mock.Anything, "acme").Return(false, nil)
		prov.On("Provision", mock.Anything, mock.Anything).Return(nil)
		repo.On("Create", mock.Anything, mock.Anything).Return(identity.ErrSlugTaken)
		prov.On("Drop", mock.Anything, mock.Anything).Return(nil)

		_, err := svc.Provision(context.Background(), ProvisionTenantRequest{Name: "Acme", Slug: "acme"})
		assert.ErrorIs(t, err, identity.ErrSlugTaken)
	})

	t.Run("schema failure leaves the registry untouched", func(t *testing.T) {
		svc, repo, prov, _ := newTestService(t, nil)
		repo.On("SlugInUse", mock.Anything, "acme").Return(false, nil)
		prov.On("Provision", mock.Anything, mock.Anything).Return(errors.New("migration 3 failed"))

		_, err := svc.Provision(context.Background(), ProvisionTenantRequest{Name: "Acme", Slug: "acme"})
		assert.Error(t, err)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestTenantService_Authorize(t *testing.T) {
	t.Run("active tenant is cached", func(t *testing.T) {
		svc, repo, _, cache := newTestService(t, nil)
		tn := newTenant(t)
		repo.On("Get", mock.Anything, tn.ID).Return(tn, nil).Once()

		for i := 0; i < 3; i++ {
			got, err := svc.Authorize(context.Background(), tn.ID)
			require.NoError(t, err)
			assert.Equal(t, tn.ID, got.ID)
		}
		assert.Contains(t, cache, tn.ID)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t, nil)
		id := uuid.New()
		repo.On("Get", mock.Anything, id).Return(nil, shared.ErrNotFound)

		_, err := svc.Authorize(context.Background(), id)
		assert.ErrorIs(t, err, identity.ErrTenantNotFound)
	})

	t.Run("suspension takes effect immediately", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t, nil)
		tn := newTenant(t)
		repo.On("Get", mock.Anything, tn.ID).Return(tn, nil)
		repo.On("UpdateStatus", mock.Anything, tn).Return(nil)

		_, err := svc.Authorize(context.Background(), tn.ID)
		require.NoError(t, err)

		resp, err := svc.Suspend(context.Background(), tn.ID)
		require.NoError(t, err)
		assert.Equal(t, "suspended", resp.Status)

		_, err = svc.Authorize(context.Background(), tn.ID)
		assert.ErrorIs(t, err, identity.ErrTenantSuspended)
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})
}

func TestTenantService_List(t *testing.T) {
	svc, repo, _, _ := newTestService(t, nil)
	tn := newTenant(t)
	filter := TenantListFilter{Status: "active"}.ToSharedFilter()
	repo.On("List", mock.Anything, filter).Return([]identity.Tenant{*tn}, int64(41), nil)

	page, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(41), page.Total)
	assert.Equal(t, 3, page.TotalPages)
}
