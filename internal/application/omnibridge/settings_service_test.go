package omnibridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/domain/omnibridge"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/infrastructure/crypto"
	"github.com/helpdesk/backend/internal/infrastructure/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockSettingsRepository is a mock implementation of SettingsRepository.
// Update runs mutate against the configured row the way the real
// transaction does.
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) GetOrCreate(ctx context.Context, tenantID uuid.UUID, defaults *omnibridge.Settings) (*omnibridge.Settings, bool, error) {
	args := m.Called(ctx, tenantID, defaults)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*omnibridge.Settings), args.Bool(1), args.Error(2)
}

func (m *MockSettingsRepository) Update(ctx context.Context, tenantID uuid.UUID, defaults *omnibridge.Settings, mutate func(*omnibridge.Settings) error) (*omnibridge.Settings, error) {
	args := m.Called(ctx, tenantID, defaults, mutate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	row := args.Get(0).(*omnibridge.Settings)
	if err := mutate(row); err != nil {
		return nil, err
	}
	return row, args.Error(1)
}

func (m *MockSettingsRepository) Delete(ctx context.Context, tenantID uuid.UUID) error {
	return m.Called(ctx, tenantID).Error(0)
}

// memoryCache is a map backed SettingsCache
type memoryCache struct {
	mu          sync.Mutex
	entries     map[uuid.UUID]*omnibridge.Settings
	invalidated int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[uuid.UUID]*omnibridge.Settings{}}
}

func (c *memoryCache) Get(_ context.Context, tenantID uuid.UUID) (*omnibridge.Settings, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[tenantID]
	return s, ok
}

func (c *memoryCache) Set(_ context.Context, s *omnibridge.Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[s.TenantID] = s
}

func (c *memoryCache) Invalidate(_ context.Context, tenantID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tenantID)
	c.invalidated++
	return nil
}

var testTenantID = uuid.MustParse("3f2a8c1e-4b7d-4e2f-9a1c-5d6e7f8a9b0c")

func testSealer() *crypto.SecretBoxSealer {
	var key [32]byte
	copy(key[:], "0123456789abcdef0123456789abcdef")
	return crypto.NewSecretBoxSealer(key)
}

type fixture struct {
	svc      *SettingsService
	repo     *MockSettingsRepository
	cache    *memoryCache
	registry *prometheus.Registry
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := new(MockSettingsRepository)
	t.Cleanup(func() { repo.AssertExpectations(t) })

	reg := prometheus.NewRegistry()
	bm, err := telemetry.NewBusinessMetrics(reg)
	require.NoError(t, err)

	cache := newMemoryCache()
	svc := NewSettingsService(repo, testSealer(), cache, zap.NewNop())
	svc.SetBusinessMetrics(bm)
	return fixture{svc: svc, repo: repo, cache: cache, registry: reg}
}

func decodeUpdate(t *testing.T, body string) UpdateSettingsRequest {
	t.Helper()
	var req UpdateSettingsRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return req
}

func assertLazyCreated(t *testing.T, reg *prometheus.Registry, n int) {
	t.Helper()
	expected := fmt.Sprintf(`
# HELP helpdesk_omnibridge_settings_lazy_created_total Default OmniBridge settings rows created on first access
# TYPE helpdesk_omnibridge_settings_lazy_created_total counter
helpdesk_omnibridge_settings_lazy_created_total %d
`, n)
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"helpdesk_omnibridge_settings_lazy_created_total"))
}

func TestSettingsService_Get(t *testing.T) {
	t.Run("first read creates defaults once and fills the cache", func(t *testing.T) {
		f := newFixture(t)
		defaults := omnibridge.DefaultSettings(testTenantID)
		f.repo.On("GetOrCreate", mock.Anything, testTenantID, mock.AnythingOfType("*omnibridge.Settings")).
			Return(defaults, true, nil).Once()

		first, err := f.svc.Get(context.Background(), testTenantID)
		require.NoError(t, err)
		second, err := f.svc.Get(context.Background(), testTenantID)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, "all", first.Search.DefaultChannel)
		assert.False(t, first.Channels.Email.Password.Configured)
		assert.NotNil(t, first.Filters.BlockedSenders)

		assertLazyCreated(t, f.registry, 1)
	})

	t.Run("existing row is not counted as created", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetOrCreate", mock.Anything, testTenantID, mock.Anything).
			Return(omnibridge.DefaultSettings(testTenantID), false, nil)

		_, err := f.svc.Get(context.Background(), testTenantID)
		require.NoError(t, err)
		assertLazyCreated(t, f.registry, 0)
	})

	t.Run("repository failure is opaque", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("GetOrCreate", mock.Anything, testTenantID, mock.Anything).
			Return(nil, false, errors.New("connection refused"))

		_, err := f.svc.Get(context.Background(), testTenantID)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INTERNAL_ERROR", domainErr.Code)
		assert.NotContains(t, domainErr.Message, "connection refused")
	})

	t.Run("read overtaken by a reset does not refill the cache", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		stale := omnibridge.DefaultSettings(testTenantID)
		stale.Search.ResultsPerPage = 99

		f.repo.On("Delete", mock.Anything, testTenantID).Return(nil).Once()
		f.repo.On("GetOrCreate", mock.Anything, testTenantID, mock.Anything).
			Run(func(mock.Arguments) {
				// the row is gone by the time the stale read returns
				require.NoError(t, f.svc.Reset(ctx, testTenantID))
			}).
			Return(stale, false, nil).Once()
		f.repo.On("GetOrCreate", mock.Anything, testTenantID, mock.Anything).
			Return(omnibridge.DefaultSettings(testTenantID), true, nil).Once()

		first, err := f.svc.Get(ctx, testTenantID)
		require.NoError(t, err)
		assert.Equal(t, 99, first.Search.ResultsPerPage)
		_, cached := f.cache.Get(ctx, testTenantID)
		assert.False(t, cached)

		second, err := f.svc.Get(ctx, testTenantID)
		require.NoError(t, err)
		assert.Equal(t, omnibridge.DefaultSettings(testTenantID).Search.ResultsPerPage, second.Search.ResultsPerPage)
		_, cached = f.cache.Get(ctx, testTenantID)
		assert.True(t, cached)
	})
}

func TestSettingsService_Update(t *testing.T) {
	userID := uuid.New()

	t.Run("replace seals the secret and masks it on the way out", func(t *testing.T) {
		f := newFixture(t)
		row := omnibridge.DefaultSettings(testTenantID)
		f.cache.Set(context.Background(), row)
		f.repo.On("Update", mock.Anything, testTenantID, mock.Anything, mock.Anything).Return(row, nil)

		resp, err := f.svc.Update(context.Background(), testTenantID, &userID, decodeUpdate(t, `{
			"channels": {"telegram": {"enabled": true, "botUsername": "acme_bot",
				"botToken": {"action": "replace", "value": "123456:ABCDEF-tail"}}}
		}`))
		require.NoError(t, err)

		assert.True(t, resp.Channels.Telegram.BotToken.Configured)
		assert.Equal(t, "••••tail", resp.Channels.Telegram.BotToken.Hint)
		assert.Equal(t, "acme_bot", resp.Channels.Telegram.BotUsername)
		assert.Equal(t, &userID, resp.UpdatedBy)

		assert.NotContains(t, row.Channels.Telegram.BotToken.Ciphertext, "ABCDEF")
		out, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.NotContains(t, string(out), "123456:ABCDEF-tail")

		_, cached := f.cache.Get(context.Background(), testTenantID)
		assert.False(t, cached)
		assert.Equal(t, 1, f.cache.invalidated)
	})

	t.Run("absent secret keeps the stored value", func(t *testing.T) {
		f := newFixture(t)
		row := omnibridge.DefaultSettings(testTenantID)
		row.Channels.Email.Password = omnibridge.Secret{Ciphertext: "sealed", Hint: "••••word"}
		f.repo.On("Update", mock.Anything, testTenantID, mock.Anything, mock.Anything).Return(row, nil)

		resp, err := f.svc.Update(context.Background(), testTenantID, nil, decodeUpdate(t, `{
			"channels": {"email": {"username": "desk@example.com", "password": null}},
			"search": {"resultsPerPage": 50}
		}`))
		require.NoError(t, err)
		assert.Equal(t, "sealed", row.Channels.Email.Password.Ciphertext)
		assert.Equal(t, "••••word", resp.Channels.Email.Password.Hint)
		assert.Equal(t, 50, resp.Search.ResultsPerPage)
		assert.Equal(t, 30, resp.Filters.AutoArchiveDays)
	})

	t.Run("domain validation failure passes through", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("Update", mock.Anything, testTenantID, mock.Anything, mock.Anything).
			Return(omnibridge.DefaultSettings(testTenantID), nil)

		_, err := f.svc.Update(context.Background(), testTenantID, nil, decodeUpdate(t, `{
			"channels": {"email": {"enabled": true}}
		}`))
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		assert.Zero(t, f.cache.invalidated)
	})
}

func TestSettingsService_Reset(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Delete", mock.Anything, testTenantID).Return(shared.ErrNotFound).Once()
	f.repo.On("Delete", mock.Anything, testTenantID).Return(errors.New("boom")).Once()

	require.NoError(t, f.svc.Reset(context.Background(), testTenantID))
	assert.Equal(t, 1, f.cache.invalidated)

	err := f.svc.Reset(context.Background(), testTenantID)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INTERNAL_ERROR", domainErr.Code)
}

func TestSettingsService_Credentials(t *testing.T) {
	f := newFixture(t)
	sealer := testSealer()
	row := omnibridge.DefaultSettings(testTenantID)
	require.NoError(t, row.Apply(omnibridge.SettingsPatch{
		Channels: &omnibridge.ChannelsPatch{
			WhatsApp: &omnibridge.WhatsAppPatch{AccessToken: omnibridge.Replace{Value: "EAAG-token-9876"}},
		},
	}, nil, sealer))
	f.cache.Set(context.Background(), row)

	token, err := f.svc.credentials(context.Background(), testTenantID, "whatsapp")
	require.NoError(t, err)
	assert.Equal(t, "EAAG-token-9876", token)

	token, err = f.svc.credentials(context.Background(), testTenantID, "telegram")
	require.NoError(t, err)
	assert.Empty(t, token)

	_, err = f.svc.credentials(context.Background(), testTenantID, "fax")
	assert.Error(t, err)
}

func TestSecretField_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    omnibridge.SecretUpdate
		wantErr bool
	}{
		{name: "absent", body: `{}`, want: nil},
		{name: "null", body: `{"password":null}`, want: omnibridge.Unchanged{}},
		{name: "unchanged", body: `{"password":{"action":"unchanged"}}`, want: omnibridge.Unchanged{}},
		{name: "replace", body: `{"password":{"action":"replace","value":"s3cret!!"}}`, want: omnibridge.Replace{Value: "s3cret!!"}},
		{name: "replace with empty clears", body: `{"password":{"action":"replace","value":""}}`, want: omnibridge.Replace{}},
		{name: "replace without value", body: `{"password":{"action":"replace"}}`, wantErr: true},
		{name: "unknown action", body: `{"password":{"action":"keep"}}`, wantErr: true},
		{name: "bare string", body: `{"password":"••••••••"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req EmailRequest
			err := json.Unmarshal([]byte(tt.body), &req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Password.Update())
		})
	}
}
