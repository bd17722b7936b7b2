package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	locationapp "github.com/helpdesk/backend/internal/application/location"
	"github.com/helpdesk/backend/internal/domain/location"
	"github.com/helpdesk/backend/internal/domain/shared"
	"github.com/helpdesk/backend/internal/infrastructure/auth"
	"github.com/helpdesk/backend/internal/infrastructure/config"
	"github.com/helpdesk/backend/internal/interfaces/http/dto"
	"github.com/helpdesk/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryLocations keeps locations per tenant. Only the operations the
// handler tests reach are meaningful.
type memoryLocations struct {
	mu   sync.Mutex
	rows map[uuid.UUID]map[uuid.UUID]location.Location
}

func newMemoryLocations() *memoryLocations {
	return &memoryLocations{rows: map[uuid.UUID]map[uuid.UUID]location.Location{}}
}

func (m *memoryLocations) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*location.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, ok := m.rows[tenantID][id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &loc, nil
}

func (m *memoryLocations) FindAllForTenant(_ context.Context, tenantID uuid.UUID, _ shared.Filter) ([]location.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]location.Location, 0, len(m.rows[tenantID]))
	for _, loc := range m.rows[tenantID] {
		out = append(out, loc)
	}
	return out, nil
}

func (m *memoryLocations) CountForTenant(_ context.Context, tenantID uuid.UUID, _ shared.Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.rows[tenantID])), nil
}

func (m *memoryLocations) Create(_ context.Context, loc *location.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[loc.TenantID] == nil {
		m.rows[loc.TenantID] = map[uuid.UUID]location.Location{}
	}
	m.rows[loc.TenantID][loc.ID] = *loc
	return nil
}

func (m *memoryLocations) Update(ctx context.Context, tenantID, id uuid.UUID, _ shared.Patch) (*location.Location, error) {
	return m.FindByIDForTenant(ctx, tenantID, id)
}

func (m *memoryLocations) DeleteForTenant(_ context.Context, tenantID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[tenantID][id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.rows[tenantID], id)
	return nil
}

func (m *memoryLocations) IsAncestorOrSelf(_ context.Context, _, id, candidate uuid.UUID) (bool, error) {
	return id == candidate, nil
}

func (m *memoryLocations) FindChildren(context.Context, uuid.UUID, uuid.UUID) ([]location.Location, error) {
	return nil, nil
}

func (m *memoryLocations) FindAncestors(context.Context, uuid.UUID, uuid.UUID) ([]location.Location, error) {
	return nil, nil
}

func (m *memoryLocations) FindByStatus(context.Context, uuid.UUID, location.LocationStatus) ([]location.Location, error) {
	return nil, nil
}

func (m *memoryLocations) Stats(context.Context, uuid.UUID) (*location.Stats, error) {
	return &location.Stats{}, nil
}

type locationFixture struct {
	router *gin.Engine
	jwt    *auth.JWTService
}

func newLocationFixture(t *testing.T) *locationFixture {
	t.Helper()
	middleware.SetupValidator()

	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                "handler-test-secret-with-enough-bytes",
		Issuer:                "helpdesk-test",
		AccessTokenExpiration: time.Hour,
	})
	service := locationapp.NewLocationService(newMemoryLocations(), nil, zap.NewNop())
	h := NewLocationHandler(service)

	r := gin.New()
	api := r.Group("/api/v1", middleware.JWTAuthMiddleware(jwtService))
	api.GET("/locations", h.List)
	api.POST("/locations", h.Create)
	api.GET("/locations/:id", h.Get)
	api.PATCH("/locations/:id", h.Update)
	api.DELETE("/locations/:id", h.Delete)
	api.GET("/locations/:id/attachments/:fileName", h.DownloadAttachment)

	return &locationFixture{router: r, jwt: jwtService}
}

func (f *locationFixture) token(t *testing.T, tenantID uuid.UUID) string {
	t.Helper()
	token, _, err := f.jwt.Issue(auth.IssueInput{TenantID: tenantID, UserID: uuid.New()})
	require.NoError(t, err)
	return token
}

func (f *locationFixture) do(t *testing.T, method, path, token string, body any, headers ...string) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func dataID(t *testing.T, resp dto.Response) string {
	t.Helper()
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	id, ok := data["id"].(string)
	require.True(t, ok)
	return id
}

func TestLocationHandler_Lifecycle(t *testing.T) {
	f := newLocationFixture(t)
	token := f.token(t, uuid.New())

	w, resp := f.do(t, http.MethodPost, "/api/v1/locations", token, map[string]any{
		"name":         "Main office",
		"locationType": "point",
		"coordinates":  map[string]float64{"lat": 52.52, "lng": 13.405},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := dataID(t, resp)

	w, resp = f.do(t, http.MethodGet, "/api/v1/locations/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Main office", resp.Data.(map[string]any)["name"])

	w, _ = f.do(t, http.MethodDelete, "/api/v1/locations/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = f.do(t, http.MethodGet, "/api/v1/locations/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
}

func TestLocationHandler_TenantComesFromToken(t *testing.T) {
	f := newLocationFixture(t)
	owner, other := uuid.New(), uuid.New()

	w, resp := f.do(t, http.MethodPost, "/api/v1/locations", f.token(t, owner), map[string]any{
		"name":         "Depot",
		"locationType": "point",
		"coordinates":  map[string]float64{"lat": 1, "lng": 2},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := dataID(t, resp)

	// A forged tenant header does not widen the caller's view
	w, _ = f.do(t, http.MethodGet, "/api/v1/locations/"+id, f.token(t, other), nil, "X-Tenant-ID", owner.String())
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp = f.do(t, http.MethodGet, "/api/v1/locations", f.token(t, other), nil, "X-Tenant-ID", owner.String())
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(0), resp.Meta.Total)
}

func TestLocationHandler_RejectsBadInput(t *testing.T) {
	f := newLocationFixture(t)
	token := f.token(t, uuid.New())

	t.Run("unknown location type", func(t *testing.T) {
		w, resp := f.do(t, http.MethodPost, "/api/v1/locations", token, map[string]any{
			"name":         "X",
			"locationType": "volcano",
			"coordinates":  map[string]float64{"lat": 1, "lng": 2},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	})

	t.Run("coordinates do not fit the type", func(t *testing.T) {
		w, resp := f.do(t, http.MethodPost, "/api/v1/locations", token, map[string]any{
			"name":         "X",
			"locationType": "area",
			"coordinates":  map[string]float64{"lat": 1, "lng": 2},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "ERR_INVALID_COORDINATES", resp.Error.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w, resp := f.do(t, http.MethodGet, "/api/v1/locations/not-a-uuid", token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidInput, resp.Error.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		w, _ := f.do(t, http.MethodGet, "/api/v1/locations", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestLocationHandler_AttachmentsWithoutStorage(t *testing.T) {
	f := newLocationFixture(t)
	token := f.token(t, uuid.New())

	w, resp := f.do(t, http.MethodPost, "/api/v1/locations", token, map[string]any{
		"name":         "Warehouse",
		"locationType": "point",
		"coordinates":  map[string]float64{"lat": 1, "lng": 2},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := dataID(t, resp)

	w, resp = f.do(t, http.MethodGet, "/api/v1/locations/"+id+"/attachments/plan.pdf", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, dto.ErrCodeServiceUnavailable, resp.Error.Code)
}
