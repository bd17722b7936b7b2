package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func corsRouter(origins ...string) *gin.Engine {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = origins
	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/api/v1/locations", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func serve(r http.Handler, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/v1/locations", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		wantStatus  int
		wantOrigin  string
		wantCreds   bool
		wantMethods bool
	}{
		{
			name:       "no origins configured",
			method:     http.MethodGet,
			origin:     "https://desk.example.com",
			wantStatus: http.StatusOK,
		},
		{
			name:        "listed origin",
			allowed:     []string{"https://desk.example.com"},
			method:      http.MethodGet,
			origin:      "https://desk.example.com",
			wantStatus:  http.StatusOK,
			wantOrigin:  "https://desk.example.com",
			wantCreds:   true,
			wantMethods: true,
		},
		{
			name:       "unlisted origin",
			allowed:    []string{"https://desk.example.com"},
			method:     http.MethodGet,
			origin:     "https://evil.example.com",
			wantStatus: http.StatusOK,
		},
		{
			name:        "wildcard never allows credentials",
			allowed:     []string{"*"},
			method:      http.MethodGet,
			origin:      "https://any.example.com",
			wantStatus:  http.StatusOK,
			wantOrigin:  "*",
			wantMethods: true,
		},
		{
			name:        "listed origin wins over wildcard",
			allowed:     []string{"*", "https://desk.example.com"},
			method:      http.MethodGet,
			origin:      "https://desk.example.com",
			wantStatus:  http.StatusOK,
			wantOrigin:  "https://desk.example.com",
			wantCreds:   true,
			wantMethods: true,
		},
		{
			name:        "preflight from listed origin",
			allowed:     []string{"https://desk.example.com"},
			method:      http.MethodOptions,
			origin:      "https://desk.example.com",
			wantStatus:  http.StatusNoContent,
			wantOrigin:  "https://desk.example.com",
			wantCreds:   true,
			wantMethods: true,
		},
		{
			name:       "preflight from unlisted origin",
			allowed:    []string{"https://desk.example.com"},
			method:     http.MethodOptions,
			origin:     "https://evil.example.com",
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "same-origin request",
			allowed:    []string{"https://desk.example.com"},
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(corsRouter(tt.allowed...), tt.method, tt.origin)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantCreds {
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
			}
			if tt.wantMethods {
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
				assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Methods"))
			}
		})
	}
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig()

	assert.Empty(t, cfg.AllowOrigins)
	assert.Contains(t, cfg.AllowHeaders, "Authorization")
	assert.Contains(t, cfg.ExposeHeaders, RequestIDHeader)
	assert.NotContains(t, cfg.AllowHeaders, "X-Tenant-ID")
}

func TestAPISecurityHeaders(t *testing.T) {
	run := func(hsts time.Duration) http.Header {
		r := gin.New()
		r.Use(APISecurityHeaders(hsts))
		r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		return w.Header()
	}

	t.Run("without hsts", func(t *testing.T) {
		h := run(0)
		assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
		assert.Equal(t, "no-store", h.Get("Cache-Control"))
		assert.Contains(t, h.Get("Content-Security-Policy"), "default-src 'none'")
		assert.Empty(t, h.Get("Strict-Transport-Security"))
	})

	t.Run("with hsts", func(t *testing.T) {
		h := run(365 * 24 * time.Hour)
		assert.Equal(t, "max-age=31536000; includeSubDomains", h.Get("Strict-Transport-Security"))
	})
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	t.Run("generates request ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, w.Header().Get(RequestIDHeader), 32)
		assert.Equal(t, w.Header().Get(RequestIDHeader), w.Body.String())
	})

	t.Run("keeps client request ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, "ticket-4711")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "ticket-4711", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "ticket-4711", w.Body.String())
	})

	t.Run("replaces oversized request ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("a", MaxRequestIDLength+1))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Len(t, w.Header().Get(RequestIDHeader), 32)
	})
}

func TestGenerateRequestID(t *testing.T) {
	assert.NotEqual(t, generateRequestID(), generateRequestID())
}

func TestTimeout(t *testing.T) {
	t.Run("sets deadline", func(t *testing.T) {
		router := gin.New()
		router.Use(Timeout(30 * time.Second))
		router.GET("/test", func(c *gin.Context) {
			deadline, ok := c.Request.Context().Deadline()
			assert.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(30*time.Second), deadline, 5*time.Second)
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("zero disables", func(t *testing.T) {
		router := gin.New()
		router.Use(Timeout(0))
		router.GET("/test", func(c *gin.Context) {
			_, ok := c.Request.Context().Deadline()
			assert.False(t, ok)
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
