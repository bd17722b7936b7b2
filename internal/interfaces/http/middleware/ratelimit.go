package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/helpdesk/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Quota is the outcome of taking one request from a fixed window
type Quota struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// Limiter counts requests per key in fixed windows
type Limiter interface {
	Take(ctx context.Context, key string) (Quota, error)
}

// MemoryLimiter is a fixed window Limiter kept in process memory. Each
// instance counts on its own, so it suits a single replica.
type MemoryLimiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int
	size     time.Duration
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

type window struct {
	count   int
	started time.Time
}

// NewMemoryLimiter creates a limiter allowing limit requests per size
func NewMemoryLimiter(limit int, size time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		size:    size,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go l.evict()
	return l
}

func (l *MemoryLimiter) evict() {
	ticker := time.NewTicker(l.size * 2)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
		}
		l.mu.Lock()
		now := l.now()
		for key, w := range l.windows {
			if now.Sub(w.started) > l.size*2 {
				delete(l.windows, key)
			}
		}
		l.mu.Unlock()
	}
}

// Stop ends the eviction goroutine
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Take implements Limiter
func (l *MemoryLimiter) Take(_ context.Context, key string) (Quota, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.started) >= l.size {
		w = &window{started: now}
		l.windows[key] = w
	}

	q := Quota{Limit: l.limit, ResetIn: l.size - now.Sub(w.started)}
	if w.count >= l.limit {
		return q, nil
	}
	w.count++
	q.Allowed = true
	q.Remaining = l.limit - w.count
	return q, nil
}

// TenantKey keys the limit by verified tenant, falling back to the client
// IP on unauthenticated routes
func TenantKey(c *gin.Context) string {
	if id := GetIdentity(c); id != nil {
		return "tenant:" + id.TenantID.String()
	}
	return "ip:" + c.ClientIP()
}

// RateLimit answers 429 once the key's window is exhausted. A failing
// limiter lets the request through; the error is logged.
func RateLimit(limiter Limiter, keyFunc func(*gin.Context) string, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		q, err := limiter.Take(c.Request.Context(), keyFunc(c))
		if err != nil {
			log.Warn("Rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(q.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
		if !q.Allowed {
			retry := int(q.ResetIn.Round(time.Second).Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			abortWithError(c, http.StatusTooManyRequests, dto.ErrCodeRateLimited,
				"Too many requests. Please try again later.")
			return
		}
		c.Next()
	}
}
