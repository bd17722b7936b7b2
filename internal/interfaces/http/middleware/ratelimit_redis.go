package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed window Limiter shared by every replica. Each
// window is its own counter key, so no reset bookkeeping is needed.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	size   time.Duration
	now    func() time.Time
}

// NewRedisLimiter creates a limiter allowing limit requests per size
func NewRedisLimiter(client *redis.Client, prefix string, limit int, size time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, size: size, now: time.Now}
}

// Take implements Limiter
func (l *RedisLimiter) Take(ctx context.Context, key string) (Quota, error) {
	now := l.now()
	slot := now.UnixNano() / int64(l.size)
	counterKey := l.prefix + "ratelimit:" + key + ":" + strconv.FormatInt(slot, 10)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, counterKey)
		pipe.Expire(ctx, counterKey, l.size)
		return nil
	})
	if err != nil {
		return Quota{}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	count := int(incr.Val())
	q := Quota{
		Limit:   l.limit,
		ResetIn: time.Duration(int64(l.size) - now.UnixNano()%int64(l.size)),
	}
	if count > l.limit {
		return q, nil
	}
	q.Allowed = true
	q.Remaining = l.limit - count
	return q, nil
}
