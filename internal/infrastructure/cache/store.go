// Package cache provides the read caches in front of tenant lookups and
// omnichannel settings. Redis is used when configured; otherwise an
// in-process store serves a single instance.
package cache

import (
	"context"
	"time"
)

// Store is a byte-oriented key/value cache with per-entry TTL.
// A miss is reported as (nil, false, nil).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
