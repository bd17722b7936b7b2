package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/helpdesk/backend/internal/infrastructure/cache"
)

// TokenBlacklist revokes access tokens by JTI before they expire
type TokenBlacklist interface {
	// Revoke blacklists jti for ttl, the token's remaining lifetime
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// StoreTokenBlacklist keeps revocations in a cache store. Entries expire
// with the token, so the store never holds a revocation that matters to
// nobody. On Redis a revoke is seen by every replica.
type StoreTokenBlacklist struct {
	store  cache.Store
	prefix string
}

var _ TokenBlacklist = (*StoreTokenBlacklist)(nil)

func NewStoreTokenBlacklist(store cache.Store, keyPrefix string) *StoreTokenBlacklist {
	return &StoreTokenBlacklist{store: store, prefix: keyPrefix + "jwt:revoked:"}
}

// NewInMemoryTokenBlacklist is a process local blacklist for single
// instance setups and tests
func NewInMemoryTokenBlacklist() *StoreTokenBlacklist {
	return NewStoreTokenBlacklist(cache.NewInMemoryStore(), "")
}

// Revoke ignores tokens that already expired
func (b *StoreTokenBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := b.store.Set(ctx, b.prefix+jti, []byte{1}, ttl); err != nil {
		return fmt.Errorf("revoke token %s: %w", jti, err)
	}
	return nil
}

func (b *StoreTokenBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, found, err := b.store.Get(ctx, b.prefix+jti)
	if err != nil {
		return false, fmt.Errorf("look up revoked token: %w", err)
	}
	return found, nil
}
