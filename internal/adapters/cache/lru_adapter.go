package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/zatekoja/clearlink/backend/internal/domain/providers"
)

// LRUAdapter is an in-process CacheProvider used when Redis is disabled.
// Entries expire after the TTL given at construction; the per-call expiration is ignored.
type LRUAdapter struct {
	cache *expirable.LRU[string, []byte]
}

// NewLRUAdapter creates a bounded in-process cache
func NewLRUAdapter(size int, ttl time.Duration) providers.CacheProvider {
	if size <= 0 {
		size = 1024
	}
	return &LRUAdapter{cache: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get retrieves a value from cache
func (a *LRUAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	value, ok := a.cache.Get(key)
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return value, nil
}

// Set stores a value in cache
func (a *LRUAdapter) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	a.cache.Add(key, value)
	return nil
}

// Delete removes values from cache
func (a *LRUAdapter) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		a.cache.Remove(k)
	}
	return nil
}
