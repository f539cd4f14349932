package suppliers

import (
	"context"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
)

// CachedRepository decorates a Repository with a read-through JSON cache.
// Supplier records are consulted on every purchase-order creation, so single
// lookups are cached; listings always hit the store.
type CachedRepository struct {
	inner Repository
	cache *cache.JSONCache
}

// NewCachedRepository wraps inner with the given cache. A nil cache is valid
// and simply forwards every call.
func NewCachedRepository(inner Repository, c *cache.JSONCache) *CachedRepository {
	return &CachedRepository{inner: inner, cache: c}
}

func cacheKey(code string) string {
	return fmt.Sprintf("masterdata:supplier:%s", code)
}

// Get returns the supplier, loading through the cache.
func (r *CachedRepository) Get(ctx context.Context, code string) (Supplier, error) {
	var s Supplier
	err := r.cache.Fetch(ctx, cacheKey(code), &s, func(ctx context.Context) (interface{}, error) {
		return r.inner.Get(ctx, code)
	})
	if err != nil {
		return Supplier{}, err
	}
	return s, nil
}

// List forwards to the inner repository.
func (r *CachedRepository) List(ctx context.Context) ([]Supplier, error) {
	return r.inner.List(ctx)
}
