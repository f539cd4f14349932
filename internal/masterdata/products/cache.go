package products

import (
	"context"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
)

// CachedRepository layers a read-through JSON cache over a Repository. Single
// product lookups happen on every quotation line, so those are cached;
// listings go straight to the store.
type CachedRepository struct {
	inner Repository
	cache *cache.JSONCache
}

// NewCachedRepository wraps inner. Passing a nil cache just forwards calls.
func NewCachedRepository(inner Repository, c *cache.JSONCache) *CachedRepository {
	return &CachedRepository{inner: inner, cache: c}
}

func cacheKey(code string) string {
	return fmt.Sprintf("masterdata:product:%s", code)
}

// Get returns the product, loading through the cache.
func (r *CachedRepository) Get(ctx context.Context, code string) (Product, error) {
	var p Product
	err := r.cache.Fetch(ctx, cacheKey(code), &p, func(ctx context.Context) (interface{}, error) {
		return r.inner.Get(ctx, code)
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// List forwards to the inner repository.
func (r *CachedRepository) List(ctx context.Context) ([]Product, error) {
	return r.inner.List(ctx)
}
