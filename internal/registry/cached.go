package registry

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCatalogCacheSize is the default number of catalog entries to cache per type.
const DefaultCatalogCacheSize = 1024

// CachedCatalog wraps a Catalog with LRU caches for case types and statuses.
// Catalog entries change rarely while every case conversion reads them.
type CachedCatalog struct {
	inner     Catalog
	caseTypes *lru.Cache[string, *CaseType]
	statuses  *lru.Cache[string, *Status]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedCatalog creates a caching catalog. size <= 0 uses DefaultCatalogCacheSize.
func NewCachedCatalog(inner Catalog, size int) *CachedCatalog {
	if size <= 0 {
		size = DefaultCatalogCacheSize
	}
	// lru.New only fails for non-positive sizes.
	caseTypes, _ := lru.New[string, *CaseType](size)
	statuses, _ := lru.New[string, *Status](size)

	return &CachedCatalog{
		inner:     inner,
		caseTypes: caseTypes,
		statuses:  statuses,
	}
}

// CaseType implements Catalog.
func (c *CachedCatalog) CaseType(ctx context.Context, id string) (*CaseType, error) {
	if ct, ok := c.caseTypes.Get(id); ok {
		c.hits.Add(1)
		return ct, nil
	}
	c.misses.Add(1)

	ct, err := c.inner.CaseType(ctx, id)
	if err != nil {
		return nil, err
	}
	c.caseTypes.Add(id, ct)
	return ct, nil
}

// Status implements Catalog.
func (c *CachedCatalog) Status(ctx context.Context, id string) (*Status, error) {
	if st, ok := c.statuses.Get(id); ok {
		c.hits.Add(1)
		return st, nil
	}
	c.misses.Add(1)

	st, err := c.inner.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	c.statuses.Add(id, st)
	return st, nil
}

// Purge drops every cached entry, e.g. after the backing registry reloaded.
func (c *CachedCatalog) Purge() {
	c.caseTypes.Purge()
	c.statuses.Purge()
}

// Stats returns cache hit and miss counts.
func (c *CachedCatalog) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

var _ Catalog = (*CachedCatalog)(nil)
