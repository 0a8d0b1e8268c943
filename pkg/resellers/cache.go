package resellers

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/guidepost/pkg/observability"
)

// CachedLookup fronts a Lookup with a TTL-bounded LRU keyed by slug and by id.
// Misses for unknown slugs are cached too, so scanning random slugs cannot
// hammer the database. Subscription writes made through this process call
// Invalidate for immediate effect. Writes from other processes, such as the
// nightly reconcile in guidepost-jobs, are seen once the entry's TTL expires.
type CachedLookup struct {
	next    Lookup
	bySlug  *lru.LRU[string, *Reseller]
	byID    *lru.LRU[string, *Reseller]
	metrics *observability.Metrics
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCachedLookup wraps next. size is the max entries per index.
func NewCachedLookup(next Lookup, size int, ttl time.Duration, metrics *observability.Metrics) *CachedLookup {
	if size < 16 {
		size = 16
	}
	return &CachedLookup{
		next:    next,
		bySlug:  lru.NewLRU[string, *Reseller](size, nil, ttl),
		byID:    lru.NewLRU[string, *Reseller](size, nil, ttl),
		metrics: metrics,
	}
}

// GetBySlug returns the cached reseller or loads it
func (c *CachedLookup) GetBySlug(ctx context.Context, slug string) (*Reseller, error) {
	if r, ok := c.bySlug.Get(slug); ok {
		c.recordHit()
		if r == nil {
			return nil, ErrNotFound
		}
		return r, nil
	}
	c.recordMiss()

	r, err := c.next.GetBySlug(ctx, slug)
	switch {
	case errors.Is(err, ErrNotFound):
		c.bySlug.Add(slug, nil)
		return nil, err
	case err != nil:
		return nil, err
	}
	c.store(r)
	return r, nil
}

// Get returns the cached reseller or loads it
func (c *CachedLookup) Get(ctx context.Context, id string) (*Reseller, error) {
	if r, ok := c.byID.Get(id); ok && r != nil {
		c.recordHit()
		return r, nil
	}
	c.recordMiss()

	r, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(r)
	return r, nil
}

// Invalidate drops a reseller from both indexes
func (c *CachedLookup) Invalidate(id string) {
	if r, ok := c.byID.Peek(id); ok && r != nil {
		c.bySlug.Remove(r.Slug)
	}
	c.byID.Remove(id)
}

// InvalidateSlug drops a slug entry, including a cached miss
func (c *CachedLookup) InvalidateSlug(slug string) {
	c.bySlug.Remove(slug)
}

// Stats returns hit and miss counts since construction
func (c *CachedLookup) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *CachedLookup) store(r *Reseller) {
	c.bySlug.Add(r.Slug, r)
	c.byID.Add(r.ID, r)
}

func (c *CachedLookup) recordHit() {
	c.hits.Add(1)
	c.metrics.RecordTenantCache(true)
}

func (c *CachedLookup) recordMiss() {
	c.misses.Add(1)
	c.metrics.RecordTenantCache(false)
}
