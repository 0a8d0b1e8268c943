package resellers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLookup struct {
	resellers map[string]*Reseller
	bySlug    int
	byID      int
	err       error
}

func (c *countingLookup) Get(_ context.Context, id string) (*Reseller, error) {
	c.byID++
	if c.err != nil {
		return nil, c.err
	}
	for _, r := range c.resellers {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

func (c *countingLookup) GetBySlug(_ context.Context, slug string) (*Reseller, error) {
	c.bySlug++
	if c.err != nil {
		return nil, c.err
	}
	if r, ok := c.resellers[slug]; ok {
		return r, nil
	}
	return nil, ErrNotFound
}

func TestCachedLookup_HitsAfterFirstLoad(t *testing.T) {
	next := &countingLookup{resellers: map[string]*Reseller{
		"golf-master-88": {ID: "r1", Slug: "golf-master-88"},
	}}
	cache := NewCachedLookup(next, 64, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r, err := cache.GetBySlug(ctx, "golf-master-88")
		require.NoError(t, err)
		assert.Equal(t, "r1", r.ID)
	}
	assert.Equal(t, 1, next.bySlug)

	r, err := cache.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "golf-master-88", r.Slug)
	assert.Equal(t, 0, next.byID)

	hits, misses := cache.Stats()
	assert.Equal(t, int64(3), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCachedLookup_CachesMisses(t *testing.T) {
	next := &countingLookup{resellers: map[string]*Reseller{}}
	cache := NewCachedLookup(next, 64, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := cache.GetBySlug(ctx, "nobody-here")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, 1, next.bySlug)

	next.resellers["nobody-here"] = &Reseller{ID: "r2", Slug: "nobody-here"}
	cache.InvalidateSlug("nobody-here")

	r, err := cache.GetBySlug(ctx, "nobody-here")
	require.NoError(t, err)
	assert.Equal(t, "r2", r.ID)
}

func TestCachedLookup_DoesNotCacheErrors(t *testing.T) {
	next := &countingLookup{err: errors.New("connection refused")}
	cache := NewCachedLookup(next, 64, time.Minute, nil)
	ctx := context.Background()

	_, err := cache.GetBySlug(ctx, "golf-master-88")
	require.Error(t, err)
	_, err = cache.GetBySlug(ctx, "golf-master-88")
	require.Error(t, err)
	assert.Equal(t, 2, next.bySlug)
}

func TestCachedLookup_Invalidate(t *testing.T) {
	next := &countingLookup{resellers: map[string]*Reseller{
		"golf-master-88": {ID: "r1", Slug: "golf-master-88"},
	}}
	cache := NewCachedLookup(next, 64, time.Minute, nil)
	ctx := context.Background()

	_, err := cache.GetBySlug(ctx, "golf-master-88")
	require.NoError(t, err)

	cache.Invalidate("r1")

	_, err = cache.GetBySlug(ctx, "golf-master-88")
	require.NoError(t, err)
	_, err = cache.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, next.bySlug)
}

func TestCachedLookup_ExternalWriteVisibleAfterTTL(t *testing.T) {
	next := &countingLookup{resellers: map[string]*Reseller{
		"golf-master-88": {ID: "r1", Slug: "golf-master-88", Status: StatusApproved},
	}}
	cache := NewCachedLookup(next, 64, 50*time.Millisecond, nil)
	ctx := context.Background()

	_, err := cache.GetBySlug(ctx, "golf-master-88")
	require.NoError(t, err)

	// A write by another process does not call Invalidate here.
	next.resellers["golf-master-88"] = &Reseller{ID: "r1", Slug: "golf-master-88", Status: StatusSuspended}
	r, err := cache.GetBySlug(ctx, "golf-master-88")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, r.Status)

	assert.Eventually(t, func() bool {
		r, err := cache.GetBySlug(ctx, "golf-master-88")
		return err == nil && r.Status == StatusSuspended
	}, time.Second, 10*time.Millisecond)
}
