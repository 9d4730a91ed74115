package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/model"
)

// Store is the parameter source the cache loads through.
type Store interface {
	ListParameters(ctx context.Context, category model.BudgetCategory) ([]model.Parameter, error)
}

type cacheEntry struct {
	snap     *Snapshot
	loadedAt time.Time
}

// Cache is a time-expiring in-process cache of parameter snapshots, one entry
// per category. Entries expire after the TTL even without an explicit
// invalidation, bounding staleness after out-of-band writes. A snapshot
// already handed to a calculator is never retroactively affected.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[model.BudgetCategory]cacheEntry
}

// NewCache creates a snapshot cache with the given TTL.
func NewCache(store Store, ttl time.Duration) *Cache {
	return &Cache{
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[model.BudgetCategory]cacheEntry),
	}
}

// Snapshot returns the cached snapshot for a category, loading it from the
// store when missing or expired. The load happens outside the lock so a slow
// load of one category does not block reads of another.
func (c *Cache) Snapshot(ctx context.Context, category model.BudgetCategory) (*Snapshot, error) {
	c.mu.Lock()
	entry, ok := c.entries[category]
	now := c.now()
	c.mu.Unlock()

	if ok && now.Sub(entry.loadedAt) < c.ttl {
		return entry.snap, nil
	}

	params, err := c.store.ListParameters(ctx, category)
	if err != nil {
		return nil, err
	}
	snap := NewSnapshot(category, params)

	c.mu.Lock()
	c.entries[category] = cacheEntry{snap: snap, loadedAt: c.now()}
	c.mu.Unlock()

	return snap, nil
}

// Invalidate drops every cached snapshot. Parameter writes call this for all
// categories because a bulk update may span categories silently.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[model.BudgetCategory]cacheEntry)
	c.mu.Unlock()
}
