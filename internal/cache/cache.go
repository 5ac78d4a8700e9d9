package cache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/yikai/QuorumGo/internal/models"
	"github.com/yikai/QuorumGo/internal/storage/sqlite"
)

// AnalysisCache memoizes consensus results under (symbol, context_hash) keys
// with a freshness window. Lookups are memory-only; every write goes through
// to the durable cache_entries table so the index survives a restart.
type AnalysisCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	store   *sqlite.Store
	ttl     time.Duration

	now func() time.Time
}

type entry struct {
	result    *models.ConsensusResult
	expiresAt time.Time
}

// Key builds the cache key for a symbol and context hash.
func Key(symbol, contextHash string) string {
	return fmt.Sprintf("%s-%s", symbol, contextHash)
}

func New(ctx context.Context, store *sqlite.Store, ttl time.Duration) (*AnalysisCache, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	c := &AnalysisCache{
		entries: make(map[string]*entry),
		store:   store,
		ttl:     ttl,
		now:     time.Now,
	}

	rows, err := store.LoadCacheEntries(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		c.entries[row.Key] = &entry{result: row.Result, expiresAt: row.ExpiresAt}
	}
	if len(rows) > 0 {
		log.Printf("analysis cache rebuilt with %d entries", len(rows))
	}
	return c, nil
}

// SetClock overrides the time source. Test hook.
func (c *AnalysisCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the cached result if it is still fresh. Expired entries behave
// exactly like misses and are deleted lazily.
func (c *AnalysisCache) Get(key string) (*models.ConsensusResult, bool) {
	c.mu.RLock()
	e, exists := c.entries[key]
	now := c.now()
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if now.Before(e.expiresAt) {
		return e.result, true
	}

	// Expired: drop the slot so the next Put can claim it.
	c.mu.Lock()
	if cur, ok := c.entries[key]; ok && !c.now().Before(cur.expiresAt) {
		delete(c.entries, key)
		if err := c.store.DeleteCacheEntry(context.Background(), key); err != nil {
			log.Printf("delete expired cache entry %s: %v", key, err)
		}
	}
	c.mu.Unlock()
	return nil, false
}

// Put writes a fresh entry after a miss. It only ever claims empty or expired
// slots; a live entry is left untouched (ForceInvalidate is the overwrite
// path). Returns whether the entry was stored.
func (c *AnalysisCache) Put(ctx context.Context, key string, result *models.ConsensusResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.entries[key]; ok && c.now().Before(cur.expiresAt) {
		return false
	}

	expiresAt := result.ComputedAt.Add(c.ttl)
	c.entries[key] = &entry{result: result, expiresAt: expiresAt}
	if err := c.store.UpsertCacheEntry(ctx, key, result, expiresAt); err != nil {
		log.Printf("persist cache entry %s: %v", key, err)
	}
	return true
}

// ForceInvalidate removes an entry regardless of freshness. Only a forced
// refresh uses this to overwrite a result still inside its window.
func (c *AnalysisCache) ForceInvalidate(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	if err := c.store.DeleteCacheEntry(ctx, key); err != nil {
		log.Printf("invalidate cache entry %s: %v", key, err)
	}
}

// Stats reports the live entry count, for the usage display.
func (c *AnalysisCache) Stats() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	now := c.now()
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}
