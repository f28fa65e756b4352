package store

import (
	"context"
	"sync"
	"time"
)

// TrialsCache holds the active trial list between store reads
type TrialsCache interface {
	// Get returns the cached trials, nil on a miss or after expiry
	Get() []*StoredTrial

	Set(trials []*StoredTrial)

	// Invalidate forces the next Get to miss
	Invalidate()

	IsValid() bool
}

// CacheConfig controls cache expiry. A zero TTL only invalidates on mutations.
type CacheConfig struct {
	TTL time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}

// InMemoryTrialsCache is a TrialsCache safe for concurrent use
type InMemoryTrialsCache struct {
	trials   []*StoredTrial
	cachedAt time.Time
	config   CacheConfig
	valid    bool
	now      func() time.Time
	mu       sync.RWMutex
}

func NewInMemoryTrialsCache(config CacheConfig) *InMemoryTrialsCache {
	return &InMemoryTrialsCache{config: config, now: time.Now}
}

func (c *InMemoryTrialsCache) Get() []*StoredTrial {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.fresh() {
		return nil
	}
	out := make([]*StoredTrial, len(c.trials))
	copy(out, c.trials)
	return out
}

func (c *InMemoryTrialsCache) Set(trials []*StoredTrial) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.trials = make([]*StoredTrial, len(trials))
	copy(c.trials, trials)
	c.cachedAt = c.now()
	c.valid = true
}

func (c *InMemoryTrialsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.valid = false
	c.trials = nil
}

func (c *InMemoryTrialsCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fresh()
}

// fresh must be called with mu held
func (c *InMemoryTrialsCache) fresh() bool {
	if !c.valid {
		return false
	}
	if c.config.TTL > 0 {
		return c.now().Sub(c.cachedAt) <= c.config.TTL
	}
	return true
}

// CachedStore serves ListActive from a cache and invalidates it on every
// successful mutation of the wrapped store.
type CachedStore struct {
	TrialStore
	cache TrialsCache
}

func NewCachedStore(s TrialStore, cache TrialsCache) *CachedStore {
	return &CachedStore{TrialStore: s, cache: cache}
}

func (s *CachedStore) ListActive(ctx context.Context) ([]*StoredTrial, error) {
	if trials := s.cache.Get(); trials != nil {
		return trials, nil
	}
	trials, err := s.TrialStore.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(trials)
	return trials, nil
}

func (s *CachedStore) Add(ctx context.Context, t *StoredTrial) error {
	if err := s.TrialStore.Add(ctx, t); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}

func (s *CachedStore) Update(ctx context.Context, t *StoredTrial) error {
	if err := s.TrialStore.Update(ctx, t); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}

func (s *CachedStore) Delete(ctx context.Context, id string) error {
	if err := s.TrialStore.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}
