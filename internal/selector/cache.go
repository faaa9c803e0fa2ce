// internal/selector/cache.go
package selector

import (
	"context"
	"sync"
	"time"

	"github.com/valpere/FeedScrapexter/internal/utils"
)

// DefaultCacheTTL is the validity window of a cached query.
const DefaultCacheTTL = 24 * time.Hour

// CacheEntry is a query confirmed to match at SavedAt.
type CacheEntry struct {
	Query   string    `json:"query"`
	SavedAt time.Time `json:"savedAt"`
}

// Store is the persistent key-value collaborator behind the cache.
// Get reports found=false for absent keys; errors are reserved for I/O failures.
type Store interface {
	Get(ctx context.Context, key string) (CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry CacheEntry) error
}

// Cache applies the validity window on top of a Store. Expired entries are
// treated as misses and left in place.
type Cache struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger utils.Logger
}

// NewCache wraps store with the given TTL (DefaultCacheTTL when ttl <= 0).
func NewCache(store Store, ttl time.Duration, logger utils.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Cache{store: store, ttl: ttl, now: time.Now, logger: logger}
}

// Lookup returns a valid entry for the key. Store errors are logged and reported as a miss.
func (c *Cache) Lookup(ctx context.Context, pageType PageType, target Target) (CacheEntry, bool) {
	key := CacheKey(pageType, target)
	entry, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.WithField("key", key).Warnf("selector cache read failed: %v", err)
		return CacheEntry{}, false
	}
	if !found || entry.Query == "" {
		return CacheEntry{}, false
	}
	if c.now().Sub(entry.SavedAt) >= c.ttl {
		return CacheEntry{}, false
	}
	return entry, true
}

// Save records a query that was just confirmed to match.
func (c *Cache) Save(ctx context.Context, pageType PageType, target Target, query string) error {
	key := CacheKey(pageType, target)
	err := c.store.Set(ctx, key, CacheEntry{Query: query, SavedAt: c.now()})
	if err != nil {
		c.logger.WithField("key", key).Warnf("selector cache write failed: %v", err)
	}
	return err
}

// TTL returns the validity window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// MemoryStore is an in-process Store, used when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]CacheEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (CacheEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, entry CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

// Reset removes every entry.
func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]CacheEntry)
	return nil
}

// Len returns the number of stored entries, valid or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
