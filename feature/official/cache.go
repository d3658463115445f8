package official

import (
	"context"
	"sync"
	"time"

	"card-sync/feature/matching"

	"golang.org/x/sync/singleflight"
)

// Catalog is a fetched official card list with its match index.
type Catalog struct {
	Records []Record
	Index   *matching.Index
	Built   time.Time
}

// IsExpired reports whether the catalog is older than ttl. A zero ttl disables reuse.
func (c *Catalog) IsExpired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return true
	}
	return now.Sub(c.Built) > ttl
}

// Cache keeps one official catalog per filter and rebuilds it after its TTL. Concurrent callers
// share a single fetch.
type Cache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	catalogs map[string]*Catalog
	sf       singleflight.Group
}

// NewCache wraps source with a TTL cache.
func NewCache(source Source, ttl time.Duration) *Cache {
	return &Cache{source: source, ttl: ttl, now: time.Now, catalogs: make(map[string]*Catalog)}
}

// Get returns the cached catalog for f, fetching it when missing or expired.
func (c *Cache) Get(ctx context.Context, f Filter) (*Catalog, error) {
	key := cacheKey(f)

	c.mu.RLock()
	cat, ok := c.catalogs[key]
	c.mu.RUnlock()
	if ok && !cat.IsExpired(c.ttl, c.now()) {
		return cat, nil
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		cat, ok := c.catalogs[key]
		c.mu.RUnlock()
		if ok && !cat.IsExpired(c.ttl, c.now()) {
			return cat, nil
		}

		records, err := c.source.Cards(ctx, f)
		if err != nil {
			return nil, err
		}
		entries := make([]matching.Entry, len(records))
		for i, r := range records {
			entries[i] = r.Entry()
		}
		cat = &Catalog{Records: records, Index: matching.NewIndex(entries), Built: c.now()}

		c.mu.Lock()
		c.catalogs[key] = cat
		c.mu.Unlock()
		return cat, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Catalog), nil
}

// Invalidate drops every cached catalog.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.catalogs = make(map[string]*Catalog)
	c.mu.Unlock()
}

func cacheKey(f Filter) string {
	return f.Language + "|" + f.Code + "|" + f.Text
}
