package changes

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"card-sync/core/batch"
	"card-sync/core/docstore"
	"card-sync/core/retry"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Config sizes the fingerprint cache and store read fan-out.
type Config struct {
	CacheSize       int           `mapstructure:"cache_size" default:"10000"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl" default:"1h"`
	LookupBatchSize int           `mapstructure:"lookup_batch_size" default:"10"`
}

// Entry is the stored fingerprint document.
type Entry struct {
	Hash      string    `json:"hash"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stats counts cache effectiveness.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

type lookup struct {
	hash  string
	found bool
}

// Detector compares fresh fingerprints with stored ones.
type Detector struct {
	store      docstore.Store
	collection string
	guard      retry.Guard
	cache      *expirable.LRU[string, string]
	batchSize  int
	group      singleflight.Group
	now        func() time.Time

	hits, misses atomic.Int64
}

// NewDetector builds a detector over the fingerprint documents stored in collection.
func NewDetector(store docstore.Store, collection string, cfg Config, guard retry.Guard) *Detector {
	if guard == nil {
		guard = retry.Direct
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 10000
	}
	if cfg.LookupBatchSize <= 0 {
		cfg.LookupBatchSize = 10
	}
	return &Detector{
		store:      store,
		collection: collection,
		guard:      guard,
		cache:      expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL),
		batchSize:  cfg.LookupBatchSize,
		now:        time.Now,
	}
}

// Collection returns the fingerprint collection name.
func (d *Detector) Collection() string {
	return d.collection
}

// ShouldUpdate reports whether id must be rewritten: forced, never seen, or fingerprint changed.
func (d *Detector) ShouldUpdate(ctx context.Context, id, fp string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	stored, found, err := d.stored(ctx, id)
	if err != nil {
		return false, err
	}
	return !found || stored != fp, nil
}

// ShouldUpdateMany is the batched form of ShouldUpdate. Cache misses are fetched in concurrent
// sub-batches of the configured lookup size.
func (d *Detector) ShouldUpdateMany(ctx context.Context, fps map[string]string, force bool) (map[string]bool, error) {
	out := make(map[string]bool, len(fps))
	if force {
		for id := range fps {
			out[id] = true
		}
		return out, nil
	}

	var misses []string
	for id, fp := range fps {
		if h, ok := d.cache.Get(id); ok {
			d.hits.Add(1)
			out[id] = h != fp
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}
	d.misses.Add(int64(len(misses)))
	sort.Strings(misses)

	stored, err := d.fetch(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, id := range misses {
		h, ok := stored[id]
		out[id] = !ok || h != fps[id]
	}
	return out, nil
}

// Remember records a committed fingerprint in the cache.
func (d *Detector) Remember(id, fp string) {
	d.cache.Add(id, fp)
}

// HashMutation builds the fingerprint write that must be committed with the record itself.
func (d *Detector) HashMutation(id, fp string) batch.Mutation {
	return batch.Set(d.collection, id, Entry{Hash: fp, UpdatedAt: d.now().UTC()})
}

// Stats returns cache hit and miss counts.
func (d *Detector) Stats() Stats {
	return Stats{Hits: d.hits.Load(), Misses: d.misses.Load()}
}

func (d *Detector) stored(ctx context.Context, id string) (string, bool, error) {
	if h, ok := d.cache.Get(id); ok {
		d.hits.Add(1)
		return h, true, nil
	}
	d.misses.Add(1)

	v, err, _ := d.group.Do(id, func() (interface{}, error) {
		var entry Entry
		found, err := retry.Do(ctx, d.guard, func(ctx context.Context) (bool, error) {
			return d.store.Get(ctx, d.collection, id, &entry)
		})
		if err != nil {
			return nil, fmt.Errorf("load fingerprint %s: %w", id, err)
		}
		if found {
			d.cache.Add(id, entry.Hash)
		}
		return lookup{hash: entry.Hash, found: found}, nil
	})
	if err != nil {
		return "", false, err
	}
	l := v.(lookup)
	return l.hash, l.found, nil
}

func (d *Detector) fetch(ctx context.Context, ids []string) (map[string]string, error) {
	var mu sync.Mutex
	result := make(map[string]string, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(ids); start += d.batchSize {
		chunk := ids[start:min(start+d.batchSize, len(ids))]
		g.Go(func() error {
			docs, err := retry.Do(gctx, d.guard, func(ctx context.Context) (map[string]docstore.Document, error) {
				return d.store.GetMany(ctx, d.collection, chunk)
			})
			if err != nil {
				return fmt.Errorf("load fingerprints: %w", err)
			}
			for id, doc := range docs {
				var entry Entry
				if err := doc.Decode(&entry); err != nil {
					return fmt.Errorf("decode fingerprint %s: %w", id, err)
				}
				d.cache.Add(id, entry.Hash)
				mu.Lock()
				result[id] = entry.Hash
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
