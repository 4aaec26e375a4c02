package profile

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// DefaultCacheTTL bounds how long a resolved profile is served without
// re-reading the store.
const DefaultCacheTTL = 5 * time.Minute

// Clock supplies the current time to the cache.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type cacheEntry struct {
	profile *types.ResolvedProfile
	expires time.Time
}

// Cache is a read-through cache of resolved profiles. Entries are keyed by id
// and the cache generation; Invalidate and InvalidateAll bump the generation,
// so a resolution that started before an invalidation is never stored and
// later misses never join it. The store is not re-read for a version check:
// invalidation and the TTL are the only freshness mechanisms.
type Cache struct {
	resolver *Resolver
	ttl      time.Duration
	clock    Clock
	onLookup func(hit bool)

	mu      sync.Mutex
	entries map[string]cacheEntry
	gen     uint64
	group   singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock replaces the wall clock, typically with a fake in tests.
func WithClock(c Clock) CacheOption {
	return func(cache *Cache) { cache.clock = c }
}

// WithLookupObserver registers a callback invoked on every Get with whether
// it was served from the cache.
func WithLookupObserver(fn func(hit bool)) CacheOption {
	return func(cache *Cache) { cache.onLookup = fn }
}

// NewCache creates a cache in front of resolver. A non-positive ttl uses DefaultCacheTTL.
func NewCache(resolver *Resolver, ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &Cache{
		resolver: resolver,
		ttl:      ttl,
		clock:    systemClock{},
		entries:  make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the resolved profile for id, resolving through the store on a
// miss or after expiry. Errors are not cached.
func (c *Cache) Get(ctx context.Context, id string) (*types.ResolvedProfile, error) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if ok && c.clock.Now().Before(e.expires) {
		c.mu.Unlock()
		c.observe(true)
		return e.profile, nil
	}
	gen := c.gen
	c.mu.Unlock()
	c.observe(false)

	v, err, _ := c.group.Do(id+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		res, err := c.resolver.Resolve(ctx, id)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.entries[id] = cacheEntry{profile: res, expires: c.clock.Now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.ResolvedProfile), nil
}

// Invalidate drops id and every cached profile that inherits from it.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for key, e := range c.entries {
		if key == id || slices.Contains(e.profile.InheritanceChain, id) {
			delete(c.entries, key)
		}
	}
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	clear(c.entries)
}

// Len returns the number of cached entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) observe(hit bool) {
	if c.onLookup != nil {
		c.onLookup(hit)
	}
}
