// Package cache holds the time-bounded response cache that fronts the
// metadata provider.
package cache

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"jine-api-go/events"
	"jine-api-go/logcolors"
	"jine-api-go/stats"
	"jine-api-go/utils"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long an entry stays fresh when no TTL is configured
const DefaultTTL = 10 * time.Minute

// Loader produces the payload for a key on a cache miss
type Loader func(ctx context.Context) ([]byte, error)

// CacheEntry is a stored payload and the time it was stored
type CacheEntry struct {
	Key      string    `json:"key"`
	Value    []byte    `json:"value"`
	StoredAt time.Time `json:"storedAt"`
}

// CacheStats describes the cache contents. Keys are in insertion order.
type CacheStats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

// FetchError is returned when the loader for a key fails. Nothing is
// stored for the key in that case.
type FetchError struct {
	Key string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type entry struct {
	value      []byte
	compressed bool
	storedAt   time.Time
	ttl        time.Duration
	seq        uint64
}

// flight is what a single-flight load hands to every caller sharing it
type flight struct {
	value []byte
	hit   bool
}

// ResponseCache maps request keys to payloads with a time-to-live. Expired
// entries are removed by the read that finds them.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextSeq uint64

	ttl          time.Duration
	now          func() time.Time
	compress     bool
	singleFlight bool
	group        singleflight.Group

	stats *stats.Stats
	bus   *events.Bus
}

// Option configures a ResponseCache
type Option func(*ResponseCache)

// WithTTL sets the default time-to-live. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *ResponseCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCompression stores payloads zstd-compressed
func WithCompression(enabled bool) Option {
	return func(c *ResponseCache) {
		c.compress = enabled
	}
}

// WithSingleFlight collapses concurrent misses for the same key onto one
// loader call
func WithSingleFlight(enabled bool) Option {
	return func(c *ResponseCache) {
		c.singleFlight = enabled
	}
}

// WithStats records hits, misses and load failures into s
func WithStats(s *stats.Stats) Option {
	return func(c *ResponseCache) {
		c.stats = s
	}
}

// WithEvents publishes invalidations on bus
func WithEvents(bus *events.Bus) Option {
	return func(c *ResponseCache) {
		c.bus = bus
	}
}

// New creates an empty cache
func New(opts ...Option) *ResponseCache {
	c := &ResponseCache{
		entries: make(map[string]*entry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the default time-to-live
func (c *ResponseCache) TTL() time.Duration {
	return c.ttl
}

// Fetch returns the cached payload for key, or calls loader and stores its
// result, using the default TTL
func (c *ResponseCache) Fetch(ctx context.Context, key string, loader Loader) ([]byte, error) {
	value, _, err := c.fetch(ctx, key, loader, c.ttl)
	return value, err
}

// FetchHit is Fetch that also reports whether the payload came from the
// cache. A caller that shared another caller's load gets hit == false.
func (c *ResponseCache) FetchHit(ctx context.Context, key string, loader Loader) ([]byte, bool, error) {
	return c.fetch(ctx, key, loader, c.ttl)
}

// FetchTTL is Fetch with an explicit TTL for the stored entry. A
// non-positive ttl means the default.
func (c *ResponseCache) FetchTTL(ctx context.Context, key string, loader Loader, ttl time.Duration) ([]byte, error) {
	value, _, err := c.fetch(ctx, key, loader, ttl)
	return value, err
}

func (c *ResponseCache) fetch(ctx context.Context, key string, loader Loader, ttl time.Duration) ([]byte, bool, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	if value, ok := c.lookup(key); ok {
		log.Debugf("%s %s", logcolors.LogCacheHit, key)
		if c.stats != nil {
			c.stats.RecordCacheHit()
		}
		return value, true, nil
	}

	log.Debugf("%s %s", logcolors.LogCacheMiss, key)
	if c.stats != nil {
		c.stats.RecordCacheMiss()
	}

	if !c.singleFlight {
		value, err := c.load(ctx, key, loader, ttl)
		return value, false, err
	}

	// The shared load is detached from whichever caller started it. Each
	// caller stops waiting when its own context ends.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// A flight that finished just before this one may already have
		// stored the key.
		if value, ok := c.lookup(key); ok {
			return flight{value: value, hit: true}, nil
		}
		value, err := c.load(loadCtx, key, loader, ttl)
		if err != nil {
			return nil, err
		}
		return flight{value: value}, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			log.Debugf("%s Shared in-flight load for %s", logcolors.LogSingleFlight, key)
			if c.stats != nil {
				c.stats.RecordSingleFlightShared()
			}
		}
		if res.Err != nil {
			return nil, false, res.Err
		}
		f := res.Val.(flight)
		return bytes.Clone(f.value), f.hit, nil
	case <-ctx.Done():
		return nil, false, &FetchError{Key: key, Err: ctx.Err()}
	}
}

// Peek returns a fresh entry for key without loading. An expired entry is
// removed.
func (c *ResponseCache) Peek(key string) ([]byte, bool) {
	return c.lookup(key)
}

// Invalidate removes the given keys, or every entry when no key is given
func (c *ResponseCache) Invalidate(keys ...string) {
	c.mu.Lock()
	if len(keys) == 0 {
		n := len(c.entries)
		c.entries = make(map[string]*entry)
		c.mu.Unlock()
		log.Infof("%s Cleared %d entries", logcolors.LogCacheInvalidate, n)
	} else {
		for _, key := range keys {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		log.Infof("%s Removed %v", logcolors.LogCacheInvalidate, keys)
	}

	if c.stats != nil {
		c.stats.RecordCacheInvalidation()
	}
	c.bus.PublishCacheInvalidated(keys)
}

// Stats reports the number of stored entries and their keys in insertion
// order. Entries that expired but were not read yet are still counted.
func (c *ResponseCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].seq < c.entries[keys[j]].seq
	})
	return CacheStats{Size: len(keys), Keys: keys}
}

// Range calls fn for each stored entry in insertion order until fn returns
// false. Values are decompressed.
func (c *ResponseCache) Range(fn func(CacheEntry) bool) {
	for _, key := range c.Stats().Keys {
		c.mu.Lock()
		e, ok := c.entries[key]
		c.mu.Unlock()
		if !ok {
			continue
		}
		value, err := c.decode(e)
		if err != nil {
			log.Warnf("%s Skipping undecodable entry %s: %v", logcolors.LogCache, key, err)
			continue
		}
		if !fn(CacheEntry{Key: key, Value: value, StoredAt: e.storedAt}) {
			return
		}
	}
}

// SizeInBytes returns the stored (possibly compressed) payload size
func (c *ResponseCache) SizeInBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for key, e := range c.entries {
		total += int64(len(key) + len(e.value))
	}
	return total
}

func (c *ResponseCache) lookup(key string) ([]byte, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= e.ttl {
		delete(c.entries, key)
		c.mu.Unlock()
		log.Debugf("%s %s", logcolors.LogCacheExpired, key)
		return nil, false
	}
	c.mu.Unlock()

	value, err := c.decode(e)
	if err != nil {
		log.Warnf("%s Dropping undecodable entry %s: %v", logcolors.LogCache, key, err)
		c.mu.Lock()
		if c.entries[key] == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return value, true
}

func (c *ResponseCache) load(ctx context.Context, key string, loader Loader, ttl time.Duration) ([]byte, error) {
	value, err := loader(ctx)
	if err != nil {
		if c.stats != nil {
			c.stats.RecordCacheLoadFailure()
		}
		log.Warnf("%s Load failed for %s, not caching: %v", logcolors.LogCache, key, err)
		return nil, &FetchError{Key: key, Err: err}
	}
	c.store(key, value, ttl)
	return value, nil
}

func (c *ResponseCache) store(key string, value []byte, ttl time.Duration) {
	e := &entry{value: bytes.Clone(value), storedAt: c.now(), ttl: ttl}
	if c.compress {
		compressed, err := utils.Compress(value)
		if err != nil {
			log.Warnf("%s Compression failed for %s, storing raw: %v", logcolors.LogCache, key, err)
		} else {
			e.value = compressed
			e.compressed = true
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.entries[key]; ok {
		e.seq = prev.seq
	} else {
		c.nextSeq++
		e.seq = c.nextSeq
	}
	c.entries[key] = e
}

func (c *ResponseCache) decode(e *entry) ([]byte, error) {
	if !e.compressed {
		return bytes.Clone(e.value), nil
	}
	return utils.Decompress(e.value)
}
