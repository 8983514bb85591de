package store

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"filecat/internal/filecat"
)

// Cache tags. Every cached API response carries at least one.
const (
	TagFiles      = "files"
	TagCategories = "categories"
	TagConfigs    = "configs"
)

// Priority decides eviction order when the cache is full: lower priorities
// are evicted first, NeverRemove entries only leave by expiry or invalidation.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityNeverRemove
)

// Strategy is a coarse invalidation request.
type Strategy int

const (
	InvalidateAll Strategy = iota
	InvalidateFileData
	InvalidateCategories
	InvalidateConfigurations
)

// Tags returns the tags a strategy clears.
func (s Strategy) Tags() []string {
	switch s {
	case InvalidateFileData:
		return []string{TagFiles}
	case InvalidateCategories:
		return []string{TagCategories}
	case InvalidateConfigurations:
		return []string{TagConfigs}
	default:
		return []string{TagFiles, TagCategories, TagConfigs}
	}
}

// DefaultCacheSize is the entry capacity when none is configured.
const DefaultCacheSize = 256

// EntryOptions controls how long an entry lives and who may evict it.
// A zero Absolute and Sliding means the entry lives until evicted or
// invalidated.
type EntryOptions struct {
	Absolute time.Duration
	Sliding  time.Duration
	Priority Priority
	Tags     []string
}

type cacheEntry struct {
	value      any
	opts       EntryOptions
	expiresAt  time.Time
	lastAccess time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
		return true
	}
	return e.opts.Sliding > 0 && now.Sub(e.lastAccess) >= e.opts.Sliding
}

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filecat_client_cache_hits_total",
		Help: "Client cache lookups served from memory",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filecat_client_cache_misses_total",
		Help: "Client cache lookups that went to the server",
	})
	cacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filecat_client_cache_invalidations_total",
		Help: "Client cache tag invalidations",
	}, []string{"tag"})
)

// Cache is a bounded in-memory response cache with tag invalidation.
//
// Each tag has a generation counter that Invalidate bumps. A fetch records
// the generations of its tags before going to the server and only stores
// its result if none changed meanwhile, so a response that raced an
// invalidation never re-populates the cache.
type Cache struct {
	clock    filecat.Clock
	capacity int

	mu    sync.Mutex
	tiers [PriorityNeverRemove]*lru.Cache[string, *cacheEntry]
	fixed map[string]*cacheEntry
	gens  map[string]uint64
}

// NewCache creates a cache holding at most capacity entries.
func NewCache(capacity int, clock filecat.Clock) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	c := &Cache{
		clock:    clock,
		capacity: capacity,
		fixed:    make(map[string]*cacheEntry),
		gens:     make(map[string]uint64),
	}
	for i := range c.tiers {
		tier, err := lru.New[string, *cacheEntry](capacity)
		if err != nil {
			return nil, fmt.Errorf("creating cache tier: %w", err)
		}
		c.tiers[i] = tier
	}
	return c, nil
}

func (c *Cache) lookup(key string) (*cacheEntry, bool) {
	if e, ok := c.fixed[key]; ok {
		return e, true
	}
	for _, tier := range c.tiers {
		if e, ok := tier.Get(key); ok {
			return e, true
		}
	}
	return nil, false
}

func (c *Cache) remove(key string) {
	delete(c.fixed, key)
	for _, tier := range c.tiers {
		tier.Remove(key)
	}
}

func (c *Cache) size() int {
	n := len(c.fixed)
	for _, tier := range c.tiers {
		n += tier.Len()
	}
	return n
}

// Get returns a live entry and refreshes its sliding window.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup(key)
	if !ok {
		cacheMisses.Inc()
		return nil, false
	}
	now := c.clock.Now()
	if e.expired(now) {
		c.remove(key)
		cacheMisses.Inc()
		return nil, false
	}
	e.lastAccess = now
	cacheHits.Inc()
	return e.value, true
}

// Set stores value under key, evicting lower-priority entries if full.
func (c *Cache) Set(key string, value any, opts EntryOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value, opts)
}

func (c *Cache) set(key string, value any, opts EntryOptions) {
	c.remove(key)
	now := c.clock.Now()
	e := &cacheEntry{value: value, opts: opts, lastAccess: now}
	if opts.Absolute > 0 {
		e.expiresAt = now.Add(opts.Absolute)
	}
	if opts.Priority >= PriorityNeverRemove {
		c.fixed[key] = e
		return
	}
	for c.size() >= c.capacity {
		if !c.evictOne() {
			break
		}
	}
	c.tiers[max(opts.Priority, PriorityLow)].Add(key, e)
}

// evictOne drops the oldest entry of the lowest non-empty tier.
func (c *Cache) evictOne() bool {
	for _, tier := range c.tiers {
		if _, _, ok := tier.RemoveOldest(); ok {
			return true
		}
	}
	return false
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size()
}

// Generation returns the current generation of tag.
func (c *Cache) Generation(tag string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[tag]
}

func (c *Cache) generations(tags []string) []uint64 {
	out := make([]uint64, len(tags))
	for i, tag := range tags {
		out[i] = c.gens[tag]
	}
	return out
}

// Invalidate drops every entry carrying any of tags and bumps their
// generations.
func (c *Cache) Invalidate(tags ...string) {
	if len(tags) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	drop := make(map[string]bool, len(tags))
	for _, tag := range tags {
		drop[tag] = true
		c.gens[tag]++
		cacheInvalidations.WithLabelValues(tag).Inc()
	}
	hasTag := func(e *cacheEntry) bool {
		for _, tag := range e.opts.Tags {
			if drop[tag] {
				return true
			}
		}
		return false
	}
	for key, e := range c.fixed {
		if hasTag(e) {
			delete(c.fixed, key)
		}
	}
	for _, tier := range c.tiers {
		for _, key := range tier.Keys() {
			if e, ok := tier.Peek(key); ok && hasTag(e) {
				tier.Remove(key)
			}
		}
	}
}

// InvalidateStrategy applies a coarse invalidation.
func (c *Cache) InvalidateStrategy(s Strategy) {
	c.Invalidate(s.Tags()...)
}

// Fetch returns the cached value for key or calls load and caches its
// result. load runs without the lock held. The result is not cached when
// one of opts.Tags was invalidated while load ran.
func Fetch[T any](c *Cache, key string, opts EntryOptions, load func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	c.mu.Lock()
	before := c.generations(opts.Tags)
	c.mu.Unlock()

	v, err := load()
	if err != nil {
		return v, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	after := c.generations(opts.Tags)
	for i := range before {
		if before[i] != after[i] {
			return v, nil
		}
	}
	c.set(key, v, opts)
	return v, nil
}
