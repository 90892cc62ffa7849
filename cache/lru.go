package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// entryOverheadBytes is the per-entry constant used for the MemoryBytes
// heuristic in Stats. It does not inspect payloads.
const entryOverheadBytes = 1024

type entry struct {
	data         any
	createdAt    time.Time
	ttl          time.Duration
	hits         int
	lastAccessed time.Time
}

// Stats is a point-in-time snapshot of one LRU's counters.
type Stats struct {
	Size        int     `json:"size"`
	MaxSize     int     `json:"max_size"`
	HitRate     float64 `json:"hit_rate"`
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	MemoryBytes int     `json:"memory_bytes"`
}

// Expiring describes one entry that is close to its TTL, as reported by
// LRU.ExpiringSoon.
type Expiring struct {
	Key       string        `json:"key"`
	Remaining time.Duration `json:"remaining"`
}

// LRU is a bounded, TTL-aware, least-recently-used in-process cache.
//
// Every entry carries its own lifetime. An entry is live while
// now - createdAt <= ttl; a non-live entry is never returned by a read — it
// is deleted lazily on access, swept on every Set, and optionally swept by a
// background goroutine (WithExpiryCheck).
//
// When a Set would grow the cache past its bound, the entry with the oldest
// lastAccessed timestamp is evicted first. Recency is tracked per read: a
// successful Get refreshes lastAccessed, so the victim scan realizes true LRU
// order, not insertion order. When several entries share the oldest
// timestamp the victim among them is unspecified.
//
// All operations take a single mutex and run to completion, so each call is
// atomic with respect to concurrent callers. Values are stored as-is with no
// defensive copy; callers must not mutate a value after storing it.
type LRU struct {
	ctx       context.Context
	cancel    context.CancelFunc
	mutex     sync.Mutex
	entries   map[string]*entry
	hits      uint64
	misses    uint64
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
}

var _ Store = (*LRU)(nil)

// NewLRU returns a bounded TTL-LRU cache. The background sweeper goroutine
// runs until Close is called or the parent context is cancelled.
func NewLRU(parent context.Context, opts ...Option) *LRU {
	cfg := applyOptions(opts)
	ctx, cancel := context.WithCancel(parent)
	c := &LRU{
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
		cfg:     cfg,
	}
	if cfg.expiryCheck > 0 {
		c.waitGroup.Add(1)
		go c.run()
	}
	return c
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// sweepLocked removes every expired entry. Caller holds the mutex.
func (c *LRU) sweepLocked(now time.Time) {
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}

// evictLocked removes the entry with the oldest lastAccessed timestamp.
// Linear scan; the map is bounded by maxEntries. Caller holds the mutex.
func (c *LRU) evictLocked() {
	var victim string
	var oldest time.Time
	found := false
	for key, e := range c.entries {
		if !found || e.lastAccessed.Before(oldest) {
			victim = key
			oldest = e.lastAccessed
			found = true
		}
	}
	if found {
		delete(c.entries, victim)
	}
}

func (c *LRU) SetContext(_ context.Context, key string, val any, expires time.Duration) error {
	if expires <= 0 {
		expires = c.cfg.defaultTTL
	}
	now := c.cfg.clock()
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.sweepLocked(now)
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cfg.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = &entry{
		data:         val,
		createdAt:    now,
		ttl:          expires,
		lastAccessed: now,
	}
	return nil
}

func (c *LRU) Set(key string, val any, expires time.Duration) error {
	return c.SetContext(c.ctx, key, val, expires)
}

func (c *LRU) GetContext(_ context.Context, key string) (bool, any, error) {
	now := c.cfg.clock()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return false, nil, nil
	}
	if e.expired(now) {
		delete(c.entries, key)
		c.misses++
		return false, nil, nil
	}
	e.hits++
	e.lastAccessed = now
	c.hits++
	return true, e.data, nil
}

func (c *LRU) Get(key string) (bool, any, error) {
	return c.GetContext(c.ctx, key)
}

// Has reports whether key holds a live entry. Observation only: it does not
// touch recency order and does not count toward hit/miss statistics.
func (c *LRU) Has(key string) bool {
	now := c.cfg.clock()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	e, ok := c.entries[key]
	return ok && !e.expired(now)
}

func (c *LRU) HitsContext(_ context.Context, key string) (bool, int) {
	now := c.cfg.clock()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	e, ok := c.entries[key]
	if !ok || e.expired(now) {
		return false, 0
	}
	return true, e.hits
}

func (c *LRU) Hits(key string) (bool, int) {
	return c.HitsContext(c.ctx, key)
}

func (c *LRU) DeleteContext(_ context.Context, key string) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	return ok, nil
}

func (c *LRU) Delete(key string) (bool, error) {
	return c.DeleteContext(c.ctx, key)
}

// Clear removes every entry and resets the hit/miss counters.
func (c *LRU) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries = make(map[string]*entry)
	c.hits = 0
	c.misses = 0
}

// Keys returns every stored key, including keys whose entries have expired
// but not yet been swept. Callers that need only live keys should filter
// with Has.
func (c *LRU) Keys() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the current entry count, expired entries included.
func (c *LRU) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

// Prefix returns the cosmetic key prefix given at construction. The LRU does
// not apply it to caller keys.
func (c *LRU) Prefix() string {
	return c.cfg.prefix
}

// Stats returns a snapshot of the cache counters. Read-only; calling it does
// not count as an observation.
func (c *LRU) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	s := Stats{
		Size:        len(c.entries),
		MaxSize:     c.cfg.maxEntries,
		Hits:        c.hits,
		Misses:      c.misses,
		MemoryBytes: len(c.entries) * entryOverheadBytes,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total) * 100
	}
	return s
}

// ExpiringSoon returns the live entries whose remaining lifetime is positive
// and strictly less than ExpiryWarningWindow, sorted by remaining lifetime
// ascending. Diagnostic only.
func (c *LRU) ExpiringSoon() []Expiring {
	now := c.cfg.clock()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	var soon []Expiring
	for key, e := range c.entries {
		remaining := e.ttl - now.Sub(e.createdAt)
		if remaining > 0 && remaining < ExpiryWarningWindow {
			soon = append(soon, Expiring{Key: key, Remaining: remaining})
		}
	}
	sort.Slice(soon, func(i, j int) bool {
		return soon[i].Remaining < soon[j].Remaining
	})
	return soon
}

func (c *LRU) CloseContext(_ context.Context) error {
	c.once.Do(func() {
		c.cancel()
		c.waitGroup.Wait()
	})
	return nil
}

func (c *LRU) Close() error {
	return c.CloseContext(c.ctx)
}

func (c *LRU) run() {
	defer c.waitGroup.Done()
	ticker := time.NewTicker(c.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			now := c.cfg.clock()
			c.mutex.Lock()
			c.sweepLocked(now)
			c.mutex.Unlock()
		}
	}
}
