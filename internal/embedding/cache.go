package embedding

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// ContentKey returns the cache key for text: the hex sha256 of its bytes.
func ContentKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Size        int     `json:"size"`
	Capacity    int     `json:"capacity"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	HitRate     float64 `json:"hit_rate"`
}

// Cache is a bounded LRU of embeddings keyed by content hash, with a per-entry TTL.
// Entries are idempotent, so a lost race only costs a recomputation.
// Returned slices are shared and must not be modified.
type Cache struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	stats   CacheStats
	closed  bool
	stop    chan struct{}
}

type cacheEntry struct {
	key       string
	value     []float32
	expiresAt time.Time
}

// NewCache creates a cache holding up to capacity entries for ttl each.
// A ttl of zero disables expiry.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached embedding for text if present and not expired.
func (c *Cache) Get(text string) ([]float32, bool) {
	key := ContentKey(text)
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if c.expired(entry) {
		c.removeLocked(elem)
		c.stats.Expirations++
		c.stats.Misses++
		return nil, false
	}
	c.lru.MoveToFront(elem)
	c.stats.Hits++
	return entry.value, true
}

// Set stores the embedding for text, evicting the least recently used entry when full.
func (c *Cache) Set(text string, value []float32) {
	key := ContentKey(text)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	expiresAt := time.Time{}
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(&cacheEntry{key: key, value: value, expiresAt: expiresAt})
	c.entries[key] = elem

	for c.lru.Len() > c.capacity {
		c.removeLocked(c.lru.Back())
		c.stats.Evictions++
	}
}

// EvictExpired drops all expired entries and returns how many were removed.
func (c *Cache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if c.expired(elem.Value.(*cacheEntry)) {
			c.removeLocked(elem)
			removed++
		}
		elem = prev
	}
	c.stats.Expirations += int64(removed)
	return removed
}

// Len returns the number of entries, expired ones included until evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.lru.Len()
	s.Capacity = c.capacity
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// Clear removes every entry and keeps the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
}

// StartJanitor evicts expired entries every interval until Close.
func (c *Cache) StartJanitor(interval time.Duration) {
	if interval <= 0 || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	if c.stop != nil || c.closed {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.EvictExpired()
			}
		}
	}()
}

// Close stops the janitor and drops all entries. Later Sets are ignored.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.stop != nil {
		close(c.stop)
	}
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
	return nil
}

func (c *Cache) expired(e *cacheEntry) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}

func (c *Cache) removeLocked(elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.entries, elem.Value.(*cacheEntry).key)
}
