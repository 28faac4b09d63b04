package dedupe

import (
	"sort"
	"sync"
	"time"
)

// DefaultMaxEntries spans several days of multi-source runs at daily cadence.
const DefaultMaxEntries = 5000

// Cache is a bounded content-hash set shared across pipeline runs. Eviction
// removes entries in ascending first-seen order until the count is back at
// the limit.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	firstSeen  map[string]time.Time
	order      []string
}

// NewCache builds an empty cache; maxEntries <= 0 selects the default limit.
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		maxEntries: maxEntries,
		firstSeen:  make(map[string]time.Time),
	}
}

// Seen checks membership without mutating the cache.
func (c *Cache) Seen(hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.firstSeen[hash]
	return ok
}

// Record inserts a hash, evicting the oldest entries if the limit is exceeded.
// Re-recording an existing hash keeps its original first-seen timestamp.
func (c *Cache) Record(hash string, ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record(hash, ts)
}

// Observe is the atomic check-then-insert used by the aggregator: it returns
// true if the hash was already present, recording it otherwise. Two
// concurrent duplicates can never both observe "unseen".
func (c *Cache) Observe(hash string, ts time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.firstSeen[hash]; ok {
		return true
	}
	c.record(hash, ts)
	return false
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.firstSeen)
}

// Snapshot copies the cache contents for persistence.
func (c *Cache) Snapshot() map[string]time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]time.Time, len(c.firstSeen))
	for hash, ts := range c.firstSeen {
		out[hash] = ts
	}
	return out
}

// Apply merges persisted entries into the cache, oldest first, so a snapshot
// larger than the limit trims to the newest entries.
func (c *Cache) Apply(entries map[string]time.Time) {
	type entry struct {
		hash string
		ts   time.Time
	}

	sorted := make([]entry, 0, len(entries))
	for hash, ts := range entries {
		sorted = append(sorted, entry{hash: hash, ts: ts})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ts.Before(sorted[j].ts) })

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range sorted {
		c.record(e.hash, e.ts)
	}
}

func (c *Cache) record(hash string, ts time.Time) {
	if _, ok := c.firstSeen[hash]; ok {
		return
	}

	c.firstSeen[hash] = ts
	c.order = append(c.order, hash)

	for len(c.firstSeen) > c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.firstSeen, oldest)
	}
}
