package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/crisis"
)

// ResultCache is an exact-match cache of analysis results. Analysis is a pure
// function of text and metadata, so a cached result is always the answer the
// engine would give again. Cached results are shared and must not be modified.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	hits   int
	misses int
}

// Entry represents a cached result
type Entry struct {
	Key       string
	Result    *crisis.Result
	CreatedAt time.Time
	Hits      int
}

// Stats is a point-in-time view of cache usage
type Stats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    int     `json:"hits"`
	Misses  int     `json:"misses"`
	TTLSec  float64 `json:"ttl_sec"`
}

// NewResultCache creates a new cache with given max size and TTL
func NewResultCache(maxSize int, ttl time.Duration) *ResultCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &ResultCache{
		entries: make(map[string]*Entry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// HashKey generates a deterministic key for a text and the metadata fields
// that influence analysis. UserID does not change the result and is left out.
func HashKey(text string, meta crisis.Metadata) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(meta.CulturalContext))
	h.Write([]byte{0})
	h.Write([]byte(meta.Language()))
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached result if available and not expired
func (c *ResultCache) Get(text string, meta crisis.Metadata) (*crisis.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := HashKey(text, meta)
	entry, exists := c.entries[key]
	if !exists {
		c.misses++
		return nil, false
	}

	if c.now().Sub(entry.CreatedAt) > c.ttl {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	entry.Hits++
	c.hits++
	return entry.Result, true
}

// Set stores a result in the cache. Failsafe results are not cached.
func (c *ResultCache) Set(text string, meta crisis.Metadata, r *crisis.Result) {
	if r == nil || r.IsFailsafe() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := HashKey(text, meta)

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = &Entry{
		Key:       key,
		Result:    r,
		CreatedAt: c.now(),
	}
}

// evictOldest removes the oldest entry
func (c *ResultCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.CreatedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.CreatedAt
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Stats returns cache statistics
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Size:    len(c.entries),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		TTLSec:  c.ttl.Seconds(),
	}
}

// Clear empties the cache
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
}
