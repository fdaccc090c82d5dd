package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultTTL matches the marathon cycle length.
const DefaultTTL = 5 * time.Minute

type entry struct {
	value    string
	storedAt time.Time
	hash     string
}

// Cache memoizes recently fetched dataset payloads for the duration of a cycle.
// Entries older than the TTL are treated as absent and evicted on read.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value if present and younger than the TTL.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return e.value, true
}

// Set stores value with the current timestamp and its content hash.
func (c *Cache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		value:    value,
		storedAt: c.now(),
		hash:     hash(value),
	}
}

// Changed reports whether value differs from the stored entry, or no entry exists.
func (c *Cache) Changed(key, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return true
	}
	return e.hash != hash(value)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
