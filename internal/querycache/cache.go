// Package querycache holds completed query responses for a fixed TTL so
// repeated identical queries skip the admission and provider pipeline.
package querycache

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"websearch-mcp/pkg/types"
)

// Key derives the cache fingerprint for a query. Two logically identical
// queries (case and surrounding-whitespace insensitive) with the same
// result count always map to the same key.
func Key(query string, maxResults int) string {
	return strings.ToLower(strings.TrimSpace(query)) + "::" + strconv.Itoa(maxResults)
}

type entry struct {
	value     *types.QueryResponse
	expiresAt time.Time
}

// Cache is an in-memory TTL cache for query responses. Entries are
// replaced on overwrite and evicted lazily on the read that finds them
// expired.
type Cache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]entry

	now func() time.Time
}

// New constructs a cache with a fixed per-instance TTL.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached response for key if it is still live. An expired
// entry is removed and reported as absent; absence is a normal outcome.
func (c *Cache) Get(key string) (*types.QueryResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.expiresAt.Before(c.now()) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set unconditionally stores value with expiry now + TTL, replacing any
// prior entry for the key.
func (c *Cache) Set(key string, value *types.QueryResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
