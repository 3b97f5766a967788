package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache holds finished analysis responses keyed by a hash of the request.
// A nil *Cache is valid and never hits.
type Cache struct {
	lru    *expirable.LRU[string, interface{}]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// Stats reports cache usage
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// New creates a cache holding up to size entries for ttl. A size <= 0
// disables caching and returns nil.
func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		return nil
	}
	return &Cache{lru: expirable.NewLRU[string, interface{}](size, nil, ttl)}
}

// Key hashes the kind and the JSON form of req. Requests that marshal to
// the same JSON share a key.
func Key(kind string, req interface{}) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to hash request: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (c *Cache) Get(key string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

func (c *Cache) Add(key string, value interface{}) {
	if c == nil {
		return
	}
	c.lru.Add(key, value)
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// Purge drops every entry and resets the counters.
func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{Entries: c.lru.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}
