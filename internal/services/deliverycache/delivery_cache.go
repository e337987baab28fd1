package deliverycache

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Cache remembers accepted message ids for a fixed window.
type Cache struct {
	cache *cache.Cache
}

// New creates a new delivery cache instance.
func New(ttl time.Duration) *Cache {
	return &Cache{
		cache: cache.New(ttl, 2*ttl),
	}
}

// Seen records messageID and reports whether it was already recorded within the window.
func (c *Cache) Seen(messageID string) bool {
	return c.cache.Add(messageID, struct{}{}, cache.DefaultExpiration) != nil
}
