package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/example/assetsync/internal/types"
	"golang.org/x/sync/singleflight"
)

const (
	SourceCache    = "cache"
	SourceUpstream = "upstream"
)

// Entry stores an upsert result and when Freshservice returned it.
type Entry struct {
	Result   types.UpsertResult
	StoredAt time.Time
}

type item struct {
	val       Entry
	expiresAt time.Time
}

// Cache is a TTL cache with singleflight coalescing per key. The sync runner
// keys it by asset payload so an identical payload is not pushed twice within ttl.
type Cache struct {
	mu    sync.RWMutex
	items map[string]item
	ttl   time.Duration
	group singleflight.Group
}

func New(ttl time.Duration) *Cache {
	return &Cache{items: make(map[string]item), ttl: ttl}
}

// GetOrFetch returns a live entry for key, or runs fetch once for all
// concurrent callers that miss and stores its result. Failed fetches are not
// cached. The second return value is SourceCache or SourceUpstream.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (Entry, error)) (Entry, string, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	if ok && time.Now().Before(it.expiresAt) {
		v := it.val
		c.mu.RUnlock()
		return v, SourceCache, nil
	}
	c.mu.RUnlock()

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.items[key] = item{val: v, expiresAt: time.Now().Add(c.ttl)}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return Entry{}, "", err
	}
	return res.(Entry), SourceUpstream, nil
}

// Purge drops expired entries and returns how many were removed.
func (c *Cache) Purge() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, it := range c.items {
		if !now.Before(it.expiresAt) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

// Clear drops every entry and returns how many there were.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.items)
	c.items = make(map[string]item)
	return n
}

// Len returns the number of items in the cache, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// AssetKey derives a cache key from the asset name and a hash of its payload,
// so any field change produces a new key.
func AssetKey(a types.FreshAsset) string {
	b, _ := json.Marshal(a)
	sum := sha256.Sum256(b)
	return a.Name + "#" + hex.EncodeToString(sum[:])[:16]
}
