package main

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const replyCacheCapacity = 512

// ReplyCache remembers replies to recently seen prompts. A nil *ReplyCache
// is valid and caches nothing.
type ReplyCache struct {
	cache *ttlcache.Cache[string, string]
}

// NewReplyCache creates a cache whose entries expire after ttl.
// It returns nil when ttl is not positive. Expired entries are never
// returned and are swept on Set, so no background goroutine runs.
func NewReplyCache(ttl time.Duration) *ReplyCache {
	if ttl <= 0 {
		return nil
	}
	c := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
		ttlcache.WithCapacity[string, string](replyCacheCapacity),
	)
	return &ReplyCache{cache: c}
}

// Get returns the cached reply for prompt, if any.
func (rc *ReplyCache) Get(prompt string) (string, bool) {
	if rc == nil {
		return "", false
	}
	item := rc.cache.Get(prompt)
	if item == nil {
		return "", false
	}
	return item.Value(), true
}

// Set stores reply for prompt.
func (rc *ReplyCache) Set(prompt, reply string) {
	if rc == nil {
		return
	}
	rc.cache.DeleteExpired()
	rc.cache.Set(prompt, reply, ttlcache.DefaultTTL)
}

// Len returns the number of live entries.
func (rc *ReplyCache) Len() int {
	if rc == nil {
		return 0
	}
	return rc.cache.Len()
}

// Close drops every entry.
func (rc *ReplyCache) Close() {
	if rc == nil {
		return
	}
	rc.cache.DeleteAll()
}
