package cache

import (
	"encoding/json"
	"time"

	"github.com/pscprep/examengine/internal/storage"
	"github.com/rs/zerolog/log"
)

const (
	payloadPrefix = "cache:"
	metaPrefix    = "cache_meta:"
)

type meta struct {
	StoredAt  int64 `json:"stored_at"`
	ExpiresAt int64 `json:"expires_at"`
}

// ResponseCache wraps network responses with a time-to-live on top of the
// durable store. Expired entries are kept and served only to callers that
// explicitly allow stale data (the offline / error fallback paths).
type ResponseCache struct {
	store storage.Store
	now   func() time.Time
}

// New creates a ResponseCache. A nil now defaults to time.Now.
func New(store storage.Store, now func() time.Time) *ResponseCache {
	if now == nil {
		now = time.Now
	}
	return &ResponseCache{store: store, now: now}
}

// Put stores payload under key with expiresAt = now + ttl.
func (c *ResponseCache) Put(key string, payload []byte, ttl time.Duration) {
	stored := c.now()
	m, err := json.Marshal(meta{
		StoredAt:  stored.UnixMilli(),
		ExpiresAt: stored.Add(ttl).UnixMilli(),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("cache: marshal meta failed")
		return
	}
	c.store.Set(payloadPrefix+key, string(payload))
	c.store.Set(metaPrefix+key, string(m))
}

// Get returns the cached payload. A fresh entry is always returned; an
// expired one only when allowStale is true. Corrupt metadata counts as
// expired, a missing payload as absent.
func (c *ResponseCache) Get(key string, allowStale bool) ([]byte, bool) {
	raw, ok := c.store.GetString(payloadPrefix + key)
	if !ok {
		return nil, false
	}

	if !allowStale {
		metaRaw, ok := c.store.GetString(metaPrefix + key)
		if !ok {
			return nil, false
		}
		var m meta
		if err := json.Unmarshal([]byte(metaRaw), &m); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache: corrupt meta, treating as expired")
			return nil, false
		}
		if c.now().UnixMilli() >= m.ExpiresAt {
			return nil, false
		}
	}
	return []byte(raw), true
}

// Remove deletes a single entry.
func (c *ResponseCache) Remove(key string) {
	c.store.Remove(payloadPrefix + key)
	c.store.Remove(metaPrefix + key)
}

// Clear deletes every cached response.
func (c *ResponseCache) Clear() {
	for _, prefix := range []string{payloadPrefix, metaPrefix} {
		for _, k := range c.store.Keys(prefix) {
			c.store.Remove(k)
		}
	}
}

// Size returns the number of cached entries.
func (c *ResponseCache) Size() int {
	return len(c.store.Keys(payloadPrefix))
}
