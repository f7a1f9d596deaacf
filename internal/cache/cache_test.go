package cache

import (
	"testing"
	"time"

	"github.com/pscprep/examengine/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time forward deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache() (*ResponseCache, *fakeClock, storage.Store) {
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	store := storage.NewMemory()
	return New(store, clock.Now), clock, store
}

func TestCacheFreshHit(t *testing.T) {
	c, clock, _ := newTestCache()

	c.Put("tests_page_1", []byte(`{"count":3}`), time.Minute)
	clock.Advance(30 * time.Second)

	got, ok := c.Get("tests_page_1", false)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"count":3}`), got)
}

func TestCacheExpiredEntryNeedsAllowStale(t *testing.T) {
	c, clock, _ := newTestCache()

	c.Put("tests_page_1", []byte(`{"count":3}`), time.Minute)
	clock.Advance(2 * time.Minute)

	_, ok := c.Get("tests_page_1", false)
	assert.False(t, ok, "expired entry must not be served on the fresh path")

	// The expired payload stays available to the offline fallback path.
	got, ok := c.Get("tests_page_1", true)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"count":3}`), got)
}

func TestCacheExpiryBoundaryIsExclusive(t *testing.T) {
	c, clock, _ := newTestCache()

	c.Put("k", []byte("v"), time.Minute)
	clock.Advance(time.Minute)

	// now == expiresAt counts as expired.
	_, ok := c.Get("k", false)
	assert.False(t, ok)
}

func TestCacheMiss(t *testing.T) {
	c, _, _ := newTestCache()
	_, ok := c.Get("never_stored", true)
	assert.False(t, ok)
}

func TestCacheCorruptMetaTreatedAsExpired(t *testing.T) {
	c, _, store := newTestCache()

	c.Put("k", []byte("payload"), time.Minute)
	store.Set("cache_meta:k", "{not json")

	_, ok := c.Get("k", false)
	assert.False(t, ok)

	got, ok := c.Get("k", true)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)
}

func TestCachePutReplacesAndExtends(t *testing.T) {
	c, clock, _ := newTestCache()

	c.Put("k", []byte("old"), time.Minute)
	clock.Advance(2 * time.Minute)
	c.Put("k", []byte("new"), time.Minute)

	got, ok := c.Get("k", false)
	require.True(t, ok)
	assert.Equal(t, []byte("new"), got)
}

func TestCacheRemoveAndClear(t *testing.T) {
	c, _, _ := newTestCache()

	c.Put("a", []byte("1"), time.Minute)
	c.Put("b", []byte("2"), time.Minute)
	assert.Equal(t, 2, c.Size())

	c.Remove("a")
	_, ok := c.Get("a", true)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
	_, ok = c.Get("b", true)
	assert.False(t, ok)
}
