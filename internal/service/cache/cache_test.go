package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgcache "MarketRadar/pkg/cache"
)

func TestVersionedKey(t *testing.T) {
	assert.Equal(t, "opps:v7:scalping", VersionedKey("opps", 7, "scalping"))
	assert.Equal(t, "status:v0", VersionedKey("status", 0))
}

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache().WithClock(func() time.Time { return now })

	require.NoError(t, c.SetBytes("a", []byte("1"), time.Minute))
	require.NoError(t, c.SetBytes("b", []byte("2"), 0))

	b, ok, err := c.GetBytes("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", string(b))

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.GetBytes("a")
	assert.False(t, ok)
	_, ok, _ = c.GetBytes("b")
	assert.True(t, ok)
}

func TestTTLCachePurge(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache().WithClock(func() time.Time { return now })
	_ = c.SetBytes("x", []byte("1"), time.Second)
	_ = c.SetBytes("y", []byte("2"), time.Hour)

	now = now.Add(time.Minute)
	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 1, c.Len())
}

func TestServiceCacheRoundTrip(t *testing.T) {
	mem := pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(0))
	defer mem.Close()
	c := NewServiceCache(mem)

	_, ok, err := c.GetBytes("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetBytes("k", []byte(`{"a":1}`), time.Minute))
	b, ok, err := c.GetBytes("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(b))
}
