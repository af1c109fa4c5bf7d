package repository

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketRadar/pkg/cache"
)

func TestCachePreferenceStoreMemory(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mc.Close()
	s := NewCachePreferenceStore(mc)

	_, ok, err := s.Get(ctx, "sensitivity")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "sensitivity", "aggressive"))
	require.NoError(t, s.Set(ctx, "favorites", `["BTCUSDT"]`))
	require.NoError(t, mc.Set(ctx, "cooldown:BTCUSDT", "locked", 0))

	v, ok, err := s.Get(ctx, "sensitivity")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "aggressive", v)

	require.NoError(t, s.Delete(ctx, "favorites"))
	_, ok, err = s.Get(ctx, "favorites")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Clear(ctx))
	_, ok, err = s.Get(ctx, "sensitivity")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, mc.Len(), "non-preference keys survive Clear")
}

func TestCachePreferenceStoreRedis(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	s := NewCachePreferenceStore(cache.NewRedisCacheWithClient(db, "mr"))

	mock.ExpectSet("mr:pref:alertsEnabled", []byte("true"), 0).SetVal("OK")
	mock.ExpectGet("mr:pref:alertsEnabled").SetVal("true")

	require.NoError(t, s.Set(ctx, "alertsEnabled", "true"))
	v, ok, err := s.Get(ctx, "alertsEnabled")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)
	assert.NoError(t, mock.ExpectationsWereMet())
}
