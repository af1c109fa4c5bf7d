package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketRadar/internal/domain/models"
	"MarketRadar/internal/domain/repository"
)

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLearningStore()
	require.NoError(t, s.Init(ctx))

	rec := &models.PredictionRecord{Symbol: "BTCUSDT", Timestamp: time.Unix(100, 0), PredictedPrice: 1}
	_, err := s.AppendPrediction(ctx, rec)
	require.NoError(t, err)

	got, err := s.PredictionsBySymbol(ctx, "BTCUSDT")
	require.NoError(t, err)
	v := 2.0
	got[0].ActualPrice = &v

	again, err := s.PredictionsBySymbol(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, again[0].ActualPrice)

	ok, err := s.ResolvePrediction(ctx, got[0].ID, 2, true)
	require.NoError(t, err)
	assert.True(t, ok)
	again, err = s.PredictionsBySymbol(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2.0, *again[0].ActualPrice)

	ok, err = s.ResolvePrediction(ctx, got[0].ID, 3, false)
	require.NoError(t, err)
	assert.False(t, ok)
	again, err = s.PredictionsBySymbol(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2.0, *again[0].ActualPrice)
	assert.True(t, *again[0].Correct)

	_, err = s.ResolvePrediction(ctx, 404, 1, true)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMemoryStoreCloseAndDestroy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLearningStore()
	require.NoError(t, s.PutStats(ctx, models.AssetLearningStats{Symbol: "X"}))
	require.NoError(t, s.PutConfig(ctx, models.DefaultLearningConfig()))

	require.NoError(t, s.Destroy(ctx))
	_, err := s.GetStats(ctx, "X")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.GetConfig(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, s.Close())
	_, err = s.AllStats(ctx)
	assert.Error(t, err)
	require.NoError(t, s.Init(ctx))
	_, err = s.AllStats(ctx)
	assert.NoError(t, err)
}
