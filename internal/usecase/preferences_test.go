package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketRadar/internal/domain/models"
)

func TestPreferencesDefaults(t *testing.T) {
	p := newTestPreferences()
	snap := p.Snapshot(context.Background())

	assert.Equal(t, models.PresetBalanced, snap.Sensitivity)
	assert.Empty(t, snap.Favorites)
	assert.True(t, snap.AlertsEnabled)
	assert.False(t, snap.FavoritesLearningPriority)
	assert.Equal(t, models.AllAnomalyTypes, snap.RadarFilters)
}

func TestPreferencesRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newTestPreferences()

	require.NoError(t, p.SetSensitivity(ctx, models.PresetAggressive))
	require.NoError(t, p.SetFavorites(ctx, []string{"btcusdt", " ETHUSDT", "BTCUSDT"}))
	require.NoError(t, p.SetAlertsEnabled(ctx, false))
	require.NoError(t, p.SetFavoritesLearningPriority(ctx, true))
	require.NoError(t, p.SetRadarFilters(ctx, []string{models.AnomalyFunding}))

	snap := p.Snapshot(ctx)
	assert.Equal(t, models.PresetAggressive, snap.Sensitivity)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, snap.Favorites)
	assert.False(t, snap.AlertsEnabled)
	assert.True(t, snap.FavoritesLearningPriority)
	assert.Equal(t, []string{models.AnomalyFunding}, snap.RadarFilters)

	policy, enabled := p.NotificationPolicy(ctx)
	assert.False(t, enabled)
	assert.Equal(t, models.PresetAggressive, policy.Name)
}

func TestPreferencesRejectsUnknownValues(t *testing.T) {
	ctx := context.Background()
	p := newTestPreferences()

	assert.Error(t, p.SetSensitivity(ctx, "reckless"))
	assert.Error(t, p.SetRadarFilters(ctx, []string{"moon"}))
	assert.Equal(t, models.PresetBalanced, p.Sensitivity(ctx))
}

func TestPreferencesReset(t *testing.T) {
	ctx := context.Background()
	p := newTestPreferences()
	require.NoError(t, p.SetSensitivity(ctx, models.PresetConservative))
	require.NoError(t, p.SetFavorites(ctx, []string{"SOLUSDT"}))

	require.NoError(t, p.Reset(ctx))
	assert.Equal(t, models.PresetBalanced, p.Sensitivity(ctx))
	assert.Empty(t, p.Favorites(ctx))
}
