package analytics

import (
	"time"

	"MarketRadar/internal/domain/models"
)

var presets = map[string]models.RadarSensitivityPolicy{
	models.PresetConservative: {
		Name:                         models.PresetConservative,
		PriceChangeThreshold:         8,
		VolumeRatioThreshold:         4,
		VolatilityThreshold:          12,
		RequireCorroboration:         true,
		CorroborationMultiplier:      0.8,
		MinConfidenceForAlert:        0.7,
		MinConfidenceForNotification: 0.85,
		NotificationCooldown:         30 * time.Minute,
	},
	models.PresetBalanced: {
		Name:                         models.PresetBalanced,
		PriceChangeThreshold:         5,
		VolumeRatioThreshold:         3,
		VolatilityThreshold:          8,
		RequireCorroboration:         true,
		CorroborationMultiplier:      0.7,
		MinConfidenceForAlert:        0.6,
		MinConfidenceForNotification: 0.75,
		NotificationCooldown:         15 * time.Minute,
	},
	models.PresetAggressive: {
		Name:                         models.PresetAggressive,
		PriceChangeThreshold:         3,
		VolumeRatioThreshold:         2,
		VolatilityThreshold:          5,
		RequireCorroboration:         true,
		CorroborationMultiplier:      0.6,
		MinConfidenceForAlert:        0.45,
		MinConfidenceForNotification: 0.6,
		NotificationCooldown:         5 * time.Minute,
	},
}

// DefaultPreset is used when no preference has been stored.
const DefaultPreset = models.PresetBalanced

// PolicyFor returns the threshold bundle for a preset key; unknown keys get the default.
func PolicyFor(key string) models.RadarSensitivityPolicy {
	if p, ok := presets[key]; ok {
		return p
	}
	return presets[DefaultPreset]
}

// IsValidPreset reports whether key names a known preset.
func IsValidPreset(key string) bool {
	_, ok := presets[key]
	return ok
}

// PresetNames lists presets from least to most sensitive.
func PresetNames() []string {
	return []string{models.PresetConservative, models.PresetBalanced, models.PresetAggressive}
}
