package models

import "time"

// Anomaly type tags carried by radar alerts.
const (
	AnomalyPriceMove    = "price_move"
	AnomalyVolumeSpike  = "volume_spike"
	AnomalyVolatility   = "extreme_volatility"
	AnomalyFunding      = "funding_irregularity"
	AnomalyOpenInterest = "oi_spike"
)

// AllAnomalyTypes lists the radar filter options in display order.
var AllAnomalyTypes = []string{
	AnomalyPriceMove,
	AnomalyVolumeSpike,
	AnomalyVolatility,
	AnomalyFunding,
	AnomalyOpenInterest,
}

// ExtendedRadarAlert is emitted once per symbol per scan when at least one anomaly fires.
type ExtendedRadarAlert struct {
	ID                 string             `json:"id"`
	Symbol             string             `json:"symbol"`
	PriceChangePercent float64            `json:"priceChangePercent"`
	VolumeRatio        float64            `json:"volumeRatio"`
	Direction          string             `json:"direction"`
	Confidence         float64            `json:"confidence"`
	AnomalyScore       float64            `json:"anomalyScore"`
	AnomalyTypes       []string           `json:"anomalyTypes"`
	SubScores          map[string]float64 `json:"subScores"`
	Reasons            []string           `json:"reasons"`
	Timestamp          time.Time          `json:"timestamp"`
}

// HasType reports whether the alert carries the given anomaly tag.
func (a ExtendedRadarAlert) HasType(t string) bool {
	for _, at := range a.AnomalyTypes {
		if at == t {
			return true
		}
	}
	return false
}

// RadarAlert is the flattened alert shape consumed by the UI.
type RadarAlert struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Type       string    `json:"type"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
	Direction  string    `json:"direction"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Sensitivity preset keys.
const (
	PresetConservative = "conservative"
	PresetBalanced     = "balanced"
	PresetAggressive   = "aggressive"
)

// RadarSensitivityPolicy is the threshold bundle behind a preset key.
type RadarSensitivityPolicy struct {
	Name                         string        `json:"name"`
	PriceChangeThreshold         float64       `json:"priceChangeThreshold"`
	VolumeRatioThreshold         float64       `json:"volumeRatioThreshold"`
	VolatilityThreshold          float64       `json:"volatilityThreshold"`
	RequireCorroboration         bool          `json:"requireCorroboration"`
	CorroborationMultiplier      float64       `json:"corroborationMultiplier"`
	MinConfidenceForAlert        float64       `json:"minConfidenceForAlert"`
	MinConfidenceForNotification float64       `json:"minConfidenceForNotification"`
	NotificationCooldown         time.Duration `json:"notificationCooldown"`
}

// Recommendation is a top bullish candidate.
type Recommendation struct {
	Symbol     string    `json:"symbol"`
	Strength   float64   `json:"strength"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}
