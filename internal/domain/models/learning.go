package models

import "time"

// PredictionRecord is one recorded directional prediction.
type PredictionRecord struct {
	ID             int64     `json:"id" db:"id"`
	Symbol         string    `json:"symbol" db:"symbol"`
	Timestamp      time.Time `json:"timestamp" db:"ts"`
	PredictedPrice float64   `json:"predictedPrice" db:"predicted_price"`
	ActualPrice    *float64  `json:"actualPrice,omitempty" db:"actual_price"`
	Confidence     float64   `json:"confidence" db:"confidence"`
	IndicatorSnapshot
	Correct *bool `json:"correct,omitempty" db:"correct"`
}

// Reconciled reports whether an actual price has been recorded.
func (p PredictionRecord) Reconciled() bool {
	return p.ActualPrice != nil
}

// IndicatorWeights is the four-way weight vector, kept normalized to sum 1.
type IndicatorWeights struct {
	SMC         float64 `json:"smc"`
	VolumeDelta float64 `json:"volumeDelta"`
	Liquidity   float64 `json:"liquidity"`
	FVG         float64 `json:"fvg"`
}

// EqualWeights is the starting vector for a symbol with no history.
func EqualWeights() IndicatorWeights {
	return IndicatorWeights{SMC: 0.25, VolumeDelta: 0.25, Liquidity: 0.25, FVG: 0.25}
}

func (w IndicatorWeights) Sum() float64 {
	return w.SMC + w.VolumeDelta + w.Liquidity + w.FVG
}

// Normalized scales the vector to sum 1, falling back to equal weights when it cannot.
func (w IndicatorWeights) Normalized() IndicatorWeights {
	s := w.Sum()
	if s <= 0 {
		return EqualWeights()
	}
	return IndicatorWeights{SMC: w.SMC / s, VolumeDelta: w.VolumeDelta / s, Liquidity: w.Liquidity / s, FVG: w.FVG / s}
}

type AssetLearningStats struct {
	Symbol             string           `json:"symbol"`
	TotalPredictions   int              `json:"totalPredictions"`
	CorrectPredictions int              `json:"correctPredictions"`
	AccuracyRate       float64          `json:"accuracyRate"`
	AverageConfidence  float64          `json:"averageConfidence"`
	IndicatorWeights   IndicatorWeights `json:"indicatorWeights"`
	LearningLevel      float64          `json:"learningLevel"`
	LastUpdated        time.Time        `json:"lastUpdated"`
}

type LearningConfig struct {
	Enabled                   bool    `json:"enabled"`
	MinPredictionsForLearning int     `json:"minPredictionsForLearning"`
	LearningRate              float64 `json:"learningRate"`
	ConfidenceThreshold       float64 `json:"confidenceThreshold"`
	PrioritizeFavorites       bool    `json:"prioritizeFavorites"`
}

// DefaultLearningConfig is written on first start.
func DefaultLearningConfig() LearningConfig {
	return LearningConfig{
		Enabled:                   true,
		MinPredictionsForLearning: 10,
		LearningRate:              0.1,
		ConfidenceThreshold:       0.6,
	}
}

// Maturity is the per-symbol learning state.
type Maturity string

const (
	MaturityCold      Maturity = "cold"
	MaturityObserving Maturity = "observing"
	MaturityLearning  Maturity = "learning"
)

// PredictionInput is what the cycle hook hands to RecordPrediction.
type PredictionInput struct {
	Symbol         string
	Timestamp      time.Time
	PredictedPrice float64
	Confidence     float64
	Indicators     IndicatorSnapshot
	Favorite       bool
}
