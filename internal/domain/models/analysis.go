package models

const (
	TrendBullish = "bullish"
	TrendBearish = "bearish"
)

// ManipulationZone is a price range flagged by one manipulation rule.
type ManipulationZone struct {
	Type       string  `json:"type"`
	PriceLow   float64 `json:"priceLow"`
	PriceHigh  float64 `json:"priceHigh"`
	Confidence float64 `json:"confidence"`
}

// InstitutionalOrder is a large-participant footprint inferred from the snapshot or the book.
type InstitutionalOrder struct {
	Type       string  `json:"type"`
	Direction  string  `json:"direction"` // buy or sell
	Price      float64 `json:"price"`
	Size       float64 `json:"size,omitempty"`
	Confidence float64 `json:"confidence"`
}

const (
	DirectionBuy  = "buy"
	DirectionSell = "sell"
)

// IndicatorSnapshot holds the four indicator inputs a prediction is scored against.
type IndicatorSnapshot struct {
	SMC         float64 `json:"smc" db:"smc"`
	VolumeDelta float64 `json:"volumeDelta" db:"volume_delta"`
	Liquidity   float64 `json:"liquidity" db:"liquidity"`
	FVG         float64 `json:"fvg" db:"fvg"`
}

// Values returns the indicators in the fixed smc, volumeDelta, liquidity, fvg order.
func (s IndicatorSnapshot) Values() [4]float64 {
	return [4]float64{s.SMC, s.VolumeDelta, s.Liquidity, s.FVG}
}

type TechnicalAnalysis struct {
	Symbol              string               `json:"symbol"`
	Trend               string               `json:"trend"`
	Strength            float64              `json:"strength"`
	BaseConfidence      float64              `json:"baseConfidence"`
	Confidence          float64              `json:"confidence"`
	PredictedPrice      float64              `json:"predictedPrice"`
	Support             []float64            `json:"support"`
	Resistance          []float64            `json:"resistance"`
	ManipulationZones   []ManipulationZone   `json:"manipulationZones"`
	InstitutionalOrders []InstitutionalOrder `json:"institutionalOrders"`
	VolumeDelta         float64              `json:"volumeDelta"`
	Volatility          float64              `json:"volatility"`
	Indicators          IndicatorSnapshot    `json:"indicators"`
	LearningLevel       *float64             `json:"learningLevel,omitempty"`
	OptimizedConfidence *float64             `json:"optimizedConfidence,omitempty"`
	Tags                []string             `json:"tags"`
}

// IsBullish reports whether the trend is bullish.
func (a TechnicalAnalysis) IsBullish() bool {
	return a.Trend == TrendBullish
}
