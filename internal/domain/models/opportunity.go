package models

import (
	"fmt"
	"strings"
)

// Opportunity list names.
const (
	OpportunityScalping     = "scalping"
	OpportunitySwing        = "swing"
	OpportunityBreakout     = "breakout"
	OpportunityReversal     = "reversal"
	OpportunitySmartMoney   = "smc"
	OpportunityFairValueGap = "fvg"
)

type OpportunityItem struct {
	Symbol             string   `json:"symbol"`
	LastPrice          float64  `json:"lastPrice"`
	PriceChangePercent float64  `json:"priceChangePercent"`
	QuoteVolume        float64  `json:"quoteVolume"`
	HighPrice          float64  `json:"highPrice"`
	LowPrice           float64  `json:"lowPrice"`
	Strength           float64  `json:"strength"`
	Confidence         float64  `json:"confidence"`
	Reasons            []string `json:"reasons"`
	Score              float64  `json:"score"`
}

// Modality is a trading style for trade plans.
type Modality string

const (
	ModalityScalping Modality = "scalping"
	ModalityDay      Modality = "day"
	ModalitySwing    Modality = "swing"
	ModalityPosition Modality = "position"
)

const (
	SideLong  = "long"
	SideShort = "short"
)

type TradeRecommendation struct {
	Symbol          string   `json:"symbol"`
	Modality        Modality `json:"modality"`
	Side            string   `json:"side"`
	CurrentPrice    float64  `json:"currentPrice"`
	Entry           float64  `json:"entry"`
	StopLoss        float64  `json:"stopLoss"`
	TakeProfit      float64  `json:"takeProfit"`
	RiskRewardRatio float64  `json:"riskRewardRatio"`
	Confidence      float64  `json:"confidence"`
	Rationale       []string `json:"rationale"`
}

// RecommendationError lists exactly which inputs were missing.
type RecommendationError struct {
	Message     string   `json:"message"`
	MissingData []string `json:"missingData"`
}

func (e *RecommendationError) Error() string {
	if len(e.MissingData) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.MissingData, ", "))
}

// TradeRecommendationResult is either a recommendation or an error, never both.
type TradeRecommendationResult struct {
	Success        bool                 `json:"success"`
	Recommendation *TradeRecommendation `json:"recommendation,omitempty"`
	Error          *RecommendationError `json:"error,omitempty"`
}
