package models

import "time"

// Ticker is a parsed 24h snapshot for one symbol.
type Ticker struct {
	Symbol             string    `json:"symbol"`
	PriceChange        float64   `json:"priceChange"`
	PriceChangePercent float64   `json:"priceChangePercent"`
	WeightedAvgPrice   float64   `json:"weightedAvgPrice"`
	LastPrice          float64   `json:"lastPrice"`
	LastQty            float64   `json:"lastQty"`
	OpenPrice          float64   `json:"openPrice"`
	HighPrice          float64   `json:"highPrice"`
	LowPrice           float64   `json:"lowPrice"`
	Volume             float64   `json:"volume"`
	QuoteVolume        float64   `json:"quoteVolume"`
	OpenTime           time.Time `json:"openTime"`
	CloseTime          time.Time `json:"closeTime"`
	Count              int64     `json:"count"`
	Venue              string    `json:"venue"`
}

// Range is the day's high-low spread.
func (t Ticker) Range() float64 {
	return t.HighPrice - t.LowPrice
}

// EnrichedTicker pairs a ticker with its analysis for downstream consumers.
type EnrichedTicker struct {
	Ticker
	Analysis *TechnicalAnalysis `json:"analysis,omitempty"`
}

// SpotResult reports whether the proxy path served the spot tickers.
type SpotResult struct {
	Tickers      []Ticker `json:"tickers"`
	UsedFallback bool     `json:"usedFallback"`
}

// BookLevel is one order-book price level.
type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Notional is price times size.
func (l BookLevel) Notional() float64 {
	return l.Price * l.Size
}

type OrderBook struct {
	Symbol    string      `json:"symbol"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
	FetchedAt time.Time   `json:"fetchedAt"`
}

// SupplementaryMetrics carries the optional per-cycle funding and open-interest maps.
type SupplementaryMetrics struct {
	Funding      map[string]float64
	OpenInterest map[string]float64
}

const (
	VenueFutures = "futures"
	VenueSpot    = "spot"
	VenueProxy   = "proxy"
)
