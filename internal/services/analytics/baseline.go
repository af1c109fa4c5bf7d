package analytics

import (
	"math"
	"sort"

	"MarketRadar/internal/domain/models"
)

// Baseline is derived fresh from each ticker batch.
type Baseline struct {
	MedianVolume    float64
	MedianAbsChange float64
	// P75Volume is not used by any detector yet.
	P75Volume float64
}

func ComputeBaseline(tickers []models.Ticker) Baseline {
	if len(tickers) == 0 {
		return Baseline{}
	}
	vols := make([]float64, 0, len(tickers))
	changes := make([]float64, 0, len(tickers))
	for _, t := range tickers {
		vols = append(vols, t.QuoteVolume)
		changes = append(changes, math.Abs(t.PriceChangePercent))
	}
	sort.Float64s(vols)
	sort.Float64s(changes)
	return Baseline{
		MedianVolume:    percentile(vols, 0.5),
		MedianAbsChange: percentile(changes, 0.5),
		P75Volume:       percentile(vols, 0.75),
	}
}

// percentile interpolates linearly over an ascending slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
