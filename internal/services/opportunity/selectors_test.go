package opportunity

import (
	"fmt"
	"testing"

	"MarketRadar/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickerOpt func(*models.EnrichedTicker)

func mk(symbol string, opts ...tickerOpt) models.EnrichedTicker {
	t := models.EnrichedTicker{
		Ticker: models.Ticker{
			Symbol:      symbol,
			OpenPrice:   100,
			HighPrice:   101,
			LowPrice:    99,
			LastPrice:   100,
			QuoteVolume: 1e9,
			Count:       1000,
		},
		Analysis: &models.TechnicalAnalysis{
			Symbol:     symbol,
			Trend:      models.TrendBullish,
			Volatility: 0.02,
		},
	}
	for _, o := range opts {
		o(&t)
	}
	return t
}

func withMove(pct, open, high, low, last float64) tickerOpt {
	return func(t *models.EnrichedTicker) {
		t.PriceChangePercent = pct
		t.OpenPrice, t.HighPrice, t.LowPrice, t.LastPrice = open, high, low, last
		if pct < 0 {
			t.Analysis.Trend = models.TrendBearish
		}
	}
}

func withScores(strength, confidence float64) tickerOpt {
	return func(t *models.EnrichedTicker) {
		t.Analysis.Strength = strength
		t.Analysis.Confidence = confidence
	}
}

func withVolume(v float64) tickerOpt {
	return func(t *models.EnrichedTicker) { t.QuoteVolume = v }
}

func swingCandidate(symbol string) models.EnrichedTicker {
	return mk(symbol, withMove(5, 100, 106, 99, 105), withScores(70, 0.7))
}

func TestSwingTieBreakBySymbol(t *testing.T) {
	items := Swing([]models.EnrichedTicker{swingCandidate("BTCUSDT"), swingCandidate("ADAUSDT")})
	require.Len(t, items, 2)
	assert.Equal(t, "ADAUSDT", items[0].Symbol)
	assert.Equal(t, "BTCUSDT", items[1].Symbol)
	assert.Equal(t, items[0].Score, items[1].Score)
	assert.InDelta(t, 100+70*0.2, items[0].Score, 1e-9)
	assert.Len(t, items[0].Reasons, 4)
}

func TestListsAreCapped(t *testing.T) {
	batch := make([]models.EnrichedTicker, 0, 20)
	for i := 0; i < 20; i++ {
		batch = append(batch, swingCandidate(fmt.Sprintf("SYM%02dUSDT", i)))
	}
	items := Swing(batch)
	require.Len(t, items, MaxItems)
	assert.Equal(t, "SYM00USDT", items[0].Symbol)
	assert.Equal(t, "SYM14USDT", items[MaxItems-1].Symbol)
}

func TestScalpingGate(t *testing.T) {
	batch := []models.EnrichedTicker{
		mk("AAAUSDT", withMove(1, 100, 101, 99.5, 101), withVolume(3e9), withScores(40, 0.6)),
		mk("BBBUSDT", withMove(10, 100, 112, 99, 110)),
		mk("CCCUSDT", withMove(20, 100, 125, 99, 120)),
	}
	batch[0].Count = 5000
	batch[1].Analysis.Volatility = 0.12
	batch[2].Analysis.Volatility = 0.2

	items := Scalping(batch)
	require.Len(t, items, 1)
	assert.Equal(t, "AAAUSDT", items[0].Symbol)
	assert.InDelta(t, 100+40*0.2, items[0].Score, 1e-9)
}

func TestBreakout(t *testing.T) {
	batch := []models.EnrichedTicker{
		mk("UPUSDT", withMove(6, 100, 106.5, 99, 106), withVolume(3e9), withScores(80, 0.7)),
		mk("DOWNUSDT", withMove(-7, 100, 101, 93, 93.2), withVolume(1e9)),
		mk("FLATUSDT", withMove(0.2, 100, 101, 99, 100.2)),
	}
	items := Breakout(batch)
	require.Len(t, items, 2)
	assert.Equal(t, "UPUSDT", items[0].Symbol)
	assert.Equal(t, "DOWNUSDT", items[1].Symbol)
	assert.InDelta(t, 100+80*0.2, items[0].Score, 1e-9)
}

func TestReversal(t *testing.T) {
	rejected := mk("REJUSDT", withMove(10, 100, 110, 100, 106), withScores(50, 0.5))
	counter := mk("CTRUSDT", withMove(9, 100, 109.5, 100, 109), withVolume(5e9))
	counter.Analysis.InstitutionalOrders = []models.InstitutionalOrder{{Type: "absorption", Direction: models.DirectionSell}}
	clean := mk("CLNUSDT", withMove(9, 100, 109.5, 100, 109), withVolume(5e9))

	items := Reversal([]models.EnrichedTicker{rejected, counter, clean})
	require.Len(t, items, 2)
	assert.Equal(t, "REJUSDT", items[0].Symbol)
	assert.Equal(t, "CTRUSDT", items[1].Symbol)
}

func TestSmartMoney(t *testing.T) {
	withOrder := mk("ORDUSDT", withScores(50, 0.5))
	withOrder.Analysis.InstitutionalOrders = []models.InstitutionalOrder{{Type: "momentum_block", Direction: models.DirectionBuy, Confidence: 0.5}}
	withZone := mk("ZONUSDT", withScores(50, 0.5))
	withZone.Analysis.ManipulationZones = []models.ManipulationZone{{Type: "liquidity_zone", Confidence: 0.9}}
	plain := mk("PLNUSDT", withScores(90, 0.9))

	items := SmartMoney([]models.EnrichedTicker{withOrder, withZone, plain})
	require.Len(t, items, 2)
	assert.Equal(t, "ZONUSDT", items[0].Symbol)
	assert.InDelta(t, 0.9*30+10, items[0].Score, 1e-9)
	assert.Equal(t, "ORDUSDT", items[1].Symbol)
	assert.InDelta(t, 0.5*40+10, items[1].Score, 1e-9)
}

func TestFairValueGap(t *testing.T) {
	gap := mk("GAPUSDT", withMove(8, 100, 110, 99, 108), withScores(60, 0.6))
	gap.WeightedAvgPrice = 104
	noVWAP := mk("NOVUSDT", withMove(0.5, 100, 101, 99, 100.5))

	items := FairValueGap([]models.EnrichedTicker{gap, noVWAP})
	require.Len(t, items, 1)
	assert.Equal(t, "GAPUSDT", items[0].Symbol)
	assert.InDelta(t, 100+60*0.2, items[0].Score, 1e-9)
}

func TestSelectorsSkipMissingAnalysis(t *testing.T) {
	bare := models.EnrichedTicker{Ticker: models.Ticker{Symbol: "BAREUSDT", LastPrice: 1, PriceChangePercent: 20}}
	for name, items := range All([]models.EnrichedTicker{bare}) {
		assert.Empty(t, items, name)
	}
}

func TestSelect(t *testing.T) {
	items, err := Select(models.OpportunitySwing, []models.EnrichedTicker{swingCandidate("BTCUSDT")})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = Select("moonshot", nil)
	assert.Error(t, err)
	assert.Len(t, Names(), 6)
}
