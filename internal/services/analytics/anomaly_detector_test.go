package analytics

import (
	"testing"
	"time"

	"MarketRadar/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testDetector() *Detector {
	n := 0
	return NewDetector(
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			n++
			return "alert-" + string(rune('0'+n))
		}),
	)
}

// quiet builds a ticker with a 1% intraday range and the given move and volume.
func quiet(symbol string, pct, quoteVolume float64) models.Ticker {
	return models.Ticker{
		Symbol:             symbol,
		PriceChangePercent: pct,
		OpenPrice:          100,
		HighPrice:          100.5,
		LowPrice:           99.5,
		LastPrice:          100 * (1 + pct/100),
		QuoteVolume:        quoteVolume,
	}
}

func TestDetectCorroboratedPriceMove(t *testing.T) {
	policy := PolicyFor(models.PresetBalanced)
	tickers := []models.Ticker{
		quiet("AAAUSDT", 1, 1e9),
		quiet("BBBUSDT", -1, 1e9),
		quiet("SPIKEUSDT", 4.5, 4e9),
	}

	alerts := testDetector().Detect(tickers, policy, models.SupplementaryMetrics{}, NewMetricsHistory())
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, "SPIKEUSDT", a.Symbol)
	assert.Equal(t, []string{models.AnomalyPriceMove, models.AnomalyVolumeSpike}, a.AnomalyTypes)
	assert.InDelta(t, 4.0, a.VolumeRatio, 1e-9)
	assert.InDelta(t, 4.5/7.0, a.SubScores[models.AnomalyPriceMove], 1e-9)
	assert.InDelta(t, 4.0/6.0, a.SubScores[models.AnomalyVolumeSpike], 1e-9)
	assert.Contains(t, a.Reasons[0], "corroborated")
	assert.Equal(t, models.TrendBullish, a.Direction)
	assert.Equal(t, fixedNow, a.Timestamp)
}

func TestDetectWithoutCorroborationKeepsStrictThreshold(t *testing.T) {
	policy := PolicyFor(models.PresetBalanced)
	policy.RequireCorroboration = false
	tickers := []models.Ticker{
		quiet("AAAUSDT", 1, 1e9),
		quiet("BBBUSDT", -1, 1e9),
		quiet("SPIKEUSDT", 4.5, 4e9),
	}

	alerts := testDetector().Detect(tickers, policy, models.SupplementaryMetrics{}, nil)
	require.Len(t, alerts, 1)
	assert.Equal(t, []string{models.AnomalyVolumeSpike}, alerts[0].AnomalyTypes)
}

func TestDetectIsolatedMoveBelowThreshold(t *testing.T) {
	policy := PolicyFor(models.PresetBalanced)
	tickers := []models.Ticker{
		quiet("AAAUSDT", 4.5, 1e9),
		quiet("BBBUSDT", 1, 1e9),
	}
	assert.Empty(t, testDetector().Detect(tickers, policy, models.SupplementaryMetrics{}, nil))
}

func TestDetectMinConfidenceFilter(t *testing.T) {
	tickers := []models.Ticker{quiet("AAAUSDT", 9, 1e9)}

	// 9/16 + 0.1 falls short of the conservative 0.7 floor.
	assert.Empty(t, testDetector().Detect(tickers, PolicyFor(models.PresetConservative), models.SupplementaryMetrics{}, nil))

	alerts := testDetector().Detect(tickers, PolicyFor(models.PresetBalanced), models.SupplementaryMetrics{}, nil)
	require.Len(t, alerts, 1)
	assert.InDelta(t, 1.0, alerts[0].Confidence, 1e-9)
}

func TestDetectOrderingTieBreak(t *testing.T) {
	policy := PolicyFor(models.PresetBalanced)
	tickers := []models.Ticker{
		quiet("BBBUSDT", 0, 1e9),
		quiet("AAAUSDT", 0, 1e9),
		quiet("CCCUSDT", 0, 10e9),
	}
	metrics := models.SupplementaryMetrics{
		Funding: map[string]float64{"AAAUSDT": 0.003, "BBBUSDT": 0.003, "CCCUSDT": 0.003},
	}

	alerts := testDetector().Detect(tickers, policy, metrics, NewMetricsHistory())
	require.Len(t, alerts, 3)
	assert.Equal(t, "CCCUSDT", alerts[0].Symbol)
	assert.Equal(t, "AAAUSDT", alerts[1].Symbol)
	assert.Equal(t, "BBBUSDT", alerts[2].Symbol)
	assert.InDelta(t, alerts[1].AnomalyScore, alerts[2].AnomalyScore, 1e-12)
}

func TestDetectUpdatesHistoryForEverySymbol(t *testing.T) {
	policy := PolicyFor(models.PresetBalanced)
	history := NewMetricsHistory()
	d := testDetector()

	first := models.SupplementaryMetrics{
		OpenInterest: map[string]float64{"XUSDT": 100, "GHOSTUSDT": 50},
		Funding:      map[string]float64{"XUSDT": 0.0002},
	}
	assert.Empty(t, d.Detect([]models.Ticker{quiet("XUSDT", 0, 1e9)}, policy, first, history))
	assert.Equal(t, 2, history.Len())

	prev, ok := history.PreviousOpenInterest("GHOSTUSDT")
	require.True(t, ok)
	assert.Equal(t, 50.0, prev)

	second := models.SupplementaryMetrics{
		OpenInterest: map[string]float64{"XUSDT": 120},
		Funding:      map[string]float64{"XUSDT": 0.0009},
	}
	alerts := d.Detect([]models.Ticker{quiet("XUSDT", 0, 1e9)}, policy, second, history)
	require.Len(t, alerts, 1)
	assert.Equal(t, []string{models.AnomalyFunding, models.AnomalyOpenInterest}, alerts[0].AnomalyTypes)
	assert.InDelta(t, 0.7, alerts[0].SubScores[models.AnomalyFunding], 1e-9)
	assert.InDelta(t, 20.0/30.0, alerts[0].SubScores[models.AnomalyOpenInterest], 1e-9)

	rate, _ := history.PreviousFunding("XUSDT")
	assert.Equal(t, 0.0009, rate)
}

func TestDetectFirstOpenInterestSightingNeverFires(t *testing.T) {
	m := models.SupplementaryMetrics{OpenInterest: map[string]float64{"XUSDT": 1000}}
	assert.False(t, DetectOpenInterest("XUSDT", m, NewMetricsHistory()).Detected)
	assert.False(t, DetectOpenInterest("XUSDT", m, nil).Detected)
}

func TestDetectVolatilityScore(t *testing.T) {
	tk := models.Ticker{Symbol: "X", OpenPrice: 100, HighPrice: 112, LowPrice: 100}
	det := DetectVolatility(tk, 8)
	require.True(t, det.Detected)
	assert.InDelta(t, 12.0/16.0, det.Score, 1e-9)

	assert.False(t, DetectVolatility(models.Ticker{HighPrice: 10}, 8).Detected)
}

func TestAlertConfidenceMonotonicInCount(t *testing.T) {
	for _, mean := range []float64{0, 0.25, 0.5, 0.75, 0.95, 1} {
		prev := -1.0
		for n := 1; n <= 5; n++ {
			scores := make([]float64, n)
			for i := range scores {
				scores[i] = mean
			}
			c := AlertConfidence(scores)
			assert.GreaterOrEqual(t, c, prev, "mean=%v n=%d", mean, n)
			assert.LessOrEqual(t, c, 1.0)
			prev = c
		}
	}
	assert.Equal(t, 0.0, AlertConfidence(nil))
	assert.InDelta(t, 0.8, AlertConfidence([]float64{0.5, 0.5, 0.5, 0.5}), 1e-9)
}

func TestDetectorDefaultsGenerateIDs(t *testing.T) {
	alerts := NewDetector().Detect([]models.Ticker{quiet("AAAUSDT", 9, 1e9)}, PolicyFor(models.PresetBalanced), models.SupplementaryMetrics{}, nil)
	require.Len(t, alerts, 1)
	assert.Len(t, alerts[0].ID, 36)
	assert.False(t, alerts[0].Timestamp.IsZero())
}
