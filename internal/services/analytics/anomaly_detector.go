package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"MarketRadar/internal/domain/models"
)

// Fixed funding and open-interest thresholds; these do not vary by preset.
const (
	fundingAbsThreshold   = 0.001
	fundingDeltaThreshold = 0.0005
	oiChangeThreshold     = 15.0
)

// Detection is the result of a single anomaly detector.
type Detection struct {
	Type     string
	Detected bool
	Score    float64
	Reason   string
}

type DetectorOption func(*Detector)

// WithClock overrides the alert timestamp source.
func WithClock(now func() time.Time) DetectorOption {
	return func(d *Detector) { d.now = now }
}

// WithIDGenerator overrides alert ID generation.
func WithIDGenerator(gen func() string) DetectorOption {
	return func(d *Detector) { d.newID = gen }
}

// Detector is the multi-factor radar. It holds no state between calls;
// prior-cycle funding and open interest live in the MetricsHistory passed in.
type Detector struct {
	now   func() time.Time
	newID func() string
}

func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect scans the batch and returns alerts ordered by descending anomaly score,
// ties broken by ascending symbol. history is updated with metrics before returning.
func (d *Detector) Detect(
	tickers []models.Ticker,
	policy models.RadarSensitivityPolicy,
	metrics models.SupplementaryMetrics,
	history *MetricsHistory,
) []models.ExtendedRadarAlert {
	defer history.Update(metrics)

	baseline := ComputeBaseline(tickers)
	now := d.now()
	alerts := make([]models.ExtendedRadarAlert, 0)

	for _, t := range tickers {
		alert, ok := d.evaluate(t, baseline, policy, metrics, history, now)
		if !ok {
			continue
		}
		if alert.Confidence < policy.MinConfidenceForAlert {
			continue
		}
		alerts = append(alerts, alert)
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].AnomalyScore != alerts[j].AnomalyScore {
			return alerts[i].AnomalyScore > alerts[j].AnomalyScore
		}
		return alerts[i].Symbol < alerts[j].Symbol
	})
	return alerts
}

func (d *Detector) evaluate(
	t models.Ticker,
	baseline Baseline,
	policy models.RadarSensitivityPolicy,
	metrics models.SupplementaryMetrics,
	history *MetricsHistory,
	now time.Time,
) (models.ExtendedRadarAlert, bool) {
	ratio := 0.0
	if baseline.MedianVolume > 0 {
		ratio = t.QuoteVolume / baseline.MedianVolume
	}

	price := DetectPriceMove(t.PriceChangePercent, policy.PriceChangeThreshold)
	volume := DetectVolumeSpike(ratio, policy.VolumeRatioThreshold)
	volatility := DetectVolatility(t, policy.VolatilityThreshold)
	funding := DetectFunding(t.Symbol, metrics, history)
	oi := DetectOpenInterest(t.Symbol, metrics, history)

	corroborated := volume.Detected || volatility.Detected || funding.Detected || oi.Detected
	if policy.RequireCorroboration && corroborated && policy.CorroborationMultiplier > 0 {
		if !price.Detected {
			price = relaxed(DetectPriceMove(t.PriceChangePercent, policy.PriceChangeThreshold*policy.CorroborationMultiplier))
		}
		if !volatility.Detected {
			volatility = relaxed(DetectVolatility(t, policy.VolatilityThreshold*policy.CorroborationMultiplier))
		}
	}

	var (
		types   []string
		reasons []string
		scores  []float64
		sub     = make(map[string]float64)
		total   float64
	)
	for _, det := range []Detection{price, volume, volatility, funding, oi} {
		if !det.Detected {
			continue
		}
		types = append(types, det.Type)
		reasons = append(reasons, det.Reason)
		scores = append(scores, det.Score)
		sub[det.Type] = det.Score
		total += det.Score
	}
	if len(types) == 0 {
		return models.ExtendedRadarAlert{}, false
	}

	direction := models.TrendBullish
	if t.PriceChangePercent < 0 {
		direction = models.TrendBearish
	}

	return models.ExtendedRadarAlert{
		ID:                 d.newID(),
		Symbol:             t.Symbol,
		PriceChangePercent: t.PriceChangePercent,
		VolumeRatio:        ratio,
		Direction:          direction,
		Confidence:         AlertConfidence(scores),
		AnomalyScore:       total,
		AnomalyTypes:       types,
		SubScores:          sub,
		Reasons:            reasons,
		Timestamp:          now,
	}, true
}

// AlertConfidence is min(mean + min(0.1*n, 0.3), 1) over the detected sub-scores.
func AlertConfidence(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))
	breadth := math.Min(0.1*float64(len(scores)), 0.3)
	return math.Min(mean+breadth, 1)
}

func DetectPriceMove(pct, threshold float64) Detection {
	det := Detection{Type: models.AnomalyPriceMove}
	if threshold <= 0 {
		return det
	}
	abs := math.Abs(pct)
	if abs <= threshold {
		return det
	}
	det.Detected = true
	det.Score = math.Min(abs/(2*threshold), 1)
	det.Reason = fmt.Sprintf("Price moved %+.2f%% (threshold %.2f%%)", pct, threshold)
	return det
}

func DetectVolumeSpike(ratio, threshold float64) Detection {
	det := Detection{Type: models.AnomalyVolumeSpike}
	if threshold <= 0 || ratio <= threshold {
		return det
	}
	det.Detected = true
	det.Score = math.Min(ratio/(2*threshold), 1)
	det.Reason = fmt.Sprintf("Volume %.1fx the median (threshold %.1fx)", ratio, threshold)
	return det
}

// DetectVolatility tests the intraday (high-low)/open range in percent.
func DetectVolatility(t models.Ticker, threshold float64) Detection {
	det := Detection{Type: models.AnomalyVolatility}
	if threshold <= 0 || t.OpenPrice <= 0 {
		return det
	}
	rangePct := t.Range() / t.OpenPrice * 100
	if rangePct <= threshold {
		return det
	}
	det.Detected = true
	det.Score = math.Min(rangePct/(2*threshold), 1)
	det.Reason = fmt.Sprintf("Intraday range %.2f%% (threshold %.2f%%)", rangePct, threshold)
	return det
}

// DetectFunding fires on an extreme rate or a sharp change from the previous cycle.
func DetectFunding(symbol string, metrics models.SupplementaryMetrics, history *MetricsHistory) Detection {
	det := Detection{Type: models.AnomalyFunding}
	rate, ok := metrics.Funding[symbol]
	if !ok {
		return det
	}
	delta := 0.0
	prev, hasPrev := history.PreviousFunding(symbol)
	if hasPrev {
		delta = math.Abs(rate - prev)
	}
	if math.Abs(rate) <= fundingAbsThreshold && delta <= fundingDeltaThreshold {
		return det
	}
	det.Detected = true
	det.Score = math.Min(math.Max(math.Abs(rate)/(2*fundingAbsThreshold), delta/(2*fundingDeltaThreshold)), 1)
	if hasPrev {
		det.Reason = fmt.Sprintf("Funding rate %.4f%% (change %.4f%%)", rate*100, delta*100)
	} else {
		det.Reason = fmt.Sprintf("Funding rate %.4f%%", rate*100)
	}
	return det
}

// DetectOpenInterest needs a prior-cycle value; the first sighting of a symbol never fires.
func DetectOpenInterest(symbol string, metrics models.SupplementaryMetrics, history *MetricsHistory) Detection {
	det := Detection{Type: models.AnomalyOpenInterest}
	cur, ok := metrics.OpenInterest[symbol]
	if !ok {
		return det
	}
	prev, hasPrev := history.PreviousOpenInterest(symbol)
	if !hasPrev || prev <= 0 {
		return det
	}
	change := (cur - prev) / prev * 100
	if math.Abs(change) <= oiChangeThreshold {
		return det
	}
	det.Detected = true
	det.Score = math.Min(math.Abs(change)/(2*oiChangeThreshold), 1)
	det.Reason = fmt.Sprintf("Open interest %+.1f%% since last scan", change)
	return det
}

func relaxed(det Detection) Detection {
	if det.Detected {
		det.Reason += " (corroborated)"
	}
	return det
}
