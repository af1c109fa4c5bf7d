package features

import (
	"context"
	"fmt"
	"math"
	"sort"

	"MarketRadar/internal/domain/models"
	"MarketRadar/internal/domain/service"
	applogger "MarketRadar/pkg/logger"
)

// Quote volume is expressed in billions when used as a signal.
const volumeUnit = 1e9

var fibRatios = [3]float64{0.236, 0.382, 0.618}

// Engine is the Feature/Analysis Engine.
type Engine struct {
	optimizer service.ConfidenceOptimizer
	logger    *applogger.Logger
}

var _ service.Analyzer = (*Engine)(nil)

// NewEngine builds an engine. optimizer may be nil, in which case base confidence is reported.
func NewEngine(optimizer service.ConfidenceOptimizer, l *applogger.Logger) *Engine {
	if l == nil {
		l = applogger.Nop()
	}
	return &Engine{optimizer: optimizer, logger: l}
}

// Analyze converts one ticker into a TechnicalAnalysis.
func (e *Engine) Analyze(ctx context.Context, t models.Ticker) (models.TechnicalAnalysis, error) {
	if err := checkFinite(t); err != nil {
		return models.TechnicalAnalysis{}, err
	}

	support, resistance := SupportResistance(t.LastPrice, t.Range())
	zones := DetectManipulationZones(t)
	orders := DetectInstitutionalOrders(t)
	base := BaseConfidence(t)

	a := models.TechnicalAnalysis{
		Symbol:              t.Symbol,
		Trend:               Trend(t.PriceChangePercent),
		Strength:            Strength(t),
		BaseConfidence:      base,
		Confidence:          base,
		PredictedPrice:      PredictPrice(t.LastPrice, t.PriceChangePercent),
		Support:             support,
		Resistance:          resistance,
		ManipulationZones:   zones,
		InstitutionalOrders: orders,
		VolumeDelta:         VolumeDelta(t),
		Volatility:          Volatility(t),
	}
	a.Indicators = Indicators(t, zones, orders)

	if e.optimizer != nil {
		e.applyLearning(ctx, &a)
	}

	a.Tags = Tags(a)
	return a, nil
}

// applyLearning swaps in the optimized confidence. Learning failures are absorbed.
func (e *Engine) applyLearning(ctx context.Context, a *models.TechnicalAnalysis) {
	opt, err := e.optimizer.GetOptimizedConfidence(ctx, a.Symbol, a.BaseConfidence)
	if err != nil {
		e.logger.Warn("learning confidence lookup failed",
			applogger.String("symbol", a.Symbol),
			applogger.Error(err),
		)
		return
	}
	a.Confidence = clamp(opt, 0, 1)

	stats, err := e.optimizer.GetAssetStats(ctx, a.Symbol)
	if err != nil {
		e.logger.Warn("learning stats lookup failed",
			applogger.String("symbol", a.Symbol),
			applogger.Error(err),
		)
		return
	}
	if stats != nil {
		level := clamp(stats.LearningLevel, 0, 1)
		conf := a.Confidence
		a.LearningLevel = &level
		a.OptimizedConfidence = &conf
	}
}

// NeutralAnalysis is substituted when a symbol cannot be enriched.
func NeutralAnalysis(symbol string) models.TechnicalAnalysis {
	return models.TechnicalAnalysis{
		Symbol:              symbol,
		Trend:               models.TrendBullish,
		Support:             []float64{},
		Resistance:          []float64{},
		ManipulationZones:   []models.ManipulationZone{},
		InstitutionalOrders: []models.InstitutionalOrder{},
		Tags:                []string{},
	}
}

// Trend is the sign of the 24h change; a flat day counts as bullish.
func Trend(pct float64) string {
	if pct < 0 {
		return models.TrendBearish
	}
	return models.TrendBullish
}

// VolumeDelta is quote volume in billions.
func VolumeDelta(t models.Ticker) float64 {
	if t.QuoteVolume <= 0 {
		return 0
	}
	return t.QuoteVolume / volumeUnit
}

// Volatility is the day's range relative to the last price.
func Volatility(t models.Ticker) float64 {
	if t.LastPrice <= 0 || t.Range() <= 0 {
		return 0
	}
	return t.Range() / t.LastPrice
}

// Strength sums price-change magnitude (cap 50), scaled volume (cap 30)
// and a flat 20 momentum bonus when last is above open, clamped to 100.
func Strength(t models.Ticker) float64 {
	priceTerm := math.Min(math.Abs(t.PriceChangePercent)*10, 50)
	volumeTerm := math.Min(VolumeDelta(t)*10, 30)
	momentum := 0.0
	if t.LastPrice > t.OpenPrice {
		momentum = 20
	}
	return clamp(priceTerm+volumeTerm+momentum, 0, 100)
}

// BaseConfidence is volume (cap 0.4) + inverse volatility (0..0.3) + trade intensity (cap 0.3),
// clamped to [0.1, 1].
func BaseConfidence(t models.Ticker) float64 {
	volumeTerm := math.Min(VolumeDelta(t)*0.05, 0.4)
	volTerm := clamp(0.3-Volatility(t)*3, 0, 0.3)
	intensity := 0.0
	if t.Count > 0 {
		intensity = math.Min(float64(t.Count)/500_000, 0.3)
	}
	return clamp(volumeTerm+volTerm+intensity, 0.1, 1)
}

// PredictPrice projects price*(1 + pct/200) for both trend signs.
func PredictPrice(price, pct float64) float64 {
	return price * (1 + pct/200)
}

// SupportResistance applies the Fibonacci offsets of the range below and above price.
// Both lists are sorted descending.
func SupportResistance(price, rng float64) (support, resistance []float64) {
	support = make([]float64, 0, len(fibRatios))
	resistance = make([]float64, 0, len(fibRatios))
	if price <= 0 {
		return support, resistance
	}
	if rng < 0 {
		rng = 0
	}
	for _, r := range fibRatios {
		support = append(support, price-rng*r)
		resistance = append(resistance, price+rng*r)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(support)))
	sort.Sort(sort.Reverse(sort.Float64Slice(resistance)))
	return support, resistance
}

// DetectManipulationZones runs the liquidity-zone and stop-hunt rules.
func DetectManipulationZones(t models.Ticker) []models.ManipulationZone {
	zones := []models.ManipulationZone{}
	vd := VolumeDelta(t)
	vol := Volatility(t)
	rng := t.Range()

	if vd > 5 && vol > 0.02 {
		zones = append(zones, models.ManipulationZone{
			Type:       "liquidity_zone",
			PriceLow:   t.LowPrice,
			PriceHigh:  t.LowPrice + rng*fibRatios[0],
			Confidence: math.Min(vd/20+vol, 0.95),
		})
	}

	absPct := math.Abs(t.PriceChangePercent)
	if absPct > 8 && vol > 0.1 {
		z := models.ManipulationZone{
			Type:       "stop_hunt",
			Confidence: math.Min(absPct/20+vol/2, 0.95),
		}
		if t.PriceChangePercent > 0 {
			z.PriceLow, z.PriceHigh = t.HighPrice-rng*fibRatios[0], t.HighPrice
		} else {
			z.PriceLow, z.PriceHigh = t.LowPrice, t.LowPrice+rng*fibRatios[0]
		}
		zones = append(zones, z)
	}
	return zones
}

// DetectInstitutionalOrders runs the absorption and momentum-block rules.
func DetectInstitutionalOrders(t models.Ticker) []models.InstitutionalOrder {
	orders := []models.InstitutionalOrder{}
	vd := VolumeDelta(t)
	vol := Volatility(t)
	absPct := math.Abs(t.PriceChangePercent)

	if vd > 2 && absPct < 1 && vol < 0.03 {
		dir := models.DirectionBuy
		if t.LastPrice < t.OpenPrice {
			dir = models.DirectionSell
		}
		orders = append(orders, models.InstitutionalOrder{
			Type:       "absorption",
			Direction:  dir,
			Price:      (t.HighPrice + t.LowPrice) / 2,
			Confidence: math.Min(0.5+vd/20, 0.9),
		})
	}

	if vd > 5 && absPct > 3 {
		dir := models.DirectionBuy
		if t.PriceChangePercent < 0 {
			dir = models.DirectionSell
		}
		orders = append(orders, models.InstitutionalOrder{
			Type:       "momentum_block",
			Direction:  dir,
			Price:      t.LastPrice,
			Confidence: math.Min(0.4+absPct/20+vd/50, 0.95),
		})
	}
	return orders
}

// Indicators builds the four [0,1] inputs recorded with a prediction.
func Indicators(t models.Ticker, zones []models.ManipulationZone, orders []models.InstitutionalOrder) models.IndicatorSnapshot {
	s := models.IndicatorSnapshot{
		VolumeDelta: clamp(VolumeDelta(t)/10, 0, 1),
	}
	for _, o := range orders {
		s.SMC = math.Max(s.SMC, o.Confidence)
	}
	for _, z := range zones {
		s.Liquidity = math.Max(s.Liquidity, z.Confidence)
	}
	if rng := t.Range(); rng > 0 {
		s.FVG = clamp(math.Abs(t.LastPrice-t.OpenPrice)/rng, 0, 1)
	}
	return s
}

func checkFinite(t models.Ticker) error {
	for name, v := range map[string]float64{
		"lastPrice":          t.LastPrice,
		"openPrice":          t.OpenPrice,
		"highPrice":          t.HighPrice,
		"lowPrice":           t.LowPrice,
		"quoteVolume":        t.QuoteVolume,
		"priceChangePercent": t.PriceChangePercent,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("analyze %s: %s is not finite", t.Symbol, name)
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
