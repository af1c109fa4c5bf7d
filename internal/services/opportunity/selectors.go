package opportunity

import (
	"fmt"
	"math"
	"sort"

	"MarketRadar/internal/domain/models"
)

// MaxItems caps every opportunity list.
const MaxItems = 15

// minConditions is the qualification gate shared by all selectors except SmartMoney.
const minConditions = 2

// Selector turns an enriched batch into a ranked opportunity list.
type Selector func([]models.EnrichedTicker) []models.OpportunityItem

var selectors = map[string]Selector{
	models.OpportunityScalping:     Scalping,
	models.OpportunitySwing:        Swing,
	models.OpportunityBreakout:     Breakout,
	models.OpportunityReversal:     Reversal,
	models.OpportunitySmartMoney:   SmartMoney,
	models.OpportunityFairValueGap: FairValueGap,
}

// Names lists the selectors in display order.
func Names() []string {
	return []string{
		models.OpportunityScalping,
		models.OpportunitySwing,
		models.OpportunityBreakout,
		models.OpportunityReversal,
		models.OpportunitySmartMoney,
		models.OpportunityFairValueGap,
	}
}

// Select runs the named selector.
func Select(name string, tickers []models.EnrichedTicker) ([]models.OpportunityItem, error) {
	fn, ok := selectors[name]
	if !ok {
		return nil, fmt.Errorf("unknown opportunity list %q", name)
	}
	return fn(tickers), nil
}

// All runs every selector over the same batch.
func All(tickers []models.EnrichedTicker) map[string][]models.OpportunityItem {
	out := make(map[string][]models.OpportunityItem, len(selectors))
	for name, fn := range selectors {
		out[name] = fn(tickers)
	}
	return out
}

type condition struct {
	ok     bool
	weight float64
	reason string
}

type batchStats struct {
	medianVolume float64
	medianCount  float64
}

func statsOf(tickers []models.EnrichedTicker) batchStats {
	vols := make([]float64, 0, len(tickers))
	counts := make([]float64, 0, len(tickers))
	for _, t := range tickers {
		vols = append(vols, t.QuoteVolume)
		counts = append(counts, float64(t.Count))
	}
	return batchStats{medianVolume: median(vols), medianCount: median(counts)}
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 0 {
		return (s[mid-1] + s[mid]) / 2
	}
	return s[mid]
}

// collect applies one rule to every analysable ticker and ranks the survivors.
func collect(tickers []models.EnrichedTicker, rule func(models.EnrichedTicker, batchStats) []condition) []models.OpportunityItem {
	stats := statsOf(tickers)
	items := make([]models.OpportunityItem, 0)
	for _, t := range tickers {
		if t.Analysis == nil || t.LastPrice <= 0 {
			continue
		}
		conds := rule(t, stats)
		met := 0
		score := 0.0
		reasons := make([]string, 0, len(conds))
		for _, c := range conds {
			if !c.ok {
				continue
			}
			met++
			score += c.weight
			reasons = append(reasons, c.reason)
		}
		if met < minConditions {
			continue
		}
		items = append(items, newItem(t, score, reasons))
	}
	return rank(items)
}

func newItem(t models.EnrichedTicker, conditionScore float64, reasons []string) models.OpportunityItem {
	return models.OpportunityItem{
		Symbol:             t.Symbol,
		LastPrice:          t.LastPrice,
		PriceChangePercent: t.PriceChangePercent,
		QuoteVolume:        t.QuoteVolume,
		HighPrice:          t.HighPrice,
		LowPrice:           t.LowPrice,
		Strength:           t.Analysis.Strength,
		Confidence:         t.Analysis.Confidence,
		Reasons:            reasons,
		Score:              conditionScore + t.Analysis.Strength*0.2,
	}
}

// rank orders by descending score with ascending symbol as tie-break, then caps.
func rank(items []models.OpportunityItem) []models.OpportunityItem {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Symbol < items[j].Symbol
	})
	if len(items) > MaxItems {
		items = items[:MaxItems]
	}
	return items
}

// Scalping favours liquid, busy, calm symbols with a narrow move.
func Scalping(tickers []models.EnrichedTicker) []models.OpportunityItem {
	return collect(tickers, func(t models.EnrichedTicker, s batchStats) []condition {
		absPct := math.Abs(t.PriceChangePercent)
		volPct := t.Analysis.Volatility * 100
		return []condition{
			{s.medianVolume > 0 && t.QuoteVolume >= 1.5*s.medianVolume, 30, "Volume above 1.5x median"},
			{volPct > 0 && volPct < 4, 20, fmt.Sprintf("Contained range %.2f%%", volPct)},
			{s.medianCount > 0 && float64(t.Count) >= 1.5*s.medianCount, 25, "High trade count"},
			{absPct >= 0.5 && absPct <= 3, 25, fmt.Sprintf("Tight %.2f%% swing", t.PriceChangePercent)},
		}
	})
}

// Swing favours a sustained, confident move closing in the trend's half of the range.
func Swing(tickers []models.EnrichedTicker) []models.OpportunityItem {
	return collect(tickers, func(t models.EnrichedTicker, _ batchStats) []condition {
		absPct := math.Abs(t.PriceChangePercent)
		return []condition{
			{absPct >= 3 && absPct <= 15, 30, fmt.Sprintf("Sustained %.2f%% move", t.PriceChangePercent)},
			{t.Analysis.Strength >= 60, 25, fmt.Sprintf("Trend strength %.0f", t.Analysis.Strength)},
			{t.Analysis.Confidence >= 0.6, 25, fmt.Sprintf("Confidence %.0f%%", t.Analysis.Confidence*100)},
			{trendAlignedClose(t), 20, "Close aligned with trend"},
		}
	})
}

// Breakout favours a strong move on a volume surge pressing the day's extreme.
func Breakout(tickers []models.EnrichedTicker) []models.OpportunityItem {
	return collect(tickers, func(t models.EnrichedTicker, s batchStats) []condition {
		return []condition{
			{math.Abs(t.PriceChangePercent) >= 5, 30, fmt.Sprintf("Strong %.2f%% move", t.PriceChangePercent)},
			{s.medianVolume > 0 && t.QuoteVolume >= 2*s.medianVolume, 35, "Volume surge above 2x median"},
			{nearExtreme(t, 0.01), 35, "Trading at the day's extreme"},
		}
	})
}

// Reversal favours an extreme move rejected from its extreme with a divergence or counter-signal.
func Reversal(tickers []models.EnrichedTicker) []models.OpportunityItem {
	return collect(tickers, func(t models.EnrichedTicker, s batchStats) []condition {
		divergence := s.medianVolume > 0 && t.QuoteVolume < s.medianVolume
		return []condition{
			{math.Abs(t.PriceChangePercent) >= 8, 35, fmt.Sprintf("Extreme %.2f%% move", t.PriceChangePercent)},
			{rejection(t) >= 0.3, 35, fmt.Sprintf("Rejected %.0f%% of range from extreme", rejection(t)*100)},
			{divergence || counterSignal(t), 30, "Volume divergence or counter-signal"},
		}
	})
}

// SmartMoney qualifies on any institutional order or manipulation zone.
func SmartMoney(tickers []models.EnrichedTicker) []models.OpportunityItem {
	items := make([]models.OpportunityItem, 0)
	for _, t := range tickers {
		a := t.Analysis
		if a == nil || t.LastPrice <= 0 {
			continue
		}
		if len(a.InstitutionalOrders) == 0 && len(a.ManipulationZones) == 0 {
			continue
		}
		score := 0.0
		reasons := make([]string, 0, len(a.InstitutionalOrders)+len(a.ManipulationZones))
		for _, o := range a.InstitutionalOrders {
			score += o.Confidence * 40
			reasons = append(reasons, fmt.Sprintf("Institutional %s (%s)", o.Type, o.Direction))
		}
		for _, z := range a.ManipulationZones {
			score += z.Confidence * 30
			reasons = append(reasons, fmt.Sprintf("Manipulation %s %.4g-%.4g", z.Type, z.PriceLow, z.PriceHigh))
		}
		items = append(items, newItem(t, score, reasons))
	}
	return rank(items)
}

// FairValueGap favours a wide-bodied candle displaced from VWAP.
func FairValueGap(tickers []models.EnrichedTicker) []models.OpportunityItem {
	return collect(tickers, func(t models.EnrichedTicker, s batchStats) []condition {
		body := 0.0
		if r := t.Range(); r > 0 {
			body = math.Abs(t.LastPrice-t.OpenPrice) / r
		}
		gap := 0.0
		if t.WeightedAvgPrice > 0 {
			gap = math.Abs(t.LastPrice-t.WeightedAvgPrice) / t.WeightedAvgPrice
		}
		return []condition{
			{body >= 0.6, 30, fmt.Sprintf("Body %.0f%% of range", body*100)},
			{gap >= 0.015, 30, fmt.Sprintf("%.2f%% away from VWAP", gap*100)},
			{s.medianVolume > 0 && t.QuoteVolume >= s.medianVolume, 20, "Volume at or above median"},
			{t.Analysis.Confidence >= 0.5, 20, fmt.Sprintf("Confidence %.0f%%", t.Analysis.Confidence*100)},
		}
	})
}

func trendAlignedClose(t models.EnrichedTicker) bool {
	r := t.Range()
	if r <= 0 {
		return false
	}
	mid := t.LowPrice + r/2
	if t.Analysis.IsBullish() {
		return t.LastPrice >= mid
	}
	return t.LastPrice <= mid
}

func nearExtreme(t models.EnrichedTicker, tolerance float64) bool {
	if t.PriceChangePercent >= 0 {
		return t.HighPrice > 0 && (t.HighPrice-t.LastPrice)/t.HighPrice <= tolerance
	}
	return t.LowPrice > 0 && (t.LastPrice-t.LowPrice)/t.LowPrice <= tolerance
}

// rejection is the share of the range price has retreated from the move's extreme.
func rejection(t models.EnrichedTicker) float64 {
	r := t.Range()
	if r <= 0 {
		return 0
	}
	if t.PriceChangePercent >= 0 {
		return (t.HighPrice - t.LastPrice) / r
	}
	return (t.LastPrice - t.LowPrice) / r
}

// counterSignal is an institutional order against the trend or any manipulation zone.
func counterSignal(t models.EnrichedTicker) bool {
	a := t.Analysis
	if len(a.ManipulationZones) > 0 {
		return true
	}
	against := models.DirectionSell
	if !a.IsBullish() {
		against = models.DirectionBuy
	}
	for _, o := range a.InstitutionalOrders {
		if o.Direction == against {
			return true
		}
	}
	return false
}
