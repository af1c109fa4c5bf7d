package trade

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"MarketRadar/internal/domain/models"
	"MarketRadar/internal/domain/repository"
)

// ModalityParams shapes a trade plan for one trading style. Percentages are in percent.
type ModalityParams struct {
	EntryOffsetPct   float64
	ATRMultiplier    float64
	RewardRatio      float64
	ZoneTolerancePct float64
}

var modalityParams = map[models.Modality]ModalityParams{
	models.ModalityScalping: {EntryOffsetPct: 0.1, ATRMultiplier: 0.15, RewardRatio: 1.5, ZoneTolerancePct: 0.5},
	models.ModalityDay:      {EntryOffsetPct: 0.25, ATRMultiplier: 0.3, RewardRatio: 2.0, ZoneTolerancePct: 1},
	models.ModalitySwing:    {EntryOffsetPct: 0.5, ATRMultiplier: 0.5, RewardRatio: 2.5, ZoneTolerancePct: 2},
	models.ModalityPosition: {EntryOffsetPct: 1, ATRMultiplier: 0.8, RewardRatio: 3.0, ZoneTolerancePct: 3},
}

const (
	missingPrice    = "current price"
	missingAnalysis = "technical analysis"

	aggressiveStrength = 70
)

// ParamsFor returns the parameters of a known modality.
func ParamsFor(m models.Modality) (ModalityParams, bool) {
	p, ok := modalityParams[m]
	return p, ok
}

// Calculate builds an entry/stop/target plan. It never returns an error value;
// failures are reported in the result.
func Calculate(modality models.Modality, t models.EnrichedTicker) models.TradeRecommendationResult {
	if !repository.IsValidModality(modality) {
		return failure(fmt.Sprintf("unsupported modality %q", modality))
	}

	var missing []string
	if t.LastPrice <= 0 || math.IsNaN(t.LastPrice) || math.IsInf(t.LastPrice, 0) {
		missing = append(missing, missingPrice)
	}
	if t.Analysis == nil {
		missing = append(missing, missingAnalysis)
	}
	if len(missing) > 0 {
		return failure("insufficient data for a trade plan", missing...)
	}

	p := modalityParams[modality]
	a := t.Analysis
	price := t.LastPrice
	rationale := make([]string, 0, 7)

	trendSide := models.SideLong
	if !a.IsBullish() {
		trendSide = models.SideShort
	}
	rationale = append(rationale, fmt.Sprintf("%s trend (strength %.1f)", trendLabel(a.Trend), a.Strength))
	rationale = append(rationale, fmt.Sprintf("Confidence %.0f%%", a.Confidence*100))

	side := trendSide
	lead, hasLead := leadOrder(a.InstitutionalOrders)
	if hasLead {
		side = sideOf(lead.Direction)
	}
	long := side == models.SideLong

	entry, anchored := anchorEntry(long, price, a.Support, a.Resistance, p.ZoneTolerancePct)
	switch {
	case anchored && long:
		rationale = append(rationale, fmt.Sprintf("Entry anchored to support %s", fmtPrice(entry)))
	case anchored:
		rationale = append(rationale, fmt.Sprintf("Entry anchored to resistance %s", fmtPrice(entry)))
	case long:
		entry = price * (1 - p.EntryOffsetPct/100)
		rationale = append(rationale, fmt.Sprintf("Entry %.2f%% below current price", p.EntryOffsetPct))
	default:
		entry = price * (1 + p.EntryOffsetPct/100)
		rationale = append(rationale, fmt.Sprintf("Entry %.2f%% above current price", p.EntryOffsetPct))
	}

	if hasLead {
		if side == trendSide {
			rationale = append(rationale, fmt.Sprintf("Institutional %s (%s) aligned with trend", lead.Type, lead.Direction))
		} else {
			rationale = append(rationale, fmt.Sprintf("Institutional %s (%s) overrides trend", lead.Type, lead.Direction))
		}
	}
	if len(a.ManipulationZones) > 0 {
		z := a.ManipulationZones[0]
		rationale = append(rationale, fmt.Sprintf("Caution: %s between %s and %s", z.Type, fmtPrice(z.PriceLow), fmtPrice(z.PriceHigh)))
	}
	for i, tag := range a.Tags {
		if i == 2 {
			break
		}
		rationale = append(rationale, "Signal: "+tag)
	}

	stop := stopLoss(long, entry, t.Range()*p.ATRMultiplier, a.Support, a.Resistance)
	risk := math.Abs(entry - stop)
	if risk <= 0 {
		risk = entry * p.EntryOffsetPct / 100
		stop = entry - direction(long)*risk
	}
	target := takeProfit(long, entry, risk*p.RewardRatio, a.Strength, a.Support, a.Resistance)

	entry, stop, target = roundPrice(entry), roundPrice(stop), roundPrice(target)
	rr := 0.0
	if d := math.Abs(entry - stop); d > 0 {
		rr = decimal.NewFromFloat(math.Abs(target-entry) / d).Round(2).InexactFloat64()
	}

	return models.TradeRecommendationResult{
		Success: true,
		Recommendation: &models.TradeRecommendation{
			Symbol:          t.Symbol,
			Modality:        modality,
			Side:            side,
			CurrentPrice:    price,
			Entry:           entry,
			StopLoss:        stop,
			TakeProfit:      target,
			RiskRewardRatio: rr,
			Confidence:      a.Confidence,
			Rationale:       rationale,
		},
	}
}

func failure(msg string, missing ...string) models.TradeRecommendationResult {
	if missing == nil {
		missing = []string{}
	}
	return models.TradeRecommendationResult{
		Success: false,
		Error:   &models.RecommendationError{Message: msg, MissingData: missing},
	}
}

// anchorEntry finds the zone nearest to price on the entry side within tolerance.
func anchorEntry(long bool, price float64, support, resistance []float64, tolPct float64) (float64, bool) {
	limit := price * tolPct / 100
	best, found := 0.0, false
	if long {
		for _, s := range support {
			if s <= price && price-s <= limit && (!found || s > best) {
				best, found = s, true
			}
		}
		return best, found
	}
	for _, r := range resistance {
		if r >= price && r-price <= limit && (!found || r < best) {
			best, found = r, true
		}
	}
	return best, found
}

// stopLoss takes the tighter of the ATR stop and the nearest zone strictly beyond entry.
func stopLoss(long bool, entry, atrDistance float64, support, resistance []float64) float64 {
	if long {
		stop := entry - atrDistance
		if z, ok := nearestBelow(entry, support); ok && z > stop {
			stop = z
		}
		return stop
	}
	stop := entry + atrDistance
	if z, ok := nearestAbove(entry, resistance); ok && z < stop {
		stop = z
	}
	return stop
}

// takeProfit projects the reward and caps it at the next opposing zone.
func takeProfit(long bool, entry, reward, strength float64, support, resistance []float64) float64 {
	if long {
		target := entry + reward
		if z, ok := nearestAbove(entry, resistance); ok {
			if strength > aggressiveStrength {
				target = math.Min(target, z*0.998)
			} else {
				target = math.Min(target, entry+(z-entry)*0.8)
			}
		}
		return target
	}
	target := entry - reward
	if z, ok := nearestBelow(entry, support); ok {
		if strength > aggressiveStrength {
			target = math.Max(target, z*1.002)
		} else {
			target = math.Max(target, entry-(entry-z)*0.8)
		}
	}
	return target
}

func nearestBelow(level float64, zones []float64) (float64, bool) {
	best, found := 0.0, false
	for _, z := range zones {
		if z < level && (!found || z > best) {
			best, found = z, true
		}
	}
	return best, found
}

func nearestAbove(level float64, zones []float64) (float64, bool) {
	best, found := 0.0, false
	for _, z := range zones {
		if z > level && (!found || z < best) {
			best, found = z, true
		}
	}
	return best, found
}

// leadOrder is the most confident institutional order; earlier orders win ties.
func leadOrder(orders []models.InstitutionalOrder) (models.InstitutionalOrder, bool) {
	if len(orders) == 0 {
		return models.InstitutionalOrder{}, false
	}
	lead := orders[0]
	for _, o := range orders[1:] {
		if o.Confidence > lead.Confidence {
			lead = o
		}
	}
	return lead, true
}

func sideOf(direction string) string {
	if direction == models.DirectionSell {
		return models.SideShort
	}
	return models.SideLong
}

func direction(long bool) float64 {
	if long {
		return 1
	}
	return -1
}

func trendLabel(trend string) string {
	if trend == models.TrendBearish {
		return "Bearish"
	}
	return "Bullish"
}

// roundPrice keeps 2 decimals above 1000, 4 above 1, 8 below.
func roundPrice(v float64) float64 {
	return decimal.NewFromFloat(v).Round(pricePlaces(v)).InexactFloat64()
}

func fmtPrice(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(pricePlaces(v))
}

func pricePlaces(v float64) int32 {
	abs := math.Abs(v)
	switch {
	case abs >= 1000:
		return 2
	case abs >= 1:
		return 4
	default:
		return 8
	}
}
