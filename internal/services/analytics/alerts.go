package analytics

import (
	"sort"
	"strings"
	"time"

	"MarketRadar/internal/domain/models"
)

// DefaultRecommendationLimit caps GenerateRecommendations when limit <= 0.
const DefaultRecommendationLimit = 10

const (
	recommendationMinConfidence = 0.6
	recommendationMinStrength   = 50
)

// GenerateRecommendations picks bullish, confident, strong candidates ranked by strength*confidence.
func GenerateRecommendations(tickers []models.EnrichedTicker, limit int, now time.Time) []models.Recommendation {
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}
	out := make([]models.Recommendation, 0, limit)
	for _, t := range tickers {
		a := t.Analysis
		if a == nil || !a.IsBullish() {
			continue
		}
		if a.Confidence < recommendationMinConfidence || a.Strength < recommendationMinStrength {
			continue
		}
		out = append(out, models.Recommendation{
			Symbol:     t.Symbol,
			Strength:   a.Strength,
			Confidence: a.Confidence,
			Timestamp:  now,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		si := out[i].Strength * out[i].Confidence
		sj := out[j].Strength * out[j].Confidence
		if si != sj {
			return si > sj
		}
		return out[i].Symbol < out[j].Symbol
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Severity bands an alert confidence.
func Severity(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return models.SeverityHigh
	case confidence >= 0.6:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// ToRadarAlerts flattens extended alerts. Type is the strongest sub-score,
// ties resolved by display order.
func ToRadarAlerts(alerts []models.ExtendedRadarAlert) []models.RadarAlert {
	out := make([]models.RadarAlert, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, models.RadarAlert{
			ID:         a.ID,
			Symbol:     a.Symbol,
			Type:       primaryType(a),
			Severity:   Severity(a.Confidence),
			Message:    strings.Join(a.Reasons, "; "),
			Direction:  a.Direction,
			Confidence: a.Confidence,
			Timestamp:  a.Timestamp,
		})
	}
	return out
}

func primaryType(a models.ExtendedRadarAlert) string {
	best := ""
	bestScore := -1.0
	for _, t := range models.AllAnomalyTypes {
		if !a.HasType(t) {
			continue
		}
		if s := a.SubScores[t]; s > bestScore {
			best, bestScore = t, s
		}
	}
	return best
}

// FilterAlerts keeps alerts carrying any of the selected types. An empty selection keeps everything.
func FilterAlerts(alerts []models.ExtendedRadarAlert, types []string) []models.ExtendedRadarAlert {
	if len(types) == 0 {
		return alerts
	}
	out := make([]models.ExtendedRadarAlert, 0, len(alerts))
	for _, a := range alerts {
		for _, t := range types {
			if a.HasType(t) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// IsValidAnomalyType reports whether t is a known radar filter option.
func IsValidAnomalyType(t string) bool {
	for _, known := range models.AllAnomalyTypes {
		if known == t {
			return true
		}
	}
	return false
}
