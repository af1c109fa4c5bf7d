package features

import "MarketRadar/internal/domain/models"

// Tags walks a fixed checklist and appends a label for each condition that holds.
// Bands within one group are mutually exclusive; the detection tags are additive.
func Tags(a models.TechnicalAnalysis) []string {
	tags := make([]string, 0, 7)

	switch {
	case a.Confidence >= 0.8:
		tags = append(tags, "High Confidence")
	case a.Confidence >= 0.6:
		tags = append(tags, "Medium Confidence")
	default:
		tags = append(tags, "Low Confidence")
	}

	if a.LearningLevel != nil {
		switch lvl := *a.LearningLevel; {
		case lvl >= 0.7:
			tags = append(tags, "AI Optimized")
		case lvl >= 0.4:
			tags = append(tags, "Learning")
		default:
			tags = append(tags, "Early Learning")
		}
	}

	switch {
	case a.VolumeDelta > 5:
		tags = append(tags, "High Volume")
	case a.VolumeDelta > 2:
		tags = append(tags, "Elevated Volume")
	}

	switch {
	case a.Volatility > 0.08:
		tags = append(tags, "High Volatility")
	case a.Volatility > 0 && a.Volatility < 0.02:
		tags = append(tags, "Low Volatility")
	}

	switch {
	case a.Strength >= 70:
		tags = append(tags, "Strong Trend")
	case a.Strength <= 30:
		tags = append(tags, "Weak Trend")
	}

	if len(a.ManipulationZones) > 0 {
		tags = append(tags, "Manipulation Zone")
	}
	if len(a.InstitutionalOrders) > 0 {
		tags = append(tags, "Institutional Flow")
	}
	return tags
}
