package repository

import "MarketRadar/internal/domain/models"

// IsValidModality returns true if m is a supported trade modality.
func IsValidModality(m models.Modality) bool {
	switch m {
	case models.ModalityScalping, models.ModalityDay, models.ModalitySwing, models.ModalityPosition:
		return true
	default:
		return false
	}
}

// DefaultModality returns the default trade modality.
func DefaultModality() models.Modality { return models.ModalityDay }

// NormalizeModality converts a raw string to a valid modality (or default).
func NormalizeModality(s string) models.Modality {
	if s == "" {
		return DefaultModality()
	}
	m := models.Modality(s)
	if IsValidModality(m) {
		return m
	}
	return DefaultModality()
}

// IsValidOpportunity returns true if name is one of the six opportunity lists.
func IsValidOpportunity(name string) bool {
	switch name {
	case models.OpportunityScalping, models.OpportunitySwing, models.OpportunityBreakout,
		models.OpportunityReversal, models.OpportunitySmartMoney, models.OpportunityFairValueGap:
		return true
	default:
		return false
	}
}
