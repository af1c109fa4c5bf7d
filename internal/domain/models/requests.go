package models

// Requests for the radar HTTP endpoints.

type SymbolRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,min=5,max=20"`
}

type AlertsRequest struct {
	Types []string `query:"types" json:"types" validate:"dive,oneof=price_move volume_spike extreme_volatility funding_irregularity oi_spike"`
}

type RecommendationsRequest struct {
	Limit int `query:"limit" json:"limit" default:"10" validate:"gte=1,lte=50"`
}

type OpportunitiesRequest struct {
	Modality string `query:"modality" json:"modality" default:"scalping" validate:"oneof=scalping swing breakout reversal smc fvg"`
}

type TradeRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required,min=5,max=20"`
	Modality string `query:"modality" json:"modality" default:"day" validate:"oneof=scalping day swing position"`
}

type LearningStatsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,min=5,max=20"`
}

type PredictionsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,min=5,max=20"`
	Since  string `query:"since" json:"since"`
	Limit  int    `query:"limit" json:"limit" default:"200" validate:"gte=1,lte=5000"`
}

type SensitivityRequest struct {
	Preset string `json:"preset" validate:"required,oneof=conservative balanced aggressive"`
}

type FavoritesRequest struct {
	Symbols []string `json:"symbols" validate:"max=50,dive,min=5,max=20"`
}

type AlertSettingsRequest struct {
	AlertsEnabled             *bool    `json:"alertsEnabled"`
	FavoritesLearningPriority *bool    `json:"favoritesLearningPriority"`
	RadarFilters              []string `json:"radarFilters" validate:"omitempty,dive,oneof=price_move volume_spike extreme_volatility funding_irregularity oi_spike"`
}
