package service

import (
	"context"
	"time"

	"MarketRadar/internal/domain/models"
)

// Analyzer derives a TechnicalAnalysis from one ticker.
type Analyzer interface {
	Analyze(ctx context.Context, t models.Ticker) (models.TechnicalAnalysis, error)
}

// ConfidenceOptimizer is the read side of the learning engine used during analysis.
type ConfidenceOptimizer interface {
	GetOptimizedConfidence(ctx context.Context, symbol string, base float64) (float64, error)
	GetAssetStats(ctx context.Context, symbol string) (*models.AssetLearningStats, error)
}

// LearningEngine records predictions, reconciles them and maintains per-symbol stats.
type LearningEngine interface {
	ConfidenceOptimizer
	Init(ctx context.Context) error
	RecordPrediction(ctx context.Context, in models.PredictionInput) (bool, error)
	UpdatePredictionResult(ctx context.Context, symbol string, at time.Time, actualPrice float64) (int, error)
	UpdateAssetStats(ctx context.Context, symbol string) (*models.AssetLearningStats, error)
	AllStats(ctx context.Context) ([]models.AssetLearningStats, error)
	Predictions(ctx context.Context, symbol string) ([]models.PredictionRecord, error)
	Maturity(ctx context.Context, symbol string) (models.Maturity, error)
	Config(ctx context.Context) (models.LearningConfig, error)
	UpdateConfig(ctx context.Context, cfg models.LearningConfig) error
	Sweep(ctx context.Context, days int) (int64, error)
	Reset(ctx context.Context) error
}
