package learning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"MarketRadar/internal/domain/models"
	"MarketRadar/internal/domain/repository"
	"MarketRadar/internal/domain/service"
	applogger "MarketRadar/pkg/logger"
)

const (
	// DefaultRetentionDays is used by Sweep when no day count is given.
	DefaultRetentionDays = 30

	reconcileWindow   = 24 * time.Hour
	correctTolerance  = 0.05
	favoriteRelief    = 0.8
	levelEvidenceSize = 100
)

type Option func(*Engine)

func WithMetrics(m repository.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDefaults replaces the config written when the store has none.
func WithDefaults(cfg models.LearningConfig) Option {
	return func(e *Engine) { e.defaults = cfg }
}

// Engine records predictions, reconciles them against realized prices and
// maintains per-symbol accuracy and indicator weights.
type Engine struct {
	store    repository.LearningStore
	logger   *applogger.Logger
	metrics  repository.Metrics
	now      func() time.Time
	defaults models.LearningConfig

	mu  sync.RWMutex
	cfg *models.LearningConfig
}

var (
	_ service.LearningEngine      = (*Engine)(nil)
	_ service.ConfidenceOptimizer = (*Engine)(nil)
)

func NewEngine(store repository.LearningStore, l *applogger.Logger, opts ...Option) *Engine {
	if l == nil {
		l = applogger.Nop()
	}
	e := &Engine{
		store:    store,
		logger:   l,
		now:      time.Now,
		defaults: models.DefaultLearningConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init prepares the store and loads the config, writing defaults on first start.
func (e *Engine) Init(ctx context.Context) error {
	if err := e.store.Init(ctx); err != nil {
		return fmt.Errorf("init learning store: %w", err)
	}
	cfg, err := e.store.GetConfig(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		def := e.defaults
		if err := e.store.PutConfig(ctx, def); err != nil {
			return fmt.Errorf("write default learning config: %w", err)
		}
		cfg = &def
	} else if err != nil {
		return fmt.Errorf("load learning config: %w", err)
	}
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	return nil
}

func (e *Engine) Config(ctx context.Context) (models.LearningConfig, error) {
	e.mu.RLock()
	cfg := e.cfg
	e.mu.RUnlock()
	if cfg != nil {
		return *cfg, nil
	}
	stored, err := e.store.GetConfig(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return e.defaults, nil
	}
	if err != nil {
		return models.LearningConfig{}, fmt.Errorf("load learning config: %w", err)
	}
	e.mu.Lock()
	e.cfg = stored
	e.mu.Unlock()
	return *stored, nil
}

func (e *Engine) UpdateConfig(ctx context.Context, cfg models.LearningConfig) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}
	if err := e.store.PutConfig(ctx, cfg); err != nil {
		return fmt.Errorf("save learning config: %w", err)
	}
	e.mu.Lock()
	e.cfg = &cfg
	e.mu.Unlock()
	return nil
}

func ValidateConfig(cfg models.LearningConfig) error {
	switch {
	case cfg.MinPredictionsForLearning < 1:
		return fmt.Errorf("minPredictionsForLearning must be at least 1, got %d", cfg.MinPredictionsForLearning)
	case cfg.LearningRate <= 0 || cfg.LearningRate > 1:
		return fmt.Errorf("learningRate must be in (0,1], got %v", cfg.LearningRate)
	case cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1:
		return fmt.Errorf("confidenceThreshold must be in [0,1], got %v", cfg.ConfidenceThreshold)
	}
	return nil
}

// RecordPrediction appends a prediction when its confidence clears the threshold.
// Favourites get a relaxed threshold when PrioritizeFavorites is on.
// No dedup is attempted; callers avoid re-recording the same cycle.
func (e *Engine) RecordPrediction(ctx context.Context, in models.PredictionInput) (bool, error) {
	cfg, err := e.Config(ctx)
	if err != nil {
		return false, err
	}
	if !cfg.Enabled {
		return false, nil
	}
	if in.Symbol == "" {
		return false, errors.New("record prediction: empty symbol")
	}
	if in.PredictedPrice <= 0 || math.IsNaN(in.PredictedPrice) || math.IsInf(in.PredictedPrice, 0) {
		return false, fmt.Errorf("record prediction %s: invalid predicted price %v", in.Symbol, in.PredictedPrice)
	}

	threshold := cfg.ConfidenceThreshold
	if in.Favorite && cfg.PrioritizeFavorites {
		threshold *= favoriteRelief
	}
	if in.Confidence < threshold {
		return false, nil
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = e.now()
	}
	rec := &models.PredictionRecord{
		Symbol:            in.Symbol,
		Timestamp:         ts,
		PredictedPrice:    in.PredictedPrice,
		Confidence:        in.Confidence,
		IndicatorSnapshot: in.Indicators,
	}
	if _, err := e.store.AppendPrediction(ctx, rec); err != nil {
		return false, fmt.Errorf("append prediction %s: %w", in.Symbol, err)
	}
	return true, nil
}

// UpdatePredictionResult reconciles every open prediction for symbol made within
// the 24h before at. Reconciled records are never touched again.
func (e *Engine) UpdatePredictionResult(ctx context.Context, symbol string, at time.Time, actualPrice float64) (int, error) {
	if actualPrice <= 0 || math.IsNaN(actualPrice) || math.IsInf(actualPrice, 0) {
		return 0, nil
	}
	recs, err := e.store.PredictionsBySymbol(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("scan predictions %s: %w", symbol, err)
	}

	n := 0
	for _, rec := range recs {
		if rec.Reconciled() {
			continue
		}
		age := at.Sub(rec.Timestamp)
		if age < 0 || age > reconcileWindow {
			continue
		}
		correct := IsCorrect(rec.PredictedPrice, actualPrice)
		resolved, err := e.store.ResolvePrediction(ctx, rec.ID, actualPrice, correct)
		if err != nil {
			return n, fmt.Errorf("reconcile prediction %d: %w", rec.ID, err)
		}
		if !resolved {
			// a concurrent pass got there first
			continue
		}
		if e.metrics != nil {
			e.metrics.RecordPredictionOutcome(symbol, correct)
		}
		n++
	}
	return n, nil
}

// IsCorrect is true when the prediction landed within 5% of the realized price.
func IsCorrect(predicted, actual float64) bool {
	if actual <= 0 {
		return false
	}
	return math.Abs(predicted-actual)/actual < correctTolerance
}

// UpdateAssetStats rebuilds the stats row from all reconciled predictions.
// Weights move only once the symbol has reached the learning threshold.
func (e *Engine) UpdateAssetStats(ctx context.Context, symbol string) (*models.AssetLearningStats, error) {
	cfg, err := e.Config(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := e.store.PredictionsBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("scan predictions %s: %w", symbol, err)
	}

	var (
		total, correct int
		confSum        float64
		correctSum     models.IndicatorSnapshot
	)
	for _, r := range recs {
		if !r.Reconciled() {
			continue
		}
		total++
		confSum += r.Confidence
		if r.Correct != nil && *r.Correct {
			correct++
			correctSum.SMC += r.SMC
			correctSum.VolumeDelta += r.VolumeDelta
			correctSum.Liquidity += r.Liquidity
			correctSum.FVG += r.FVG
		}
	}
	if total == 0 {
		return nil, nil
	}

	prev, err := e.store.GetStats(ctx, symbol)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load stats %s: %w", symbol, err)
	}
	weights := models.EqualWeights()
	if prev != nil {
		weights = prev.IndicatorWeights.Normalized()
	}
	if total >= cfg.MinPredictionsForLearning && correct > 0 {
		n := float64(correct)
		target := models.IndicatorWeights{
			SMC:         correctSum.SMC / n,
			VolumeDelta: correctSum.VolumeDelta / n,
			Liquidity:   correctSum.Liquidity / n,
			FVG:         correctSum.FVG / n,
		}
		weights = Blend(weights, target.Normalized(), cfg.LearningRate)
	}

	accuracy := float64(correct) / float64(total)
	stats := models.AssetLearningStats{
		Symbol:             symbol,
		TotalPredictions:   total,
		CorrectPredictions: correct,
		AccuracyRate:       accuracy,
		AverageConfidence:  confSum / float64(total),
		IndicatorWeights:   weights,
		LearningLevel:      LearningLevel(accuracy, total),
		LastUpdated:        e.now(),
	}
	if err := e.store.PutStats(ctx, stats); err != nil {
		return nil, fmt.Errorf("save stats %s: %w", symbol, err)
	}
	return &stats, nil
}

// Blend is a fixed-rate moving average of two weight vectors, renormalized.
func Blend(prev, target models.IndicatorWeights, rate float64) models.IndicatorWeights {
	keep := 1 - rate
	return models.IndicatorWeights{
		SMC:         prev.SMC*keep + target.SMC*rate,
		VolumeDelta: prev.VolumeDelta*keep + target.VolumeDelta*rate,
		Liquidity:   prev.Liquidity*keep + target.Liquidity*rate,
		FVG:         prev.FVG*keep + target.FVG*rate,
	}.Normalized()
}

// LearningLevel rewards accuracy and the amount of evidence behind it.
func LearningLevel(accuracy float64, reconciled int) float64 {
	evidence := math.Min(float64(reconciled)/levelEvidenceSize, 1)
	return math.Min(0.7*accuracy+0.3*evidence, 1)
}

// MaturityOf derives the learning state of a symbol.
func MaturityOf(hasStats bool, reconciled, minPredictions int) models.Maturity {
	switch {
	case !hasStats:
		return models.MaturityCold
	case reconciled < minPredictions:
		return models.MaturityObserving
	default:
		return models.MaturityLearning
	}
}

func (e *Engine) Maturity(ctx context.Context, symbol string) (models.Maturity, error) {
	cfg, err := e.Config(ctx)
	if err != nil {
		return "", err
	}
	stats, err := e.GetAssetStats(ctx, symbol)
	if err != nil {
		return "", err
	}
	if stats == nil {
		return models.MaturityCold, nil
	}
	return MaturityOf(true, stats.TotalPredictions, cfg.MinPredictionsForLearning), nil
}

// GetOptimizedConfidence damps base by accuracy for learning symbols; it never amplifies.
func (e *Engine) GetOptimizedConfidence(ctx context.Context, symbol string, base float64) (float64, error) {
	cfg, err := e.Config(ctx)
	if err != nil {
		return base, err
	}
	if !cfg.Enabled {
		return base, nil
	}
	stats, err := e.GetAssetStats(ctx, symbol)
	if err != nil {
		return base, err
	}
	if stats == nil || MaturityOf(true, stats.TotalPredictions, cfg.MinPredictionsForLearning) != models.MaturityLearning {
		return base, nil
	}
	return clamp(base*(0.5+0.5*stats.AccuracyRate), 0, 1), nil
}

// GetAssetStats returns nil without error for cold symbols.
func (e *Engine) GetAssetStats(ctx context.Context, symbol string) (*models.AssetLearningStats, error) {
	stats, err := e.store.GetStats(ctx, symbol)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load stats %s: %w", symbol, err)
	}
	return stats, nil
}

func (e *Engine) AllStats(ctx context.Context) ([]models.AssetLearningStats, error) {
	stats, err := e.store.AllStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stats: %w", err)
	}
	return stats, nil
}

func (e *Engine) Predictions(ctx context.Context, symbol string) ([]models.PredictionRecord, error) {
	recs, err := e.store.PredictionsBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("scan predictions %s: %w", symbol, err)
	}
	return recs, nil
}

// Sweep deletes predictions older than days.
func (e *Engine) Sweep(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	cutoff := e.now().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := e.store.DeletePredictionsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep predictions: %w", err)
	}
	e.logger.Info("learning sweep complete",
		applogger.Int("days", days),
		applogger.Int64("deleted", n),
	)
	return n, nil
}

// Reset destroys all learning state and reinitializes with defaults.
// A blocked destroy is treated as success; it will be retried on a later reset.
func (e *Engine) Reset(ctx context.Context) error {
	err := e.store.Destroy(ctx)
	if errors.Is(err, repository.ErrStoreBlocked) {
		e.logger.Warn("learning store destroy blocked, continuing", applogger.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("destroy learning store: %w", err)
	}
	e.mu.Lock()
	e.cfg = nil
	e.mu.Unlock()
	return e.Init(ctx)
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
