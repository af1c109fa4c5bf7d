package repository

import (
	"context"
	"errors"
	"time"

	"MarketRadar/internal/domain/models"
)

var (
	// ErrNotFound is returned by stores when a keyed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStoreBlocked is returned when the store cannot be destroyed because it is still in use.
	ErrStoreBlocked = errors.New("store blocked by another open handle")
)

// MarketDataSource fetches snapshots and supplementary metrics from the exchange.
type MarketDataSource interface {
	Tickers(ctx context.Context, symbols []string) ([]models.Ticker, error)
	SpotTickers(ctx context.Context, symbols []string) (models.SpotResult, error)
	FundingRates(ctx context.Context, symbols []string) (map[string]float64, error)
	OpenInterest(ctx context.Context, symbols []string) (map[string]float64, error)
	OrderBook(ctx context.Context, symbol string, limit int) (*models.OrderBook, error)
}

// LearningStore persists predictions, per-symbol stats and the singleton config.
type LearningStore interface {
	Init(ctx context.Context) error
	AppendPrediction(ctx context.Context, rec *models.PredictionRecord) (int64, error)
	PredictionsBySymbol(ctx context.Context, symbol string) ([]models.PredictionRecord, error)
	// ResolvePrediction records the outcome of an open prediction. It reports false,
	// without writing, when the prediction was already resolved.
	ResolvePrediction(ctx context.Context, id int64, actual float64, correct bool) (bool, error)
	GetStats(ctx context.Context, symbol string) (*models.AssetLearningStats, error)
	PutStats(ctx context.Context, stats models.AssetLearningStats) error
	AllStats(ctx context.Context) ([]models.AssetLearningStats, error)
	GetConfig(ctx context.Context) (*models.LearningConfig, error)
	PutConfig(ctx context.Context, cfg models.LearningConfig) error
	DeletePredictionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Destroy(ctx context.Context) error
	Close() error
}

// PreferenceStore is simple key to string persistence.
type PreferenceStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
}

// AlertPublisher pushes alerts to a message bus.
type AlertPublisher interface {
	Publish(ctx context.Context, a *models.ExtendedRadarAlert) error
	PublishBatch(ctx context.Context, alerts []*models.ExtendedRadarAlert) error
	Close() error
}

// AlertStorage archives alerts for later analysis.
type AlertStorage interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, a *models.ExtendedRadarAlert) error
	StoreBatch(ctx context.Context, alerts []*models.ExtendedRadarAlert) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.ExtendedRadarAlert, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics records pipeline telemetry.
type Metrics interface {
	RecordFetch(venue string, ok bool)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordAlert(anomalyType string)
	RecordPredictionOutcome(symbol string, correct bool)
	RecordMessageSent(backend, symbol string)
}
