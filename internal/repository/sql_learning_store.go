package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"MarketRadar/internal/domain/models"
	"MarketRadar/internal/domain/repository"
)

// SQLLearningStore persists learning state through sqlx. Timestamps are stored
// as unix milliseconds so sqlite and postgres compare them identically.
type SQLLearningStore struct {
	db *sqlx.DB
}

var _ repository.LearningStore = (*SQLLearningStore)(nil)

func NewSQLLearningStore(db *sqlx.DB) *SQLLearningStore {
	return &SQLLearningStore{db: db}
}

type predictionRow struct {
	ID             int64           `db:"id"`
	Symbol         string          `db:"symbol"`
	TsMillis       int64           `db:"ts"`
	PredictedPrice float64         `db:"predicted_price"`
	ActualPrice    sql.NullFloat64 `db:"actual_price"`
	Confidence     float64         `db:"confidence"`
	SMC            float64         `db:"smc"`
	VolumeDelta    float64         `db:"volume_delta"`
	Liquidity      float64         `db:"liquidity"`
	FVG            float64         `db:"fvg"`
	Correct        sql.NullBool    `db:"correct"`
}

func (r predictionRow) model() models.PredictionRecord {
	rec := models.PredictionRecord{
		ID:             r.ID,
		Symbol:         r.Symbol,
		Timestamp:      time.UnixMilli(r.TsMillis).UTC(),
		PredictedPrice: r.PredictedPrice,
		Confidence:     r.Confidence,
		IndicatorSnapshot: models.IndicatorSnapshot{
			SMC:         r.SMC,
			VolumeDelta: r.VolumeDelta,
			Liquidity:   r.Liquidity,
			FVG:         r.FVG,
		},
	}
	if r.ActualPrice.Valid {
		v := r.ActualPrice.Float64
		rec.ActualPrice = &v
	}
	if r.Correct.Valid {
		v := r.Correct.Bool
		rec.Correct = &v
	}
	return rec
}

type statsRow struct {
	Symbol             string  `db:"symbol"`
	TotalPredictions   int     `db:"total_predictions"`
	CorrectPredictions int     `db:"correct_predictions"`
	AccuracyRate       float64 `db:"accuracy_rate"`
	AverageConfidence  float64 `db:"average_confidence"`
	WeightSMC          float64 `db:"w_smc"`
	WeightVolumeDelta  float64 `db:"w_volume_delta"`
	WeightLiquidity    float64 `db:"w_liquidity"`
	WeightFVG          float64 `db:"w_fvg"`
	LearningLevel      float64 `db:"learning_level"`
	UpdatedMillis      int64   `db:"last_updated"`
}

func (r statsRow) model() models.AssetLearningStats {
	return models.AssetLearningStats{
		Symbol:             r.Symbol,
		TotalPredictions:   r.TotalPredictions,
		CorrectPredictions: r.CorrectPredictions,
		AccuracyRate:       r.AccuracyRate,
		AverageConfidence:  r.AverageConfidence,
		IndicatorWeights: models.IndicatorWeights{
			SMC:         r.WeightSMC,
			VolumeDelta: r.WeightVolumeDelta,
			Liquidity:   r.WeightLiquidity,
			FVG:         r.WeightFVG,
		},
		LearningLevel: r.LearningLevel,
		LastUpdated:   time.UnixMilli(r.UpdatedMillis).UTC(),
	}
}

type configRow struct {
	Enabled             bool    `db:"enabled"`
	MinPredictions      int     `db:"min_predictions"`
	LearningRate        float64 `db:"learning_rate"`
	ConfidenceThreshold float64 `db:"confidence_threshold"`
	PrioritizeFavorites bool    `db:"prioritize_favorites"`
}

const predictionColumns = "id, symbol, ts, predicted_price, actual_price, confidence, smc, volume_delta, liquidity, fvg, correct"

func (s *SQLLearningStore) Init(ctx context.Context) error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.db.DriverName() == "postgres" {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS predictions (
			id %s,
			symbol TEXT NOT NULL,
			ts BIGINT NOT NULL,
			predicted_price DOUBLE PRECISION NOT NULL,
			actual_price DOUBLE PRECISION,
			confidence DOUBLE PRECISION NOT NULL,
			smc DOUBLE PRECISION NOT NULL DEFAULT 0,
			volume_delta DOUBLE PRECISION NOT NULL DEFAULT 0,
			liquidity DOUBLE PRECISION NOT NULL DEFAULT 0,
			fvg DOUBLE PRECISION NOT NULL DEFAULT 0,
			correct BOOLEAN
		)`, idColumn),
		`CREATE INDEX IF NOT EXISTS idx_predictions_symbol ON predictions (symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_ts ON predictions (ts)`,
		`CREATE TABLE IF NOT EXISTS asset_stats (
			symbol TEXT PRIMARY KEY,
			total_predictions INTEGER NOT NULL,
			correct_predictions INTEGER NOT NULL,
			accuracy_rate DOUBLE PRECISION NOT NULL,
			average_confidence DOUBLE PRECISION NOT NULL,
			w_smc DOUBLE PRECISION NOT NULL,
			w_volume_delta DOUBLE PRECISION NOT NULL,
			w_liquidity DOUBLE PRECISION NOT NULL,
			w_fvg DOUBLE PRECISION NOT NULL,
			learning_level DOUBLE PRECISION NOT NULL,
			last_updated BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS learning_config (
			id INTEGER PRIMARY KEY,
			enabled BOOLEAN NOT NULL,
			min_predictions INTEGER NOT NULL,
			learning_rate DOUBLE PRECISION NOT NULL,
			confidence_threshold DOUBLE PRECISION NOT NULL,
			prioritize_favorites BOOLEAN NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init learning schema: %w", err)
		}
	}
	return nil
}

func (s *SQLLearningStore) AppendPrediction(ctx context.Context, rec *models.PredictionRecord) (int64, error) {
	q := s.db.Rebind(`INSERT INTO predictions
		(symbol, ts, predicted_price, confidence, smc, volume_delta, liquidity, fvg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	err := s.db.QueryRowxContext(ctx, q,
		rec.Symbol,
		rec.Timestamp.UnixMilli(),
		rec.PredictedPrice,
		rec.Confidence,
		rec.SMC,
		rec.VolumeDelta,
		rec.Liquidity,
		rec.FVG,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert prediction: %w", err)
	}
	rec.ID = id
	return id, nil
}

func (s *SQLLearningStore) PredictionsBySymbol(ctx context.Context, symbol string) ([]models.PredictionRecord, error) {
	q := s.db.Rebind("SELECT " + predictionColumns + " FROM predictions WHERE symbol = ? ORDER BY id")
	var rows []predictionRow
	if err := s.db.SelectContext(ctx, &rows, q, symbol); err != nil {
		return nil, fmt.Errorf("select predictions: %w", err)
	}
	out := make([]models.PredictionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (s *SQLLearningStore) ResolvePrediction(ctx context.Context, id int64, actual float64, correct bool) (bool, error) {
	q := s.db.Rebind(`UPDATE predictions SET actual_price = ?, correct = ? WHERE id = ? AND actual_price IS NULL`)
	res, err := s.db.ExecContext(ctx, q, actual, correct, id)
	if err != nil {
		return false, fmt.Errorf("resolve prediction %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve prediction %d: %w", id, err)
	}
	if n > 0 {
		return true, nil
	}

	var exists int
	if err := s.db.GetContext(ctx, &exists, s.db.Rebind(`SELECT COUNT(1) FROM predictions WHERE id = ?`), id); err != nil {
		return false, fmt.Errorf("lookup prediction %d: %w", id, err)
	}
	if exists == 0 {
		return false, repository.ErrNotFound
	}
	return false, nil
}

func (s *SQLLearningStore) GetStats(ctx context.Context, symbol string) (*models.AssetLearningStats, error) {
	q := s.db.Rebind(`SELECT * FROM asset_stats WHERE symbol = ?`)
	var row statsRow
	err := s.db.GetContext(ctx, &row, q, symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select stats: %w", err)
	}
	st := row.model()
	return &st, nil
}

func (s *SQLLearningStore) PutStats(ctx context.Context, st models.AssetLearningStats) error {
	q := s.db.Rebind(`INSERT INTO asset_stats
		(symbol, total_predictions, correct_predictions, accuracy_rate, average_confidence,
		 w_smc, w_volume_delta, w_liquidity, w_fvg, learning_level, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			total_predictions = EXCLUDED.total_predictions,
			correct_predictions = EXCLUDED.correct_predictions,
			accuracy_rate = EXCLUDED.accuracy_rate,
			average_confidence = EXCLUDED.average_confidence,
			w_smc = EXCLUDED.w_smc,
			w_volume_delta = EXCLUDED.w_volume_delta,
			w_liquidity = EXCLUDED.w_liquidity,
			w_fvg = EXCLUDED.w_fvg,
			learning_level = EXCLUDED.learning_level,
			last_updated = EXCLUDED.last_updated`)
	w := st.IndicatorWeights
	_, err := s.db.ExecContext(ctx, q,
		st.Symbol, st.TotalPredictions, st.CorrectPredictions, st.AccuracyRate, st.AverageConfidence,
		w.SMC, w.VolumeDelta, w.Liquidity, w.FVG, st.LearningLevel, st.LastUpdated.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert stats %s: %w", st.Symbol, err)
	}
	return nil
}

func (s *SQLLearningStore) AllStats(ctx context.Context) ([]models.AssetLearningStats, error) {
	var rows []statsRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM asset_stats ORDER BY symbol`); err != nil {
		return nil, fmt.Errorf("select stats: %w", err)
	}
	out := make([]models.AssetLearningStats, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (s *SQLLearningStore) GetConfig(ctx context.Context) (*models.LearningConfig, error) {
	var row configRow
	err := s.db.GetContext(ctx, &row, `SELECT enabled, min_predictions, learning_rate, confidence_threshold, prioritize_favorites
		FROM learning_config WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select learning config: %w", err)
	}
	return &models.LearningConfig{
		Enabled:                   row.Enabled,
		MinPredictionsForLearning: row.MinPredictions,
		LearningRate:              row.LearningRate,
		ConfidenceThreshold:       row.ConfidenceThreshold,
		PrioritizeFavorites:       row.PrioritizeFavorites,
	}, nil
}

func (s *SQLLearningStore) PutConfig(ctx context.Context, cfg models.LearningConfig) error {
	q := s.db.Rebind(`INSERT INTO learning_config
		(id, enabled, min_predictions, learning_rate, confidence_threshold, prioritize_favorites)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			min_predictions = EXCLUDED.min_predictions,
			learning_rate = EXCLUDED.learning_rate,
			confidence_threshold = EXCLUDED.confidence_threshold,
			prioritize_favorites = EXCLUDED.prioritize_favorites`)
	_, err := s.db.ExecContext(ctx, q,
		cfg.Enabled, cfg.MinPredictionsForLearning, cfg.LearningRate, cfg.ConfidenceThreshold, cfg.PrioritizeFavorites,
	)
	if err != nil {
		return fmt.Errorf("upsert learning config: %w", err)
	}
	return nil
}

func (s *SQLLearningStore) DeletePredictionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	q := s.db.Rebind(`DELETE FROM predictions WHERE ts < ?`)
	res, err := s.db.ExecContext(ctx, q, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete predictions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete predictions: %w", err)
	}
	return n, nil
}

// Destroy drops all learning tables. Lock contention is reported as ErrStoreBlocked.
func (s *SQLLearningStore) Destroy(ctx context.Context) error {
	for _, table := range []string{"predictions", "asset_stats", "learning_config"} {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			if isLockError(err) {
				return fmt.Errorf("%w: %v", repository.ErrStoreBlocked, err)
			}
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}

func (s *SQLLearningStore) Close() error {
	return s.db.Close()
}

func isLockError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") ||
		strings.Contains(msg, "busy") ||
		strings.Contains(msg, "lock timeout")
}
