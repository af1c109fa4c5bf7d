package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MarketRadar/internal/domain/models"
	"MarketRadar/internal/domain/repository"
	"MarketRadar/pkg/clickhouse"
	pkgkafka "MarketRadar/pkg/kafka"
)

const (
	alertColumns   = "ts, id, symbol, direction, confidence, anomaly_score, price_change_percent, volume_ratio, anomaly_types, reasons"
	alertRowValues = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	alertChunkSize = 1000
)

// ClickHouseAlertStorage archives extended radar alerts.
type ClickHouseAlertStorage struct {
	client *clickhouse.Client
	table  string
}

var _ repository.AlertStorage = (*ClickHouseAlertStorage)(nil)

func NewClickHouseAlertStorage(client *clickhouse.Client, table string) *ClickHouseAlertStorage {
	if table == "" {
		table = "radar_alerts"
	}
	return &ClickHouseAlertStorage{client: client, table: table}
}

// AlertSchema is the DDL for the alert archive table.
func AlertSchema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	ts DateTime64(3),
	id String,
	symbol LowCardinality(String),
	direction LowCardinality(String),
	confidence Float64,
	anomaly_score Float64,
	price_change_percent Float64,
	volume_ratio Float64,
	anomaly_types Array(String),
	reasons Array(String)
) ENGINE = MergeTree
PARTITION BY toYYYYMMDD(ts)
ORDER BY (symbol, ts)
TTL toDateTime(ts) + INTERVAL 30 DAY`, table),
	}
}

func (s *ClickHouseAlertStorage) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, AlertSchema(s.table))
}

func (s *ClickHouseAlertStorage) Store(ctx context.Context, a *models.ExtendedRadarAlert) error {
	return s.StoreBatch(ctx, []*models.ExtendedRadarAlert{a})
}

// StoreBatch inserts alerts with multi-row VALUES, chunked to bound statement size.
func (s *ClickHouseAlertStorage) StoreBatch(ctx context.Context, alerts []*models.ExtendedRadarAlert) error {
	for start := 0; start < len(alerts); start += alertChunkSize {
		end := start + alertChunkSize
		if end > len(alerts) {
			end = len(alerts)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*10)
		for _, a := range alerts[start:end] {
			if a == nil || a.Symbol == "" {
				continue
			}
			values = append(values, alertRowValues)
			args = append(args,
				a.Timestamp.UTC(),
				a.ID,
				a.Symbol,
				a.Direction,
				a.Confidence,
				a.AnomalyScore,
				a.PriceChangePercent,
				a.VolumeRatio,
				nonNil(a.AnomalyTypes),
				nonNil(a.Reasons),
			)
		}
		if len(values) == 0 {
			continue
		}

		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, alertColumns, strings.Join(values, ","))
		if _, err := s.client.DB().ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store alerts [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

// Query returns archived alerts for symbol in [from, to], newest first. An empty symbol matches all.
func (s *ClickHouseAlertStorage) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.ExtendedRadarAlert, error) {
	if limit <= 0 {
		limit = 100
	}
	where := "ts >= ? AND ts <= ?"
	args := []interface{}{from.UTC(), to.UTC()}
	if symbol != "" {
		where += " AND symbol = ?"
		args = append(args, symbol)
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY ts DESC LIMIT %d", alertColumns, s.table, where, limit)

	rows, err := s.client.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []*models.ExtendedRadarAlert
	for rows.Next() {
		a := &models.ExtendedRadarAlert{}
		if err := rows.Scan(
			&a.Timestamp,
			&a.ID,
			&a.Symbol,
			&a.Direction,
			&a.Confidence,
			&a.AnomalyScore,
			&a.PriceChangePercent,
			&a.VolumeRatio,
			&a.AnomalyTypes,
			&a.Reasons,
		); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *ClickHouseAlertStorage) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *ClickHouseAlertStorage) Close() error {
	return s.client.Close()
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// KafkaAlertPublisher publishes alerts as JSON keyed by symbol.
type KafkaAlertPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ repository.AlertPublisher = (*KafkaAlertPublisher)(nil)

func NewKafkaAlertPublisher(producer *pkgkafka.Producer, topic string) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{producer: producer, topic: topic}
}

func (p *KafkaAlertPublisher) Publish(ctx context.Context, a *models.ExtendedRadarAlert) error {
	return p.producer.Publish(ctx, p.topic, []byte(a.Symbol), a)
}

func (p *KafkaAlertPublisher) PublishBatch(ctx context.Context, alerts []*models.ExtendedRadarAlert) error {
	msgs := make([]pkgkafka.Message, 0, len(alerts))
	for _, a := range alerts {
		if a == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(a.Symbol), Value: a})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaAlertPublisher) Close() error {
	return p.producer.Close()
}
