package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketRadar/internal/domain/models"
	"MarketRadar/pkg/clickhouse"
	pkgkafka "MarketRadar/pkg/kafka"
)

// passthrough lets array arguments reach sqlmock unchanged, as the ClickHouse driver accepts them.
type passthrough struct{}

func (passthrough) ConvertValue(v interface{}) (driver.Value, error) { return v, nil }

func newAlertStorage(t *testing.T) (*ClickHouseAlertStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(passthrough{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewClickHouseAlertStorage(clickhouse.NewClientWithDB(db), "alerts"), mock
}

func sampleAlert(symbol string, ts time.Time) *models.ExtendedRadarAlert {
	return &models.ExtendedRadarAlert{
		ID:                 symbol + "-1",
		Symbol:             symbol,
		PriceChangePercent: 6.2,
		VolumeRatio:        3.4,
		Direction:          models.DirectionBuy,
		Confidence:         0.72,
		AnomalyScore:       0.8,
		AnomalyTypes:       []string{models.AnomalyPriceMove, models.AnomalyVolumeSpike},
		Reasons:            []string{"price +6.20%", "volume 3.4x median"},
		Timestamp:          ts,
	}
}

func TestAlertStorageInitCreatesTable(t *testing.T) {
	s, mock := newAlertStorage(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS alerts")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertStorageStoreBatchSkipsInvalid(t *testing.T) {
	s, mock := newAlertStorage(t)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := sampleAlert("BTCUSDT", ts)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO alerts (" + alertColumns + ") VALUES " + alertRowValues + "")).
		WithArgs(ts, "BTCUSDT-1", "BTCUSDT", models.DirectionBuy, 0.72, 0.8, 6.2, 3.4, a.AnomalyTypes, a.Reasons).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.StoreBatch(context.Background(), []*models.ExtendedRadarAlert{nil, a, {Symbol: ""}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertStorageStoreBatchEmpty(t *testing.T) {
	s, mock := newAlertStorage(t)
	require.NoError(t, s.StoreBatch(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertStorageStoreWrapsError(t *testing.T) {
	s, mock := newAlertStorage(t)
	mock.ExpectExec("INSERT INTO alerts").WillReturnError(errors.New("table is read only"))

	err := s.Store(context.Background(), sampleAlert("ETHUSDT", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table is read only")
}

func TestAlertStorageQuery(t *testing.T) {
	s, mock := newAlertStorage(t)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	ts := from.Add(time.Hour)

	rows := mock.NewRows([]string{"ts", "id", "symbol", "direction", "confidence", "anomaly_score", "price_change_percent", "volume_ratio", "anomaly_types", "reasons"}).
		AddRow(ts, "a1", "BTCUSDT", models.DirectionSell, 0.65, 0.7, -5.5, 1.2, []string{models.AnomalyPriceMove}, []string{"price -5.50%"})
	mock.ExpectQuery(regexp.QuoteMeta("WHERE ts >= ? AND ts <= ? AND symbol = ? ORDER BY ts DESC LIMIT 10")).
		WithArgs(from, to, "BTCUSDT").
		WillReturnRows(rows)

	got, err := s.Query(context.Background(), "BTCUSDT", from, to, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, ts, got[0].Timestamp)
	assert.Equal(t, []string{models.AnomalyPriceMove}, got[0].AnomalyTypes)
	assert.InDelta(t, -5.5, got[0].PriceChangePercent, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertStorageQueryAllSymbolsDefaultLimit(t *testing.T) {
	s, mock := newAlertStorage(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT 100")).
		WillReturnRows(sqlmock.NewRows([]string{"ts"}))

	got, err := s.Query(context.Background(), "", time.Time{}, time.Now(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

type recordingWriter struct {
	msgs []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaAlertPublisherKeysBySymbol(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaAlertPublisher(pkgkafka.NewProducerWithWriter(w, "snappy"), "radar.alerts")
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, p.Publish(context.Background(), sampleAlert("SOLUSDT", ts)))
	require.NoError(t, p.PublishBatch(context.Background(), []*models.ExtendedRadarAlert{nil, sampleAlert("ADAUSDT", ts)}))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "SOLUSDT", string(w.msgs[0].Key))
	assert.Equal(t, "ADAUSDT", string(w.msgs[1].Key))
	assert.Equal(t, "radar.alerts", w.msgs[1].Topic)
	assert.Contains(t, string(w.msgs[0].Value), `"symbol":"SOLUSDT"`)
	require.NoError(t, p.Close())
}
