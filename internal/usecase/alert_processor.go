package usecase

import (
	"context"
	"fmt"
	"time"

	"MarketRadar/internal/domain/models"
	drepo "MarketRadar/internal/domain/repository"
	"MarketRadar/internal/services/analytics"
	"MarketRadar/pkg/metrics"
)

// Alert sink names.
const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// AlertBroadcaster fans alerts out to live subscribers.
type AlertBroadcaster interface {
	Broadcast(a models.RadarAlert)
}

// AlertProcessor delivers notified alerts to live subscribers and the configured sink.
type AlertProcessor struct {
	pub     drepo.AlertPublisher
	store   drepo.AlertStorage
	hub     AlertBroadcaster
	metrics drepo.Metrics
	backend string
}

func NewAlertProcessor(
	pub drepo.AlertPublisher,
	store drepo.AlertStorage,
	hub AlertBroadcaster,
	m drepo.Metrics,
	backend string,
) *AlertProcessor {
	if m == nil {
		m = metrics.Noop{}
	}
	if backend == "" {
		backend = BackendNone
	}
	return &AlertProcessor{pub: pub, store: store, hub: hub, metrics: m, backend: backend}
}

// Process broadcasts a and writes it to the sink.
func (p *AlertProcessor) Process(ctx context.Context, a *models.ExtendedRadarAlert) error {
	if a == nil {
		return fmt.Errorf("alert is nil")
	}
	p.broadcast(*a)
	return p.Deliver(ctx, a)
}

// Deliver writes a to the sink only. Live subscribers are not notified again.
func (p *AlertProcessor) Deliver(ctx context.Context, a *models.ExtendedRadarAlert) error {
	if a == nil {
		return fmt.Errorf("alert is nil")
	}
	start := time.Now()

	var err error
	switch p.backend {
	case BackendKafka:
		err = p.pub.Publish(ctx, a)
	case BackendClickHouse:
		err = p.store.Store(ctx, a)
	case BackendNone:
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("alert_process")
		return fmt.Errorf("process alert %s: %w", a.Symbol, err)
	}

	p.metrics.RecordMessageSent(p.backend, a.Symbol)
	p.metrics.RecordLatency("alert_process", time.Since(start).Seconds())
	return nil
}

// ProcessBatch writes alerts in one sink call.
func (p *AlertProcessor) ProcessBatch(ctx context.Context, alerts []*models.ExtendedRadarAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	start := time.Now()
	for _, a := range alerts {
		if a != nil {
			p.broadcast(*a)
		}
	}

	var err error
	switch p.backend {
	case BackendKafka:
		err = p.pub.PublishBatch(ctx, alerts)
	case BackendClickHouse:
		err = p.store.StoreBatch(ctx, alerts)
	case BackendNone:
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("alert_process_batch")
		return fmt.Errorf("process alert batch: %w", err)
	}

	for _, a := range alerts {
		if a != nil {
			p.metrics.RecordMessageSent(p.backend, a.Symbol)
		}
	}
	p.metrics.RecordLatency("alert_process_batch", time.Since(start).Seconds())
	return nil
}

func (p *AlertProcessor) broadcast(a models.ExtendedRadarAlert) {
	if p.hub == nil {
		return
	}
	for _, ra := range analytics.ToRadarAlerts([]models.ExtendedRadarAlert{a}) {
		p.hub.Broadcast(ra)
	}
}

// Close releases the sink clients.
func (p *AlertProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
