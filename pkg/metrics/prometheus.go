package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"MarketRadar/internal/domain/repository"
)

// Recorder implements repository.Metrics on Prometheus.
type Recorder struct {
	fetches      *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	alerts       *prometheus.CounterVec
	predictions  *prometheus.CounterVec
	messagesSent *prometheus.CounterVec
}

var _ repository.Metrics = (*Recorder)(nil)

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers on reg; tests pass a fresh prometheus.NewRegistry().
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketradar_fetches_total",
				Help: "Exchange fetches by venue and result",
			},
			[]string{"venue", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketradar_errors_total",
				Help: "Errors by kind",
			},
			[]string{"kind"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketradar_last_price",
				Help: "Last price seen for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketradar_operation_duration_seconds",
				Help:    "Duration of pipeline operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		alerts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketradar_radar_alerts_total",
				Help: "Radar alerts by anomaly type",
			},
			[]string{"type"},
		),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketradar_prediction_outcomes_total",
				Help: "Reconciled predictions by symbol and outcome",
			},
			[]string{"symbol", "outcome"},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketradar_messages_sent_total",
				Help: "Alerts delivered to a sink",
			},
			[]string{"backend", "symbol"},
		),
	}
}

func (r *Recorder) RecordFetch(venue string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	r.fetches.WithLabelValues(venue, result).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordAlert(anomalyType string) {
	r.alerts.WithLabelValues(anomalyType).Inc()
}

func (r *Recorder) RecordPredictionOutcome(symbol string, correct bool) {
	outcome := "miss"
	if correct {
		outcome = "hit"
	}
	r.predictions.WithLabelValues(symbol, outcome).Inc()
}

func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}

// Noop discards everything.
type Noop struct{}

var _ repository.Metrics = Noop{}

func (Noop) RecordFetch(string, bool) {}
func (Noop) RecordError(string) {}
func (Noop) RecordLastPrice(string, float64) {}
func (Noop) RecordLatency(string, float64) {}
func (Noop) RecordAlert(string) {}
func (Noop) RecordPredictionOutcome(string, bool) {}
func (Noop) RecordMessageSent(string, string) {}
