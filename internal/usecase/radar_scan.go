package usecase

import (
	"context"
	"sync"
	"time"

	"MarketRadar/internal/domain/models"
	"MarketRadar/internal/domain/repository"
	"MarketRadar/internal/services/analytics"
	applogger "MarketRadar/pkg/logger"
	"MarketRadar/pkg/metrics"
)

// ScanResult is the outcome of one radar pass.
type ScanResult struct {
	Alerts  []models.ExtendedRadarAlert `json:"alerts"`
	Metrics models.SupplementaryMetrics `json:"-"`
	Errors  map[string]string           `json:"errors,omitempty"`
}

// RadarScan owns the metrics history and runs the detector once per ticker cycle.
type RadarScan struct {
	source   repository.MarketDataSource
	detector *analytics.Detector
	history  *analytics.MetricsHistory
	logger   *applogger.Logger
	metrics  repository.Metrics
}

func NewRadarScan(
	source repository.MarketDataSource,
	detector *analytics.Detector,
	history *analytics.MetricsHistory,
	l *applogger.Logger,
	m repository.Metrics,
) *RadarScan {
	if l == nil {
		l = applogger.Nop()
	}
	if m == nil {
		m = metrics.Noop{}
	}
	if history == nil {
		history = analytics.NewMetricsHistory()
	}
	return &RadarScan{source: source, detector: detector, history: history, logger: l, metrics: m}
}

// Run fetches funding and open interest concurrently, then detects anomalies.
// Supplementary fetch failures degrade to empty maps and are reported in Errors.
func (s *RadarScan) Run(ctx context.Context, tickers []models.Ticker, policy models.RadarSensitivityPolicy) ScanResult {
	start := time.Now()
	symbols := make([]string, 0, len(tickers))
	for _, t := range tickers {
		symbols = append(symbols, t.Symbol)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs = make(map[string]string)
		sup  = models.SupplementaryMetrics{
			Funding:      map[string]float64{},
			OpenInterest: map[string]float64{},
		}
	)
	fetch := func(name string, fn func() (map[string]float64, error), dst *map[string]float64) {
		defer wg.Done()
		v, err := fn()
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs[name] = err.Error()
			s.logger.Warn("supplementary metric unavailable", applogger.String("metric", name), applogger.Error(err))
			return
		}
		if v != nil {
			*dst = v
		}
	}

	if len(symbols) > 0 {
		wg.Add(2)
		go fetch("funding", func() (map[string]float64, error) {
			return s.source.FundingRates(ctx, symbols)
		}, &sup.Funding)
		go fetch("openInterest", func() (map[string]float64, error) {
			return s.source.OpenInterest(ctx, symbols)
		}, &sup.OpenInterest)
		wg.Wait()
	}

	alerts := s.detector.Detect(tickers, policy, sup, s.history)
	for _, a := range alerts {
		for _, t := range a.AnomalyTypes {
			s.metrics.RecordAlert(t)
		}
	}
	s.metrics.RecordLatency("radar_scan", time.Since(start).Seconds())

	res := ScanResult{Alerts: alerts, Metrics: sup}
	if len(errs) > 0 {
		res.Errors = errs
	}
	return res
}

func (s *RadarScan) History() *analytics.MetricsHistory {
	return s.history
}

// ResetHistory forgets all prior-cycle funding and open-interest values.
func (s *RadarScan) ResetHistory() {
	s.history.Reset()
}
