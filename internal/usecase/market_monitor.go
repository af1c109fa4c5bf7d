package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"MarketRadar/internal/domain/models"
	"MarketRadar/internal/domain/repository"
	"MarketRadar/internal/domain/service"
	"MarketRadar/internal/services/analytics"
	"MarketRadar/internal/services/features"
	"MarketRadar/internal/services/opportunity"
	"MarketRadar/internal/services/trade"
	applogger "MarketRadar/pkg/logger"
	"MarketRadar/pkg/metrics"
)

// AlertNotifier receives each alert of a finished cycle.
type AlertNotifier interface {
	Process(ctx context.Context, a *models.ExtendedRadarAlert) error
}

// MonitorConfig holds the poll cadence and symbol universe.
type MonitorConfig struct {
	Symbols               []string
	SpotSymbols           []string
	TickerInterval        time.Duration
	DepthInterval         time.Duration
	InstitutionalInterval time.Duration
	DepthLimit            int
	WallMultiple          float64
	RecommendationLimit   int
}

// DefaultMonitorConfig polls tickers every 30s, depth every 10s and walls every 60s.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		TickerInterval:        30 * time.Second,
		DepthInterval:         10 * time.Second,
		InstitutionalInterval: 60 * time.Second,
		DepthLimit:            100,
		WallMultiple:          5,
		RecommendationLimit:   10,
	}
}

// Snapshot is the read-only view published after each refresh. Slices and maps
// are replaced, never mutated, once published.
type Snapshot struct {
	Version         uint64                                `json:"version"`
	Tickers         []models.EnrichedTicker               `json:"tickers"`
	Alerts          []models.ExtendedRadarAlert           `json:"alerts"`
	Recommendations []models.Recommendation               `json:"recommendations"`
	Opportunities   map[string][]models.OpportunityItem   `json:"opportunities"`
	Depth           map[string]*models.OrderBook          `json:"depth"`
	Walls           map[string][]models.InstitutionalOrder `json:"walls"`
	Status          models.MarketStatus                   `json:"status"`
}

// MarketMonitor drives the poll cycles and owns the published snapshot.
type MarketMonitor struct {
	source   repository.MarketDataSource
	enricher *features.Enricher
	scan     *RadarScan
	learning service.LearningEngine
	prefs    *Preferences
	notifier AlertNotifier
	logger   *applogger.Logger
	metrics  repository.Metrics
	cfg      MonitorConfig
	now      func() time.Time

	mu   sync.RWMutex
	snap Snapshot

	learnWG sync.WaitGroup
}

type MonitorOption func(*MarketMonitor)

func WithNotifier(n AlertNotifier) MonitorOption {
	return func(m *MarketMonitor) { m.notifier = n }
}

func WithMonitorClock(now func() time.Time) MonitorOption {
	return func(m *MarketMonitor) { m.now = now }
}

func WithMonitorMetrics(r repository.Metrics) MonitorOption {
	return func(m *MarketMonitor) { m.metrics = r }
}

func NewMarketMonitor(
	source repository.MarketDataSource,
	enricher *features.Enricher,
	scan *RadarScan,
	learning service.LearningEngine,
	prefs *Preferences,
	cfg MonitorConfig,
	l *applogger.Logger,
	opts ...MonitorOption,
) *MarketMonitor {
	if l == nil {
		l = applogger.Nop()
	}
	def := DefaultMonitorConfig()
	if cfg.TickerInterval <= 0 {
		cfg.TickerInterval = def.TickerInterval
	}
	if cfg.DepthInterval <= 0 {
		cfg.DepthInterval = def.DepthInterval
	}
	if cfg.InstitutionalInterval <= 0 {
		cfg.InstitutionalInterval = def.InstitutionalInterval
	}
	if cfg.DepthLimit <= 0 {
		cfg.DepthLimit = def.DepthLimit
	}
	if cfg.WallMultiple <= 0 {
		cfg.WallMultiple = def.WallMultiple
	}
	if cfg.RecommendationLimit <= 0 {
		cfg.RecommendationLimit = def.RecommendationLimit
	}

	m := &MarketMonitor{
		source:   source,
		enricher: enricher,
		scan:     scan,
		learning: learning,
		prefs:    prefs,
		logger:   l,
		metrics:  metrics.Noop{},
		cfg:      cfg,
		now:      time.Now,
		snap: Snapshot{
			Tickers:         []models.EnrichedTicker{},
			Alerts:          []models.ExtendedRadarAlert{},
			Recommendations: []models.Recommendation{},
			Opportunities:   map[string][]models.OpportunityItem{},
			Depth:           map[string]*models.OrderBook{},
			Walls:           map[string][]models.InstitutionalOrder{},
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run polls until ctx is cancelled. The three cadences are independent.
func (m *MarketMonitor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	loop := func(name string, every time.Duration, fn func(context.Context) error) {
		defer wg.Done()
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				m.logger.Warn("refresh failed", applogger.String("cycle", name), applogger.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}

	wg.Add(3)
	go loop("tickers", m.cfg.TickerInterval, m.RefreshTickers)
	go loop("depth", m.cfg.DepthInterval, m.RefreshDepth)
	go loop("institutional", m.cfg.InstitutionalInterval, m.RefreshInstitutional)
	wg.Wait()
	m.WaitLearning()
}

// RefreshTickers runs one full ticker cycle and publishes a new snapshot.
// Learning feedback runs in the background; see WaitLearning.
func (m *MarketMonitor) RefreshTickers(ctx context.Context) error {
	start := m.now()
	m.setFetching(true)
	defer m.setFetching(false)

	tickers, err := m.source.Tickers(ctx, m.cfg.Symbols)
	if err != nil {
		m.recordFailure(err)
		return fmt.Errorf("refresh tickers: %w", err)
	}

	partial := map[string]string{}
	usedFallback := false
	if len(m.cfg.SpotSymbols) > 0 {
		res, err := m.source.SpotTickers(ctx, m.cfg.SpotSymbols)
		if err != nil {
			partial["spot"] = err.Error()
			m.logger.Warn("spot tickers unavailable", applogger.Error(err))
		} else {
			usedFallback = res.UsedFallback
			tickers = mergeTickers(tickers, res.Tickers)
		}
	}
	for _, t := range tickers {
		m.metrics.RecordLastPrice(t.Symbol, t.LastPrice)
	}

	enriched := m.enricher.Enrich(ctx, tickers)
	preset := m.prefs.Sensitivity(ctx)
	scan := m.scan.Run(ctx, tickers, analytics.PolicyFor(preset))
	for k, v := range scan.Errors {
		partial[k] = v
	}
	recs := analytics.GenerateRecommendations(enriched, m.cfg.RecommendationLimit, start)
	opps := opportunity.All(enriched)

	m.mu.Lock()
	m.snap.Version++
	m.snap.Tickers = enriched
	m.snap.Alerts = scan.Alerts
	m.snap.Recommendations = recs
	m.snap.Opportunities = opps
	m.snap.Status = models.MarketStatus{
		LastUpdated:  start,
		Fetching:     true,
		UsedFallback: usedFallback,
		Preset:       preset,
	}
	if len(partial) > 0 {
		m.snap.Status.Partial = partial
	}
	m.mu.Unlock()

	m.notify(ctx, scan.Alerts)

	m.learnWG.Add(1)
	go m.learn(context.WithoutCancel(ctx), enriched, start)

	m.metrics.RecordLatency("refresh_tickers", m.now().Sub(start).Seconds())
	return nil
}

func (m *MarketMonitor) notify(ctx context.Context, alerts []models.ExtendedRadarAlert) {
	if m.notifier == nil {
		return
	}
	for i := range alerts {
		a := alerts[i]
		if err := m.notifier.Process(ctx, &a); err != nil {
			m.logger.Warn("alert notification failed", applogger.String("symbol", a.Symbol), applogger.Error(err))
		}
	}
}

// learn reconciles prior predictions, refreshes stats and records the new
// prediction for every symbol. Failures are logged and absorbed.
func (m *MarketMonitor) learn(ctx context.Context, enriched []models.EnrichedTicker, at time.Time) {
	defer m.learnWG.Done()
	if m.learning == nil {
		return
	}

	favorites := map[string]bool{}
	for _, s := range m.prefs.Favorites(ctx) {
		favorites[s] = true
	}

	for _, t := range enriched {
		if t.Analysis == nil || t.LastPrice <= 0 {
			continue
		}
		warn := func(step string, err error) {
			m.logger.Warn("learning step failed",
				applogger.String("step", step),
				applogger.String("symbol", t.Symbol),
				applogger.Error(err),
			)
		}

		if _, err := m.learning.UpdatePredictionResult(ctx, t.Symbol, at, t.LastPrice); err != nil {
			warn("reconcile", err)
		}
		if _, err := m.learning.UpdateAssetStats(ctx, t.Symbol); err != nil {
			warn("stats", err)
		}
		a := t.Analysis
		if _, err := m.learning.RecordPrediction(ctx, models.PredictionInput{
			Symbol:         t.Symbol,
			Timestamp:      at,
			PredictedPrice: a.PredictedPrice,
			Confidence:     a.Confidence,
			Indicators:     a.Indicators,
			Favorite:       favorites[t.Symbol],
		}); err != nil {
			warn("record", err)
		}
	}
}

// WaitLearning blocks until background learning from earlier cycles finishes.
func (m *MarketMonitor) WaitLearning() {
	m.learnWG.Wait()
}

// RefreshDepth fetches order books for favourites, or the first configured symbol.
func (m *MarketMonitor) RefreshDepth(ctx context.Context) error {
	symbols := m.depthSymbols(ctx)
	books := make(map[string]*models.OrderBook, len(symbols))
	var errs []error
	for _, s := range symbols {
		book, err := m.source.OrderBook(ctx, s, m.cfg.DepthLimit)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s, err))
			continue
		}
		books[s] = book
	}

	m.mu.Lock()
	m.snap.Depth = books
	m.mu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("refresh depth: %w", errors.Join(errs...))
	}
	return nil
}

// RefreshInstitutional recomputes order-book walls from the latest depth.
func (m *MarketMonitor) RefreshInstitutional(ctx context.Context) error {
	m.mu.RLock()
	books := m.snap.Depth
	m.mu.RUnlock()

	if len(books) == 0 {
		if err := m.RefreshDepth(ctx); err != nil {
			return err
		}
		m.mu.RLock()
		books = m.snap.Depth
		m.mu.RUnlock()
	}

	walls := make(map[string][]models.InstitutionalOrder, len(books))
	for sym, book := range books {
		walls[sym] = features.DetectOrderBookWalls(book, m.cfg.WallMultiple)
	}

	m.mu.Lock()
	m.snap.Walls = walls
	m.mu.Unlock()
	return nil
}

func (m *MarketMonitor) depthSymbols(ctx context.Context) []string {
	if favs := m.prefs.Favorites(ctx); len(favs) > 0 {
		return favs
	}
	if len(m.cfg.Symbols) > 0 {
		return m.cfg.Symbols[:1]
	}
	return nil
}

// Snapshot returns the latest published view with staleness evaluated now.
func (m *MarketMonitor) Snapshot() Snapshot {
	m.mu.RLock()
	s := m.snap
	m.mu.RUnlock()

	if !s.Status.LastUpdated.IsZero() && m.now().Sub(s.Status.LastUpdated) > 2*m.cfg.TickerInterval {
		s.Status.Stale = true
	}
	return s
}

// Ticker returns the enriched ticker for symbol from the latest snapshot.
func (m *MarketMonitor) Ticker(symbol string) (models.EnrichedTicker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.snap.Tickers {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return models.EnrichedTicker{}, false
}

// Trade computes a trade plan for symbol. An unknown symbol yields the missing-data failure.
func (m *MarketMonitor) Trade(symbol string, modality models.Modality) models.TradeRecommendationResult {
	t, ok := m.Ticker(symbol)
	if !ok {
		t = models.EnrichedTicker{Ticker: models.Ticker{Symbol: symbol}}
	}
	return trade.Calculate(modality, t)
}

// SetSensitivity persists the preset; the next cycle uses it.
func (m *MarketMonitor) SetSensitivity(ctx context.Context, preset string) error {
	if err := m.prefs.SetSensitivity(ctx, preset); err != nil {
		return err
	}
	m.mu.Lock()
	m.snap.Status.Preset = preset
	m.mu.Unlock()
	return nil
}

// SetFavoritesLearningPriority stores the flag and mirrors it into the learning config.
func (m *MarketMonitor) SetFavoritesLearningPriority(ctx context.Context, enabled bool) error {
	if err := m.prefs.SetFavoritesLearningPriority(ctx, enabled); err != nil {
		return err
	}
	if m.learning == nil {
		return nil
	}
	cfg, err := m.learning.Config(ctx)
	if err != nil {
		return fmt.Errorf("read learning config: %w", err)
	}
	cfg.PrioritizeFavorites = enabled
	return m.learning.UpdateConfig(ctx, cfg)
}

// Reset wipes learning state, preferences and radar history.
func (m *MarketMonitor) Reset(ctx context.Context) error {
	m.WaitLearning()

	var errs []error
	if m.learning != nil {
		if err := m.learning.Reset(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.prefs.Reset(ctx); err != nil {
		errs = append(errs, err)
	}
	m.scan.ResetHistory()

	m.mu.Lock()
	m.snap.Alerts = []models.ExtendedRadarAlert{}
	m.snap.Status.Preset = analytics.DefaultPreset
	m.mu.Unlock()

	return errors.Join(errs...)
}

func (m *MarketMonitor) setFetching(v bool) {
	m.mu.Lock()
	m.snap.Status.Fetching = v
	m.mu.Unlock()
}

// recordFailure keeps the previous data and marks the status with the error.
func (m *MarketMonitor) recordFailure(err error) {
	kind := models.ClassifyError(err)
	m.metrics.RecordError(string(kind))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.Status.Error = models.UserMessage(kind)
	m.snap.Status.ErrorKind = kind
	m.snap.Status.Suggestion = models.Suggestion(err)
	m.snap.Status.Stale = true
}

// mergeTickers appends extra tickers whose symbols are not already present.
func mergeTickers(base, extra []models.Ticker) []models.Ticker {
	seen := make(map[string]struct{}, len(base))
	for _, t := range base {
		seen[t.Symbol] = struct{}{}
	}
	out := append([]models.Ticker(nil), base...)
	for _, t := range extra {
		if _, ok := seen[t.Symbol]; ok {
			continue
		}
		seen[t.Symbol] = struct{}{}
		out = append(out, t)
	}
	return out
}
