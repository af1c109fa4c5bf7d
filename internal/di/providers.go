package di

import (
	"context"
	"fmt"
	"time"

	"MarketRadar/internal/domain/models"
	"MarketRadar/internal/domain/repository"
	"MarketRadar/internal/domain/service"
	"MarketRadar/internal/handler/api"
	mid "MarketRadar/internal/middleware"
	internalrepo "MarketRadar/internal/repository"
	"MarketRadar/internal/service/binance"
	icache "MarketRadar/internal/service/cache"
	"MarketRadar/internal/service/ratelimit"
	"MarketRadar/internal/services/analytics"
	"MarketRadar/internal/services/features"
	"MarketRadar/internal/services/learning"
	"MarketRadar/internal/usecase"
	pkgcache "MarketRadar/pkg/cache"
	pkgch "MarketRadar/pkg/clickhouse"
	"MarketRadar/pkg/config"
	"MarketRadar/pkg/database"
	xhttp "MarketRadar/pkg/http"
	httpmw "MarketRadar/pkg/http/middleware"
	pkgkafka "MarketRadar/pkg/kafka"
	applogger "MarketRadar/pkg/logger"
	"MarketRadar/pkg/metrics"
	"MarketRadar/pkg/server"
)

const initTimeout = 10 * time.Second

// ProvideLogger builds the zerolog-backed application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideMarketSource creates the Binance client, with the SDK proxy as spot fallback when enabled.
func ProvideMarketSource(cfg *config.Config, l *applogger.Logger, m repository.Metrics) repository.MarketDataSource {
	opts := []binance.Option{
		binance.WithFuturesURL(cfg.Exchange.FuturesBaseURL),
		binance.WithSpotURL(cfg.Exchange.SpotBaseURL),
		binance.WithHTTPClient(xhttp.NewClient(
			xhttp.WithTimeout(cfg.Exchange.Timeout),
			xhttp.WithUserAgent("marketradar/"+cfg.Environment),
			xhttp.WithMaxBody(8<<20),
		)),
		binance.WithMaxAttempts(cfg.Exchange.MaxAttempts),
		binance.WithRateLimit(cfg.Exchange.RateLimitRPS),
		binance.WithLogger(l.With(applogger.String("component", "binance"))),
		binance.WithMetrics(m),
	}
	if cfg.Exchange.ProxyEnabled {
		opts = append(opts, binance.WithProxy(binance.NewSDKProxy(cfg.Exchange.SpotBaseURL)))
	}
	return binance.New(opts...)
}

// ProvideLearningStore opens the configured learning store.
func ProvideLearningStore(cfg *config.Config) (repository.LearningStore, error) {
	switch cfg.Learning.Store {
	case "memory":
		return internalrepo.NewMemoryLearningStore(), nil
	case database.DriverSQLite, database.DriverPostgres:
		db, err := database.Open(database.Config{
			Driver:          cfg.Learning.Store,
			DSN:             cfg.Learning.DSN,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		})
		if err != nil {
			return nil, fmt.Errorf("learning store: %w", err)
		}
		return internalrepo.NewSQLLearningStore(db), nil
	default:
		return nil, fmt.Errorf("unknown learning store: %s", cfg.Learning.Store)
	}
}

// ProvideLearningEngine creates the engine and runs its first-start initialization.
func ProvideLearningEngine(
	store repository.LearningStore,
	cfg *config.Config,
	l *applogger.Logger,
	m repository.Metrics,
) (*learning.Engine, error) {
	defaults := models.DefaultLearningConfig()
	defaults.MinPredictionsForLearning = cfg.Learning.MinPredictions
	defaults.LearningRate = cfg.Learning.LearningRate
	defaults.ConfidenceThreshold = cfg.Learning.ConfidenceThreshold

	engine := learning.NewEngine(store, l.With(applogger.String("component", "learning")),
		learning.WithMetrics(m),
		learning.WithDefaults(defaults),
	)
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := engine.Init(ctx); err != nil {
		return nil, fmt.Errorf("learning engine: %w", err)
	}
	return engine, nil
}

// ProvideCache creates the preference and cooldown cache.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	if cfg.Preferences.Backend != "redis" {
		return pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(10_000)), nil
	}
	rc := cfg.Preferences.Redis
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(rc.Host),
		pkgcache.WithRedisPort(rc.Port),
		pkgcache.WithRedisPassword(rc.Password),
		pkgcache.WithRedisDB(rc.DB),
		pkgcache.WithRedisPrefix(rc.Prefix),
		pkgcache.WithRedisPool(10, 2, 3*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

func ProvidePreferences(c pkgcache.Service, l *applogger.Logger) *usecase.Preferences {
	return usecase.NewPreferences(internalrepo.NewCachePreferenceStore(c), l)
}

func ProvideAlertHub(l *applogger.Logger) *api.AlertHub {
	return api.NewAlertHub(l.With(applogger.String("component", "ws")), nil)
}

// ProvideAlertPublisher returns the Kafka publisher, or nil when alerts go elsewhere.
func ProvideAlertPublisher(cfg *config.Config) (repository.AlertPublisher, error) {
	if cfg.Alerts.Backend != usecase.BackendKafka {
		return nil, nil
	}
	k := cfg.Alerts.Kafka
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithMaxAttempts(k.MaxAttempts),
		pkgkafka.WithLinger(k.Linger),
		pkgkafka.WithWriteTimeout(k.WriteTimeout),
		pkgkafka.WithAsync(k.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaAlertPublisher(producer, k.Topic), nil
}

// ProvideAlertStorage returns the ClickHouse archive with its schema applied, or nil.
func ProvideAlertStorage(cfg *config.Config) (repository.AlertStorage, error) {
	if cfg.Alerts.Backend != usecase.BackendClickHouse {
		return nil, nil
	}
	ch := cfg.Alerts.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, true),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	store := internalrepo.NewClickHouseAlertStorage(client, "")
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

func ProvideAlertProcessor(
	pub repository.AlertPublisher,
	store repository.AlertStorage,
	hub *api.AlertHub,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.AlertProcessor {
	return usecase.NewAlertProcessor(pub, store, hub, m, cfg.Alerts.Backend)
}

// ProvideAlertPipeline gates notifications by the stored preferences and cooldowns.
func ProvideAlertPipeline(
	proc *usecase.AlertProcessor,
	prefs *usecase.Preferences,
	c pkgcache.Service,
	l *applogger.Logger,
	m repository.Metrics,
	cfg *config.Config,
) *mid.AlertPipeline {
	return mid.NewAlertPipeline(proc, prefs, c,
		mid.WithBufferSize(cfg.Alerts.BufferSize),
		mid.WithLogger(l.With(applogger.String("component", "alerts"))),
		mid.WithMetrics(m),
	)
}

func ProvideRadarScan(source repository.MarketDataSource, l *applogger.Logger, m repository.Metrics) *usecase.RadarScan {
	return usecase.NewRadarScan(source, analytics.NewDetector(), analytics.NewMetricsHistory(), l, m)
}

func ProvideMarketMonitor(
	source repository.MarketDataSource,
	engine *learning.Engine,
	scan *usecase.RadarScan,
	prefs *usecase.Preferences,
	pipe *mid.AlertPipeline,
	cfg *config.Config,
	l *applogger.Logger,
	m repository.Metrics,
) *usecase.MarketMonitor {
	var optimizer service.ConfidenceOptimizer = engine
	enricher := features.NewEnricher(features.NewEngine(optimizer, l), l)
	return usecase.NewMarketMonitor(source, enricher, scan, engine, prefs, usecase.MonitorConfig{
		Symbols:               cfg.Exchange.Symbols,
		SpotSymbols:           cfg.Exchange.SpotSymbols,
		TickerInterval:        cfg.Polling.Tickers,
		DepthInterval:         cfg.Polling.Depth,
		InstitutionalInterval: cfg.Polling.Institutional,
		DepthLimit:            cfg.Polling.DepthLimit,
		WallMultiple:          cfg.Polling.WallMultiple,
	}, l.With(applogger.String("component", "monitor")),
		usecase.WithNotifier(pipe),
		usecase.WithMonitorMetrics(m),
	)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
}

func ProvideRadarHandler(
	monitor *usecase.MarketMonitor,
	prefs *usecase.Preferences,
	engine *learning.Engine,
	hub *api.AlertHub,
	l *applogger.Logger,
) *api.RadarHandler {
	return api.NewRadarHandler(monitor, prefs, engine, icache.NewTTLCache(), hub, l)
}

// ProvideHTTPServer builds the Echo server with per-client rate limiting.
func ProvideHTTPServer(
	cfg *config.Config,
	handler *api.RadarHandler,
	limiter *ratelimit.Limiter,
	l *applogger.Logger,
) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(handler, l,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithMiddleware(httpmw.RateLimit(limiter)),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	monitor *usecase.MarketMonitor,
	engine *learning.Engine,
	httpServer *xhttp.Server,
	pipe *mid.AlertPipeline,
	hub *api.AlertHub,
	proc *usecase.AlertProcessor,
	limiter *ratelimit.Limiter,
	store repository.LearningStore,
	c pkgcache.Service,
) *server.App {
	return server.New(cfg, l, monitor, engine, httpServer,
		server.WithAlertPipeline(pipe),
		server.WithCloser("alert hub", closerFunc(func() error { hub.Close(); return nil })),
		server.WithCloser("alert sinks", closerFunc(func() error { proc.Close(); return nil })),
		server.WithCloser("learning store", store),
		server.WithCloser("cache", c),
		server.WithLimiter(limiter),
	)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
