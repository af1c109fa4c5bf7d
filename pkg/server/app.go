package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mid "MarketRadar/internal/middleware"
	"MarketRadar/internal/service/ratelimit"
	"MarketRadar/internal/services/learning"
	"MarketRadar/internal/usecase"
	"MarketRadar/pkg/config"
	xhttp "MarketRadar/pkg/http"
	applogger "MarketRadar/pkg/logger"
)

const (
	sweepInterval   = 24 * time.Hour
	limiterIdle     = 10 * time.Minute
	limiterInterval = time.Minute
)

type namedCloser struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	monitor    *usecase.MarketMonitor
	engine     *learning.Engine
	httpServer *xhttp.Server
	pipeline   *mid.AlertPipeline
	limiter    *ratelimit.Limiter
	closers    []namedCloser
}

type Option func(*App)

func WithAlertPipeline(p *mid.AlertPipeline) Option {
	return func(a *App) { a.pipeline = p }
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(a *App) { a.limiter = l }
}

// WithCloser registers a resource released on shutdown, in registration order.
func WithCloser(name string, c io.Closer) Option {
	return func(a *App) {
		if c != nil {
			a.closers = append(a.closers, namedCloser{name: name, c: c})
		}
	}
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	monitor *usecase.MarketMonitor,
	engine *learning.Engine,
	httpServer *xhttp.Server,
	opts ...Option,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{cfg: cfg, logger: l, monitor: monitor, engine: engine, httpServer: httpServer}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *App) Monitor() *usecase.MarketMonitor { return a.monitor }

func (a *App) Learning() *learning.Engine { return a.engine }

func (a *App) Logger() *applogger.Logger { return a.logger }

// Run starts the application and blocks until interrupted or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.pipeline != nil {
		a.pipeline.Start(ctx)
	}
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.monitor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.housekeeping(ctx)
	}()
	a.logger.Info("market monitor started",
		applogger.Strings("symbols", a.cfg.Exchange.Symbols),
		applogger.Duration("interval", a.cfg.Polling.Tickers),
	)

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	wg.Wait()
	return a.Shutdown(context.Background())
}

// housekeeping runs the retention sweep daily and forgets idle rate-limit keys.
func (a *App) housekeeping(ctx context.Context) {
	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()
	idle := time.NewTicker(limiterInterval)
	defer idle.Stop()

	a.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			a.sweep(ctx)
		case <-idle.C:
			if a.limiter != nil {
				a.limiter.Sweep(limiterIdle)
			}
		}
	}
}

func (a *App) sweep(ctx context.Context) {
	if _, err := a.engine.Sweep(ctx, a.cfg.Learning.RetentionDays); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("retention sweep failed", applogger.Error(err))
	}
}

// Shutdown gracefully stops all services.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down...")

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.logger.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.pipeline != nil {
		a.pipeline.Stop()
	}
	a.monitor.WaitLearning()

	for _, nc := range a.closers {
		if err := nc.c.Close(); err != nil {
			a.logger.Warn("close error", applogger.String("resource", nc.name), applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
