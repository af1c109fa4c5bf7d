package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"MarketRadar/internal/domain/models"
	domrepo "MarketRadar/internal/domain/repository"
	"MarketRadar/pkg/cache"
	applogger "MarketRadar/pkg/logger"
	"MarketRadar/pkg/metrics"
)

// Proc is the minimal processor interface the pipeline needs. Process announces
// and delivers a fresh alert; Deliver repeats only the sink write on redelivery.
type Proc interface {
	Process(ctx context.Context, a *models.ExtendedRadarAlert) error
	Deliver(ctx context.Context, a *models.ExtendedRadarAlert) error
}

// PolicyGate reports the active sensitivity policy and whether notifications are on.
type PolicyGate interface {
	NotificationPolicy(ctx context.Context) (models.RadarSensitivityPolicy, bool)
}

// AlertPipeline sits between the radar and the alert sinks.
// It validates, gates by confidence and per-symbol cooldown, and buffers when downstream fails.
type AlertPipeline struct {
	proc    Proc
	gate    PolicyGate
	cache   cache.Service
	metrics domrepo.Metrics
	logger  *applogger.Logger
	bufSize int
	bufCh   chan *models.ExtendedRadarAlert
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
}

type PipelineOption func(*AlertPipeline)

// WithBufferSize sets the retry buffer used while downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *AlertPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func WithLogger(l *applogger.Logger) PipelineOption {
	return func(p *AlertPipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithMetrics(m domrepo.Metrics) PipelineOption {
	return func(p *AlertPipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// NewAlertPipeline creates a new pipeline. c holds the cooldown locks.
func NewAlertPipeline(proc Proc, gate PolicyGate, c cache.Service, opts ...PipelineOption) *AlertPipeline {
	p := &AlertPipeline{
		proc:    proc,
		gate:    gate,
		cache:   c,
		metrics: metrics.Noop{},
		logger:  applogger.Nop(),
		bufSize: 256,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.ExtendedRadarAlert, p.bufSize)
	return p
}

// Start launches background redelivery of buffered alerts.
func (p *AlertPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case a := <-p.bufCh:
				if a == nil {
					continue
				}
				if err := p.proc.Deliver(ctx, a); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					select {
					case <-time.After(backoff):
					case <-p.stopCh:
						return
					}
					select {
					case p.bufCh <- a:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background redelivery. Buffered alerts are dropped.
func (p *AlertPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates a, applies the notification gate and cooldown, then forwards it.
// Gated alerts return nil. A downstream failure buffers the alert and returns the error.
func (p *AlertPipeline) Process(ctx context.Context, a *models.ExtendedRadarAlert) error {
	start := time.Now()
	if err := validateAlert(a); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}

	policy, enabled := p.gate.NotificationPolicy(ctx)
	if !enabled {
		return nil
	}
	if a.Confidence < policy.MinConfidenceForNotification {
		return nil
	}
	if !p.claimCooldown(ctx, a.Symbol, policy.NotificationCooldown) {
		p.metrics.RecordError("pipeline_cooldown")
		return nil
	}

	if err := p.proc.Process(ctx, a); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- a:
			p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// claimCooldown takes the per-symbol notification slot. A cache failure lets the alert through.
func (p *AlertPipeline) claimCooldown(ctx context.Context, symbol string, ttl time.Duration) bool {
	if p.cache == nil || ttl <= 0 {
		return true
	}
	ok, err := p.cache.TryLock(ctx, cache.Key("cooldown", symbol), ttl)
	if err != nil {
		p.logger.Warn("cooldown check failed", applogger.String("symbol", symbol), applogger.Error(err))
		return true
	}
	return ok
}

// Buffered is the number of alerts waiting for redelivery.
func (p *AlertPipeline) Buffered() int {
	return len(p.bufCh)
}

func validateAlert(a *models.ExtendedRadarAlert) error {
	if a == nil {
		return fmt.Errorf("alert nil")
	}
	if a.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if math.IsNaN(a.Confidence) || a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("confidence out of range")
	}
	return nil
}
