package features

import (
	"context"
	"fmt"
	"sync"

	"MarketRadar/internal/domain/models"
	"MarketRadar/internal/domain/service"
	applogger "MarketRadar/pkg/logger"
)

// Enricher analyzes a batch of tickers concurrently and isolates per-symbol failures.
type Enricher struct {
	analyzer service.Analyzer
	logger   *applogger.Logger
}

func NewEnricher(analyzer service.Analyzer, l *applogger.Logger) *Enricher {
	if l == nil {
		l = applogger.Nop()
	}
	return &Enricher{analyzer: analyzer, logger: l}
}

// Enrich returns one EnrichedTicker per input, in input order. A symbol whose analysis
// fails or panics gets NeutralAnalysis.
func (e *Enricher) Enrich(ctx context.Context, tickers []models.Ticker) []models.EnrichedTicker {
	out := make([]models.EnrichedTicker, len(tickers))
	var wg sync.WaitGroup
	for i := range tickers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := e.analyzeOne(ctx, tickers[i])
			if err != nil {
				e.logger.Warn("enrichment failed, using neutral analysis",
					applogger.String("symbol", tickers[i].Symbol),
					applogger.Error(err),
				)
				a = NeutralAnalysis(tickers[i].Symbol)
			}
			out[i] = models.EnrichedTicker{Ticker: tickers[i], Analysis: &a}
		}(i)
	}
	wg.Wait()
	return out
}

func (e *Enricher) analyzeOne(ctx context.Context, t models.Ticker) (a models.TechnicalAnalysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analyze %s panicked: %v", t.Symbol, r)
		}
	}()
	return e.analyzer.Analyze(ctx, t)
}
