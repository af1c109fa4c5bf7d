package usecase

import (
	"context"
	"errors"
	"sync"

	"MarketRadar/internal/domain/models"
	"MarketRadar/internal/repository"
	"MarketRadar/pkg/cache"
)

type fakeSource struct {
	mu         sync.Mutex
	tickers    []models.Ticker
	tickersErr error
	spot       models.SpotResult
	spotErr    error
	funding    map[string]float64
	fundingErr error
	oi         map[string]float64
	oiErr      error
	books      map[string]*models.OrderBook
	bookCalls  []string
}

func (f *fakeSource) Tickers(context.Context, []string) ([]models.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tickersErr != nil {
		return nil, f.tickersErr
	}
	return append([]models.Ticker(nil), f.tickers...), nil
}

func (f *fakeSource) SpotTickers(context.Context, []string) (models.SpotResult, error) {
	if f.spotErr != nil {
		return models.SpotResult{}, f.spotErr
	}
	return f.spot, nil
}

func (f *fakeSource) FundingRates(context.Context, []string) (map[string]float64, error) {
	return f.funding, f.fundingErr
}

func (f *fakeSource) OpenInterest(context.Context, []string) (map[string]float64, error) {
	return f.oi, f.oiErr
}

func (f *fakeSource) OrderBook(_ context.Context, symbol string, _ int) (*models.OrderBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookCalls = append(f.bookCalls, symbol)
	if b, ok := f.books[symbol]; ok {
		return b, nil
	}
	return nil, errors.New("no book")
}

type collectingNotifier struct {
	mu     sync.Mutex
	alerts []models.ExtendedRadarAlert
}

func (c *collectingNotifier) Process(_ context.Context, a *models.ExtendedRadarAlert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, *a)
	return nil
}

func newTestPreferences() *Preferences {
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	return NewPreferences(repository.NewCachePreferenceStore(mc), nil)
}

// quiet builds a ticker with a 1% intraday range and the given move and volume.
func quiet(symbol string, pct, quoteVolume float64) models.Ticker {
	return models.Ticker{
		Symbol:             symbol,
		PriceChangePercent: pct,
		OpenPrice:          100,
		HighPrice:          100.5,
		LowPrice:           99.5,
		LastPrice:          100 * (1 + pct/100),
		QuoteVolume:        quoteVolume,
		Count:              200_000,
	}
}

func spikeBatch() []models.Ticker {
	return []models.Ticker{
		quiet("AAAUSDT", 1, 1e9),
		quiet("BBBUSDT", -1, 1e9),
		quiet("SPIKEUSDT", 4.5, 4e9),
	}
}
