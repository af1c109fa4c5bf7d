package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"MarketRadar/internal/domain/models"
	"MarketRadar/internal/domain/repository"
	xhttp "MarketRadar/pkg/http"
	applogger "MarketRadar/pkg/logger"
	"MarketRadar/pkg/metrics"
)

const (
	DefaultFuturesURL = "https://fapi.binance.com"
	DefaultSpotURL    = "https://api.binance.com"

	defaultDepthLimit = 100
)

// Client is the exchange-backed MarketDataSource.
type Client struct {
	futuresURL  string
	spotURL     string
	http        *xhttp.Client
	proxy       SpotProxy
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	rps         float64

	breakers map[string]*gobreaker.CircuitBreaker
	limiters map[string]*rate.Limiter

	logger  *applogger.Logger
	metrics repository.Metrics
}

var _ repository.MarketDataSource = (*Client)(nil)

type Option func(*Client)

func WithFuturesURL(u string) Option { return func(c *Client) { c.futuresURL = u } }

func WithSpotURL(u string) Option { return func(c *Client) { c.spotURL = u } }

// WithProxy sets the fallback used when the spot venue fails.
func WithProxy(p SpotProxy) Option { return func(c *Client) { c.proxy = p } }

func WithHTTPClient(h *xhttp.Client) Option { return func(c *Client) { c.http = h } }

// WithMaxAttempts bounds attempts for retryable failures, first try included.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		c.baseBackoff = base
		c.maxBackoff = max
	}
}

// WithRateLimit caps requests per second per venue. Zero disables limiting.
func WithRateLimit(rps float64) Option { return func(c *Client) { c.rps = rps } }

func WithLogger(l *applogger.Logger) Option { return func(c *Client) { c.logger = l } }

func WithMetrics(m repository.Metrics) Option { return func(c *Client) { c.metrics = m } }

func New(opts ...Option) *Client {
	c := &Client{
		futuresURL:  DefaultFuturesURL,
		spotURL:     DefaultSpotURL,
		maxAttempts: 3,
		baseBackoff: 200 * time.Millisecond,
		maxBackoff:  2 * time.Second,
		rps:         10,
		logger:      applogger.Nop(),
		metrics:     metrics.Noop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient(xhttp.WithTimeout(10 * time.Second))
	}

	c.breakers = make(map[string]*gobreaker.CircuitBreaker, 2)
	c.limiters = make(map[string]*rate.Limiter, 2)
	for _, venue := range []string{models.VenueFutures, models.VenueSpot} {
		c.breakers[venue] = newBreaker(venue)
		limit := rate.Inf
		if c.rps > 0 {
			limit = rate.Limit(c.rps)
		}
		c.limiters[venue] = rate.NewLimiter(limit, int(c.rps)+1)
	}
	return c
}

// newBreaker trips after 5 consecutive transport or server failures.
// Refusals (blocked, rate limit, malformed) do not count against the venue.
func newBreaker(venue string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "binance-" + venue,
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *models.SourceError
			return errors.As(err, &se) && !se.Retryable()
		},
	})
}

// Tickers returns futures 24h tickers, filtered to symbols when given.
func (c *Client) Tickers(ctx context.Context, symbols []string) ([]models.Ticker, error) {
	body, err := c.get(ctx, models.VenueFutures, c.futuresURL+"/fapi/v1/ticker/24hr", nil)
	if err != nil {
		return nil, err
	}
	all, err := ParseTickers(body, models.VenueFutures)
	if err != nil {
		c.metrics.RecordError(string(models.ErrKindMalformed))
		return nil, err
	}
	return filterTickers(all, symbols), nil
}

// SpotTickers queries the spot venue and falls back to the backend proxy.
func (c *Client) SpotTickers(ctx context.Context, symbols []string) (models.SpotResult, error) {
	tickers, spotErr := c.spotTickers(ctx, symbols)
	if spotErr == nil {
		return models.SpotResult{Tickers: tickers}, nil
	}
	if c.proxy == nil {
		return models.SpotResult{}, spotErr
	}

	c.logger.Warn("spot venue failed, using proxy",
		applogger.String("kind", string(models.ClassifyError(spotErr))),
		applogger.Error(spotErr),
	)
	raw, err := c.proxy.TickersJSON(ctx, symbols)
	if err != nil {
		c.metrics.RecordFetch(models.VenueProxy, false)
		return models.SpotResult{}, fmt.Errorf("spot: %w; proxy: %v", spotErr, err)
	}
	tickers, err = ParseTickers([]byte(raw), models.VenueProxy)
	if err != nil {
		c.metrics.RecordFetch(models.VenueProxy, false)
		return models.SpotResult{}, fmt.Errorf("spot: %w; proxy: %v", spotErr, err)
	}
	c.metrics.RecordFetch(models.VenueProxy, true)
	return models.SpotResult{Tickers: filterTickers(tickers, symbols), UsedFallback: true}, nil
}

func (c *Client) spotTickers(ctx context.Context, symbols []string) ([]models.Ticker, error) {
	var query map[string][]string
	if len(symbols) > 0 {
		enc, err := json.Marshal(symbols)
		if err != nil {
			return nil, fmt.Errorf("encode symbols: %w", err)
		}
		query = map[string][]string{"symbols": {string(enc)}}
	}
	body, err := c.get(ctx, models.VenueSpot, c.spotURL+"/api/v3/ticker/24hr", query)
	if err != nil {
		return nil, err
	}
	return ParseTickers(body, models.VenueSpot)
}

// FundingRates returns the last funding rate per requested symbol.
func (c *Client) FundingRates(ctx context.Context, symbols []string) (map[string]float64, error) {
	body, err := c.get(ctx, models.VenueFutures, c.futuresURL+"/fapi/v1/premiumIndex", nil)
	if err != nil {
		return nil, err
	}
	rates, skipped, err := ParseFunding(body)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		c.logger.Warn("skipped garbled funding entries", applogger.Strings("symbols", skipped))
	}
	if len(symbols) == 0 {
		return rates, nil
	}
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if v, ok := rates[s]; ok {
			out[s] = v
		}
	}
	return out, nil
}

// OpenInterest fetches each symbol concurrently and waits for all of them.
// Failed symbols are skipped; an error is returned only when every symbol failed.
func (c *Client) OpenInterest(ctx context.Context, symbols []string) (map[string]float64, error) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		out     = make(map[string]float64, len(symbols))
		lastErr error
	)
	for _, sym := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			body, err := c.get(ctx, models.VenueFutures, c.futuresURL+"/fapi/v1/openInterest",
				map[string][]string{"symbol": {sym}})
			var v float64
			if err == nil {
				_, v, err = ParseOpenInterest(body)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				lastErr = err
				c.logger.Warn("open interest skipped", applogger.String("symbol", sym), applogger.Error(err))
				return
			}
			out[sym] = v
		}(sym)
	}
	wg.Wait()

	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

// OrderBook fetches futures depth for symbol. limit <= 0 uses 100.
func (c *Client) OrderBook(ctx context.Context, symbol string, limit int) (*models.OrderBook, error) {
	if limit <= 0 {
		limit = defaultDepthLimit
	}
	body, err := c.get(ctx, models.VenueFutures, c.futuresURL+"/fapi/v1/depth",
		map[string][]string{"symbol": {symbol}, "limit": {strconv.Itoa(limit)}})
	if err != nil {
		return nil, err
	}
	book, err := ParseDepth(body, symbol)
	if err != nil {
		return nil, err
	}
	book.FetchedAt = time.Now().UTC()
	return book, nil
}

// get runs one GET through the venue limiter and breaker, retrying
// network and server failures with capped exponential backoff.
func (c *Client) get(ctx context.Context, venue, url string, query map[string][]string) ([]byte, error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordLatency("fetch_"+venue, time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, c.backoff(attempt)); err != nil {
				break
			}
		}
		if err := c.limiters[venue].Wait(ctx); err != nil {
			lastErr = models.NewSourceError(models.ErrKindNetwork, venue, "rate limiter", err)
			break
		}

		res, err := c.breakers[venue].Execute(func() (interface{}, error) {
			return c.do(ctx, venue, url, query)
		})
		if err == nil {
			c.metrics.RecordFetch(venue, true)
			return res.([]byte), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = models.NewSourceError(models.ErrKindNetwork, venue, "circuit open", err)
			lastErr = err
			break
		}

		lastErr = err
		var se *models.SourceError
		if !errors.As(err, &se) || !se.Retryable() {
			break
		}
		c.logger.Debug("retrying exchange request",
			applogger.String("venue", venue),
			applogger.Int("attempt", attempt+1),
			applogger.Error(err),
		)
	}

	c.metrics.RecordFetch(venue, false)
	c.metrics.RecordError(string(models.ClassifyError(lastErr)))
	if lastErr == nil {
		lastErr = models.NewSourceError(models.ErrKindNetwork, venue, "request cancelled", ctx.Err())
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, venue, url string, query map[string][]string) ([]byte, error) {
	resp, err := c.http.Get(ctx, url, query)
	if err != nil {
		return nil, models.NewSourceError(models.ErrKindNetwork, venue, "request failed", err)
	}
	if resp.OK() {
		return resp.Body, nil
	}

	se := models.NewSourceError(statusKind(resp.Status), venue, string(truncate(resp.Body, 256)), nil)
	se.Status = resp.Status
	return nil, se
}

func statusKind(status int) models.ErrorKind {
	switch {
	case status == http.StatusForbidden || status == http.StatusUnavailableForLegalReasons:
		return models.ErrKindBlocked
	case status == http.StatusTooManyRequests || status == http.StatusTeapot:
		return models.ErrKindRateLimit
	case status >= 500:
		return models.ErrKindServer
	default:
		return models.ErrKindUnknown
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.baseBackoff << (attempt - 1)
	if d > c.maxBackoff || d <= 0 {
		return c.maxBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func filterTickers(all []models.Ticker, symbols []string) []models.Ticker {
	if len(symbols) == 0 {
		return all
	}
	want := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		want[s] = struct{}{}
	}
	out := make([]models.Ticker, 0, len(symbols))
	for _, t := range all {
		if _, ok := want[t.Symbol]; ok {
			out = append(out, t)
		}
	}
	return out
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
