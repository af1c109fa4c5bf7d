package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketRadar/internal/domain/models"
)

const tickerJSON = `[
 {"symbol":"BTCUSDT","priceChange":"1000","priceChangePercent":"2.0","weightedAvgPrice":"49500","lastPrice":"50000","lastQty":"0.1",
  "openPrice":"49000","highPrice":"51000","lowPrice":"48000","volume":"20000","quoteVolume":"1000000000","openTime":1700000000000,"closeTime":1700086400000,"count":500000},
 {"symbol":"ETHUSDT","priceChange":"-30","priceChangePercent":"-1.0","weightedAvgPrice":"3000","lastPrice":"2970","lastQty":"1",
  "openPrice":"3000","highPrice":"3050","lowPrice":"2950","volume":"100000","quoteVolume":"300000000","openTime":1700000000000,"closeTime":1700086400000,"count":200000}
]`

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	base := []Option{
		WithFuturesURL(srv.URL),
		WithSpotURL(srv.URL),
		WithBackoff(time.Millisecond, 2*time.Millisecond),
		WithRateLimit(0),
	}
	return New(append(base, opts...)...)
}

func TestTickersParsesStringNumerics(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/ticker/24hr", r.URL.Path)
		_, _ = w.Write([]byte(tickerJSON))
	}))

	got, err := c.Tickers(context.Background(), []string{"BTCUSDT"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	btc := got[0]
	assert.Equal(t, "BTCUSDT", btc.Symbol)
	assert.Equal(t, 50000.0, btc.LastPrice)
	assert.Equal(t, 2.0, btc.PriceChangePercent)
	assert.Equal(t, int64(500000), btc.Count)
	assert.Equal(t, models.VenueFutures, btc.Venue)
	assert.Equal(t, int64(1700000000000), btc.OpenTime.UnixMilli())
}

func TestTickersCodeMsgObjectIsBlocked(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"code":0,"msg":"Service unavailable from a restricted location"}`))
	}))

	_, err := c.Tickers(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, models.ErrKindBlocked, models.ClassifyError(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   models.ErrorKind
		calls  int32
	}{
		{http.StatusForbidden, models.ErrKindBlocked, 1},
		{http.StatusUnavailableForLegalReasons, models.ErrKindBlocked, 1},
		{http.StatusTooManyRequests, models.ErrKindRateLimit, 1},
		{http.StatusTeapot, models.ErrKindRateLimit, 1},
		{http.StatusBadGateway, models.ErrKindServer, 3},
	}
	for _, tc := range cases {
		var calls int32
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(tc.status)
		}))

		_, err := c.Tickers(context.Background(), nil)
		require.Error(t, err, "status %d", tc.status)
		assert.Equal(t, tc.kind, models.ClassifyError(err), "status %d", tc.status)
		assert.Equal(t, tc.calls, atomic.LoadInt32(&calls), "status %d", tc.status)

		var se *models.SourceError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, tc.status, se.Status)
	}
}

func TestRetryRecoversFromServerError(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(tickerJSON))
	}))

	got, err := c.Tickers(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestMalformedIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","lastPrice":"abc"}]`))
	}))

	_, err := c.Tickers(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, models.ErrKindMalformed, models.ClassifyError(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

type stubProxy struct {
	body string
	err  error
	got  []string
}

func (p *stubProxy) TickersJSON(_ context.Context, symbols []string) (string, error) {
	p.got = symbols
	return p.body, p.err
}

func TestSpotTickersDirect(t *testing.T) {
	proxy := &stubProxy{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		assert.Equal(t, `["BTCUSDT","ETHUSDT"]`, r.URL.Query().Get("symbols"))
		_, _ = w.Write([]byte(tickerJSON))
	}), WithProxy(proxy))

	res, err := c.SpotTickers(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)
	assert.False(t, res.UsedFallback)
	assert.Len(t, res.Tickers, 2)
	assert.Nil(t, proxy.got)
}

func TestSpotTickersFallsBackToProxy(t *testing.T) {
	proxy := &stubProxy{body: tickerJSON}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnavailableForLegalReasons)
	}), WithProxy(proxy))

	res, err := c.SpotTickers(context.Background(), []string{"ETHUSDT"})
	require.NoError(t, err)
	assert.True(t, res.UsedFallback)
	require.Len(t, res.Tickers, 1)
	assert.Equal(t, "ETHUSDT", res.Tickers[0].Symbol)
	assert.Equal(t, models.VenueProxy, res.Tickers[0].Venue)
	assert.Equal(t, []string{"ETHUSDT"}, proxy.got)
}

func TestSpotTickersBothPathsFail(t *testing.T) {
	proxy := &stubProxy{err: errors.New("proxy down")}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}), WithProxy(proxy))

	_, err := c.SpotTickers(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, models.ErrKindBlocked, models.ClassifyError(err))
	assert.Contains(t, err.Error(), "proxy down")
}

func TestFundingRatesFiltersAndSkipsGarbled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/premiumIndex", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"symbol":"BTCUSDT","lastFundingRate":"0.0001"},
			{"symbol":"ETHUSDT","lastFundingRate":"oops"},
			{"symbol":"XRPUSDT","lastFundingRate":"-0.002"}
		]`))
	}))

	got, err := c.FundingRates(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"BTCUSDT": 0.0001}, got)
}

func TestOpenInterestSkipsFailures(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "BTCUSDT":
			_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","openInterest":"12345.6","time":1700000000000}`))
		case "ETHUSDT":
			_, _ = w.Write([]byte(`{"symbol":"ETHUSDT","openInterest":""}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))

	got, err := c.OpenInterest(context.Background(), []string{"BTCUSDT", "ETHUSDT", "DOGEUSDT"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"BTCUSDT": 12345.6}, got)
}

func TestOpenInterestAllFailed(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := c.OpenInterest(context.Background(), []string{"BTCUSDT"})
	assert.Error(t, err)
}

func TestOrderBookDropsBadLevels(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/depth", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"lastUpdateId":1,
			"bids":[["50000","2"],["49990","0"],["NaN","1"],["49980"]],
			"asks":[["50010","1.5"],["-1","3"]]}`))
	}))

	book, err := c.OrderBook(context.Background(), "BTCUSDT", 0)
	require.NoError(t, err)
	assert.Equal(t, []models.BookLevel{{Price: 50000, Size: 2}}, book.Bids)
	assert.Equal(t, []models.BookLevel{{Price: 50010, Size: 1.5}}, book.Asks)
	assert.False(t, book.FetchedAt.IsZero())
}

func TestBreakerOpensAfterConsecutiveServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}), WithMaxAttempts(1))

	for i := 0; i < 5; i++ {
		_, _ = c.Tickers(context.Background(), nil)
	}
	_, err := c.Tickers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestCancelledContextStopsRetries(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}), WithBackoff(time.Hour, time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Tickers(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, models.ErrKindServer, models.ClassifyError(err))
}

func TestBackoffIsCapped(t *testing.T) {
	c := New(WithBackoff(200*time.Millisecond, 2*time.Second))
	assert.Equal(t, 200*time.Millisecond, c.backoff(1))
	assert.Equal(t, 400*time.Millisecond, c.backoff(2))
	assert.Equal(t, 2*time.Second, c.backoff(5))
}
