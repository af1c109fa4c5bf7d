package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketRadar/internal/domain/models"
	"MarketRadar/internal/repository"
	"MarketRadar/internal/services/analytics"
	"MarketRadar/internal/services/features"
	"MarketRadar/internal/services/learning"
	"MarketRadar/internal/usecase"
	"MarketRadar/pkg/cache"
)

type stubSource struct {
	tickers []models.Ticker
	err     error
}

func (s *stubSource) Tickers(context.Context, []string) ([]models.Ticker, error) {
	return s.tickers, s.err
}
func (s *stubSource) SpotTickers(context.Context, []string) (models.SpotResult, error) {
	return models.SpotResult{}, nil
}
func (s *stubSource) FundingRates(context.Context, []string) (map[string]float64, error) {
	return map[string]float64{}, nil
}
func (s *stubSource) OpenInterest(context.Context, []string) (map[string]float64, error) {
	return map[string]float64{}, nil
}
func (s *stubSource) OrderBook(_ context.Context, symbol string, _ int) (*models.OrderBook, error) {
	return &models.OrderBook{Symbol: symbol, Bids: []models.BookLevel{{Price: 100, Size: 1}}}, nil
}

func ticker(symbol string, pct, quoteVolume float64) models.Ticker {
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

type apiFixture struct {
	echo    *echo.Echo
	source  *stubSource
	monitor *usecase.MarketMonitor
	hub     *AlertHub
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	engine := learning.NewEngine(repository.NewMemoryLearningStore(), nil)
	require.NoError(t, engine.Init(ctx))

	src := &stubSource{tickers: []models.Ticker{
		ticker("AAAUSDT", 1, 1e9),
		ticker("BBBUSDT", -1, 1e9),
		ticker("SPIKEUSDT", 4.5, 4e9),
	}}
	prefs := usecase.NewPreferences(repository.NewCachePreferenceStore(cache.NewMemoryCache(cache.WithMemoryCleanup(0))), nil)
	scan := usecase.NewRadarScan(src, analytics.NewDetector(), nil, nil, nil)
	enricher := features.NewEnricher(features.NewEngine(engine, nil), nil)
	monitor := usecase.NewMarketMonitor(src, enricher, scan, engine, prefs, usecase.MonitorConfig{Symbols: []string{"AAAUSDT"}}, nil)

	hub := NewAlertHub(nil, nil)
	h := NewRadarHandler(monitor, prefs, engine, nil, hub, nil)
	e := echo.New()
	h.RegisterRoutes(e)
	return &apiFixture{echo: e, source: src, monitor: monitor, hub: hub}
}

func (f *apiFixture) refresh(t *testing.T) {
	t.Helper()
	require.NoError(t, f.monitor.RefreshTickers(context.Background()))
	f.monitor.WaitLearning()
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *apiFixture) do(t *testing.T, method, target, body string) envelope {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestTickersAndAnalysis(t *testing.T) {
	f := newAPIFixture(t)
	f.refresh(t)

	env := f.do(t, http.MethodGet, "/api/tickers", "")
	assert.Equal(t, http.StatusOK, env.Status)
	var tickers []models.EnrichedTicker
	require.NoError(t, json.Unmarshal(env.Data, &tickers))
	assert.Len(t, tickers, 3)

	env = f.do(t, http.MethodGet, "/api/analysis?symbol=SPIKEUSDT", "")
	var a models.TechnicalAnalysis
	require.NoError(t, json.Unmarshal(env.Data, &a))
	assert.Equal(t, models.TrendBullish, a.Trend)
	assert.GreaterOrEqual(t, a.Strength, 0.0)
	assert.LessOrEqual(t, a.Strength, 100.0)

	env = f.do(t, http.MethodGet, "/api/analysis?symbol=NOPEUSDT", "")
	assert.Equal(t, http.StatusNotFound, env.Status)

	env = f.do(t, http.MethodGet, "/api/analysis", "")
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestRadarAlertsFiltered(t *testing.T) {
	f := newAPIFixture(t)
	f.refresh(t)

	env := f.do(t, http.MethodGet, "/api/radar/alerts", "")
	var alerts []models.RadarAlert
	require.NoError(t, json.Unmarshal(env.Data, &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "SPIKEUSDT", alerts[0].Symbol)

	env = f.do(t, http.MethodGet, "/api/radar/alerts?types=funding_irregularity", "")
	alerts = nil
	require.NoError(t, json.Unmarshal(env.Data, &alerts))
	assert.Empty(t, alerts)

	env = f.do(t, http.MethodGet, "/api/radar/alerts?types=moon", "")
	assert.Equal(t, http.StatusBadRequest, env.Status)

	env = f.do(t, http.MethodGet, "/api/radar/extended", "")
	var ext []models.ExtendedRadarAlert
	require.NoError(t, json.Unmarshal(env.Data, &ext))
	require.Len(t, ext, 1)
	assert.NotEmpty(t, ext[0].AnomalyTypes)
}

func TestOpportunitiesCachedPerVersion(t *testing.T) {
	f := newAPIFixture(t)
	f.refresh(t)

	first := f.do(t, http.MethodGet, "/api/opportunities?modality=breakout", "")
	second := f.do(t, http.MethodGet, "/api/opportunities?modality=breakout", "")
	assert.JSONEq(t, string(first.Data), string(second.Data))

	env := f.do(t, http.MethodGet, "/api/opportunities", "")
	assert.Equal(t, http.StatusOK, env.Status)

	env = f.do(t, http.MethodGet, "/api/opportunities?modality=yolo", "")
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestTradeMissingPrice(t *testing.T) {
	f := newAPIFixture(t)
	f.refresh(t)

	env := f.do(t, http.MethodGet, "/api/trade?symbol=NOPEUSDT&modality=day", "")
	var res models.TradeRecommendationResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Contains(t, res.Error.MissingData, "current price")

	env = f.do(t, http.MethodGet, "/api/trade?symbol=SPIKEUSDT", "")
	res = models.TradeRecommendationResult{}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Success)
	assert.Equal(t, models.ModalityDay, res.Recommendation.Modality)
}

func TestLearningEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.refresh(t)

	env := f.do(t, http.MethodGet, "/api/learning/stats?symbol=SPIKEUSDT", "")
	var view StatsView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, models.MaturityCold, view.Maturity)

	env = f.do(t, http.MethodGet, "/api/learning/predictions?symbol=SPIKEUSDT", "")
	var list struct {
		Rows  []models.PredictionRecord `json:"rows"`
		Total int64                     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(1), list.Total)

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	env = f.do(t, http.MethodGet, "/api/learning/predictions?symbol=SPIKEUSDT&since="+future, "")
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(0), list.Total)

	env = f.do(t, http.MethodGet, "/api/learning/predictions?symbol=SPIKEUSDT&since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestStatusAndRefreshFailure(t *testing.T) {
	f := newAPIFixture(t)

	env := f.do(t, http.MethodPost, "/api/refresh", "")
	var st StatusView
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, uint64(1), st.Version)

	f.source.err = models.NewSourceError(models.ErrKindRateLimit, models.VenueFutures, "slow down", nil)
	env = f.do(t, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, env.Status)

	env = f.do(t, http.MethodGet, "/api/status", "")
	st = StatusView{}
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, models.ErrKindRateLimit, st.ErrorKind)
	assert.True(t, st.Stale)
}

func TestDepthEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	require.NoError(t, f.monitor.RefreshInstitutional(context.Background()))

	env := f.do(t, http.MethodGet, "/api/depth?symbol=AAAUSDT", "")
	var view DepthView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "AAAUSDT", view.Book.Symbol)
	assert.NotNil(t, view.Walls)

	env = f.do(t, http.MethodGet, "/api/depth?symbol=ETHUSDT", "")
	assert.Equal(t, http.StatusNotFound, env.Status)
}

func TestPreferenceEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	env := f.do(t, http.MethodPut, "/api/preferences/sensitivity", `{"preset":"aggressive"}`)
	var policy models.RadarSensitivityPolicy
	require.NoError(t, json.Unmarshal(env.Data, &policy))
	assert.Equal(t, models.PresetAggressive, policy.Name)

	env = f.do(t, http.MethodPut, "/api/preferences/sensitivity", `{"preset":"reckless"}`)
	assert.Equal(t, http.StatusBadRequest, env.Status)

	env = f.do(t, http.MethodPut, "/api/preferences/favorites", `{"symbols":["btcusdt","ETHUSDT"]}`)
	var favs []string
	require.NoError(t, json.Unmarshal(env.Data, &favs))
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, favs)

	env = f.do(t, http.MethodPut, "/api/preferences/alerts", `{"alertsEnabled":false,"favoritesLearningPriority":true}`)
	var snap usecase.PreferenceSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.False(t, snap.AlertsEnabled)
	assert.True(t, snap.FavoritesLearningPriority)

	env = f.do(t, http.MethodPost, "/api/reset", "")
	assert.Equal(t, http.StatusOK, env.Status)
	env = f.do(t, http.MethodGet, "/api/preferences", "")
	snap = usecase.PreferenceSnapshot{}
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, models.PresetBalanced, snap.Sensitivity)
	assert.True(t, snap.AlertsEnabled)
}

func TestAlertHubStreamsBroadcasts(t *testing.T) {
	f := newAPIFixture(t)
	srv := httptest.NewServer(f.echo)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/alerts"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	f.hub.Broadcast(models.RadarAlert{ID: "a1", Symbol: "BTCUSDT", Severity: models.SeverityHigh})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got models.RadarAlert
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "BTCUSDT", got.Symbol)

	f.hub.Close()
	assert.Equal(t, 0, f.hub.Clients())
}
