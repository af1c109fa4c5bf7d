package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"MarketRadar/internal/domain/models"
	"MarketRadar/internal/domain/service"
	icache "MarketRadar/internal/service/cache"
	"MarketRadar/internal/service/metrics"
	"MarketRadar/internal/services/analytics"
	"MarketRadar/internal/services/features"
	"MarketRadar/internal/services/learning"
	"MarketRadar/internal/services/opportunity"
	"MarketRadar/internal/usecase"
	xhttp "MarketRadar/pkg/http"
	applogger "MarketRadar/pkg/logger"
)

const opportunityCacheTTL = 5 * time.Minute

// StatsView is one symbol's learning stats with its maturity state.
type StatsView struct {
	Symbol   string                     `json:"symbol"`
	Maturity models.Maturity            `json:"maturity"`
	Stats    *models.AssetLearningStats `json:"stats,omitempty"`
}

// DepthView is an order book with the walls detected on it.
type DepthView struct {
	Book  *models.OrderBook           `json:"book"`
	Walls []models.InstitutionalOrder `json:"walls"`
}

// StatusView is the status affordance plus the snapshot version it describes.
type StatusView struct {
	models.MarketStatus
	Version uint64 `json:"version"`
}

// RadarHandler serves the radar HTTP API from the monitor's latest snapshot.
type RadarHandler struct {
	monitor  *usecase.MarketMonitor
	prefs    *usecase.Preferences
	learning service.LearningEngine
	cache    icache.BytesCache
	hub      *AlertHub
	logger   *applogger.Logger
}

var _ xhttp.Handler = (*RadarHandler)(nil)

func NewRadarHandler(
	monitor *usecase.MarketMonitor,
	prefs *usecase.Preferences,
	engine service.LearningEngine,
	cache icache.BytesCache,
	hub *AlertHub,
	l *applogger.Logger,
) *RadarHandler {
	metrics.Register()
	if l == nil {
		l = applogger.Nop()
	}
	if cache == nil {
		cache = icache.NewTTLCache()
	}
	return &RadarHandler{monitor: monitor, prefs: prefs, learning: engine, cache: cache, hub: hub, logger: l}
}

func (h *RadarHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/tickers", h.observe("tickers", h.Tickers))
	g.GET("/analysis", h.observe("analysis", h.Analysis))
	g.GET("/radar/alerts", h.observe("radar_alerts", h.RadarAlerts))
	g.GET("/radar/extended", h.observe("radar_extended", h.ExtendedAlerts))
	g.GET("/recommendations", h.observe("recommendations", h.Recommendations))
	g.GET("/opportunities", h.observe("opportunities", h.Opportunities))
	g.GET("/trade", h.observe("trade", h.Trade))
	g.GET("/learning/stats", h.observe("learning_stats", h.LearningStats))
	g.GET("/learning/predictions", h.observe("learning_predictions", h.Predictions))
	g.GET("/depth", h.observe("depth", h.Depth))
	g.GET("/status", h.observe("status", h.Status))
	g.POST("/refresh", h.observe("refresh", h.Refresh))
	g.GET("/preferences", h.observe("preferences", h.Preferences))
	g.PUT("/preferences/sensitivity", h.observe("sensitivity", h.SetSensitivity))
	g.PUT("/preferences/favorites", h.observe("favorites", h.SetFavorites))
	g.PUT("/preferences/alerts", h.observe("alert_settings", h.SetAlertSettings))
	g.POST("/reset", h.observe("reset", h.Reset))

	if h.hub != nil {
		e.GET("/ws/alerts", h.hub.ServeWS)
	}
}

func (h *RadarHandler) observe(endpoint string, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		metrics.Observe(endpoint, start, err)
		return err
	}
}

func (h *RadarHandler) Tickers(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.monitor.Snapshot().Tickers)
}

func (h *RadarHandler) Analysis(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	t, ok := h.monitor.Ticker(req.Symbol)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no ticker for %s", req.Symbol))
	}
	if t.Analysis == nil {
		a := features.NeutralAnalysis(t.Symbol)
		return xhttp.SuccessResponse(c, a)
	}
	return xhttp.SuccessResponse(c, t.Analysis)
}

// RadarAlerts returns UI alerts filtered by types, or by the stored radar filters when none are given.
func (h *RadarHandler) RadarAlerts(c echo.Context) error {
	req := &models.AlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	types := req.Types
	if len(types) == 0 {
		types = h.prefs.RadarFilters(c.Request().Context())
	}
	alerts := analytics.FilterAlerts(h.monitor.Snapshot().Alerts, types)
	return xhttp.SuccessResponse(c, analytics.ToRadarAlerts(alerts))
}

func (h *RadarHandler) ExtendedAlerts(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.monitor.Snapshot().Alerts)
}

func (h *RadarHandler) Recommendations(c echo.Context) error {
	req := &models.RecommendationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap := h.monitor.Snapshot()
	return xhttp.SuccessResponse(c, analytics.GenerateRecommendations(snap.Tickers, req.Limit, snap.Status.LastUpdated))
}

// Opportunities serves one list, caching the encoded body per snapshot version.
func (h *RadarHandler) Opportunities(c echo.Context) error {
	req := &models.OpportunitiesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap := h.monitor.Snapshot()
	key := icache.VersionedKey("opps", snap.Version, req.Modality)

	if b, ok, err := h.cache.GetBytes(key); err != nil {
		h.logger.Warn("opportunities cache_get_error", applogger.Error(err))
	} else if ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	items, ok := snap.Opportunities[req.Modality]
	if !ok {
		var err error
		if items, err = opportunity.Select(req.Modality, snap.Tickers); err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
	}
	if items == nil {
		items = []models.OpportunityItem{}
	}

	body, err := json.Marshal(xhttp.APIResponse{
		Status:  http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    items,
	})
	if err != nil {
		h.logger.Error("opportunities encode failed", applogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	if err := h.cache.SetBytes(key, body, opportunityCacheTTL); err != nil {
		h.logger.Warn("opportunities cache_set_error", applogger.Error(err))
	}
	return c.JSONBlob(http.StatusOK, body)
}

// Trade always answers 200; failures are carried in the result's error field.
func (h *RadarHandler) Trade(c echo.Context) error {
	req := &models.TradeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.monitor.Trade(req.Symbol, models.Modality(req.Modality)))
}

func (h *RadarHandler) LearningStats(c echo.Context) error {
	req := &models.LearningStatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	if req.Symbol != "" {
		stats, err := h.learning.GetAssetStats(ctx, req.Symbol)
		if err != nil {
			h.logger.Error("learning stats error", applogger.String("symbol", req.Symbol), applogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		m, err := h.learning.Maturity(ctx, req.Symbol)
		if err != nil {
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.SuccessResponse(c, StatsView{Symbol: req.Symbol, Maturity: m, Stats: stats})
	}

	all, err := h.learning.AllStats(ctx)
	if err != nil {
		h.logger.Error("learning stats error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	cfg, err := h.learning.Config(ctx)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	views := make([]StatsView, 0, len(all))
	for i := range all {
		s := all[i]
		views = append(views, StatsView{
			Symbol:   s.Symbol,
			Maturity: learning.MaturityOf(true, s.TotalPredictions, cfg.MinPredictionsForLearning),
			Stats:    &s,
		})
	}
	return xhttp.ListResponse(c, views, int64(len(views)))
}

// Predictions lists records at or after since, keeping the most recent limit.
func (h *RadarHandler) Predictions(c echo.Context) error {
	req := &models.PredictionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	since := time.Time{}
	if req.Since != "" {
		t, ok := xhttp.ParseTime(req.Since)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid since %q", req.Since))
		}
		since = t
	}

	recs, err := h.learning.Predictions(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("predictions error", applogger.String("symbol", req.Symbol), applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	out := make([]models.PredictionRecord, 0, len(recs))
	for _, r := range recs {
		if !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	total := int64(len(out))
	if len(out) > req.Limit {
		out = out[len(out)-req.Limit:]
	}
	return xhttp.ListResponse(c, out, total)
}

func (h *RadarHandler) Depth(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap := h.monitor.Snapshot()
	book, ok := snap.Depth[req.Symbol]
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no depth for %s; add it to favorites", req.Symbol))
	}
	walls, ok := snap.Walls[req.Symbol]
	if !ok {
		walls = []models.InstitutionalOrder{}
	}
	return xhttp.SuccessResponse(c, DepthView{Book: book, Walls: walls})
}

func (h *RadarHandler) Status(c echo.Context) error {
	snap := h.monitor.Snapshot()
	return xhttp.SuccessResponse(c, StatusView{MarketStatus: snap.Status, Version: snap.Version})
}

// Refresh runs a ticker cycle now. A failed cycle answers 503 with the status message.
func (h *RadarHandler) Refresh(c echo.Context) error {
	if err := h.monitor.RefreshTickers(c.Request().Context()); err != nil {
		h.logger.Warn("manual refresh failed", applogger.Error(err))
		st := h.monitor.Snapshot().Status
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError(st.Error).WithError(err))
	}
	return h.Status(c)
}

func (h *RadarHandler) Preferences(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.prefs.Snapshot(c.Request().Context()))
}

func (h *RadarHandler) SetSensitivity(c echo.Context) error {
	req := &models.SensitivityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.monitor.SetSensitivity(c.Request().Context(), req.Preset); err != nil {
		h.logger.Error("set sensitivity failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, analytics.PolicyFor(req.Preset))
}

func (h *RadarHandler) SetFavorites(c echo.Context) error {
	req := &models.FavoritesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()
	if err := h.prefs.SetFavorites(ctx, req.Symbols); err != nil {
		h.logger.Error("set favorites failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, h.prefs.Favorites(ctx))
}

func (h *RadarHandler) SetAlertSettings(c echo.Context) error {
	req := &models.AlertSettingsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()
	if req.AlertsEnabled != nil {
		if err := h.prefs.SetAlertsEnabled(ctx, *req.AlertsEnabled); err != nil {
			return xhttp.AppErrorResponse(c, err)
		}
	}
	if req.FavoritesLearningPriority != nil {
		if err := h.monitor.SetFavoritesLearningPriority(ctx, *req.FavoritesLearningPriority); err != nil {
			h.logger.Error("set learning priority failed", applogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
	}
	if req.RadarFilters != nil {
		if err := h.prefs.SetRadarFilters(ctx, req.RadarFilters); err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
	}
	return xhttp.SuccessResponse(c, h.prefs.Snapshot(ctx))
}

func (h *RadarHandler) Reset(c echo.Context) error {
	if err := h.monitor.Reset(c.Request().Context()); err != nil {
		h.logger.Error("reset failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]bool{"reset": true})
}
