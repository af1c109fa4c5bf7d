package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"MarketRadar/internal/domain/models"
	"MarketRadar/internal/domain/repository"
	"MarketRadar/internal/services/analytics"
	applogger "MarketRadar/pkg/logger"
	"MarketRadar/pkg/util"
)

const (
	prefSensitivity       = "radar.sensitivity"
	prefFavorites         = "favorites"
	prefAlertsEnabled     = "alerts.enabled"
	prefFavoritesLearning = "favorites.learning_priority"
	prefRadarFilters      = "radar.filters"
)

// PreferenceSnapshot is every user preference with defaults applied.
type PreferenceSnapshot struct {
	Sensitivity               string   `json:"sensitivity"`
	Favorites                 []string `json:"favorites"`
	AlertsEnabled             bool     `json:"alertsEnabled"`
	FavoritesLearningPriority bool     `json:"favoritesLearningPriority"`
	RadarFilters              []string `json:"radarFilters"`
}

// Preferences gives typed access to the key/string preference store.
// Read failures are logged and fall back to defaults.
type Preferences struct {
	store  repository.PreferenceStore
	logger *applogger.Logger
}

func NewPreferences(store repository.PreferenceStore, l *applogger.Logger) *Preferences {
	if l == nil {
		l = applogger.Nop()
	}
	return &Preferences{store: store, logger: l}
}

func (p *Preferences) read(ctx context.Context, key string) (string, bool) {
	v, ok, err := p.store.Get(ctx, key)
	if err != nil {
		p.logger.Warn("preference read failed", applogger.String("key", key), applogger.Error(err))
		return "", false
	}
	return v, ok
}

func (p *Preferences) readBool(ctx context.Context, key string, def bool) bool {
	v, ok := p.read(ctx, key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (p *Preferences) readList(ctx context.Context, key string) ([]string, bool) {
	v, ok := p.read(ctx, key)
	if !ok {
		return nil, false
	}
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		p.logger.Warn("preference list corrupt", applogger.String("key", key), applogger.Error(err))
		return nil, false
	}
	return out, true
}

func (p *Preferences) writeList(ctx context.Context, key string, list []string) error {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return p.store.Set(ctx, key, string(b))
}

// Sensitivity returns the stored preset, or balanced when unset or unknown.
func (p *Preferences) Sensitivity(ctx context.Context) string {
	v, ok := p.read(ctx, prefSensitivity)
	if !ok || !analytics.IsValidPreset(v) {
		return analytics.DefaultPreset
	}
	return v
}

func (p *Preferences) SetSensitivity(ctx context.Context, preset string) error {
	if !analytics.IsValidPreset(preset) {
		return fmt.Errorf("unknown sensitivity preset %q", preset)
	}
	return p.store.Set(ctx, prefSensitivity, preset)
}

func (p *Preferences) Favorites(ctx context.Context) []string {
	list, ok := p.readList(ctx, prefFavorites)
	if !ok {
		return []string{}
	}
	return list
}

// SetFavorites stores the normalized, de-duplicated list.
func (p *Preferences) SetFavorites(ctx context.Context, symbols []string) error {
	return p.writeList(ctx, prefFavorites, util.NormalizeSymbols(symbols))
}

func (p *Preferences) AlertsEnabled(ctx context.Context) bool {
	return p.readBool(ctx, prefAlertsEnabled, true)
}

func (p *Preferences) SetAlertsEnabled(ctx context.Context, enabled bool) error {
	return p.store.Set(ctx, prefAlertsEnabled, strconv.FormatBool(enabled))
}

func (p *Preferences) FavoritesLearningPriority(ctx context.Context) bool {
	return p.readBool(ctx, prefFavoritesLearning, false)
}

func (p *Preferences) SetFavoritesLearningPriority(ctx context.Context, enabled bool) error {
	return p.store.Set(ctx, prefFavoritesLearning, strconv.FormatBool(enabled))
}

// RadarFilters returns the selected anomaly types; all types when unset.
func (p *Preferences) RadarFilters(ctx context.Context) []string {
	list, ok := p.readList(ctx, prefRadarFilters)
	if !ok {
		return append([]string(nil), models.AllAnomalyTypes...)
	}
	return list
}

func (p *Preferences) SetRadarFilters(ctx context.Context, types []string) error {
	for _, t := range types {
		if !analytics.IsValidAnomalyType(t) {
			return fmt.Errorf("unknown anomaly type %q", t)
		}
	}
	return p.writeList(ctx, prefRadarFilters, types)
}

// NotificationPolicy is the active policy and whether notifications are on.
func (p *Preferences) NotificationPolicy(ctx context.Context) (models.RadarSensitivityPolicy, bool) {
	return analytics.PolicyFor(p.Sensitivity(ctx)), p.AlertsEnabled(ctx)
}

func (p *Preferences) Snapshot(ctx context.Context) PreferenceSnapshot {
	return PreferenceSnapshot{
		Sensitivity:               p.Sensitivity(ctx),
		Favorites:                 p.Favorites(ctx),
		AlertsEnabled:             p.AlertsEnabled(ctx),
		FavoritesLearningPriority: p.FavoritesLearningPriority(ctx),
		RadarFilters:              p.RadarFilters(ctx),
	}
}

// Reset clears every stored preference.
func (p *Preferences) Reset(ctx context.Context) error {
	if err := p.store.Clear(ctx); err != nil {
		return fmt.Errorf("reset preferences: %w", err)
	}
	return nil
}
