package binance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"MarketRadar/internal/domain/models"
)

// apiError is the object the exchange returns instead of an array when it refuses a request.
type apiError struct {
	Code *int   `json:"code"`
	Msg  string `json:"msg"`
}

type rawTicker struct {
	Symbol             string `json:"symbol"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	WeightedAvgPrice   string `json:"weightedAvgPrice"`
	LastPrice          string `json:"lastPrice"`
	LastQty            string `json:"lastQty"`
	OpenPrice          string `json:"openPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
	OpenTime           int64  `json:"openTime"`
	CloseTime          int64  `json:"closeTime"`
	Count              int64  `json:"count"`
}

type rawPremiumIndex struct {
	Symbol          string `json:"symbol"`
	LastFundingRate string `json:"lastFundingRate"`
}

type rawOpenInterest struct {
	Symbol       string `json:"symbol"`
	OpenInterest string `json:"openInterest"`
}

type rawDepth struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

// ParseTickers decodes a 24h ticker array. Numeric fields arrive as strings.
func ParseTickers(body []byte, venue string) ([]models.Ticker, error) {
	if err := checkArray(body, venue); err != nil {
		return nil, err
	}
	var raw []rawTicker
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, models.NewSourceError(models.ErrKindMalformed, venue, "decode tickers", err)
	}

	out := make([]models.Ticker, 0, len(raw))
	for _, r := range raw {
		t, err := r.toTicker(venue)
		if err != nil {
			return nil, models.NewSourceError(models.ErrKindMalformed, venue, "ticker "+r.Symbol, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (r rawTicker) toTicker(venue string) (models.Ticker, error) {
	if r.Symbol == "" {
		return models.Ticker{}, fmt.Errorf("missing field symbol")
	}
	t := models.Ticker{
		Symbol:    r.Symbol,
		OpenTime:  time.UnixMilli(r.OpenTime).UTC(),
		CloseTime: time.UnixMilli(r.CloseTime).UTC(),
		Count:     r.Count,
		Venue:     venue,
	}
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"priceChange", r.PriceChange, &t.PriceChange},
		{"priceChangePercent", r.PriceChangePercent, &t.PriceChangePercent},
		{"weightedAvgPrice", r.WeightedAvgPrice, &t.WeightedAvgPrice},
		{"lastPrice", r.LastPrice, &t.LastPrice},
		{"lastQty", r.LastQty, &t.LastQty},
		{"openPrice", r.OpenPrice, &t.OpenPrice},
		{"highPrice", r.HighPrice, &t.HighPrice},
		{"lowPrice", r.LowPrice, &t.LowPrice},
		{"volume", r.Volume, &t.Volume},
		{"quoteVolume", r.QuoteVolume, &t.QuoteVolume},
	}
	for _, f := range fields {
		v, err := parseNumber(f.raw)
		if err != nil {
			return models.Ticker{}, fmt.Errorf("missing field %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return t, nil
}

// ParseFunding returns lastFundingRate per symbol. Garbled entries are reported in skipped.
func ParseFunding(body []byte) (rates map[string]float64, skipped []string, err error) {
	if err := checkArray(body, models.VenueFutures); err != nil {
		return nil, nil, err
	}
	var raw []rawPremiumIndex
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, models.NewSourceError(models.ErrKindMalformed, models.VenueFutures, "decode premium index", err)
	}
	rates = make(map[string]float64, len(raw))
	for _, r := range raw {
		v, err := parseNumber(r.LastFundingRate)
		if r.Symbol == "" || err != nil {
			skipped = append(skipped, r.Symbol)
			continue
		}
		rates[r.Symbol] = v
	}
	return rates, skipped, nil
}

// ParseOpenInterest decodes one openInterest object.
func ParseOpenInterest(body []byte) (string, float64, error) {
	var raw rawOpenInterest
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", 0, models.NewSourceError(models.ErrKindMalformed, models.VenueFutures, "decode open interest", err)
	}
	v, err := parseNumber(raw.OpenInterest)
	if raw.Symbol == "" || err != nil {
		return "", 0, models.NewSourceError(models.ErrKindMalformed, models.VenueFutures, "open interest "+raw.Symbol, err)
	}
	return raw.Symbol, v, nil
}

// ParseDepth decodes an order book, dropping levels that are not finite and positive.
func ParseDepth(body []byte, symbol string) (*models.OrderBook, error) {
	var raw rawDepth
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, models.NewSourceError(models.ErrKindMalformed, models.VenueFutures, "decode depth", err)
	}
	return &models.OrderBook{
		Symbol: symbol,
		Bids:   parseLevels(raw.Bids),
		Asks:   parseLevels(raw.Asks),
	}, nil
}

func parseLevels(raw [][]string) []models.BookLevel {
	out := make([]models.BookLevel, 0, len(raw))
	for _, lv := range raw {
		if len(lv) < 2 {
			continue
		}
		p, perr := parseNumber(lv[0])
		s, serr := parseNumber(lv[1])
		if perr != nil || serr != nil || p <= 0 || s <= 0 {
			continue
		}
		out = append(out, models.BookLevel{Price: p, Size: s})
	}
	return out
}

// checkArray turns a {code,msg} body into a blocked error.
func checkArray(body []byte, venue string) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return models.NewSourceError(models.ErrKindMalformed, venue, "empty body", nil)
	}
	if trimmed[0] == '[' {
		return nil
	}
	var e apiError
	if err := json.Unmarshal(trimmed, &e); err == nil && e.Code != nil {
		return models.NewSourceError(models.ErrKindBlocked, venue, fmt.Sprintf("code %d: %s", *e.Code, e.Msg), nil)
	}
	return models.NewSourceError(models.ErrKindMalformed, venue, "expected array", nil)
}

func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
