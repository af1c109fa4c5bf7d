package binance

import (
	"context"
	"encoding/json"
	"fmt"

	gobinance "github.com/adshao/go-binance/v2"
)

// SpotProxy is the backend path that returns spot tickers as a JSON string.
type SpotProxy interface {
	TickersJSON(ctx context.Context, symbols []string) (string, error)
}

// SDKProxy serves the proxy path through the go-binance REST client.
type SDKProxy struct {
	client *gobinance.Client
}

var _ SpotProxy = (*SDKProxy)(nil)

// NewSDKProxy builds a keyless client. baseURL overrides the SDK default when set.
func NewSDKProxy(baseURL string) *SDKProxy {
	c := gobinance.NewClient("", "")
	if baseURL != "" {
		c.BaseURL = baseURL
	}
	return &SDKProxy{client: c}
}

func (p *SDKProxy) TickersJSON(ctx context.Context, symbols []string) (string, error) {
	svc := p.client.NewListPriceChangeStatsService()
	if len(symbols) > 0 {
		svc = svc.Symbols(symbols)
	}
	stats, err := svc.Do(ctx)
	if err != nil {
		return "", fmt.Errorf("proxy ticker stats: %w", err)
	}
	b, err := json.Marshal(stats)
	if err != nil {
		return "", fmt.Errorf("proxy encode: %w", err)
	}
	return string(b), nil
}
