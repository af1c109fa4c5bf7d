package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketRadar/internal/domain/models"
)

func TestSDKProxyOutputParsesLikeSpot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(tickerJSON))
	}))
	defer srv.Close()

	p := NewSDKProxy(srv.URL)
	raw, err := p.TickersJSON(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)

	got, err := ParseTickers([]byte(raw), models.VenueProxy)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 50000.0, got[0].LastPrice)
	assert.Equal(t, -1.0, got[1].PriceChangePercent)
	assert.Equal(t, int64(200000), got[1].Count)
}
