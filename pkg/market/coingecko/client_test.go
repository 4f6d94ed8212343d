package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/MohammedTeir/ArbitrageScanner/pkg/core"
	"github.com/MohammedTeir/ArbitrageScanner/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return New(core.MarketSettings{
		BaseURL:    server.URL,
		RatePerSec: 1000, // keep the limiter out of the way
	}, logger.Nop())
}

const tickersBody = `{
	"name": "Ripple",
	"tickers": [
		{
			"base": "XRP",
			"target": "USDT",
			"market": {"name": "Exchange A", "identifier": "exchange_a"},
			"converted_last": {"usd": 0.5012},
			"converted_volume": {"usd": 1250000},
			"trust_score": "green",
			"trade_url": "https://a.example/trade"
		},
		{
			"base": "XRP",
			"target": "USDT",
			"market": {"name": "Exchange B", "identifier": "exchange_b"},
			"converted_last": {"usd": "broken"},
			"converted_volume": {"usd": null},
			"trust_score": "stale",
			"trade_url": ""
		},
		{
			"base": "XRP",
			"target": "BTC",
			"market": {"name": "Exchange C", "identifier": "exchange_c"},
			"converted_last": {"usd": 0.5099},
			"converted_volume": {"usd": 80000},
			"trust_score": null,
			"trade_url": "https://c.example/trade"
		}
	]
}`

func TestClient_Tickers(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/ripple/tickers", r.URL.Path)
		w.Write([]byte(tickersBody))
	}))

	quotes, err := client.Tickers(context.Background(), "ripple")
	require.NoError(t, err)
	require.Len(t, quotes, 3)

	first := quotes[0]
	assert.Equal(t, "ripple", first.Base, "quotes are keyed by the requested coin id")
	assert.Equal(t, "USDT", first.Target)
	assert.Equal(t, "Exchange A", first.Market)
	assert.Equal(t, "https://a.example/trade", first.TradeURL)
	assert.Equal(t, core.TrustHigh, first.Trust)
	require.True(t, first.Price.Valid)
	assert.Equal(t, 0.5012, first.Price.Value)
	require.True(t, first.Volume.Valid)
	assert.Equal(t, 1250000.0, first.Volume.Value)

	second := quotes[1]
	assert.False(t, second.Price.Valid, "a non-numeric price decodes as absent")
	assert.False(t, second.Volume.Valid, "a null volume decodes as absent")
	assert.Equal(t, core.TrustLow, second.Trust, "unrecognized scores count as low")

	third := quotes[2]
	assert.Equal(t, core.TrustTier(""), third.Trust, "null score means no trust attached")
}

func TestClient_TopCoins(t *testing.T) {
	var query atomic.Value

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		query.Store(r.URL.Query())
		w.Write([]byte(`[
			{"id": "bitcoin", "symbol": "btc", "name": "Bitcoin", "market_cap": 1280000000000},
			{"id": "tether", "symbol": "usdt", "name": "Tether", "market_cap": null}
		]`))
	}))

	coins, err := client.TopCoins(context.Background(), 1, 100)
	require.NoError(t, err)
	require.Len(t, coins, 2)

	assert.Equal(t, "bitcoin", coins[0].ID)
	assert.Equal(t, "btc", coins[0].Symbol)
	assert.Equal(t, "Bitcoin", coins[0].Name)
	assert.Equal(t, 1280000000000.0, coins[0].MarketCap)
	assert.Equal(t, 0.0, coins[1].MarketCap)

	params := query.Load().(url.Values)
	assert.Equal(t, []string{"usd"}, params["vs_currency"])
	assert.Equal(t, []string{"volume_desc"}, params["order"])
	assert.Equal(t, []string{"1"}, params["page"])
	assert.Equal(t, []string{"100"}, params["per_page"])
}

func TestClient_SendsAPIKeyHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get(apiKeyHeader))
		w.Write([]byte(`{"name": "", "tickers": []}`))
	}))
	t.Cleanup(server.Close)

	client := New(core.MarketSettings{
		BaseURL:    server.URL,
		APIKey:     "secret",
		RatePerSec: 1000,
	}, logger.Nop())

	_, err := client.Tickers(context.Background(), "bitcoin")
	require.NoError(t, err)
}

func TestClient_RetriesOnThrottle(t *testing.T) {
	var calls atomic.Int32

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"name": "", "tickers": []}`))
	}))

	quotes, err := client.Tickers(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Empty(t, quotes)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.Tickers(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses other than 429 are final")
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.Tickers(context.Background(), "bitcoin")
	require.Error(t, err)
	assert.Equal(t, int32(maxAttempts), calls.Load())
}
