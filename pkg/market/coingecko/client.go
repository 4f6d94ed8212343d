// Package coingecko implements core.MarketSource against the CoinGecko HTTP
// API: per-coin exchange tickers and the volume-ranked market listing.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/MohammedTeir/ArbitrageScanner/pkg/core"
	"github.com/MohammedTeir/ArbitrageScanner/pkg/logger"
	"github.com/jpillora/backoff"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"

	apiKeyHeader = "x-cg-demo-api-key"

	maxAttempts    = 3
	requestTimeout = 10 * time.Second
)

// Client is a rate-limited CoinGecko REST client. Requests that hit the
// upstream throttle or a server error are retried with exponential backoff.
type Client struct {
	http    *http.Client
	base    string
	apiKey  string
	limiter *rate.Limiter
	log     logger.Logger
}

// New creates a client from the market settings.
func New(settings core.MarketSettings, log logger.Logger) *Client {
	base := settings.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}

	perSec := settings.RatePerSec
	if perSec <= 0 {
		perSec = 0.5 // free tier allows roughly 30 calls per minute
	}

	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		base:    base,
		apiKey:  settings.APIKey,
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
		log:     log,
	}
}

// tickerResponse mirrors /coins/{id}/tickers.
type tickerResponse struct {
	Name    string       `json:"name"`
	Tickers []tickerJSON `json:"tickers"`
}

type tickerJSON struct {
	Base   string `json:"base"`
	Target string `json:"target"`
	Market struct {
		Name       string `json:"name"`
		Identifier string `json:"identifier"`
	} `json:"market"`
	ConvertedLast struct {
		USD core.MaybeFloat `json:"usd"`
	} `json:"converted_last"`
	ConvertedVolume struct {
		USD core.MaybeFloat `json:"usd"`
	} `json:"converted_volume"`
	TrustScore string `json:"trust_score"`
	TradeURL   string `json:"trade_url"`
}

// marketJSON mirrors one entry of /coins/markets.
type marketJSON struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	MarketCap core.MaybeFloat `json:"market_cap"`
}

// Tickers implements core.MarketSource.
func (c *Client) Tickers(ctx context.Context, coinID string) ([]core.Quote, error) {
	var response tickerResponse

	path := fmt.Sprintf("/coins/%s/tickers", url.PathEscape(coinID))
	if err := c.get(ctx, path, url.Values{"depth": {"false"}}, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch tickers for %s: %w", coinID, err)
	}

	quotes := make([]core.Quote, 0, len(response.Tickers))
	for _, t := range response.Tickers {
		quotes = append(quotes, core.Quote{
			Base:     coinID,
			Target:   t.Target,
			Market:   t.Market.Name,
			TradeURL: t.TradeURL,
			Trust:    trustTier(t.TrustScore),
			Price:    t.ConvertedLast.USD,
			Volume:   t.ConvertedVolume.USD,
		})
	}

	return quotes, nil
}

// TopCoins implements core.MarketSource, returning one page of the listing
// ranked by 24h volume.
func (c *Client) TopCoins(ctx context.Context, page, perPage int) ([]core.CoinInfo, error) {
	query := url.Values{
		"vs_currency": {"usd"},
		"order":       {"volume_desc"},
		"page":        {fmt.Sprint(page)},
		"per_page":    {fmt.Sprint(perPage)},
	}

	var markets []marketJSON
	if err := c.get(ctx, "/coins/markets", query, &markets); err != nil {
		return nil, fmt.Errorf("failed to fetch ranked listing: %w", err)
	}

	coins := make([]core.CoinInfo, 0, len(markets))
	for _, m := range markets {
		coins = append(coins, core.CoinInfo{
			ID:        m.ID,
			Name:      m.Name,
			Symbol:    m.Symbol,
			MarketCap: m.MarketCap.Value,
		})
	}

	return coins, nil
}

// trustTier maps the upstream trust score onto the tri-state classification.
// Anything reported but unrecognized counts as low confidence; an empty
// score means the source attached none.
func trustTier(score string) core.TrustTier {
	switch score {
	case "green":
		return core.TrustHigh
	case "yellow":
		return core.TrustMedium
	case "":
		return ""
	default:
		return core.TrustLow
	}
}

// get performs a rate-limited GET with retries and decodes the JSON body.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	retry := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    5 * time.Second,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		body, err := c.do(ctx, path, query)
		if err == nil {
			return json.Unmarshal(body, out)
		}
		lastErr = err

		if !retryable(err) {
			return err
		}

		delay := retry.Duration()
		c.log.WithError(err).Warnf("market request failed, retrying in %s", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// statusError reports a non-2xx upstream response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func retryable(err error) bool {
	if se, ok := err.(*statusError); ok {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	// Transport-level failures (timeouts, resets) are worth retrying.
	return true
}

func (c *Client) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}

	return io.ReadAll(resp.Body)
}
