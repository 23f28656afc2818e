package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/kalshirun/internal/engine"
	"github.com/sawpanic/kalshirun/internal/metrics"
)

const defaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2"

// ClientConfig tunes the REST client.
type ClientConfig struct {
	BaseURL        string  `yaml:"base_url"`
	RequestTimeout int     `yaml:"request_timeout_sec"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
	PageSize       int     `yaml:"page_size"`
}

// DefaultClientConfig matches the exchange's published public limits.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:        defaultBaseURL,
		RequestTimeout: 30,
		RateLimitRPS:   20.0,
		RateLimitBurst: 5,
		PageSize:       1000,
	}
}

// Client is a rate-limited, circuit-broken REST client for the exchange
// trade API.
type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	pageSize int
	metrics  *metrics.Registry
}

// NewClient builds a Client from config, falling back to defaults for
// zero values.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20.0
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 5
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}

	settings := gobreaker.Settings{Name: "kalshi-rest"}
	settings.Interval = 60 * time.Second
	settings.Timeout = 60 * time.Second
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: time.Duration(cfg.RequestTimeout) * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		breaker:  gobreaker.NewCircuitBreaker(settings),
		pageSize: cfg.PageSize,
	}
}

// WithMetrics attaches the instrumentation registry so every request is
// counted and timed per endpoint. Returns the client for chaining.
func (c *Client) WithMetrics(reg *metrics.Registry) *Client {
	c.metrics = reg
	return c
}

// Markets fetches one page of the markets listing.
func (c *Client) Markets(ctx context.Context, q MarketsQuery) (MarketsPage, error) {
	if q.Limit < 0 || q.Limit > 1000 {
		return MarketsPage{}, fmt.Errorf("limit must be in [0,1000], got %d", q.Limit)
	}

	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	if q.EventTicker != "" {
		params.Set("event_ticker", q.EventTicker)
	}
	if q.SeriesTicker != "" {
		params.Set("series_ticker", q.SeriesTicker)
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.Tickers != "" {
		params.Set("tickers", q.Tickers)
	}
	if q.MinCloseTS > 0 {
		params.Set("min_close_ts", strconv.FormatInt(q.MinCloseTS, 10))
	}
	if q.MaxCloseTS > 0 {
		params.Set("max_close_ts", strconv.FormatInt(q.MaxCloseTS, 10))
	}

	var page MarketsPage
	if err := c.getJSON(ctx, "markets", "/markets", params, &page); err != nil {
		return MarketsPage{}, fmt.Errorf("failed to fetch markets: %w", err)
	}
	return page, nil
}

// AllOpenMarkets walks the cursor pagination until the exchange reports
// no further pages and returns every open market.
func (c *Client) AllOpenMarkets(ctx context.Context) ([]Market, error) {
	var all []Market
	cursor := ""

	for {
		page, err := c.Markets(ctx, MarketsQuery{Limit: c.pageSize, Cursor: cursor, Status: "open"})
		if err != nil {
			return nil, err
		}
		all = append(all, page.Markets...)

		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	log.Debug().Int("markets", len(all)).Msg("markets pagination complete")
	return all, nil
}

// Orderbook fetches the resting ladders for one market at the requested
// depth and normalizes them into the engine snapshot shape.
func (c *Client) Orderbook(ctx context.Context, ticker string, depth int) (engine.OrderbookSnapshot, error) {
	if ticker == "" {
		return engine.OrderbookSnapshot{}, fmt.Errorf("ticker is required")
	}

	params := url.Values{}
	if depth > 0 {
		params.Set("depth", strconv.Itoa(depth))
	}

	var envelope orderbookEnvelope
	path := "/markets/" + url.PathEscape(ticker) + "/orderbook"
	if err := c.getJSON(ctx, "orderbook", path, params, &envelope); err != nil {
		return engine.OrderbookSnapshot{}, fmt.Errorf("failed to fetch orderbook for %s: %w", ticker, err)
	}

	return envelope.snapshot(ticker), nil
}

// getJSON performs one rate-limited GET through the circuit breaker and
// decodes the response body into out. endpoint is the stable metric
// label; path carries the ticker and must not be used as one.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	start := time.Now()
	body, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			// Drain so the connection can be reused.
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
		}

		return io.ReadAll(resp.Body)
	})
	if c.metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		c.metrics.APIRequests.WithLabelValues(endpoint, result).Inc()
		c.metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return fmt.Errorf("invalid response body: %w", err)
	}
	return nil
}
