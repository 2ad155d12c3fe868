// Package fetcher retrieves current quotes and daily history for equity
// symbols over HTTP.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/raykavin/stoploss/pkg/core"
	"github.com/raykavin/stoploss/pkg/logger"
	zerologger "github.com/raykavin/stoploss/pkg/logger/zerolog"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"
	chartPath      = "/v8/finance/chart/"
)

// Common errors
var (
	ErrQuoteUnavailable = errors.New("quote unavailable")
	ErrNoData           = errors.New("no data returned")
)

// Client fetches quotes from a Yahoo-style chart endpoint. Fetched quotes
// are cached for a short TTL so repeated lookups within one run do not
// hit the network again.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
	cacheTTL   time.Duration
	maxRetries int

	mu    sync.Mutex
	cache map[string]cachedQuote
}

type cachedQuote struct {
	quote core.Quote
	at    time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different endpoint, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithCacheTTL sets how long fetched quotes stay fresh. Zero disables
// the cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cacheTTL = ttl }
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithMaxRetries bounds the retry attempts per request.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// New creates a quote client with sensible defaults.
func New(opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        zerologger.Nop(),
		cacheTTL:   time.Minute,
		maxRetries: 3,
		cache:      make(map[string]cachedQuote),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				FiftyTwoWeekHigh   float64 `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow    float64 `json:"fiftyTwoWeekLow"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// setupBackoffRetry creates a backoff with sensible defaults
func setupBackoffRetry() *backoff.Backoff {
	return &backoff.Backoff{
		Min: 100 * time.Millisecond,
		Max: 1 * time.Second,
	}
}

func (c *Client) getChart(ctx context.Context, symbol string, query url.Values) (*chartResponse, error) {
	endpoint := c.baseURL + chartPath + url.PathEscape(symbol) + "?" + query.Encode()
	retry := setupBackoffRetry()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retry.Duration()
			c.log.WithField("symbol", symbol).Debugf("retrying chart request in %s", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "stoploss/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d for %s", resp.StatusCode, symbol)
			continue
		}

		var chart chartResponse
		if err := json.Unmarshal(body, &chart); err != nil {
			lastErr = fmt.Errorf("failed to decode chart response: %w", err)
			continue
		}
		if chart.Chart.Error != nil {
			return nil, fmt.Errorf("%w: %s (%s)", ErrQuoteUnavailable,
				chart.Chart.Error.Description, chart.Chart.Error.Code)
		}
		if len(chart.Chart.Result) == 0 {
			return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
		}
		return &chart, nil
	}

	return nil, fmt.Errorf("chart request for %s failed: %w", symbol, lastErr)
}

// Quote fetches the current price snapshot for a symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (core.Quote, error) {
	symbol = core.NormalizeSymbol(symbol)

	if c.cacheTTL > 0 {
		c.mu.Lock()
		cached, ok := c.cache[symbol]
		c.mu.Unlock()
		if ok && time.Since(cached.at) < c.cacheTTL {
			return cached.quote, nil
		}
	}

	query := url.Values{"range": {"5d"}, "interval": {"1d"}}
	chart, err := c.getChart(ctx, symbol, query)
	if err != nil {
		return core.Quote{}, fmt.Errorf("failed to fetch price for %s: %w", symbol, err)
	}

	meta := chart.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return core.Quote{}, fmt.Errorf("%w: no market price for %s", ErrQuoteUnavailable, symbol)
	}

	currency := meta.Currency
	if currency == "" {
		currency = "USD"
	}

	when := time.Now()
	if meta.RegularMarketTime > 0 {
		when = time.Unix(meta.RegularMarketTime, 0)
	}

	quote := core.Quote{
		Symbol:        symbol,
		Price:         meta.RegularMarketPrice,
		Currency:      currency,
		Time:          when,
		PreviousClose: meta.ChartPreviousClose,
		Week52High:    meta.FiftyTwoWeekHigh,
		Week52Low:     meta.FiftyTwoWeekLow,
	}

	c.mu.Lock()
	c.cache[symbol] = cachedQuote{quote: quote, at: time.Now()}
	c.mu.Unlock()

	return quote, nil
}

// Quotes fetches snapshots for multiple symbols, continuing past
// individual failures. Every requested symbol appears in the result.
func (c *Client) Quotes(ctx context.Context, symbols []string) map[string]core.QuoteResult {
	results := make(map[string]core.QuoteResult, len(symbols))
	for _, symbol := range symbols {
		symbol = core.NormalizeSymbol(symbol)
		quote, err := c.Quote(ctx, symbol)
		if err != nil {
			c.log.WithError(err).Warnf("could not fetch %s", symbol)
			results[symbol] = core.QuoteResult{Err: err}
			continue
		}
		results[symbol] = core.QuoteResult{Quote: quote}
	}
	return results
}

// Daily fetches daily bars from the start date up to today. Days with
// incomplete OHLC data are skipped.
func (c *Client) Daily(ctx context.Context, symbol string, start time.Time) ([]core.Bar, error) {
	symbol = core.NormalizeSymbol(symbol)

	query := url.Values{
		"period1":  {fmt.Sprintf("%d", start.Unix())},
		"period2":  {fmt.Sprintf("%d", time.Now().Unix())},
		"interval": {"1d"},
	}
	chart, err := c.getChart(ctx, symbol, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}
	series := result.Indicators.Quote[0]

	bars := make([]core.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(series.High) || series.High[i] == nil ||
			i >= len(series.Low) || series.Low[i] == nil ||
			i >= len(series.Close) || series.Close[i] == nil {
			continue
		}

		bar := core.Bar{
			Symbol: symbol,
			Date:   time.Unix(ts, 0).UTC(),
			High:   *series.High[i],
			Low:    *series.Low[i],
			Close:  *series.Close[i],
		}
		if i < len(series.Open) && series.Open[i] != nil {
			bar.Open = *series.Open[i]
		}
		if i < len(series.Volume) && series.Volume[i] != nil {
			bar.Volume = *series.Volume[i]
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// ClearCache drops all cached quotes.
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]cachedQuote)
	c.mu.Unlock()
}
