package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const chartBody = `{
  "chart": {
    "result": [{
      "meta": {
        "currency": "USD",
        "symbol": "AAPL",
        "regularMarketPrice": 150.25,
        "chartPreviousClose": 148.0,
        "fiftyTwoWeekHigh": 199.5,
        "fiftyTwoWeekLow": 120.0,
        "regularMarketTime": 1704229200
      },
      "timestamp": [1704186000, 1704272400, 1704358800],
      "indicators": {
        "quote": [{
          "open":   [104.0, null, 106.0],
          "high":   [105.0, null, 107.0],
          "low":    [99.0,  null, 101.0],
          "close":  [103.0, null, 105.0],
          "volume": [1000,  null, 2000]
        }]
      }
    }],
    "error": null
  }
}`

const notFoundBody = `{
  "chart": {
    "result": null,
    "error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}
  }
}`

func newTestServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.Contains(r.URL.Path, "MISSING") {
			fmt.Fprint(w, notFoundBody)
			return
		}
		fmt.Fprint(w, chartBody)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_Quote(t *testing.T) {
	var hits atomic.Int64
	server := newTestServer(t, &hits)
	client := New(WithBaseURL(server.URL))

	quote, err := client.Quote(context.Background(), "aapl")
	require.NoError(t, err)

	require.Equal(t, "AAPL", quote.Symbol)
	require.Equal(t, 150.25, quote.Price)
	require.Equal(t, "USD", quote.Currency)
	require.Equal(t, 148.0, quote.PreviousClose)
	require.Equal(t, 199.5, quote.Week52High)
	require.Equal(t, 120.0, quote.Week52Low)
}

func TestClient_QuoteUsesCache(t *testing.T) {
	var hits atomic.Int64
	server := newTestServer(t, &hits)
	client := New(WithBaseURL(server.URL), WithCacheTTL(time.Minute))

	_, err := client.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	_, err = client.Quote(context.Background(), "AAPL")
	require.NoError(t, err)

	require.Equal(t, int64(1), hits.Load())

	client.ClearCache()
	_, err = client.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, int64(2), hits.Load())
}

func TestClient_QuoteCacheDisabled(t *testing.T) {
	var hits atomic.Int64
	server := newTestServer(t, &hits)
	client := New(WithBaseURL(server.URL), WithCacheTTL(0))

	_, err := client.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	_, err = client.Quote(context.Background(), "AAPL")
	require.NoError(t, err)

	require.Equal(t, int64(2), hits.Load())
}

func TestClient_QuoteUnknownSymbol(t *testing.T) {
	var hits atomic.Int64
	server := newTestServer(t, &hits)
	client := New(WithBaseURL(server.URL))

	_, err := client.Quote(context.Background(), "MISSING")
	require.ErrorIs(t, err, ErrQuoteUnavailable)

	// Endpoint-level errors are terminal, not retried.
	require.Equal(t, int64(1), hits.Load())
}

func TestClient_QuoteServerFailureRetries(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := New(WithBaseURL(server.URL), WithMaxRetries(2))
	_, err := client.Quote(context.Background(), "AAPL")
	require.Error(t, err)
	require.Equal(t, int64(3), hits.Load())
}

func TestClient_QuotesContinuesPastFailures(t *testing.T) {
	var hits atomic.Int64
	server := newTestServer(t, &hits)
	client := New(WithBaseURL(server.URL), WithMaxRetries(0))

	results := client.Quotes(context.Background(), []string{"AAPL", "MISSING"})
	require.Len(t, results, 2)

	require.NoError(t, results["AAPL"].Err)
	require.Equal(t, 150.25, results["AAPL"].Quote.Price)
	require.ErrorIs(t, results["MISSING"].Err, ErrQuoteUnavailable)
}

func TestClient_DailySkipsIncompleteDays(t *testing.T) {
	var hits atomic.Int64
	server := newTestServer(t, &hits)
	client := New(WithBaseURL(server.URL))

	bars, err := client.Daily(context.Background(), "AAPL", time.Now().AddDate(0, 0, -10))
	require.NoError(t, err)

	// The middle day is all nulls and must be skipped.
	require.Len(t, bars, 2)
	require.Equal(t, 105.0, bars[0].High)
	require.Equal(t, 103.0, bars[0].Close)
	require.Equal(t, 107.0, bars[1].High)
	require.Equal(t, int64(2000), bars[1].Volume)
}
