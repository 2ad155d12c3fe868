package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/raykavin/stoploss/pkg/core"
	zerologger "github.com/raykavin/stoploss/pkg/logger/zerolog"
	"github.com/raykavin/stoploss/pkg/storage"
)

// stubQuoter serves a canned daily history and records how often it is hit.
type stubQuoter struct {
	daily      []core.Bar
	dailyCalls int
}

func (s *stubQuoter) Quote(_ context.Context, _ string) (core.Quote, error) {
	return core.Quote{}, nil
}

func (s *stubQuoter) Quotes(_ context.Context, _ []string) map[string]core.QuoteResult {
	return nil
}

func (s *stubQuoter) Daily(_ context.Context, _ string, _ time.Time) ([]core.Bar, error) {
	s.dailyCalls++
	return s.daily, nil
}

func dailyBars(symbol string, days int, price float64) []core.Bar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]core.Bar, days)
	for i := range bars {
		bars[i] = core.Bar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1000,
		}
	}
	return bars
}

func TestDisplaySMA_BackfillsShortStore(t *testing.T) {
	history, err := storage.NewFromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })
	ctx := context.Background()

	full := dailyBars("AAPL", 75, 100.0)
	_, err = history.StoreBars(ctx, "AAPL", full[:10])
	require.NoError(t, err)

	quoter := &stubQuoter{daily: full}
	sma, ok := displaySMA(ctx, zerologger.Nop(), history, quoter, "AAPL")
	require.True(t, ok)
	require.InDelta(t, 100.0, sma, 1e-9)
	require.Equal(t, 1, quoter.dailyCalls)

	// The fetched window was persisted.
	bars, err := history.RecentBars(ctx, "AAPL", smaPeriod)
	require.NoError(t, err)
	require.Len(t, bars, smaPeriod)
}

func TestDisplaySMA_NoFetchWhenStoreIsFull(t *testing.T) {
	history, err := storage.NewFromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })
	ctx := context.Background()

	_, err = history.StoreBars(ctx, "AAPL", dailyBars("AAPL", smaPeriod, 120.0))
	require.NoError(t, err)

	quoter := &stubQuoter{}
	sma, ok := displaySMA(ctx, zerologger.Nop(), history, quoter, "AAPL")
	require.True(t, ok)
	require.InDelta(t, 120.0, sma, 1e-9)
	require.Equal(t, 0, quoter.dailyCalls)
}

func TestDisplaySMA_StillShortAfterBackfill(t *testing.T) {
	history, err := storage.NewFromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })
	ctx := context.Background()

	quoter := &stubQuoter{daily: dailyBars("AAPL", 20, 100.0)}
	_, ok := displaySMA(ctx, zerologger.Nop(), history, quoter, "AAPL")
	require.False(t, ok)
	require.Equal(t, 1, quoter.dailyCalls)
}
