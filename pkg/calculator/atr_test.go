package calculator

import (
	"math"
	"testing"
	"time"

	"github.com/raykavin/stoploss/pkg/core"
	"github.com/stretchr/testify/require"
)

func fixtureBars(t *testing.T) []core.Bar {
	t.Helper()

	highs := []float64{105, 107, 106, 108, 110, 109, 111, 112, 113, 114, 115, 116, 117, 118, 119}
	lows := []float64{99, 101, 100, 102, 104, 103, 105, 106, 107, 108, 109, 110, 111, 112, 113}
	closes := []float64{103, 105, 104, 106, 108, 107, 109, 110, 111, 112, 113, 114, 115, 116, 117}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.Bar, len(highs))
	for i := range highs {
		bars[i] = core.Bar{
			Symbol: "AAPL",
			Date:   start.AddDate(0, 0, i),
			Open:   lows[i] + 1,
			High:   highs[i],
			Low:    lows[i],
			Close:  closes[i],
		}
	}
	return bars
}

func TestATR_FixtureSeries(t *testing.T) {
	bars := fixtureBars(t)

	atr, err := ATR(bars, 14)
	require.NoError(t, err)

	// Every bar in the fixture spans exactly 6 points and the close gaps
	// never exceed that, so the mean true range is 6.
	require.InDelta(t, 6.0, atr, 1e-9)
	require.Greater(t, atr, 4.0)
	require.Less(t, atr, 8.0)
}

func TestATR_MeanOfLastPeriodRanges(t *testing.T) {
	bars := fixtureBars(t)

	// Shrink the window: the last 5 true ranges are still all 6.
	atr, err := ATR(bars, 5)
	require.NoError(t, err)
	require.InDelta(t, 6.0, atr, 1e-9)
}

func TestATR_GapDominatesRange(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := []core.Bar{
		{Symbol: "TSLA", Date: day, High: 100, Low: 98, Close: 99},
		// Gap up: the distance to the previous close dominates high-low.
		{Symbol: "TSLA", Date: day.AddDate(0, 0, 1), High: 110, Low: 108, Close: 109},
	}

	atr, err := ATR(bars, 1)
	require.NoError(t, err)
	require.InDelta(t, 11.0, atr, 1e-9) // |110 - 99|
}

func TestATR_InsufficientData(t *testing.T) {
	bars := fixtureBars(t)[:2]

	_, err := ATR(bars, 14)
	require.ErrorIs(t, err, core.ErrInsufficientData)

	// Exactly period bars yields only period-1 true ranges.
	_, err = ATR(fixtureBars(t)[:14], 14)
	require.ErrorIs(t, err, core.ErrInsufficientData)

	_, err = ATR(fixtureBars(t), 0)
	require.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestATR_MissingField(t *testing.T) {
	bars := fixtureBars(t)
	bars[3].Close = 0

	_, err := ATR(bars, 14)
	require.ErrorIs(t, err, core.ErrMissingField)
}

func TestATR_DegenerateResult(t *testing.T) {
	bars := fixtureBars(t)
	bars[10].High = math.Inf(1)

	_, err := ATR(bars, 14)
	require.ErrorIs(t, err, core.ErrDegenerateResult)
}
