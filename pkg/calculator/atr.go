package calculator

import (
	"fmt"
	"math"

	"github.com/raykavin/stoploss/pkg/core"
)

// ATR computes the Average True Range of a chronological daily bar
// sequence as the arithmetic mean of the most recent `period` true ranges.
// This is a simple moving average of true range, deliberately not Wilder's
// smoothed variant. No rounding is applied; rounding is a display concern.
func ATR(bars []core.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("%w: atr period must be positive, got %d", core.ErrInsufficientData, period)
	}
	// The first bar has no previous close, so period+1 bars are needed
	// to produce period true-range values.
	if len(bars) <= period {
		return 0, fmt.Errorf("%w: atr period %d needs %d bars, have %d",
			core.ErrInsufficientData, period, period+1, len(bars))
	}

	ranges, err := TrueRanges(bars)
	if err != nil {
		return 0, err
	}

	window := ranges[len(ranges)-period:]
	sum := 0.0
	for _, r := range window {
		sum += r
	}
	atr := sum / float64(period)

	if math.IsNaN(atr) || math.IsInf(atr, 0) {
		return 0, fmt.Errorf("%w: atr is not finite", core.ErrDegenerateResult)
	}
	return atr, nil
}

// TrueRanges computes the true-range series of a chronological bar
// sequence. The first bar has no previous close and contributes no value,
// so the series is one shorter than the input.
func TrueRanges(bars []core.Bar) ([]float64, error) {
	for _, bar := range bars {
		if !bar.HasOHLC() {
			return nil, fmt.Errorf("%w: bar %s lacks high/low/close", core.ErrMissingField, bar.DateKey())
		}
	}

	ranges := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		ranges = append(ranges, trueRange(bars[i], bars[i-1].Close))
	}
	return ranges, nil
}

// trueRange is the greatest of the bar's own range and the gaps between
// its extremes and the previous close.
func trueRange(bar core.Bar, prevClose float64) float64 {
	highLow := bar.High - bar.Low
	highClose := math.Abs(bar.High - prevClose)
	lowClose := math.Abs(bar.Low - prevClose)
	return math.Max(highLow, math.Max(highClose, lowClose))
}
