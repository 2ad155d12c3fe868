// Package indicator wraps the go-talib functions used for display fields.
package indicator

import "github.com/markcheno/go-talib"

// SMA calculates the Simple Moving Average series for the input.
func SMA(input []float64, period int) []float64 {
	return talib.Sma(input, period)
}

// LastSMA returns the most recent simple moving average over the input,
// or false when the input is shorter than the period.
func LastSMA(input []float64, period int) (float64, bool) {
	if len(input) < period || period <= 0 {
		return 0, false
	}
	series := SMA(input, period)
	return series[len(series)-1], true
}
