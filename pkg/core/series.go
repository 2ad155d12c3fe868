package core

import (
	"golang.org/x/exp/constraints"
)

// Series is an ordered sequence of values used for windowing operations
// over daily price data.
type Series[T constraints.Ordered] []T

// Values returns the underlying slice of values
func (s Series[T]) Values() []T {
	return s
}

// Length returns the number of values in the series
func (s Series[T]) Length() int {
	return len(s)
}

// Last returns the value at a specified position from the end
// position 0 is the last value, 1 is the second-to-last, etc.
func (s Series[T]) Last(position int) T {
	return s[len(s)-1-position]
}

// LastValues returns a slice with the last 'size' values
// If size exceeds the length, returns the entire series
func (s Series[T]) LastValues(size int) Series[T] {
	if l := len(s); l > size {
		return s[l-size:]
	}
	return s
}

// Closes extracts the close series from a chronological bar sequence.
func Closes(bars []Bar) Series[float64] {
	out := make(Series[float64], len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts the high series from a chronological bar sequence.
func Highs(bars []Bar) Series[float64] {
	out := make(Series[float64], len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low series from a chronological bar sequence.
func Lows(bars []Bar) Series[float64] {
	out := make(Series[float64], len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}
