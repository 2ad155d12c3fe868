package core

import (
	"strings"
	"time"
)

// Quote is a point-in-time price snapshot for a single symbol.
// Optional numeric fields use zero as "not available"; real equity
// prices are strictly positive.
type Quote struct {
	Symbol        string
	Price         float64
	Currency      string
	Time          time.Time
	PreviousClose float64
	Week52High    float64
	Week52Low     float64
	CostBasis     float64
}

// NormalizeSymbol returns the canonical uppercase form of a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Bar is one trading day of OHLCV data for a symbol.
// Bars in a sequence are chronological, one per trading day.
type Bar struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// HasOHLC reports whether the fields required for range calculations
// are present. Open and Volume may be absent.
func (b Bar) HasOHLC() bool {
	return b.High > 0 && b.Low > 0 && b.Close > 0
}

// DateKey returns the bar date formatted as its storage key component.
func (b Bar) DateKey() string {
	return b.Date.Format(DateLayout)
}

// DateLayout is the canonical date format used across storage and CLI flags.
const DateLayout = "2006-01-02"
