package core

import (
	"context"
	"time"
)

// QuoteResult carries either a fetched quote or the error that prevented it.
// Batch retrieval continues past individual failures, so callers receive one
// QuoteResult per requested symbol.
type QuoteResult struct {
	Quote Quote
	Err   error
}

// Quoter fetches current price snapshots and daily history for symbols.
type Quoter interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
	Quotes(ctx context.Context, symbols []string) map[string]QuoteResult
	Daily(ctx context.Context, symbol string, start time.Time) ([]Bar, error)
}

// History stores and queries daily bars per symbol.
type History interface {
	// StoreBars inserts bars, ignoring duplicates on (symbol, date).
	// Returns the number of bars actually inserted.
	StoreBars(ctx context.Context, symbol string, bars []Bar) (int, error)

	// StoreQuote records a quote as today's bar (price used for OHLC) and
	// remembers the quote's 52-week levels when present. Returns false when
	// a bar for today already exists.
	StoreQuote(ctx context.Context, quote Quote) (bool, error)

	// HighWaterMark returns the maximum stored high since the cutoff date.
	// A zero cutoff means all available data. ok is false when no data exists.
	HighWaterMark(ctx context.Context, symbol string, since time.Time) (mark float64, ok bool, err error)

	// LastUpdate returns the most recent stored bar date for the symbol.
	LastUpdate(ctx context.Context, symbol string) (date time.Time, ok bool, err error)

	// RecentBars returns up to n most recent bars in chronological order.
	RecentBars(ctx context.Context, symbol string, n int) ([]Bar, error)

	// Latest52WeekHigh returns the most recently stored 52-week-high value.
	Latest52WeekHigh(ctx context.Context, symbol string) (high float64, ok bool, err error)

	// Purge removes all stored data for the symbol, returning the number
	// of bars deleted.
	Purge(ctx context.Context, symbol string) (int, error)

	Close() error
}

// Notifier delivers computed stop levels to an external channel.
type Notifier interface {
	Notify(message string)
	OnError(err error)
}
