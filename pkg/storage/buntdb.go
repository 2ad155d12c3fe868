// Package storage provides persistent daily-bar history backends.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/raykavin/stoploss/pkg/core"
	"github.com/tidwall/buntdb"
)

const (
	barKeyPrefix  = "bar:"
	wk52KeyPrefix = "wk52:"
)

// BuntHistory implements core.History using BuntDB. Bar keys embed the
// ISO date, so lexical key order is chronological order.
type BuntHistory struct {
	db *buntdb.DB
}

// BuntConfig holds configuration options for BuntDB.
type BuntConfig struct {
	// SyncPolicy determines how often data is synchronized to disk.
	SyncPolicy buntdb.SyncPolicy
}

// DefaultBuntConfig returns the default configuration for BuntDB.
func DefaultBuntConfig() BuntConfig {
	return BuntConfig{SyncPolicy: buntdb.EverySecond}
}

// NewFromMemory creates an in-memory history with default configuration.
func NewFromMemory() (*BuntHistory, error) {
	return NewBuntHistory(":memory:", DefaultBuntConfig())
}

// NewFromFile creates a file-based history with default configuration.
func NewFromFile(file string) (*BuntHistory, error) {
	return NewBuntHistory(file, DefaultBuntConfig())
}

// NewBuntHistory opens a BuntDB-backed history store.
func NewBuntHistory(sourceFile string, config BuntConfig) (*BuntHistory, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{SyncPolicy: config.SyncPolicy}); err != nil {
		return nil, fmt.Errorf("failed to configure buntdb: %w", err)
	}

	return &BuntHistory{db: db}, nil
}

type barRecord struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"`
	Open   float64 `json:"open,omitempty"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume,omitempty"`
}

type week52Record struct {
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	UpdatedAt time.Time `json:"updated_at"`
}

func barKey(symbol, date string) string {
	return barKeyPrefix + symbol + ":" + date
}

func toRecord(symbol string, bar core.Bar) barRecord {
	return barRecord{
		Symbol: symbol,
		Date:   bar.DateKey(),
		Open:   bar.Open,
		High:   bar.High,
		Low:    bar.Low,
		Close:  bar.Close,
		Volume: bar.Volume,
	}
}

func (r barRecord) toBar() (core.Bar, error) {
	date, err := time.Parse(core.DateLayout, r.Date)
	if err != nil {
		return core.Bar{}, fmt.Errorf("invalid stored date %q: %w", r.Date, err)
	}
	return core.Bar{
		Symbol: r.Symbol,
		Date:   date,
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
	}, nil
}

// StoreBars inserts bars, ignoring duplicate dates. Returns the number
// of bars actually inserted.
func (h *BuntHistory) StoreBars(_ context.Context, symbol string, bars []core.Bar) (int, error) {
	symbol = core.NormalizeSymbol(symbol)
	inserted := 0

	err := h.db.Update(func(tx *buntdb.Tx) error {
		for _, bar := range bars {
			key := barKey(symbol, bar.DateKey())
			if _, err := tx.Get(key); err == nil {
				continue
			} else if err != buntdb.ErrNotFound {
				return fmt.Errorf("failed to probe bar %s: %w", key, err)
			}

			content, err := json.Marshal(toRecord(symbol, bar))
			if err != nil {
				return fmt.Errorf("failed to marshal bar: %w", err)
			}
			if _, _, err := tx.Set(key, string(content), nil); err != nil {
				return fmt.Errorf("failed to store bar: %w", err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// StoreQuote records the quote as today's bar, with the price standing in
// for open, high, low and close. 52-week levels are remembered separately
// when the quote carries them.
func (h *BuntHistory) StoreQuote(ctx context.Context, quote core.Quote) (bool, error) {
	symbol := core.NormalizeSymbol(quote.Symbol)
	when := quote.Time
	if when.IsZero() {
		when = time.Now()
	}

	bar := core.Bar{
		Symbol: symbol,
		Date:   when,
		Open:   quote.Price,
		High:   quote.Price,
		Low:    quote.Price,
		Close:  quote.Price,
	}

	inserted, err := h.StoreBars(ctx, symbol, []core.Bar{bar})
	if err != nil {
		return false, err
	}

	if quote.Week52High > 0 {
		record := week52Record{High: quote.Week52High, Low: quote.Week52Low, UpdatedAt: when}
		content, err := json.Marshal(record)
		if err != nil {
			return false, fmt.Errorf("failed to marshal 52-week levels: %w", err)
		}
		err = h.db.Update(func(tx *buntdb.Tx) error {
			_, _, err := tx.Set(wk52KeyPrefix+symbol, string(content), nil)
			return err
		})
		if err != nil {
			return false, fmt.Errorf("failed to store 52-week levels: %w", err)
		}
	}

	return inserted > 0, nil
}

// ascendBars walks the symbol's bars in chronological order.
func (h *BuntHistory) ascendBars(symbol string, fn func(record barRecord) bool) error {
	prefix := barKeyPrefix + symbol + ":"

	return h.db.View(func(tx *buntdb.Tx) error {
		var innerErr error
		err := tx.AscendKeys(prefix+"*", func(key, value string) bool {
			if !strings.HasPrefix(key, prefix) {
				return true
			}
			var record barRecord
			if innerErr = json.Unmarshal([]byte(value), &record); innerErr != nil {
				innerErr = fmt.Errorf("failed to unmarshal bar %s: %w", key, innerErr)
				return false
			}
			return fn(record)
		})
		if innerErr != nil {
			return innerErr
		}
		return err
	})
}

// HighWaterMark returns the maximum stored high since the cutoff date.
func (h *BuntHistory) HighWaterMark(_ context.Context, symbol string, since time.Time) (float64, bool, error) {
	symbol = core.NormalizeSymbol(symbol)
	cutoff := ""
	if !since.IsZero() {
		cutoff = since.Format(core.DateLayout)
	}

	mark, found := 0.0, false
	err := h.ascendBars(symbol, func(record barRecord) bool {
		if cutoff != "" && record.Date < cutoff {
			return true
		}
		if !found || record.High > mark {
			mark = record.High
			found = true
		}
		return true
	})
	if err != nil {
		return 0, false, err
	}
	return mark, found, nil
}

// LastUpdate returns the most recent stored bar date for the symbol.
func (h *BuntHistory) LastUpdate(_ context.Context, symbol string) (time.Time, bool, error) {
	symbol = core.NormalizeSymbol(symbol)

	last := ""
	err := h.ascendBars(symbol, func(record barRecord) bool {
		last = record.Date
		return true
	})
	if err != nil || last == "" {
		return time.Time{}, false, err
	}

	date, err := time.Parse(core.DateLayout, last)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid stored date %q: %w", last, err)
	}
	return date, true, nil
}

// RecentBars returns up to n most recent bars in chronological order.
func (h *BuntHistory) RecentBars(_ context.Context, symbol string, n int) ([]core.Bar, error) {
	symbol = core.NormalizeSymbol(symbol)

	var bars []core.Bar
	err := h.ascendBars(symbol, func(record barRecord) bool {
		bar, convErr := record.toBar()
		if convErr != nil {
			return true
		}
		bars = append(bars, bar)
		return true
	})
	if err != nil {
		return nil, err
	}

	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

// Latest52WeekHigh returns the most recently stored 52-week-high value.
func (h *BuntHistory) Latest52WeekHigh(_ context.Context, symbol string) (float64, bool, error) {
	symbol = core.NormalizeSymbol(symbol)

	var record week52Record
	err := h.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(wk52KeyPrefix + symbol)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(value), &record)
	})
	if err == buntdb.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read 52-week levels: %w", err)
	}
	return record.High, record.High > 0, nil
}

// Purge removes all stored data for the symbol.
func (h *BuntHistory) Purge(_ context.Context, symbol string) (int, error) {
	symbol = core.NormalizeSymbol(symbol)
	prefix := barKeyPrefix + symbol + ":"

	deleted := 0
	err := h.db.Update(func(tx *buntdb.Tx) error {
		var keys []string
		err := tx.AscendKeys(prefix+"*", func(key, _ string) bool {
			keys = append(keys, key)
			return true
		})
		if err != nil {
			return err
		}

		for _, key := range keys {
			if _, err := tx.Delete(key); err != nil {
				return fmt.Errorf("failed to delete bar %s: %w", key, err)
			}
			deleted++
		}

		if _, err := tx.Delete(wk52KeyPrefix + symbol); err != nil && err != buntdb.ErrNotFound {
			return fmt.Errorf("failed to delete 52-week levels: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Close closes the database.
func (h *BuntHistory) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}
