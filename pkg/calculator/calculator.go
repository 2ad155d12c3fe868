// Package calculator computes protective exit prices for equity positions.
package calculator

import (
	"fmt"

	"github.com/raykavin/stoploss/pkg/core"
)

// Mode identifies the stop-loss calculation rule that produced a result.
type Mode string

const (
	ModeSimple   Mode = "simple"
	ModeTrailing Mode = "trailing"
	ModeATR      Mode = "atr"
)

// HighWaterSource selects where a trailing calculation takes its high-water
// mark from: a value supplied by the caller (normally read from persisted
// history) or the calculator's own in-memory tracker. A supplied value
// bypasses and never mutates the tracker.
type HighWaterSource struct {
	supplied bool
	value    float64
}

// SuppliedHighWater uses an externally computed high-water mark.
func SuppliedHighWater(value float64) HighWaterSource {
	return HighWaterSource{supplied: true, value: value}
}

// TrackedHighWater falls back to the calculator's in-memory tracker.
func TrackedHighWater() HighWaterSource {
	return HighWaterSource{}
}

// Calculator computes stop-loss prices. Each instance owns its own
// high-water-mark state; instances shared across goroutines are safe
// because the tracker serializes its map access.
type Calculator struct {
	marks *HighWaterTracker
}

// New creates a calculator with an empty high-water-mark tracker.
func New() *Calculator {
	return &Calculator{marks: NewHighWaterTracker()}
}

// Option attaches display-only context to a calculation.
type Option func(*callContext)

type callContext struct {
	sma     float64
	hasSMA  bool
	base    float64
	hasBase bool
}

// WithSMA50 supplies a 50-day simple moving average used for guidance.
func WithSMA50(value float64) Option {
	return func(c *callContext) {
		c.sma = value
		c.hasSMA = true
	}
}

// WithBasePrice overrides the price the stop distance is measured from,
// typically a 52-week high.
func WithBasePrice(value float64) Option {
	return func(c *callContext) {
		c.base = value
		c.hasBase = true
	}
}

func applyOptions(opts []Option) callContext {
	var ctx callContext
	for _, opt := range opts {
		opt(&ctx)
	}
	return ctx
}

func validatePercentage(pct float64) error {
	if pct <= 0 || pct >= 100 {
		return fmt.Errorf("%w, got %v", core.ErrInvalidPercentage, pct)
	}
	return nil
}

// Simple computes a stop a fixed percentage below the base price.
// The base defaults to the quote's current price; WithBasePrice overrides
// it. Risk is measured against the current price and may be negative when
// the base sits above the market.
func (c *Calculator) Simple(quote core.Quote, pct float64, opts ...Option) (Result, error) {
	if err := validatePercentage(pct); err != nil {
		return Result{}, err
	}

	ctx := applyOptions(opts)
	base := quote.Price
	if ctx.hasBase {
		base = ctx.base
	}

	stop := base * (1 - pct/100)
	return c.buildResult(quote, ModeSimple, pct, stop, ctx), nil
}

// Trailing computes a stop a fixed percentage below the resolved high-water
// mark. With TrackedHighWater the calculator observes the current price
// first, so the mark never decreases across calls for the same symbol.
func (c *Calculator) Trailing(quote core.Quote, pct float64, source HighWaterSource, opts ...Option) (Result, error) {
	if err := validatePercentage(pct); err != nil {
		return Result{}, err
	}

	hwm := source.value
	if !source.supplied {
		hwm = c.marks.Observe(quote.Symbol, quote.Price)
	}

	ctx := applyOptions(opts)
	stop := hwm * (1 - pct/100)
	return c.buildResult(quote, ModeTrailing, pct, stop, ctx), nil
}

// ATRStop computes a stop a multiple of the Average True Range below the
// base price. The ATR value is supplied by the caller, normally obtained
// from ATR over externally retrieved bars.
func (c *Calculator) ATRStop(quote core.Quote, pct float64, atr, multiplier float64, opts ...Option) (Result, error) {
	if multiplier <= 0 {
		return Result{}, fmt.Errorf("%w, got %v", core.ErrInvalidMultiplier, multiplier)
	}

	ctx := applyOptions(opts)
	base := quote.Price
	if ctx.hasBase {
		base = ctx.base
	}

	stop := base - atr*multiplier
	result := c.buildResult(quote, ModeATR, pct, stop, ctx)
	result.ATR = atr
	result.ATRMultiplier = multiplier
	return result, nil
}

// Calculate dispatches between Simple and Trailing. ATR mode is invoked
// explicitly through ATRStop since it needs the extra atr argument.
func (c *Calculator) Calculate(quote core.Quote, pct float64, trailing bool, source HighWaterSource, opts ...Option) (Result, error) {
	if trailing {
		return c.Trailing(quote, pct, source, opts...)
	}
	return c.Simple(quote, pct, opts...)
}

// HighWaterMark returns the tracked mark for a symbol, if any.
func (c *Calculator) HighWaterMark(symbol string) (float64, bool) {
	return c.marks.Get(symbol)
}

// ResetHighWaterMark clears tracked marks for the given symbols,
// or every mark when none are given.
func (c *Calculator) ResetHighWaterMark(symbols ...string) {
	c.marks.Reset(symbols...)
}

func (c *Calculator) buildResult(quote core.Quote, mode Mode, pct, stop float64, ctx callContext) Result {
	result := Result{
		Symbol:       quote.Symbol,
		CurrentPrice: quote.Price,
		StopPrice:    stop,
		Mode:         mode,
		Percentage:   pct,
		Currency:     quote.Currency,
		DollarRisk:   quote.Price - stop,
	}
	if ctx.hasSMA {
		result.SMA50 = ctx.sma
		result.HasSMA50 = true
	}
	if ctx.hasBase {
		result.BasePrice = ctx.base
		result.HasBasePrice = true
	}
	return result
}
