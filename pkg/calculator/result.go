package calculator

import "fmt"

// Guidance is the qualitative advice derived from comparing a computed
// stop against the market and its 50-day moving average.
type Guidance string

const (
	// GuidanceAboveCurrent warns that the stop sits above the live price.
	// Possible only when a base-price override pushed the stop there.
	GuidanceAboveCurrent Guidance = "Above current"
	// GuidanceRaiseStop advises tightening: price has room above support.
	GuidanceRaiseStop Guidance = "Raise stop"
	// GuidanceKeepCurrent advises leaving the stop where it is.
	GuidanceKeepCurrent Guidance = "Keep current"
	// GuidanceUnavailable is emitted when no moving average was supplied.
	GuidanceUnavailable Guidance = "N/A"
)

// Result is the outcome of one stop-loss calculation. It is immutable
// once produced; formatted strings are derived on demand, never stored.
type Result struct {
	Symbol       string
	CurrentPrice float64
	StopPrice    float64
	Mode         Mode
	Percentage   float64
	Currency     string

	// DollarRisk is current price minus stop price, per share. Negative
	// when a base-price override puts the stop above the market.
	DollarRisk float64

	// Display-only context carried from the calculation call.
	SMA50        float64
	HasSMA50     bool
	BasePrice    float64
	HasBasePrice bool

	// Set only for ModeATR.
	ATR           float64
	ATRMultiplier float64
}

// Guidance derives the advice label. The branches are evaluated in a fixed
// order: a stop above the live price always wins over the SMA comparison.
func (r Result) Guidance() Guidance {
	switch {
	case r.StopPrice > r.CurrentPrice:
		return GuidanceAboveCurrent
	case !r.HasSMA50:
		return GuidanceUnavailable
	case r.StopPrice < r.SMA50:
		return GuidanceRaiseStop
	default:
		return GuidanceKeepCurrent
	}
}

// FormattedPercentage returns the stop percentage as "5.00%".
func (r Result) FormattedPercentage() string {
	return fmt.Sprintf("%.2f%%", r.Percentage)
}

// FormattedRisk returns the per-share risk as "USD 7.50".
func (r Result) FormattedRisk() string {
	return fmt.Sprintf("%s %.2f", r.Currency, r.DollarRisk)
}

// FormattedSMA returns the 50-day moving average as "USD 145.20",
// or "N/A" when none was supplied.
func (r Result) FormattedSMA() string {
	if !r.HasSMA50 {
		return "N/A"
	}
	return fmt.Sprintf("%s %.2f", r.Currency, r.SMA50)
}

// FormattedStop returns the stop price as "USD 142.50".
func (r Result) FormattedStop() string {
	return fmt.Sprintf("%s %.2f", r.Currency, r.StopPrice)
}

// FormattedMethod describes the parameters behind the stop: the percentage
// for Simple and Trailing, the ATR distance for ATR mode.
func (r Result) FormattedMethod() string {
	if r.Mode == ModeATR {
		return fmt.Sprintf("%.2f x ATR %.2f", r.ATRMultiplier, r.ATR)
	}
	return r.FormattedPercentage()
}
