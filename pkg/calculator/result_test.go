package calculator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResult_GuidancePrecedence(t *testing.T) {
	// A stop above the live price wins over any SMA comparison.
	result := Result{CurrentPrice: 150.0, StopPrice: 171.0, SMA50: 140.0, HasSMA50: true}
	require.Equal(t, GuidanceAboveCurrent, result.Guidance())

	// And also without an SMA.
	result = Result{CurrentPrice: 150.0, StopPrice: 171.0}
	require.Equal(t, GuidanceAboveCurrent, result.Guidance())
}

func TestResult_GuidanceAgainstSMA(t *testing.T) {
	raise := Result{CurrentPrice: 150.0, StopPrice: 142.5, SMA50: 145.0, HasSMA50: true}
	require.Equal(t, GuidanceRaiseStop, raise.Guidance())

	keep := Result{CurrentPrice: 150.0, StopPrice: 142.5, SMA50: 140.0, HasSMA50: true}
	require.Equal(t, GuidanceKeepCurrent, keep.Guidance())

	// Stop exactly at the SMA keeps the current stop.
	boundary := Result{CurrentPrice: 150.0, StopPrice: 142.5, SMA50: 142.5, HasSMA50: true}
	require.Equal(t, GuidanceKeepCurrent, boundary.Guidance())
}

func TestResult_GuidanceWithoutSMA(t *testing.T) {
	result := Result{CurrentPrice: 150.0, StopPrice: 142.5}
	require.Equal(t, GuidanceUnavailable, result.Guidance())
}

func TestResult_FormattedFields(t *testing.T) {
	result := Result{
		Symbol:       "AAPL",
		CurrentPrice: 150.0,
		StopPrice:    142.5,
		Mode:         ModeSimple,
		Percentage:   5.0,
		Currency:     "USD",
		DollarRisk:   7.5,
	}

	require.Equal(t, "5.00%", result.FormattedPercentage())
	require.Equal(t, "USD 7.50", result.FormattedRisk())
	require.Equal(t, "USD 142.50", result.FormattedStop())
	require.Equal(t, "N/A", result.FormattedSMA())
	require.Equal(t, "5.00%", result.FormattedMethod())
}

func TestResult_FormattedMethodATR(t *testing.T) {
	result := Result{
		Mode:          ModeATR,
		ATR:           10.0,
		ATRMultiplier: 2.0,
		Currency:      "USD",
	}
	require.Equal(t, "2.00 x ATR 10.00", result.FormattedMethod())
}

func TestResult_FormattedSMAWithValue(t *testing.T) {
	result := Result{Currency: "USD", SMA50: 145.2349, HasSMA50: true}
	require.Equal(t, "USD 145.23", result.FormattedSMA())
}

func TestResult_NegativeRiskFormatting(t *testing.T) {
	result := Result{Currency: "USD", DollarRisk: -12.0}
	require.Equal(t, "USD -12.00", result.FormattedRisk())
}
