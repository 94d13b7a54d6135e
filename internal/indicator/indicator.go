// Package indicator provides pure technical indicator computations over
// price and volume series.
//
// Every function is deterministic given identical input and keeps no state,
// so all of them are safe to call concurrently. Leading indices for which an
// indicator is not yet defined hold math.NaN rather than a value; callers
// must check Defined before trusting a point. Point-in-time helpers return
// an InsufficientDataError when the series is shorter than the minimum
// window instead of producing NaN.
package indicator

import "math"

// Condition classifies a single indicator value against its thresholds.
type Condition string

const (
	ConditionOversold   Condition = "oversold"
	ConditionOverbought Condition = "overbought"
	ConditionNeutral    Condition = "neutral"
)

// Crossover classifies the relationship between an indicator line and its
// signal line at a single index.
type Crossover string

const (
	CrossoverBullish Crossover = "bullish"
	CrossoverBearish Crossover = "bearish"
	CrossoverNone    Crossover = "none"
)

// Defined reports whether an indicator value is defined at a point.
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

// undefinedSeries returns a slice of n NaN values.
func undefinedSeries(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}

	return s
}
