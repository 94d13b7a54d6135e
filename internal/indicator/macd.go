package indicator

import (
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// MACDResult holds the three MACD series, index aligned with the input
// closes. Histogram[i] equals Line[i]-Signal[i] wherever both are defined.
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// MACDSeries computes the Moving Average Convergence Divergence:
// Line = EMA(fast) - EMA(slow), Signal = EMA(signalPeriod) of the line,
// Histogram = Line - Signal. The line is defined from index slowPeriod-1;
// the signal and histogram need a further signalPeriod line values.
func MACDSeries(closes []float64, fastPeriod, slowPeriod, signalPeriod int) (MACDResult, error) {
	var zero MACDResult

	if fastPeriod <= 0 || slowPeriod <= 0 || signalPeriod <= 0 {
		return zero, errors.Newf(errors.ErrCodeInvalidPeriod,
			"periods must be positive integers, got fast=%d slow=%d signal=%d", fastPeriod, slowPeriod, signalPeriod)
	}

	if fastPeriod >= slowPeriod {
		return zero, errors.Newf(errors.ErrCodeInvalidPeriod,
			"fast period must be shorter than slow period, got fast=%d slow=%d", fastPeriod, slowPeriod)
	}

	fast, err := EMASeries(closes, fastPeriod)
	if err != nil {
		return zero, err
	}

	slow, err := EMASeries(closes, slowPeriod)
	if err != nil {
		return zero, err
	}

	line := undefinedSeries(len(closes))
	for i := range closes {
		if Defined(fast[i]) && Defined(slow[i]) {
			line[i] = fast[i] - slow[i]
		}
	}

	signal := macdSignalSeries(line, slowPeriod, signalPeriod, len(closes))

	histogram := undefinedSeries(len(closes))
	for i := range closes {
		if Defined(line[i]) && Defined(signal[i]) {
			histogram[i] = line[i] - signal[i]
		}
	}

	return MACDResult{Line: line, Signal: signal, Histogram: histogram}, nil
}

// macdSignalSeries computes the EMA of the MACD line over the defined
// suffix starting at slowPeriod-1.
func macdSignalSeries(line []float64, slowPeriod, signalPeriod, n int) []float64 {
	signal := undefinedSeries(n)

	start := slowPeriod - 1
	if start >= n {
		return signal
	}

	defined := line[start:]

	ema, err := EMASeries(defined, signalPeriod)
	if err != nil {
		return signal
	}

	for i, v := range ema {
		signal[start+i] = v
	}

	return signal
}

// LastDefined returns the latest index of the result where line, signal and
// histogram are all defined, or -1 when there is none.
func (r MACDResult) LastDefined() int {
	for i := len(r.Histogram) - 1; i >= 0; i-- {
		if Defined(r.Histogram[i]) && Defined(r.Line[i]) && Defined(r.Signal[i]) {
			return i
		}
	}

	return -1
}

// ClassifyMACD classifies the line/signal relationship at index i.
func (r MACDResult) ClassifyMACD(i int) Crossover {
	if i < 0 || i >= len(r.Line) || !Defined(r.Line[i]) || !Defined(r.Signal[i]) {
		return CrossoverNone
	}

	if r.Line[i] > r.Signal[i] {
		return CrossoverBullish
	}

	if r.Line[i] < r.Signal[i] {
		return CrossoverBearish
	}

	return CrossoverNone
}

// CrossedAt reports a line/signal crossover between index i-1 and i:
// bullish when the line moves from at-or-below to above the signal, bearish
// for the symmetric move.
func (r MACDResult) CrossedAt(i int) Crossover {
	if i < 1 || i >= len(r.Line) {
		return CrossoverNone
	}

	if !Defined(r.Line[i-1]) || !Defined(r.Signal[i-1]) || !Defined(r.Line[i]) || !Defined(r.Signal[i]) {
		return CrossoverNone
	}

	if r.Line[i-1] <= r.Signal[i-1] && r.Line[i] > r.Signal[i] {
		return CrossoverBullish
	}

	if r.Line[i-1] >= r.Signal[i-1] && r.Line[i] < r.Signal[i] {
		return CrossoverBearish
	}

	return CrossoverNone
}

// HistogramFlippedAt reports a histogram sign flip between index i-1 and i.
func (r MACDResult) HistogramFlippedAt(i int) Crossover {
	if i < 1 || i >= len(r.Histogram) {
		return CrossoverNone
	}

	if !Defined(r.Histogram[i-1]) || !Defined(r.Histogram[i]) {
		return CrossoverNone
	}

	if r.Histogram[i-1] <= 0 && r.Histogram[i] > 0 {
		return CrossoverBullish
	}

	if r.Histogram[i-1] >= 0 && r.Histogram[i] < 0 {
		return CrossoverBearish
	}

	return CrossoverNone
}
