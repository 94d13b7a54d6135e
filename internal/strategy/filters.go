package strategy

import (
	"github.com/rxtech-lab/argo-signals/internal/indicator"
)

// trendFromSMAPair classifies the broader trend from a short/long simple
// moving average pair: bullish when the short average is above the long one,
// bearish when below, none when either average is unavailable or they are
// equal.
func trendFromSMAPair(closes []float64, shortPeriod, longPeriod int) indicator.Crossover {
	short, err := indicator.SMA(closes, shortPeriod)
	if err != nil {
		return indicator.CrossoverNone
	}

	long, err := indicator.SMA(closes, longPeriod)
	if err != nil {
		return indicator.CrossoverNone
	}

	switch {
	case short > long:
		return indicator.CrossoverBullish
	case short < long:
		return indicator.CrossoverBearish
	default:
		return indicator.CrossoverNone
	}
}

// volumeRatio returns the latest volume divided by its trailing average.
// The second return is false when there is not enough volume history.
func volumeRatio(volumes []float64, period int) (float64, bool) {
	if len(volumes) == 0 {
		return 0, false
	}

	baseline, err := indicator.VolumeSMA(volumes, period)
	if err != nil || baseline <= 0 {
		return 0, false
	}

	return volumes[len(volumes)-1] / baseline, true
}

// TrendScore encodes a trend classification for a signal's indicator map:
// +1 bullish, -1 bearish, 0 none.
func TrendScore(trend indicator.Crossover) float64 {
	switch trend {
	case indicator.CrossoverBullish:
		return 1
	case indicator.CrossoverBearish:
		return -1
	default:
		return 0
	}
}

// countConfirmations tallies the confirmations aligned with the base
// direction of a signal.
func countConfirmations(
	buy bool,
	trend indicator.Crossover,
	volumeOK bool,
	divergence indicator.Crossover,
) int {
	aligned := indicator.CrossoverBullish
	if !buy {
		aligned = indicator.CrossoverBearish
	}

	confirmations := 0
	if trend == aligned {
		confirmations++
	}

	if volumeOK {
		confirmations++
	}

	if divergence == aligned {
		confirmations++
	}

	return confirmations
}
