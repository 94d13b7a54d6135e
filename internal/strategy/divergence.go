package strategy

import (
	"github.com/rxtech-lab/argo-signals/internal/indicator"
)

// extremaNeighborhood is the number of bars on each side a point must
// dominate to count as a local extremum.
const extremaNeighborhood = 2

// detectDivergence looks for a price/oscillator divergence over the last
// lookback points. Bullish: price makes a lower low while the oscillator
// makes a higher low. Bearish: price makes a higher high while the
// oscillator makes a lower high. Returns CrossoverNone when lookback is
// zero, the window is too short, or no divergence is present.
func detectDivergence(prices, oscillator []float64, lookback int) indicator.Crossover {
	if lookback <= 0 || len(prices) != len(oscillator) {
		return indicator.CrossoverNone
	}

	start := len(prices) - lookback
	if start < 0 {
		start = 0
	}

	window := prices[start:]
	osc := oscillator[start:]

	if lows := localExtrema(window, true); len(lows) >= 2 {
		prev, last := lows[len(lows)-2], lows[len(lows)-1]
		if indicator.Defined(osc[prev]) && indicator.Defined(osc[last]) &&
			window[last] < window[prev] && osc[last] > osc[prev] {
			return indicator.CrossoverBullish
		}
	}

	if highs := localExtrema(window, false); len(highs) >= 2 {
		prev, last := highs[len(highs)-2], highs[len(highs)-1]
		if indicator.Defined(osc[prev]) && indicator.Defined(osc[last]) &&
			window[last] > window[prev] && osc[last] < osc[prev] {
			return indicator.CrossoverBearish
		}
	}

	return indicator.CrossoverNone
}

// localExtrema returns the indices of local minima (or maxima) found by
// neighborhood comparison, ordered ascending.
func localExtrema(values []float64, minima bool) []int {
	var out []int

	for i := extremaNeighborhood; i < len(values)-extremaNeighborhood; i++ {
		if !indicator.Defined(values[i]) {
			continue
		}

		isExtremum := true

		for d := 1; d <= extremaNeighborhood; d++ {
			left, right := values[i-d], values[i+d]
			if !indicator.Defined(left) || !indicator.Defined(right) {
				isExtremum = false

				break
			}

			if minima {
				if values[i] > left || values[i] > right {
					isExtremum = false

					break
				}
			} else {
				if values[i] < left || values[i] < right {
					isExtremum = false

					break
				}
			}
		}

		if isExtremum {
			out = append(out, i)
		}
	}

	return out
}
