package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

// neutralBand is the absolute weighted-mean threshold below which the
// weighted_average method forces a NEUTRAL decision.
const neutralBand = 0.5

// combine merges the filtered per-strategy signals into one combined signal
// using the configured aggregation method.
func (e *Engine) combine(symbol string, signals []types.Signal, price float64, now time.Time) types.CombinedSignal {
	weights := e.snapshotWeights()

	var (
		direction  types.Direction
		confidence float64
		multiplier float64
		reason     string
	)

	contributions := make(map[string]types.Signal, len(signals))
	for _, signal := range signals {
		contributions[signal.Strategy] = signal
	}

	switch e.config.Method {
	case types.AggregationWeightedAverage:
		direction, confidence, multiplier, reason = weightedAverage(signals, weights)
	case types.AggregationConsensus:
		direction, confidence, multiplier, reason = consensus(signals, e.config.MinAgreementThreshold)
		if direction != types.DirectionNeutral {
			contributions = directionContributions(signals, direction)
		}
	case types.AggregationStrongest:
		best := strongest(signals)
		direction = best.Direction
		confidence = best.Confidence
		multiplier = best.SizeMultiplier
		reason = fmt.Sprintf("strongest signal from %s: %s", best.Strategy, best.Reason)
		contributions = map[string]types.Signal{best.Strategy: best}
	}

	return types.CombinedSignal{
		ID:             uuid.NewString(),
		Symbol:         symbol,
		Direction:      direction,
		Confidence:     clamp01(confidence),
		Time:           now,
		Price:          price,
		Method:         e.config.Method,
		Contributions:  contributions,
		Reason:         reason,
		SizeMultiplier: multiplier,
	}
}

// weightedAverage maps directions to their integers on [-2,2], weights each
// contributor by configuredWeight*confidence and rounds the weighted mean
// back to a direction. A mean inside the neutral band forces NEUTRAL.
func weightedAverage(signals []types.Signal, weights map[string]float64) (types.Direction, float64, float64, string) {
	var totalWeight, directionSum, confidenceSum, multiplierSum float64

	for _, signal := range signals {
		weight := weightFor(weights, signal.Strategy) * signal.Confidence
		totalWeight += weight
		directionSum += weight * float64(signal.Direction)
		confidenceSum += weight * signal.Confidence
		multiplierSum += weight * signal.SizeMultiplier
	}

	if totalWeight == 0 {
		return types.DirectionNeutral, 0, 0, "no weighted contributions"
	}

	mean := directionSum / totalWeight
	confidence := confidenceSum / totalWeight
	multiplier := multiplierSum / totalWeight

	if math.Abs(mean) < neutralBand {
		reason := fmt.Sprintf("weighted mean %.2f inside neutral band from %d strategies", mean, len(signals))

		return types.DirectionNeutral, confidence, multiplier, reason
	}

	direction := types.DirectionFromScore(int(math.Round(mean)))
	reason := fmt.Sprintf("weighted mean %.2f from %d strategies", mean, len(signals))

	return direction, confidence, multiplier, reason
}

// consensus sums confidence per distinct direction; the largest sum wins
// only when it reaches the agreement threshold of the total.
func consensus(signals []types.Signal, minAgreement float64) (types.Direction, float64, float64, string) {
	sums := make(map[types.Direction]float64)

	var total float64

	for _, signal := range signals {
		sums[signal.Direction] += signal.Confidence
		total += signal.Confidence
	}

	if total == 0 {
		return types.DirectionNeutral, 0, 0, "no confident contributions"
	}

	winner := types.DirectionNeutral
	winnerSum := -1.0

	// Fixed candidate order so an exact confidence-sum tie resolves to the
	// direction closest to neutral instead of map iteration order.
	candidates := []types.Direction{
		types.DirectionNeutral,
		types.DirectionSell,
		types.DirectionBuy,
		types.DirectionStrongSell,
		types.DirectionStrongBuy,
	}

	for _, direction := range candidates {
		if sum, ok := sums[direction]; ok && sum > winnerSum {
			winner = direction
			winnerSum = sum
		}
	}

	agreement := winnerSum / total
	if agreement < minAgreement {
		reason := fmt.Sprintf("agreement %.2f below threshold %.2f", agreement, minAgreement)

		return types.DirectionNeutral, agreement, 0, reason
	}

	var confidenceSum, multiplierSum float64

	count := 0

	for _, signal := range signals {
		if signal.Direction == winner {
			confidenceSum += signal.Confidence
			multiplierSum += signal.SizeMultiplier
			count++
		}
	}

	reason := fmt.Sprintf("%d of %d strategies agree on %s with %.2f agreement", count, len(signals), winner, agreement)

	return winner, confidenceSum / float64(count), multiplierSum / float64(count), reason
}

// strongest returns the contributing signal with the highest confidence.
func strongest(signals []types.Signal) types.Signal {
	best := signals[0]
	for _, signal := range signals[1:] {
		if signal.Confidence > best.Confidence {
			best = signal
		}
	}

	return best
}

func directionContributions(signals []types.Signal, direction types.Direction) map[string]types.Signal {
	out := make(map[string]types.Signal)
	for _, signal := range signals {
		if signal.Direction == direction {
			out[signal.Strategy] = signal
		}
	}

	return out
}

func weightFor(weights map[string]float64, name string) float64 {
	if weight, ok := weights[name]; ok {
		return weight
	}

	return 1.0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}
