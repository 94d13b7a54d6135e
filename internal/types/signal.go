package types

import "time"

// Direction is the 5-point ordinal strength of a trading signal.
type Direction int

const (
	DirectionStrongSell Direction = -2
	DirectionSell       Direction = -1
	DirectionNeutral    Direction = 0
	DirectionBuy        Direction = 1
	DirectionStrongBuy  Direction = 2
)

// String returns the canonical name of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionStrongSell:
		return "STRONG_SELL"
	case DirectionSell:
		return "SELL"
	case DirectionNeutral:
		return "NEUTRAL"
	case DirectionBuy:
		return "BUY"
	case DirectionStrongBuy:
		return "STRONG_BUY"
	default:
		return "UNKNOWN"
	}
}

// IsBuy reports whether the direction is BUY or STRONG_BUY.
func (d Direction) IsBuy() bool {
	return d > DirectionNeutral
}

// IsSell reports whether the direction is SELL or STRONG_SELL.
func (d Direction) IsSell() bool {
	return d < DirectionNeutral
}

// DirectionFromScore maps a rounded aggregation score back to a direction.
// Scores outside [-2, 2] are clamped.
func DirectionFromScore(score int) Direction {
	if score < int(DirectionStrongSell) {
		return DirectionStrongSell
	}

	if score > int(DirectionStrongBuy) {
		return DirectionStrongBuy
	}

	return Direction(score)
}

// Signal is a single strategy's trading signal for one symbol.
// It is immutable once produced and owned by the strategy that created it.
type Signal struct {
	// Symbol is the ticker the signal applies to
	Symbol string `json:"symbol" yaml:"symbol"`
	// Direction is the signal strength on the 5-point scale
	Direction Direction `json:"direction" yaml:"direction"`
	// Price is the close price at evaluation time
	Price float64 `json:"price" yaml:"price"`
	// Confidence is the strategy's confidence in [0, 1]
	Confidence float64 `json:"confidence" yaml:"confidence"`
	// Time is the evaluation time
	Time time.Time `json:"time" yaml:"time"`
	// Indicators is a snapshot of the indicator values that produced the signal
	Indicators map[string]float64 `json:"indicators" yaml:"indicators"`
	// Reason is a human readable rationale
	Reason string `json:"reason" yaml:"reason"`
	// SizeMultiplier scales the base position size, >= 0, default 1.0
	SizeMultiplier float64 `json:"size_multiplier" yaml:"size_multiplier"`
	// Strategy is the name of the strategy that produced the signal
	Strategy string `json:"strategy" yaml:"strategy"`
}

// AggregationMethod selects how the strategy engine merges per-strategy
// signals into one combined signal.
type AggregationMethod string

const (
	AggregationWeightedAverage AggregationMethod = "weighted_average"
	AggregationConsensus       AggregationMethod = "consensus"
	AggregationStrongest       AggregationMethod = "strongest"
)

// Valid reports whether the method is one of the supported aggregations.
func (m AggregationMethod) Valid() bool {
	switch m {
	case AggregationWeightedAverage, AggregationConsensus, AggregationStrongest:
		return true
	default:
		return false
	}
}

// CombinedSignal is the single trading decision produced by merging multiple
// strategies' signals. It is created only by the strategy engine and consumed
// once by the risk/execution path.
type CombinedSignal struct {
	// ID uniquely identifies the combined signal
	ID string `json:"id" yaml:"id"`
	// Symbol is the ticker the decision applies to
	Symbol string `json:"symbol" yaml:"symbol"`
	// Direction is the resolved direction
	Direction Direction `json:"direction" yaml:"direction"`
	// Confidence is the aggregated confidence in [0, 1]
	Confidence float64 `json:"confidence" yaml:"confidence"`
	// Time is the aggregation time
	Time time.Time `json:"time" yaml:"time"`
	// Price is the close price at aggregation time
	Price float64 `json:"price" yaml:"price"`
	// Method is the aggregation method that produced the decision
	Method AggregationMethod `json:"method" yaml:"method"`
	// Contributions maps contributing strategy name to its signal.
	// Never empty when Direction != NEUTRAL.
	Contributions map[string]Signal `json:"contributions" yaml:"contributions"`
	// Reason is a human readable rationale
	Reason string `json:"reason" yaml:"reason"`
	// SizeMultiplier scales the base position size
	SizeMultiplier float64 `json:"size_multiplier" yaml:"size_multiplier"`
}
