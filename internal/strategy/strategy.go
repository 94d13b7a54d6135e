// Package strategy contains the trading strategies that turn bar series
// into signals. The set of strategies is closed; adding one means adding a
// type that satisfies the Strategy interface.
package strategy

import (
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

// Info describes a strategy's identity and data requirements.
type Info struct {
	// Name is the unique strategy name used in configuration and signals
	Name string
	// RequiredBars is the minimum number of bars Analyze needs to emit a signal
	RequiredBars int
}

// Strategy analyzes a bar series for one symbol and optionally emits a
// signal. Implementations are stateless after construction and safe for
// concurrent use.
type Strategy interface {
	// Name returns the unique strategy name.
	Name() string
	// Analyze evaluates the series and returns a signal, or None when the
	// series is too short or no setup is present. Analyze never returns an
	// error for ordinary no-signal cases.
	Analyze(symbol string, series *types.BarSeries) (optional.Option[types.Signal], error)
	// ShouldExitPosition reports whether an open position entered on the
	// given signal should be closed, with a human readable reason. The
	// check is advisory and does not itself close positions.
	ShouldExitPosition(series *types.BarSeries, entry types.Signal) (bool, string)
	// Info returns the strategy's static description.
	Info() Info
}

// Confidence and sizing escalation shared by all strategies. Each aligned
// confirmation raises confidence and the size multiplier; two or more
// escalate BUY to STRONG_BUY (symmetric for sells).
const (
	baseConfidence             = 0.6
	confidencePerConfirmation  = 0.12
	maxConfidence              = 0.95
	baseSizeMultiplier         = 1.0
	multiplierPerConfirmation  = 0.25
	confirmationsForEscalation = 2
)

// escalate turns a base direction and a confirmation count into the final
// direction, confidence and size multiplier.
func escalate(base types.Direction, confirmations int) (types.Direction, float64, float64) {
	direction := base
	if confirmations >= confirmationsForEscalation {
		switch base {
		case types.DirectionBuy:
			direction = types.DirectionStrongBuy
		case types.DirectionSell:
			direction = types.DirectionStrongSell
		}
	}

	confidence := baseConfidence + confidencePerConfirmation*float64(confirmations)
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	multiplier := baseSizeMultiplier + multiplierPerConfirmation*float64(confirmations)

	return direction, confidence, multiplier
}
