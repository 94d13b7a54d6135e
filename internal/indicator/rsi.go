package indicator

import (
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// Canonical RSI thresholds.
const (
	RSIOversoldThreshold   = 30.0
	RSIOverboughtThreshold = 70.0
)

// RSISeries computes the Relative Strength Index over the given period using
// Wilder's smoothing method. The first value requires period+1 closes, so
// indices below period are undefined.
func RSISeries(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	out := undefinedSeries(len(closes))
	if len(closes) < period+1 {
		return out, nil
	}

	// Price changes split into gains and losses.
	gains := make([]float64, len(closes)-1)
	losses := make([]float64, len(closes)-1)

	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i-1] = change
		} else {
			losses[i-1] = -change
		}
	}

	// First average is a plain mean over the initial window.
	avgGain := 0.0
	avgLoss := 0.0

	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}

	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	// Subsequent averages use Wilder's smoothing.
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
		out[i+1] = rsiFromAverages(avgGain, avgLoss)
	}

	return out, nil
}

// RSI returns the latest RSI value for the series.
func RSI(closes []float64, period int) (float64, error) {
	series, err := RSISeries(closes, period)
	if err != nil {
		return 0, err
	}

	if len(series) == 0 || !Defined(series[len(series)-1]) {
		return 0, errors.NewInsufficientDataErrorf(period+1, len(closes), "",
			"insufficient data for RSI: required %d, got %d", period+1, len(closes))
	}

	return series[len(series)-1], nil
}

// ClassifyRSI classifies an RSI value against the given thresholds.
func ClassifyRSI(value, oversold, overbought float64) Condition {
	switch {
	case value < oversold:
		return ConditionOversold
	case value > overbought:
		return ConditionOverbought
	default:
		return ConditionNeutral
	}
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100 // Perfect uptrend
	}

	rs := avgGain / avgLoss

	return 100 - (100 / (1 + rs))
}
