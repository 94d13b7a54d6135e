package indicator

import (
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// SMASeries computes the simple moving average over the given period.
// Values at indices below period-1 are undefined.
func SMASeries(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	out := undefinedSeries(len(values))
	if len(values) < period {
		return out, nil
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}

		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}

	return out, nil
}

// EMASeries computes the exponential moving average over the given period.
// The first defined value at index period-1 is seeded with the SMA of the
// first period values; later values use alpha = 2/(period+1), matching the
// pandas ewm implementation with adjust=False.
func EMASeries(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	out := undefinedSeries(len(values))
	if len(values) < period {
		return out, nil
	}

	sma := 0.0
	for i := 0; i < period; i++ {
		sma += values[i]
	}

	sma /= float64(period)
	out[period-1] = sma

	alpha := 2.0 / float64(period+1)

	ema := sma
	for i := period; i < len(values); i++ {
		ema = values[i]*alpha + ema*(1-alpha)
		out[i] = ema
	}

	return out, nil
}

// SMA returns the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	if len(values) < period {
		return 0, errors.NewInsufficientDataErrorf(period, len(values), "",
			"insufficient data for SMA: required %d, got %d", period, len(values))
	}

	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}

	return sum / float64(period), nil
}

// EMA returns the exponential moving average at the latest index.
func EMA(values []float64, period int) (float64, error) {
	series, err := EMASeries(values, period)
	if err != nil {
		return 0, err
	}

	if len(series) == 0 || !Defined(series[len(series)-1]) {
		return 0, errors.NewInsufficientDataErrorf(period, len(values), "",
			"insufficient data for EMA: required %d, got %d", period, len(values))
	}

	return series[len(series)-1], nil
}

// VolumeSMA returns the trailing average volume over the given period,
// excluding the most recent sample so the caller can compare the current
// volume against its own baseline.
func VolumeSMA(volumes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	if len(volumes) < period+1 {
		return 0, errors.NewInsufficientDataErrorf(period+1, len(volumes), "",
			"insufficient data for volume SMA: required %d, got %d", period+1, len(volumes))
	}

	trailing := volumes[len(volumes)-period-1 : len(volumes)-1]

	sum := 0.0
	for _, v := range trailing {
		sum += v
	}

	return sum / float64(period), nil
}
