// Package marketdata fetches historical bars used to seed indicator series
// before live streaming takes over.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// Timespan is the unit of one bar interval.
type Timespan string

const (
	TimespanSecond Timespan = "second"
	TimespanMinute Timespan = "minute"
	TimespanHour   Timespan = "hour"
	TimespanDay    Timespan = "day"
	TimespanWeek   Timespan = "week"
	TimespanMonth  Timespan = "month"
)

// Valid reports whether the timespan is a supported unit.
func (t Timespan) Valid() bool {
	switch t {
	case TimespanSecond, TimespanMinute, TimespanHour, TimespanDay, TimespanWeek, TimespanMonth:
		return true
	default:
		return false
	}
}

// Provider fetches ordered historical bars for one symbol over a closed
// interval.
type Provider interface {
	// GetBars returns bars of multiplier*timespan resolution for
	// [start, end], ordered by time ascending.
	GetBars(ctx context.Context, symbol string, start, end time.Time, multiplier int, timespan Timespan) ([]types.Bar, error)
	// Name identifies the provider.
	Name() string
}

// Provider names accepted by New.
const (
	ProviderNamePolygon = "polygon"
	ProviderNameBinance = "binance"
)

// New builds a provider by name. Polygon requires an API key; Binance
// serves public kline data without one.
func New(name, apiKey string) (Provider, error) {
	switch name {
	case ProviderNamePolygon:
		return NewPolygonProvider(apiKey)
	case ProviderNameBinance:
		return NewBinanceProvider(), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unknown market data provider %q", name)
	}
}

// binanceInterval maps a multiplier/timespan pair to a Binance kline
// interval string. Only the combinations Binance actually serves are valid.
func binanceInterval(multiplier int, timespan Timespan) (string, error) {
	supported := map[Timespan]map[int]string{
		TimespanSecond: {1: "1s"},
		TimespanMinute: {1: "1m", 3: "3m", 5: "5m", 15: "15m", 30: "30m"},
		TimespanHour:   {1: "1h", 2: "2h", 4: "4h", 6: "6h", 8: "8h", 12: "12h"},
		TimespanDay:    {1: "1d", 3: "3d"},
		TimespanWeek:   {1: "1w"},
		TimespanMonth:  {1: "1M"},
	}

	if intervals, ok := supported[timespan]; ok {
		if interval, ok := intervals[multiplier]; ok {
			return interval, nil
		}
	}

	return "", errors.Newf(errors.ErrCodeInvalidTimespan,
		"unsupported interval %s", fmt.Sprintf("%d %s", multiplier, timespan))
}
