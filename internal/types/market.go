package types

import "time"

// Bar represents one OHLCV sample for a fixed time interval.
type Bar struct {
	// Symbol is the ticker this bar belongs to
	Symbol string `json:"symbol" yaml:"symbol"`
	// Time is the opening time of the bar interval
	Time time.Time `json:"time" yaml:"time"`
	// Open is the first trade price of the interval
	Open float64 `json:"open" yaml:"open"`
	// High is the highest trade price of the interval
	High float64 `json:"high" yaml:"high"`
	// Low is the lowest trade price of the interval
	Low float64 `json:"low" yaml:"low"`
	// Close is the last trade price of the interval
	Close float64 `json:"close" yaml:"close"`
	// Volume is the total traded volume of the interval
	Volume float64 `json:"volume" yaml:"volume"`
	// VWAP is the volume weighted average price, zero when the feed does not supply it
	VWAP float64 `json:"vwap" yaml:"vwap"`
	// TradeCount is the number of trades in the interval, zero when not supplied
	TradeCount int64 `json:"trade_count" yaml:"trade_count"`
}

// BarSeries is an ordered, append-only sequence of bars for one symbol.
// Timestamps are monotonic; appending a bar with a timestamp equal to the
// last bar replaces it (last write wins).
type BarSeries struct {
	bars []Bar
}

// NewBarSeries creates a series pre-populated with the given bars.
// The input is assumed to be sorted by time ascending.
func NewBarSeries(bars []Bar) *BarSeries {
	s := &BarSeries{bars: make([]Bar, 0, len(bars))}
	for _, b := range bars {
		s.Append(b)
	}

	return s
}

// Append adds a bar to the series. Bars older than the current last bar are
// dropped; a bar with the same timestamp as the last bar overwrites it.
func (s *BarSeries) Append(bar Bar) {
	n := len(s.bars)
	if n > 0 {
		last := s.bars[n-1].Time
		if bar.Time.Before(last) {
			return
		}

		if bar.Time.Equal(last) {
			s.bars[n-1] = bar

			return
		}
	}

	s.bars = append(s.bars, bar)
}

// Trim drops the oldest bars so that at most max bars remain.
func (s *BarSeries) Trim(max int) {
	if max > 0 && len(s.bars) > max {
		s.bars = s.bars[len(s.bars)-max:]
	}
}

// Len returns the number of bars in the series.
func (s *BarSeries) Len() int {
	return len(s.bars)
}

// Bars returns the underlying bars ordered by time ascending.
// The returned slice must not be mutated by the caller.
func (s *BarSeries) Bars() []Bar {
	return s.bars
}

// Last returns the most recent bar and whether the series is non-empty.
func (s *BarSeries) Last() (Bar, bool) {
	if len(s.bars) == 0 {
		return Bar{}, false //nolint:exhaustruct
	}

	return s.bars[len(s.bars)-1], true
}

// Closes returns the close prices ordered by time ascending.
func (s *BarSeries) Closes() []float64 {
	closes := make([]float64, len(s.bars))
	for i, b := range s.bars {
		closes[i] = b.Close
	}

	return closes
}

// Volumes returns the traded volumes ordered by time ascending.
func (s *BarSeries) Volumes() []float64 {
	volumes := make([]float64, len(s.bars))
	for i, b := range s.bars {
		volumes[i] = b.Volume
	}

	return volumes
}
