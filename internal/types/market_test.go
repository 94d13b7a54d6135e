package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type BarSeriesTestSuite struct {
	suite.Suite
}

func TestBarSeriesSuite(t *testing.T) {
	suite.Run(t, new(BarSeriesTestSuite))
}

func (suite *BarSeriesTestSuite) bar(t time.Time, close float64) Bar {
	return Bar{
		Symbol: "SPY",
		Time:   t,
		Open:   close,
		High:   close,
		Low:    close,
		Close:  close,
		Volume: 100,
	}
}

func (suite *BarSeriesTestSuite) TestAppendKeepsOrder() {
	t0 := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	s := NewBarSeries(nil)
	s.Append(suite.bar(t0, 100))
	s.Append(suite.bar(t0.Add(time.Minute), 101))
	s.Append(suite.bar(t0.Add(2*time.Minute), 102))

	suite.Equal(3, s.Len())
	suite.Equal([]float64{100, 101, 102}, s.Closes())
}

func (suite *BarSeriesTestSuite) TestAppendDropsOutOfOrder() {
	t0 := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	s := NewBarSeries(nil)
	s.Append(suite.bar(t0.Add(time.Minute), 101))
	s.Append(suite.bar(t0, 100)) // older than the last bar

	suite.Equal(1, s.Len())
	suite.Equal([]float64{101}, s.Closes())
}

func (suite *BarSeriesTestSuite) TestDuplicateTimestampLastWriteWins() {
	t0 := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	s := NewBarSeries(nil)
	s.Append(suite.bar(t0, 100))
	s.Append(suite.bar(t0, 105))

	suite.Equal(1, s.Len())

	last, ok := s.Last()
	suite.True(ok)
	suite.Equal(105.0, last.Close)
}

func (suite *BarSeriesTestSuite) TestTrim() {
	t0 := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	s := NewBarSeries(nil)

	for i := 0; i < 10; i++ {
		s.Append(suite.bar(t0.Add(time.Duration(i)*time.Minute), float64(100+i)))
	}

	s.Trim(4)
	suite.Equal(4, s.Len())
	suite.Equal([]float64{106, 107, 108, 109}, s.Closes())
}

func (suite *BarSeriesTestSuite) TestLastOnEmptySeries() {
	s := NewBarSeries(nil)
	_, ok := s.Last()
	suite.False(ok)
}

func (suite *BarSeriesTestSuite) TestVolumes() {
	t0 := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	s := NewBarSeries([]Bar{suite.bar(t0, 100), suite.bar(t0.Add(time.Minute), 101)})
	suite.Equal([]float64{100, 100}, s.Volumes())
}
