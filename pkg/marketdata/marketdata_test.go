package marketdata

import (
	"context"
	"strconv"
	"testing"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

type MarketDataTestSuite struct {
	suite.Suite
}

func TestMarketDataSuite(t *testing.T) {
	suite.Run(t, new(MarketDataTestSuite))
}

func (s *MarketDataTestSuite) TestNewByName() {
	provider, err := New(ProviderNameBinance, "")
	s.Require().NoError(err)
	s.Equal(ProviderNameBinance, provider.Name())

	provider, err = New(ProviderNamePolygon, "test-key")
	s.Require().NoError(err)
	s.Equal(ProviderNamePolygon, provider.Name())

	_, err = New("alpaca", "")
	s.Require().Error(err)
	s.Equal(errors.ErrCodeInvalidProvider, errors.GetCode(err))
}

func (s *MarketDataTestSuite) TestPolygonRequiresAPIKey() {
	_, err := NewPolygonProvider("")
	s.Require().Error(err)
	s.Equal(errors.ErrCodeInvalidProvider, errors.GetCode(err))
}

func (s *MarketDataTestSuite) TestBinanceIntervalMapping() {
	interval, err := binanceInterval(5, TimespanMinute)
	s.Require().NoError(err)
	s.Equal("5m", interval)

	interval, err = binanceInterval(1, TimespanDay)
	s.Require().NoError(err)
	s.Equal("1d", interval)

	_, err = binanceInterval(7, TimespanMinute)
	s.Require().Error(err)
	s.Equal(errors.ErrCodeInvalidTimespan, errors.GetCode(err))
}

// fakeKlinesService replays scripted pages in order.
type fakeKlinesService struct {
	pages    *[][]*binance.Kline
	calls    *int
	interval string
	symbol   string
}

func (f *fakeKlinesService) Symbol(symbol string) KlinesService { f.symbol = symbol; return f }

func (f *fakeKlinesService) Interval(interval string) KlinesService { f.interval = interval; return f }

func (f *fakeKlinesService) StartTime(int64) KlinesService { return f }

func (f *fakeKlinesService) EndTime(int64) KlinesService { return f }

func (f *fakeKlinesService) Do(_ context.Context) ([]*binance.Kline, error) {
	page := (*f.pages)[*f.calls]
	*f.calls++

	return page, nil
}

type fakeBinanceAPI struct {
	pages [][]*binance.Kline
	calls int
}

func (f *fakeBinanceAPI) NewKlinesService() KlinesService {
	return &fakeKlinesService{pages: &f.pages, calls: &f.calls} //nolint:exhaustruct
}

func kline(openTime int64, close float64) *binance.Kline {
	value := strconv.FormatFloat(close, 'f', -1, 64)

	return &binance.Kline{ //nolint:exhaustruct
		OpenTime:  openTime,
		CloseTime: openTime + 59_999,
		Open:      value,
		High:      value,
		Low:       value,
		Close:     value,
		Volume:    "1000",
		TradeNum:  10,
	}
}

func (s *MarketDataTestSuite) TestBinanceGetBarsPaginates() {
	base := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC).UnixMilli()

	full := make([]*binance.Kline, binancePageSize)
	for i := range full {
		full[i] = kline(base+int64(i)*60_000, 100+float64(i))
	}

	rest := []*binance.Kline{kline(base+int64(binancePageSize)*60_000, 700)}

	api := &fakeBinanceAPI{pages: [][]*binance.Kline{full, rest}} //nolint:exhaustruct
	provider := NewBinanceProviderWithAPI(api)

	start := time.UnixMilli(base)
	end := start.Add(24 * time.Hour)

	bars, err := provider.GetBars(context.Background(), "BTCUSDT", start, end, 1, TimespanMinute)
	s.Require().NoError(err)
	s.Len(bars, binancePageSize+1)
	s.Equal(2, api.calls)

	s.Equal("BTCUSDT", bars[0].Symbol)
	s.InDelta(100, bars[0].Close, 1e-9)
	s.InDelta(700, bars[len(bars)-1].Close, 1e-9)
	s.Equal(int64(10), bars[0].TradeCount)
	s.True(bars[0].Time.Before(bars[1].Time))
}

func (s *MarketDataTestSuite) TestBinanceGetBarsMalformedKline() {
	bad := kline(time.Now().UnixMilli(), 100)
	bad.Close = "not-a-number"

	api := &fakeBinanceAPI{pages: [][]*binance.Kline{{bad}}} //nolint:exhaustruct
	provider := NewBinanceProviderWithAPI(api)

	_, err := provider.GetBars(context.Background(), "BTCUSDT", time.Now().Add(-time.Hour), time.Now(), 1, TimespanMinute)
	s.Require().Error(err)
	s.Equal(errors.ErrCodeMarketDataParseFailed, errors.GetCode(err))
}

func (s *MarketDataTestSuite) TestBinanceGetBarsRejectsBadInterval() {
	provider := NewBinanceProviderWithAPI(&fakeBinanceAPI{}) //nolint:exhaustruct

	_, err := provider.GetBars(context.Background(), "BTCUSDT", time.Now().Add(-time.Hour), time.Now(), 7, TimespanMinute)
	s.Require().Error(err)
	s.Equal(errors.ErrCodeInvalidTimespan, errors.GetCode(err))
}
