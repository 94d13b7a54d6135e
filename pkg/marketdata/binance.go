package marketdata

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// Binance serves at most this many klines per request.
const binancePageSize = 500

// KlinesService abstracts the Binance klines call for testing.
type KlinesService interface {
	Symbol(symbol string) KlinesService
	Interval(interval string) KlinesService
	StartTime(startTime int64) KlinesService
	EndTime(endTime int64) KlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// BinanceAPI abstracts the Binance client for testing.
type BinanceAPI interface {
	NewKlinesService() KlinesService
}

type realBinanceAPI struct {
	client *binance.Client
}

func (r *realBinanceAPI) NewKlinesService() KlinesService {
	return &realKlinesService{service: r.client.NewKlinesService()}
}

type realKlinesService struct {
	service *binance.KlinesService
}

func (s *realKlinesService) Symbol(symbol string) KlinesService {
	s.service.Symbol(symbol)

	return s
}

func (s *realKlinesService) Interval(interval string) KlinesService {
	s.service.Interval(interval)

	return s
}

func (s *realKlinesService) StartTime(startTime int64) KlinesService {
	s.service.StartTime(startTime)

	return s
}

func (s *realKlinesService) EndTime(endTime int64) KlinesService {
	s.service.EndTime(endTime)

	return s
}

func (s *realKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.service.Do(ctx)
}

// BinanceProvider fetches historical klines from the public Binance API.
type BinanceProvider struct {
	api BinanceAPI
}

var _ Provider = (*BinanceProvider)(nil)

// NewBinanceProvider builds a provider over the public Binance client.
func NewBinanceProvider() *BinanceProvider {
	return &BinanceProvider{api: &realBinanceAPI{client: binance.NewClient("", "")}}
}

// NewBinanceProviderWithAPI builds a provider over an injected API, used by
// tests.
func NewBinanceProviderWithAPI(api BinanceAPI) *BinanceProvider {
	return &BinanceProvider{api: api}
}

func (p *BinanceProvider) Name() string {
	return ProviderNameBinance
}

// GetBars pages through klines; Binance caps each response, so the next
// page starts one millisecond after the previous page's last close time.
func (p *BinanceProvider) GetBars(
	ctx context.Context,
	symbol string,
	start, end time.Time,
	multiplier int,
	timespan Timespan,
) ([]types.Bar, error) {
	interval, err := binanceInterval(multiplier, timespan)
	if err != nil {
		return nil, err
	}

	endMillis := end.UnixMilli()
	currentStart := start.UnixMilli()

	var bars []types.Bar

	for {
		klines, err := p.api.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(currentStart).
			EndTime(endMillis).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "binance klines fetch failed", err)
		}

		page, err := convertKlines(symbol, klines)
		if err != nil {
			return nil, err
		}

		bars = append(bars, page...)

		if len(klines) < binancePageSize {
			break
		}

		currentStart = klines[len(klines)-1].CloseTime + 1
		if currentStart >= endMillis {
			break
		}
	}

	return bars, nil
}

func convertKlines(symbol string, klines []*binance.Kline) ([]types.Bar, error) {
	bars := make([]types.Bar, 0, len(klines))

	for _, kline := range klines {
		bar := types.Bar{ //nolint:exhaustruct
			Symbol:     symbol,
			Time:       time.UnixMilli(kline.OpenTime).UTC(),
			TradeCount: kline.TradeNum,
		}

		fields := []struct {
			raw string
			dst *float64
		}{
			{kline.Open, &bar.Open},
			{kline.High, &bar.High},
			{kline.Low, &bar.Low},
			{kline.Close, &bar.Close},
			{kline.Volume, &bar.Volume},
		}

		for _, field := range fields {
			value, err := strconv.ParseFloat(field.raw, 64)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err,
					"malformed kline field %q for %s", field.raw, symbol)
			}

			*field.dst = value
		}

		bars = append(bars, bar)
	}

	return bars, nil
}
