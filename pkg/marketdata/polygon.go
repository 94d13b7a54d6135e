package marketdata

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

const polygonPageLimit = 50000

// PolygonProvider fetches aggregates from the Polygon REST API.
type PolygonProvider struct {
	client *polygon.Client
}

var _ Provider = (*PolygonProvider)(nil)

// NewPolygonProvider builds a provider over the Polygon REST client.
func NewPolygonProvider(apiKey string) (*PolygonProvider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidProvider, "polygon requires an API key")
	}

	return &PolygonProvider{client: polygon.New(apiKey)}, nil
}

func (p *PolygonProvider) Name() string {
	return ProviderNamePolygon
}

// GetBars pages through Polygon aggregates via the list iterator.
func (p *PolygonProvider) GetBars(
	ctx context.Context,
	symbol string,
	start, end time.Time,
	multiplier int,
	timespan Timespan,
) ([]types.Bar, error) {
	if !timespan.Valid() {
		return nil, errors.Newf(errors.ErrCodeInvalidTimespan, "invalid timespan %q", timespan)
	}

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: multiplier,
		Timespan:   models.Timespan(timespan),
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithLimit(polygonPageLimit)

	iter := p.client.ListAggs(ctx, params)

	var bars []types.Bar

	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, types.Bar{
			Symbol:     symbol,
			Time:       time.Time(agg.Timestamp),
			Open:       agg.Open,
			High:       agg.High,
			Low:        agg.Low,
			Close:      agg.Close,
			Volume:     agg.Volume,
			VWAP:       agg.VWAP,
			TradeCount: agg.Transactions,
		})
	}

	if iter.Err() != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "polygon aggregates fetch failed", iter.Err())
	}

	return bars, nil
}
