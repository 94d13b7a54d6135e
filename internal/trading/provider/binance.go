package tradingprovider

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// binanceQuantityPrecision is a default decimal precision used when
// formatting order quantities. Symbol-specific LOT_SIZE filters from
// exchange info would be more precise.
const binanceQuantityPrecision = 8

// Service interfaces for mocking the Binance API.

// GetAccountService fetches the spot account snapshot.
type GetAccountService interface {
	Do(ctx context.Context) (*binance.Account, error)
}

// CreateOrderService places one spot order.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side binance.SideType) CreateOrderService
	Type(orderType binance.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	Do(ctx context.Context) (*binance.CreateOrderResponse, error)
}

// BinanceClient abstracts the Binance client for testing.
type BinanceClient interface {
	NewGetAccountService() GetAccountService
	NewCreateOrderService() CreateOrderService
}

type realBinanceClient struct {
	client *binance.Client
}

func (r *realBinanceClient) NewGetAccountService() GetAccountService {
	return &realGetAccountService{service: r.client.NewGetAccountService()}
}

type realGetAccountService struct {
	service *binance.GetAccountService
}

func (s *realGetAccountService) Do(ctx context.Context) (*binance.Account, error) {
	return s.service.Do(ctx)
}

func (r *realBinanceClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

type realCreateOrderService struct {
	service *binance.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side binance.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

// BinanceProvider implements AccountProvider and ExecutionProvider over a
// Binance spot account. Spot balances carry no marks or cost basis, so open
// positions are valued through the injected PriceSource, and the first
// snapshot of each UTC day anchors LastEquity for daily P&L.
type BinanceProvider struct {
	client     BinanceClient
	prices     PriceSource
	quoteAsset string

	mu           sync.Mutex
	anchorDay    time.Time
	anchorEquity float64
}

var (
	_ AccountProvider   = (*BinanceProvider)(nil)
	_ ExecutionProvider = (*BinanceProvider)(nil)
)

// NewBinanceProvider builds a provider for the live Binance spot API.
// quoteAsset is the cash asset, typically USDT.
func NewBinanceProvider(apiKey, secretKey, quoteAsset string, prices PriceSource) (*BinanceProvider, error) {
	client := binance.NewClient(apiKey, secretKey)

	return NewBinanceProviderWithClient(&realBinanceClient{client: client}, quoteAsset, prices)
}

// NewBinanceProviderWithClient builds a provider over an injected client,
// used by tests.
func NewBinanceProviderWithClient(client BinanceClient, quoteAsset string, prices PriceSource) (*BinanceProvider, error) {
	if quoteAsset == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "quote asset is required")
	}

	if prices == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "price source is required")
	}

	return &BinanceProvider{ //nolint:exhaustruct
		client:     client,
		prices:     prices,
		quoteAsset: strings.ToUpper(quoteAsset),
	}, nil
}

// GetAccount values the spot account: quote-asset balance is cash, every
// other balance with a known price adds to portfolio value.
func (p *BinanceProvider) GetAccount(ctx context.Context) (types.AccountSnapshot, error) {
	account, err := p.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return types.AccountSnapshot{}, errors.Wrap(errors.ErrCodeDataSourceUnavailable, //nolint:exhaustruct
			"failed to get account info from Binance", err)
	}

	var cash, positionValue float64

	for _, balance := range account.Balances {
		total := balanceTotal(balance)
		if total <= 0 {
			continue
		}

		if strings.EqualFold(balance.Asset, p.quoteAsset) {
			cash += total

			continue
		}

		if price, ok := p.prices.LastPrice(balance.Asset + p.quoteAsset); ok {
			positionValue += total * price
		}
	}

	equity := cash + positionValue

	return types.AccountSnapshot{
		PortfolioValue: equity,
		Cash:           cash,
		Equity:         equity,
		LastEquity:     p.dayAnchor(equity),
	}, nil
}

// GetPositions derives long positions from non-quote balances. Spot
// accounts expose no cost basis, so the entry price defaults to the
// current mark and unrealized P&L to zero.
func (p *BinanceProvider) GetPositions(ctx context.Context) ([]types.Position, error) {
	account, err := p.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable,
			"failed to get account info from Binance", err)
	}

	positions := make([]types.Position, 0)

	for _, balance := range account.Balances {
		total := balanceTotal(balance)
		if total <= 0 || strings.EqualFold(balance.Asset, p.quoteAsset) {
			continue
		}

		symbol := balance.Asset + p.quoteAsset

		price, ok := p.prices.LastPrice(symbol)
		if !ok {
			continue
		}

		positions = append(positions, types.Position{
			Symbol:        symbol,
			Quantity:      total,
			AvgEntryPrice: price,
			CurrentPrice:  price,
			UnrealizedPnL: 0,
		})
	}

	return positions, nil
}

// PlaceOrder routes an intent as a spot market order. Take-profit and
// stop-loss levels stay advisory; the pipeline enforces them bar by bar.
func (p *BinanceProvider) PlaceOrder(ctx context.Context, intent types.OrderIntent) error {
	if intent.Quantity <= 0 {
		return errors.Newf(errors.ErrCodeInvalidOrder, "order quantity must be positive, got %f", intent.Quantity)
	}

	var side binance.SideType

	switch intent.Side {
	case types.PurchaseTypeBuy:
		side = binance.SideTypeBuy
	case types.PurchaseTypeSell:
		side = binance.SideTypeSell
	default:
		return errors.Newf(errors.ErrCodeInvalidOrder, "unsupported order side: %s", intent.Side)
	}

	_, err := p.client.NewCreateOrderService().
		Symbol(intent.Symbol).
		Side(side).
		Type(binance.OrderTypeMarket).
		Quantity(strconv.FormatFloat(intent.Quantity, 'f', binanceQuantityPrecision, 64)).
		Do(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeOrderFailed, "failed to place order on Binance", err)
	}

	return nil
}

func (p *BinanceProvider) dayAnchor(equity float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	day := time.Now().UTC().Truncate(24 * time.Hour)
	if !day.Equal(p.anchorDay) {
		p.anchorDay = day
		p.anchorEquity = equity
	}

	return p.anchorEquity
}

func balanceTotal(balance binance.Balance) float64 {
	free, _ := strconv.ParseFloat(balance.Free, 64)
	locked, _ := strconv.ParseFloat(balance.Locked, 64)

	return free + locked
}
