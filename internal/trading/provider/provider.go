// Package tradingprovider defines the broker collaborators of the decision
// pipeline. The core never talks to a broker directly; it reads account
// state through an AccountProvider and hands approved order intents to an
// ExecutionProvider.
package tradingprovider

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/types"
)

// AccountProvider supplies read-only account state for risk validation.
type AccountProvider interface {
	// GetAccount returns the current account snapshot
	GetAccount(ctx context.Context) (types.AccountSnapshot, error)
	// GetPositions returns all open positions
	GetPositions(ctx context.Context) ([]types.Position, error)
}

// ExecutionProvider receives approved and sized order intents. Placement is
// fire-and-forget from the pipeline's point of view; fills and order state
// stay on the provider side.
type ExecutionProvider interface {
	PlaceOrder(ctx context.Context, intent types.OrderIntent) error
}

// PriceSource supplies last known prices so providers can value positions
// the account API reports without marks. The pipeline's bar buffers back it.
type PriceSource interface {
	LastPrice(symbol string) (float64, bool)
}

// DeferredPriceSource forwards to a source installed later. It breaks the
// construction cycle between a broker provider that values balances through
// the pipeline's bar buffers and the pipeline that needs the provider.
type DeferredPriceSource struct {
	mu     sync.RWMutex
	source PriceSource
}

var _ PriceSource = (*DeferredPriceSource)(nil)

func (d *DeferredPriceSource) Set(source PriceSource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.source = source
}

func (d *DeferredPriceSource) LastPrice(symbol string) (float64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.source == nil {
		return 0, false
	}

	return d.source.LastPrice(symbol)
}

// PaperExecutionProvider logs intents instead of routing them to a broker.
// It is the default executor when no live credentials are configured.
type PaperExecutionProvider struct {
	logger *logger.Logger
}

var _ ExecutionProvider = (*PaperExecutionProvider)(nil)

func NewPaperExecutionProvider(log *logger.Logger) *PaperExecutionProvider {
	return &PaperExecutionProvider{logger: log}
}

func (p *PaperExecutionProvider) PlaceOrder(_ context.Context, intent types.OrderIntent) error {
	p.logger.Info("paper order",
		zap.String("id", intent.ID),
		zap.String("symbol", intent.Symbol),
		zap.String("side", string(intent.Side)),
		zap.Float64("quantity", intent.Quantity),
		zap.Float64("price", intent.Price),
		zap.String("reason", intent.Reason),
	)

	return nil
}

// StaticAccountProvider serves a fixed snapshot and position list. Paper
// runs and tests use it in place of a live broker account.
type StaticAccountProvider struct {
	account   types.AccountSnapshot
	positions []types.Position
}

var _ AccountProvider = (*StaticAccountProvider)(nil)

func NewStaticAccountProvider(account types.AccountSnapshot, positions []types.Position) *StaticAccountProvider {
	copied := make([]types.Position, len(positions))
	copy(copied, positions)

	return &StaticAccountProvider{account: account, positions: copied}
}

func (p *StaticAccountProvider) GetAccount(_ context.Context) (types.AccountSnapshot, error) {
	return p.account, nil
}

func (p *StaticAccountProvider) GetPositions(_ context.Context) ([]types.Position, error) {
	positions := make([]types.Position, len(p.positions))
	copy(positions, p.positions)

	return positions, nil
}
