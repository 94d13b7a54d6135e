package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// PurchaseType is the side of an order intent.
type PurchaseType string

const (
	PurchaseTypeBuy  PurchaseType = "BUY"
	PurchaseTypeSell PurchaseType = "SELL"
)

// OrderIntent is the core's output for the execution collaborator. The core
// never places orders itself; it hands intents to the collaborator after the
// risk gate has approved and sized them.
type OrderIntent struct {
	// ID uniquely identifies the intent
	ID string `json:"id" yaml:"id" validate:"required,uuid"`
	// Symbol is the ticker to trade
	Symbol string `json:"symbol" yaml:"symbol" validate:"required"`
	// Side is BUY or SELL
	Side PurchaseType `json:"side" yaml:"side" validate:"required,oneof=BUY SELL"`
	// Quantity is the number of shares, always positive
	Quantity float64 `json:"quantity" yaml:"quantity" validate:"required,gt=0"`
	// Price is the reference price at decision time
	Price float64 `json:"price" yaml:"price" validate:"required,gt=0"`
	// TakeProfit is the optional take-profit trigger price
	TakeProfit optional.Option[float64] `json:"take_profit" yaml:"take_profit"`
	// StopLoss is the optional stop-loss trigger price
	StopLoss optional.Option[float64] `json:"stop_loss" yaml:"stop_loss"`
	// Reason is the human readable rationale carried from the combined signal
	Reason string `json:"reason" yaml:"reason"`
	// Strategy names the aggregation source of the intent
	Strategy string `json:"strategy" yaml:"strategy"`
	// Time is the creation time of the intent
	Time time.Time `json:"time" yaml:"time"`
}
