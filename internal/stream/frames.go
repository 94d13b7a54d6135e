package stream

import (
	"encoding/json"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// Wire message type tags carried in the "T" field.
const (
	messageTypeTrade        = "t"
	messageTypeQuote        = "q"
	messageTypeBar          = "b"
	messageTypeSuccess      = "success"
	messageTypeError        = "error"
	messageTypeSubscription = "subscription"
)

// Control payloads signalled through the "msg" field of success messages.
const (
	controlConnected     = "connected"
	controlAuthenticated = "authenticated"
)

// wireMessage is one JSON object of an incoming frame. Frames are arrays of
// these, discriminated by the "T" field; unrelated fields stay zero.
type wireMessage struct {
	Type string `json:"T"`

	// control
	Code int    `json:"code,omitempty"`
	Msg  string `json:"msg,omitempty"`

	// subscription acks
	Trades []string `json:"trades,omitempty"`
	Quotes []string `json:"quotes,omitempty"`
	Bars   []string `json:"bars,omitempty"`

	// market data
	Symbol     string    `json:"S,omitempty"`
	Timestamp  time.Time `json:"t,omitempty"`
	Price      float64   `json:"p,omitempty"`
	Size       float64   `json:"s,omitempty"`
	TradeID    int64     `json:"i,omitempty"`
	BidPrice   float64   `json:"bp,omitempty"`
	BidSize    float64   `json:"bs,omitempty"`
	AskPrice   float64   `json:"ap,omitempty"`
	AskSize    float64   `json:"as,omitempty"`
	Open       float64   `json:"o,omitempty"`
	High       float64   `json:"h,omitempty"`
	Low        float64   `json:"l,omitempty"`
	Close      float64   `json:"c,omitempty"`
	Volume     float64   `json:"v,omitempty"`
	VWAP       float64   `json:"vw,omitempty"`
	TradeCount int64     `json:"n,omitempty"`
}

// authRequest is the credential handshake sent right after dialing.
type authRequest struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

// subscriptionRequest mutates the server-side subscription set.
type subscriptionRequest struct {
	Action string   `json:"action"`
	Trades []string `json:"trades,omitempty"`
	Quotes []string `json:"quotes,omitempty"`
	Bars   []string `json:"bars,omitempty"`
}

// parseFrame decodes one incoming frame into its messages.
func parseFrame(data []byte) ([]wireMessage, error) {
	var messages []wireMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStreamFrameMalformed, "frame is not a JSON message array", err)
	}

	return messages, nil
}

func (m wireMessage) tradeEvent() types.TradeEvent {
	return types.TradeEvent{
		Symbol:  m.Symbol,
		Time:    m.Timestamp,
		Price:   m.Price,
		Size:    m.Size,
		TradeID: m.TradeID,
	}
}

func (m wireMessage) quoteEvent() types.QuoteEvent {
	return types.QuoteEvent{
		Symbol:   m.Symbol,
		Time:     m.Timestamp,
		BidPrice: m.BidPrice,
		BidSize:  m.BidSize,
		AskPrice: m.AskPrice,
		AskSize:  m.AskSize,
	}
}

func (m wireMessage) barEvent() types.BarEvent {
	return types.BarEvent{Bar: types.Bar{
		Symbol:     m.Symbol,
		Time:       m.Timestamp,
		Open:       m.Open,
		High:       m.High,
		Low:        m.Low,
		Close:      m.Close,
		Volume:     m.Volume,
		VWAP:       m.VWAP,
		TradeCount: m.TradeCount,
	}}
}
