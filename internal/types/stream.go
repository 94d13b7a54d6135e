package types

import "time"

// StreamType identifies one kind of real-time market data stream.
type StreamType string

const (
	StreamTypeTrades StreamType = "trades"
	StreamTypeQuotes StreamType = "quotes"
	StreamTypeBars   StreamType = "bars"
)

// ConnectionState is the lifecycle state of the stream manager's single
// logical connection.
type ConnectionState string

const (
	ConnectionStateDisconnected   ConnectionState = "disconnected"
	ConnectionStateConnecting     ConnectionState = "connecting"
	ConnectionStateAuthenticating ConnectionState = "authenticating"
	ConnectionStateConnected      ConnectionState = "connected"
	ConnectionStateReconnecting   ConnectionState = "reconnecting"
	// ConnectionStateUnavailable is terminal: the reconnect budget is exhausted.
	ConnectionStateUnavailable ConnectionState = "unavailable"
)

// TradeEvent is a single executed trade from the market data feed.
type TradeEvent struct {
	Symbol  string    `json:"symbol"`
	Time    time.Time `json:"time"`
	Price   float64   `json:"price"`
	Size    float64   `json:"size"`
	TradeID int64     `json:"trade_id"`
}

// QuoteEvent is a top-of-book quote update from the market data feed.
type QuoteEvent struct {
	Symbol   string    `json:"symbol"`
	Time     time.Time `json:"time"`
	BidPrice float64   `json:"bid_price"`
	BidSize  float64   `json:"bid_size"`
	AskPrice float64   `json:"ask_price"`
	AskSize  float64   `json:"ask_size"`
}

// BarEvent is a completed OHLCV bar from the market data feed.
type BarEvent struct {
	Bar Bar `json:"bar"`
}

// StreamStats is a health snapshot of the stream manager for the
// observability collaborator.
type StreamStats struct {
	// Connected reports whether the connection is currently live
	Connected bool `json:"connected"`
	// State is the current connection state
	State ConnectionState `json:"state"`
	// Uptime is the duration since the last successful connect, zero when down
	Uptime time.Duration `json:"uptime"`
	// Subscriptions counts subscribed symbols per stream type
	Subscriptions map[StreamType]int `json:"subscriptions"`
	// MessagesReceived counts successfully parsed frames
	MessagesReceived int64 `json:"messages_received"`
	// MessagesDropped counts malformed or skipped frames
	MessagesDropped int64 `json:"messages_dropped"`
	// Errors counts connection and parse errors
	Errors int64 `json:"errors"`
	// ReconnectAttempts counts reconnect attempts since the last successful connect
	ReconnectAttempts int `json:"reconnect_attempts"`
}
