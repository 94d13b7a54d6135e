// Package stream maintains the single logical market data connection:
// authentication, desired-state subscriptions, frame parsing, handler
// dispatch and bounded reconnection.
package stream

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// Conn is the minimal connection surface the manager needs. gorilla
// websocket connections satisfy it through WebsocketDialer; tests inject
// fakes.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a connection to the market data endpoint.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct{}

var _ Dialer = WebsocketDialer{}

func (WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil) //nolint:bodyclose
	if err != nil {
		return nil, err
	}

	return &websocketConn{conn: conn}, nil
}

type websocketConn struct {
	conn *websocket.Conn
}

func (c *websocketConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()

	return data, err
}

func (c *websocketConn) WriteMessage(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *websocketConn) Close() error {
	return c.conn.Close()
}

// Config controls the stream manager.
type Config struct {
	// URL is the websocket endpoint
	URL string `json:"url" yaml:"url" validate:"required"`
	// Key is the API key for the auth handshake
	Key string `json:"key" yaml:"key"`
	// Secret is the API secret for the auth handshake
	Secret string `json:"secret" yaml:"secret"`
	// AuthTimeout bounds the wait for the auth acknowledgement
	AuthTimeout time.Duration `json:"auth_timeout" yaml:"auth_timeout" validate:"required,gt=0"`
	// ReconnectMinDelay is the initial reconnect backoff delay
	ReconnectMinDelay time.Duration `json:"reconnect_min_delay" yaml:"reconnect_min_delay" validate:"required,gt=0"`
	// ReconnectMaxDelay caps the reconnect backoff delay
	ReconnectMaxDelay time.Duration `json:"reconnect_max_delay" yaml:"reconnect_max_delay" validate:"required,gt=0"`
	// MaxReconnectAttempts is the consecutive failure budget before the
	// manager goes terminally unavailable
	MaxReconnectAttempts int `json:"max_reconnect_attempts" yaml:"max_reconnect_attempts" validate:"required,gt=0"`
	// EventBufferSize is the dispatch channel capacity
	EventBufferSize int `json:"event_buffer_size" yaml:"event_buffer_size" validate:"required,gt=0"`
}

// DefaultConfig returns the canonical stream configuration, without
// credentials.
func DefaultConfig() Config {
	return Config{
		URL:                  "wss://stream.data.alpaca.markets/v2/iex",
		Key:                  "",
		Secret:               "",
		AuthTimeout:          10 * time.Second,
		ReconnectMinDelay:    time.Second,
		ReconnectMaxDelay:    time.Minute,
		MaxReconnectAttempts: 10,
		EventBufferSize:      1024,
	}
}

// event is one dispatched market data update.
type event struct {
	trade *types.TradeEvent
	quote *types.QuoteEvent
	bar   *types.BarEvent
}

// errStopped signals an intentional shutdown through the connection loop.
var errStopped = errors.New(errors.ErrCodeStreamNotConnected, "stream manager stopped")

// Manager owns the connection state machine. It never holds two live
// sockets: a reconnect closes the previous connection before dialing again.
type Manager struct {
	config Config
	dialer Dialer
	logger *logger.Logger

	mu                sync.Mutex
	writeMu           sync.Mutex
	state             types.ConnectionState
	conn              Conn
	connectedAt       time.Time
	reconnectAttempts int
	subscriptions     map[types.StreamType]map[string]bool
	onTrade           []func(types.TradeEvent)
	onQuote           []func(types.QuoteEvent)
	onBar             []func(types.BarEvent)

	events   chan event
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool

	messagesReceived atomic.Int64
	messagesDropped  atomic.Int64
	errorCount       atomic.Int64
}

// NewManager validates the configuration and builds a stream manager. A nil
// dialer defaults to the gorilla websocket dialer.
func NewManager(config Config, dialer Dialer, log *logger.Logger) (*Manager, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid stream config", err)
	}

	if dialer == nil {
		dialer = WebsocketDialer{}
	}

	return &Manager{ //nolint:exhaustruct
		config: config,
		dialer: dialer,
		logger: log,
		state:  types.ConnectionStateDisconnected,
		subscriptions: map[types.StreamType]map[string]bool{
			types.StreamTypeTrades: {},
			types.StreamTypeQuotes: {},
			types.StreamTypeBars:   {},
		},
		events: make(chan event, config.EventBufferSize),
		done:   make(chan struct{}),
	}, nil
}

// OnTrade registers a trade handler. Handlers must not block.
func (m *Manager) OnTrade(handler func(types.TradeEvent)) {
	m.mu.Lock()
	m.onTrade = append(m.onTrade, handler)
	m.mu.Unlock()
}

// OnQuote registers a quote handler. Handlers must not block.
func (m *Manager) OnQuote(handler func(types.QuoteEvent)) {
	m.mu.Lock()
	m.onQuote = append(m.onQuote, handler)
	m.mu.Unlock()
}

// OnBar registers a bar handler. Handlers must not block.
func (m *Manager) OnBar(handler func(types.BarEvent)) {
	m.mu.Lock()
	m.onBar = append(m.onBar, handler)
	m.mu.Unlock()
}

// Start launches the connection and dispatch loops.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()

		return errors.New(errors.ErrCodeInvalidParameter, "stream manager already started")
	}

	m.started = true
	m.mu.Unlock()

	m.wg.Add(2)

	go m.run(ctx)
	go m.dispatchLoop()

	return nil
}

// Stop shuts the manager down and waits for its goroutines.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})

	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	m.wg.Wait()
}

// Subscribe adds symbols to the desired subscription set for the stream
// type and, when connected, pushes the change to the server.
func (m *Manager) Subscribe(streamType types.StreamType, symbols ...string) error {
	return m.changeSubscription("subscribe", streamType, symbols, true)
}

// Unsubscribe removes symbols from the desired subscription set and, when
// connected, pushes the change to the server.
func (m *Manager) Unsubscribe(streamType types.StreamType, symbols ...string) error {
	return m.changeSubscription("unsubscribe", streamType, symbols, false)
}

func (m *Manager) changeSubscription(action string, streamType types.StreamType, symbols []string, add bool) error {
	m.mu.Lock()

	set, ok := m.subscriptions[streamType]
	if !ok {
		m.mu.Unlock()

		return errors.Newf(errors.ErrCodeInvalidParameter, "unknown stream type %q", streamType)
	}

	for _, symbol := range symbols {
		if add {
			set[symbol] = true
		} else {
			delete(set, symbol)
		}
	}

	var conn Conn
	if m.state == types.ConnectionStateConnected {
		conn = m.conn
	}

	m.mu.Unlock()

	if conn == nil || len(symbols) == 0 {
		return nil
	}

	request := subscriptionRequest{Action: action} //nolint:exhaustruct

	switch streamType {
	case types.StreamTypeTrades:
		request.Trades = symbols
	case types.StreamTypeQuotes:
		request.Quotes = symbols
	case types.StreamTypeBars:
		request.Bars = symbols
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStreamSubscribeFailed, "marshal subscription request", err)
	}

	if err := m.writeFrame(conn, payload); err != nil {
		return errors.Wrap(errors.ErrCodeStreamSubscribeFailed, "write subscription request", err)
	}

	return nil
}

// writeFrame serializes socket writes. gorilla/websocket supports at most
// one concurrent writer per connection, and a Subscribe call can race the
// run goroutine's resubscribe on the same socket.
func (m *Manager) writeFrame(conn Conn, payload []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	return conn.WriteMessage(payload)
}

// Stats returns a health snapshot for the observability collaborator.
func (m *Manager) Stats() types.StreamStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	subscriptions := make(map[types.StreamType]int, len(m.subscriptions))
	for streamType, set := range m.subscriptions {
		subscriptions[streamType] = len(set)
	}

	uptime := time.Duration(0)
	if m.state == types.ConnectionStateConnected {
		uptime = time.Since(m.connectedAt)
	}

	return types.StreamStats{
		Connected:         m.state == types.ConnectionStateConnected,
		State:             m.state,
		Uptime:            uptime,
		Subscriptions:     subscriptions,
		MessagesReceived:  m.messagesReceived.Load(),
		MessagesDropped:   m.messagesDropped.Load(),
		Errors:            m.errorCount.Load(),
		ReconnectAttempts: m.reconnectAttempts,
	}
}

// State returns the current connection state.
func (m *Manager) State() types.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

func (m *Manager) setState(state types.ConnectionState) {
	m.mu.Lock()
	m.state = state

	if state != types.ConnectionStateConnected {
		m.conn = nil
		m.connectedAt = time.Time{}
	}
	m.mu.Unlock()

	m.logger.Info("stream state changed", zap.String("state", string(state)))
}

// run drives the reconnect loop: each failed connection attempt feeds the
// capped backoff, and exhausting the attempt budget parks the manager in
// the terminal unavailable state.
func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	delay := &backoff.Backoff{
		Min:    m.config.ReconnectMinDelay,
		Max:    m.config.ReconnectMaxDelay,
		Factor: 2,
		Jitter: true,
	}

	failures := 0

	for {
		connected, err := m.runConnection(ctx)
		if connected {
			failures = 0

			delay.Reset()
		}

		if err == nil || err == errStopped {
			m.setState(types.ConnectionStateDisconnected)

			return
		}

		m.errorCount.Add(1)

		failures++

		m.mu.Lock()
		m.reconnectAttempts = failures
		m.mu.Unlock()

		m.logger.Warn("stream connection failed",
			zap.Error(err),
			zap.Int("failures", failures),
			zap.Int("budget", m.config.MaxReconnectAttempts),
		)

		if failures >= m.config.MaxReconnectAttempts {
			m.logger.Error("reconnect budget exhausted, stream unavailable")
			m.setState(types.ConnectionStateUnavailable)

			return
		}

		m.setState(types.ConnectionStateReconnecting)

		select {
		case <-time.After(delay.Duration()):
		case <-ctx.Done():
			m.setState(types.ConnectionStateDisconnected)

			return
		case <-m.done:
			m.setState(types.ConnectionStateDisconnected)

			return
		}
	}
}

// runConnection performs one dial/auth/read cycle. The boolean reports
// whether the connection reached the connected state; a nil or errStopped
// error means an intentional shutdown.
func (m *Manager) runConnection(ctx context.Context) (bool, error) {
	select {
	case <-ctx.Done():
		return false, errStopped
	case <-m.done:
		return false, errStopped
	default:
	}

	m.setState(types.ConnectionStateConnecting)

	conn, err := m.dialer.Dial(ctx, m.config.URL)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeStreamDialFailed, "dial failed", err)
	}

	defer conn.Close()

	connDone := make(chan struct{})
	defer close(connDone)

	frames := make(chan []byte, 64)
	readErrs := make(chan error, 1)

	go func() {
		for {
			data, readErr := conn.ReadMessage()
			if readErr != nil {
				select {
				case readErrs <- readErr:
				default:
				}

				return
			}

			select {
			case frames <- data:
			case <-connDone:
				return
			}
		}
	}()

	m.setState(types.ConnectionStateAuthenticating)

	if err := m.authenticate(conn, frames, readErrs); err != nil {
		return false, err
	}

	m.mu.Lock()
	m.conn = conn
	m.state = types.ConnectionStateConnected
	m.connectedAt = time.Now()
	m.reconnectAttempts = 0
	m.mu.Unlock()

	m.logger.Info("stream connected", zap.String("url", m.config.URL))

	if err := m.resubscribe(conn); err != nil {
		return true, err
	}

	for {
		select {
		case <-ctx.Done():
			return true, errStopped
		case <-m.done:
			return true, errStopped
		case readErr := <-readErrs:
			return true, errors.Wrap(errors.ErrCodeStreamNotConnected, "connection lost", readErr)
		case data := <-frames:
			m.handleFrame(data)
		}
	}
}

// authenticate sends the credential handshake and waits for the
// acknowledgement within the configured timeout.
func (m *Manager) authenticate(conn Conn, frames chan []byte, readErrs chan error) error {
	payload, err := json.Marshal(authRequest{Action: "auth", Key: m.config.Key, Secret: m.config.Secret})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStreamAuthFailed, "marshal auth request", err)
	}

	if err := m.writeFrame(conn, payload); err != nil {
		return errors.Wrap(errors.ErrCodeStreamAuthFailed, "write auth request", err)
	}

	timeout := time.NewTimer(m.config.AuthTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-timeout.C:
			return errors.Newf(errors.ErrCodeStreamAuthTimeout, "no auth acknowledgement within %s", m.config.AuthTimeout)
		case <-m.done:
			return errStopped
		case readErr := <-readErrs:
			return errors.Wrap(errors.ErrCodeStreamAuthFailed, "connection lost during auth", readErr)
		case data := <-frames:
			messages, parseErr := parseFrame(data)
			if parseErr != nil {
				m.messagesDropped.Add(1)

				continue
			}

			for _, message := range messages {
				switch message.Type {
				case messageTypeSuccess:
					switch message.Msg {
					case controlConnected:
						// Server greeting; the auth acknowledgement is still pending.
					case controlAuthenticated:
						return nil
					}
				case messageTypeError:
					return errors.Newf(errors.ErrCodeStreamAuthFailed,
						"auth rejected: %s (code %d)", message.Msg, message.Code)
				}
			}
		}
	}
}

// resubscribe re-applies the desired subscription set after a successful
// (re)connect.
func (m *Manager) resubscribe(conn Conn) error {
	m.mu.Lock()

	request := subscriptionRequest{Action: "subscribe"} //nolint:exhaustruct
	request.Trades = sortedSymbols(m.subscriptions[types.StreamTypeTrades])
	request.Quotes = sortedSymbols(m.subscriptions[types.StreamTypeQuotes])
	request.Bars = sortedSymbols(m.subscriptions[types.StreamTypeBars])

	m.mu.Unlock()

	if len(request.Trades) == 0 && len(request.Quotes) == 0 && len(request.Bars) == 0 {
		return nil
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStreamSubscribeFailed, "marshal resubscribe request", err)
	}

	if err := m.writeFrame(conn, payload); err != nil {
		return errors.Wrap(errors.ErrCodeStreamSubscribeFailed, "write resubscribe request", err)
	}

	return nil
}

// handleFrame parses one frame and queues its market data events for
// dispatch. Malformed frames are counted and skipped.
func (m *Manager) handleFrame(data []byte) {
	messages, err := parseFrame(data)
	if err != nil {
		m.messagesDropped.Add(1)
		m.errorCount.Add(1)
		m.logger.Warn("malformed frame skipped", zap.Error(err))

		return
	}

	for _, message := range messages {
		switch message.Type {
		case messageTypeTrade:
			trade := message.tradeEvent()
			m.messagesReceived.Add(1)
			m.enqueue(event{trade: &trade}) //nolint:exhaustruct
		case messageTypeQuote:
			quote := message.quoteEvent()
			m.messagesReceived.Add(1)
			m.enqueue(event{quote: &quote}) //nolint:exhaustruct
		case messageTypeBar:
			bar := message.barEvent()
			m.messagesReceived.Add(1)
			m.enqueue(event{bar: &bar}) //nolint:exhaustruct
		case messageTypeSuccess, messageTypeSubscription:
			m.messagesReceived.Add(1)
		case messageTypeError:
			m.errorCount.Add(1)
			m.logger.Warn("stream error message",
				zap.Int("code", message.Code),
				zap.String("msg", message.Msg),
			)
		default:
			m.messagesDropped.Add(1)
		}
	}
}

// enqueue hands an event to the dispatch loop without ever blocking the
// read loop. A full buffer drops the event.
func (m *Manager) enqueue(ev event) {
	select {
	case m.events <- ev:
	default:
		m.messagesDropped.Add(1)
	}
}

func (m *Manager) dispatchLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return
		case ev := <-m.events:
			m.dispatch(ev)
		}
	}
}

func (m *Manager) dispatch(ev event) {
	m.mu.Lock()
	onTrade := m.onTrade
	onQuote := m.onQuote
	onBar := m.onBar
	m.mu.Unlock()

	switch {
	case ev.trade != nil:
		for _, handler := range onTrade {
			handler(*ev.trade)
		}
	case ev.quote != nil:
		for _, handler := range onQuote {
			handler(*ev.quote)
		}
	case ev.bar != nil:
		for _, handler := range onBar {
			handler(*ev.bar)
		}
	}
}

func sortedSymbols(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}

	symbols := make([]string, 0, len(set))
	for symbol := range set {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	return symbols
}
