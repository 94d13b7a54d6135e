package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// fakeConn is a scripted connection. Frames pushed to incoming are returned
// from ReadMessage; writes are recorded. When grantAuth is set, an auth
// request is acknowledged immediately.
type fakeConn struct {
	incoming  chan []byte
	writes    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
	grantAuth bool

	// writeDelay widens each write's critical window; inWrite/overlapped
	// record whether two writers ever ran inside WriteMessage at once.
	writeDelay time.Duration
	inWrite    atomic.Int32
	overlapped atomic.Bool
}

func newFakeConn(grantAuth bool) *fakeConn {
	return &fakeConn{
		incoming:  make(chan []byte, 64),
		writes:    make(chan []byte, 64),
		closeCh:   make(chan struct{}),
		grantAuth: grantAuth,
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.incoming:
		return data, nil
	case <-c.closeCh:
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	if c.inWrite.Add(1) > 1 {
		c.overlapped.Store(true)
	}
	defer c.inWrite.Add(-1)

	if c.writeDelay > 0 {
		time.Sleep(c.writeDelay)
	}

	select {
	case <-c.closeCh:
		return io.ErrClosedPipe
	default:
	}

	c.writes <- data

	var request map[string]any
	if err := json.Unmarshal(data, &request); err == nil {
		if request["action"] == "auth" && c.grantAuth {
			c.incoming <- []byte(`[{"T":"success","msg":"authenticated"}]`)
		}
	}

	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closeCh)
	})

	return nil
}

// drainWrites returns every recorded write so far.
func (c *fakeConn) drainWrites() []map[string]any {
	var out []map[string]any

	for {
		select {
		case data := <-c.writes:
			var decoded map[string]any
			if err := json.Unmarshal(data, &decoded); err == nil {
				out = append(out, decoded)
			}
		default:
			return out
		}
	}
}

// fakeDialer serves a scripted sequence of connections; a nil entry is a
// dial failure, and the sequence ends in permanent failure.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials int
}

var _ Dialer = (*fakeDialer)(nil)

func (d *fakeDialer) Dial(_ context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++

	if d.dials > len(d.conns) || d.conns[d.dials-1] == nil {
		return nil, io.ErrUnexpectedEOF
	}

	return d.conns[d.dials-1], nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.dials
}

func testConfig() Config {
	return Config{
		URL:                  "wss://example.test/stream",
		Key:                  "key",
		Secret:               "secret",
		AuthTimeout:          100 * time.Millisecond,
		ReconnectMinDelay:    time.Millisecond,
		ReconnectMaxDelay:    5 * time.Millisecond,
		MaxReconnectAttempts: 3,
		EventBufferSize:      64,
	}
}

type StreamManagerTestSuite struct {
	suite.Suite
}

func TestStreamManagerSuite(t *testing.T) {
	suite.Run(t, new(StreamManagerTestSuite))
}

func (s *StreamManagerTestSuite) newManager(config Config, dialer Dialer) *Manager {
	manager, err := NewManager(config, dialer, logger.NewNopLogger())
	s.Require().NoError(err)

	return manager
}

func (s *StreamManagerTestSuite) TestInvalidConfigFailsFast() {
	config := testConfig()
	config.URL = ""

	_, err := NewManager(config, nil, logger.NewNopLogger())
	s.Require().Error(err)
	s.Equal(errors.ErrCodeInvalidConfiguration, errors.GetCode(err))
}

func (s *StreamManagerTestSuite) TestTerminalUnavailableAfterMaxFailures() {
	dialer := &fakeDialer{} //nolint:exhaustruct
	manager := s.newManager(testConfig(), dialer)

	s.Require().NoError(manager.Start(context.Background()))
	defer manager.Stop()

	s.Require().Eventually(func() bool {
		return manager.State() == types.ConnectionStateUnavailable
	}, 2*time.Second, 5*time.Millisecond)

	s.Equal(3, dialer.dialCount())

	// The retry loop has stopped for good.
	time.Sleep(50 * time.Millisecond)
	s.Equal(3, dialer.dialCount())

	stats := manager.Stats()
	s.False(stats.Connected)
	s.Equal(types.ConnectionStateUnavailable, stats.State)
	s.Equal(3, stats.ReconnectAttempts)
}

func (s *StreamManagerTestSuite) TestAuthTimeoutCountsAsFailedAttempt() {
	config := testConfig()
	config.AuthTimeout = 10 * time.Millisecond
	config.MaxReconnectAttempts = 2

	// Connections accept the dial but never acknowledge auth.
	dialer := &fakeDialer{conns: []*fakeConn{newFakeConn(false), newFakeConn(false)}} //nolint:exhaustruct
	manager := s.newManager(config, dialer)

	s.Require().NoError(manager.Start(context.Background()))
	defer manager.Stop()

	s.Require().Eventually(func() bool {
		return manager.State() == types.ConnectionStateUnavailable
	}, 2*time.Second, 5*time.Millisecond)

	s.Equal(2, dialer.dialCount())
}

func (s *StreamManagerTestSuite) TestAuthRejectionIsFailure() {
	config := testConfig()
	config.MaxReconnectAttempts = 1

	conn := newFakeConn(false)
	conn.incoming <- []byte(`[{"T":"error","code":402,"msg":"auth failed"}]`)

	dialer := &fakeDialer{conns: []*fakeConn{conn}} //nolint:exhaustruct
	manager := s.newManager(config, dialer)

	s.Require().NoError(manager.Start(context.Background()))
	defer manager.Stop()

	s.Require().Eventually(func() bool {
		return manager.State() == types.ConnectionStateUnavailable
	}, 2*time.Second, 5*time.Millisecond)
}

func (s *StreamManagerTestSuite) TestConnectSubscribeAndDispatch() {
	conn := newFakeConn(true)
	dialer := &fakeDialer{conns: []*fakeConn{conn}} //nolint:exhaustruct
	manager := s.newManager(testConfig(), dialer)

	bars := make(chan types.BarEvent, 16)
	manager.OnBar(func(ev types.BarEvent) { bars <- ev })

	s.Require().NoError(manager.Subscribe(types.StreamTypeBars, "AAPL"))

	s.Require().NoError(manager.Start(context.Background()))
	defer manager.Stop()

	s.Require().Eventually(func() bool {
		return manager.State() == types.ConnectionStateConnected
	}, 2*time.Second, 5*time.Millisecond)

	// Auth request plus the desired-state subscribe.
	s.Require().Eventually(func() bool { return len(conn.writes) == 2 }, 2*time.Second, 5*time.Millisecond)

	writes := conn.drainWrites()
	s.Require().Len(writes, 2)
	s.Equal("auth", writes[0]["action"])
	s.Equal("subscribe", writes[1]["action"])
	s.Equal([]any{"AAPL"}, writes[1]["bars"])

	conn.incoming <- []byte(`[{"T":"b","S":"AAPL","t":"2024-06-03T14:30:00Z","o":100,"h":101,"l":99,"c":100.5,"v":1200}]`)

	select {
	case ev := <-bars:
		s.Equal("AAPL", ev.Bar.Symbol)
		s.InDelta(100.5, ev.Bar.Close, 1e-9)
		s.InDelta(1200, ev.Bar.Volume, 1e-9)
	case <-time.After(2 * time.Second):
		s.FailNow("no bar event dispatched")
	}

	stats := manager.Stats()
	s.True(stats.Connected)
	s.Equal(1, stats.Subscriptions[types.StreamTypeBars])
	s.Positive(stats.MessagesReceived)
	s.Equal(0, stats.ReconnectAttempts)
}

func (s *StreamManagerTestSuite) TestMalformedFrameIsSkipped() {
	conn := newFakeConn(true)
	dialer := &fakeDialer{conns: []*fakeConn{conn}} //nolint:exhaustruct
	manager := s.newManager(testConfig(), dialer)

	trades := make(chan types.TradeEvent, 16)
	manager.OnTrade(func(ev types.TradeEvent) { trades <- ev })

	s.Require().NoError(manager.Start(context.Background()))
	defer manager.Stop()

	s.Require().Eventually(func() bool {
		return manager.State() == types.ConnectionStateConnected
	}, 2*time.Second, 5*time.Millisecond)

	conn.incoming <- []byte(`this is not json`)
	conn.incoming <- []byte(`[{"T":"t","S":"AAPL","t":"2024-06-03T14:30:00Z","p":187.5,"s":100,"i":42}]`)

	select {
	case ev := <-trades:
		s.Equal("AAPL", ev.Symbol)
		s.InDelta(187.5, ev.Price, 1e-9)
		s.Equal(int64(42), ev.TradeID)
	case <-time.After(2 * time.Second):
		s.FailNow("no trade event dispatched")
	}

	s.Positive(manager.Stats().MessagesDropped)
}

func (s *StreamManagerTestSuite) TestResubscribeAfterReconnect() {
	first := newFakeConn(true)
	second := newFakeConn(true)
	dialer := &fakeDialer{conns: []*fakeConn{first, second}} //nolint:exhaustruct
	manager := s.newManager(testConfig(), dialer)

	s.Require().NoError(manager.Subscribe(types.StreamTypeTrades, "AAPL", "MSFT"))

	s.Require().NoError(manager.Start(context.Background()))
	defer manager.Stop()

	s.Require().Eventually(func() bool {
		return manager.State() == types.ConnectionStateConnected
	}, 2*time.Second, 5*time.Millisecond)

	// Drop the first connection; the manager must reconnect and re-apply
	// the desired subscriptions.
	first.Close()

	s.Require().Eventually(func() bool {
		return dialer.dialCount() == 2 && manager.State() == types.ConnectionStateConnected
	}, 2*time.Second, 5*time.Millisecond)

	s.Require().Eventually(func() bool { return len(second.writes) == 2 }, 2*time.Second, 5*time.Millisecond)

	writes := second.drainWrites()
	s.Require().Len(writes, 2)
	s.Equal("subscribe", writes[1]["action"])
	s.Equal([]any{"AAPL", "MSFT"}, writes[1]["trades"])

	s.Equal(0, manager.Stats().ReconnectAttempts)
}

func (s *StreamManagerTestSuite) TestUnsubscribeShrinksDesiredState() {
	dialer := &fakeDialer{} //nolint:exhaustruct
	manager := s.newManager(testConfig(), dialer)

	s.Require().NoError(manager.Subscribe(types.StreamTypeQuotes, "AAPL", "MSFT"))
	s.Require().NoError(manager.Unsubscribe(types.StreamTypeQuotes, "MSFT"))

	s.Equal(1, manager.Stats().Subscriptions[types.StreamTypeQuotes])
}

func (s *StreamManagerTestSuite) TestUnknownStreamTypeRejected() {
	dialer := &fakeDialer{} //nolint:exhaustruct
	manager := s.newManager(testConfig(), dialer)

	err := manager.Subscribe(types.StreamType("candles"), "AAPL")
	s.Require().Error(err)
	s.Equal(errors.ErrCodeInvalidParameter, errors.GetCode(err))
}

func (s *StreamManagerTestSuite) TestConcurrentSubscribeWritesSerialized() {
	conn := newFakeConn(true)
	conn.writeDelay = 200 * time.Microsecond
	dialer := &fakeDialer{conns: []*fakeConn{conn}} //nolint:exhaustruct
	manager := s.newManager(testConfig(), dialer)

	s.Require().NoError(manager.Start(context.Background()))
	defer manager.Stop()

	s.Require().Eventually(func() bool {
		return manager.State() == types.ConnectionStateConnected
	}, 2*time.Second, 5*time.Millisecond)

	var wg sync.WaitGroup

	for worker := 0; worker < 2; worker++ {
		wg.Add(1)

		go func(worker int) {
			defer wg.Done()

			for i := 0; i < 20; i++ {
				symbol := fmt.Sprintf("SYM%d-%d", worker, i)
				s.Require().NoError(manager.Subscribe(types.StreamTypeBars, symbol))
			}
		}(worker)
	}

	wg.Wait()

	s.False(conn.overlapped.Load())
	s.Equal(40, manager.Stats().Subscriptions[types.StreamTypeBars])
}

func (s *StreamManagerTestSuite) TestAuthWaitsThroughConnectedGreeting() {
	conn := newFakeConn(false)
	conn.incoming <- []byte(`[{"T":"success","msg":"connected"}]`)
	conn.incoming <- []byte(`[{"T":"success","msg":"authenticated"}]`)

	dialer := &fakeDialer{conns: []*fakeConn{conn}} //nolint:exhaustruct
	manager := s.newManager(testConfig(), dialer)

	s.Require().NoError(manager.Start(context.Background()))
	defer manager.Stop()

	s.Require().Eventually(func() bool {
		return manager.State() == types.ConnectionStateConnected
	}, 2*time.Second, 5*time.Millisecond)

	s.Equal(0, manager.Stats().ReconnectAttempts)
}
