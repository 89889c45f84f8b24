// Package stream owns the websocket session lifecycle shared by every
// exchange adapter: connect, authenticate, heartbeat in both directions,
// credential keepalive, and reconnection with a fixed delay. Adapters
// supply the venue dialect through a Spec; the session never parses
// payloads itself.
package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	"github.com/exbridge/exbridge/errs"
)

// State is the session's connection phase.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

const (
	// DefaultPingInterval is the client heartbeat cadence.
	DefaultPingInterval = time.Minute
	// DefaultPongTimeout is how long a ping may go unanswered before the
	// connection is considered dead.
	DefaultPongTimeout = 10 * time.Second
	// DefaultReconnectDelay is the fixed pause before every reconnect
	// attempt. Deliberately not exponential: venues drop idle streams on a
	// schedule and a constant delay recovers predictably.
	DefaultReconnectDelay = 5 * time.Second
	// DefaultKeepAliveInterval is the credential keepalive cadence
	// (listen-key renewal and the like).
	DefaultKeepAliveInterval = 30 * time.Minute

	writeTimeout = 5 * time.Second
	sendBuffer   = 64
)

// SendFunc queues one frame onto the session's single writer.
type SendFunc func(ctx context.Context, data []byte) error

// Spec is the venue dialect for one websocket session. Endpoint is
// required; every other hook is optional.
type Spec struct {
	// Endpoint resolves the URL to dial. Called before every connection
	// attempt so listen-key style URLs stay fresh.
	Endpoint func(ctx context.Context) (string, error)

	PingInterval      time.Duration
	PongTimeout       time.Duration
	ReconnectDelay    time.Duration
	KeepAliveInterval time.Duration

	// PingMessage builds the client heartbeat frame. Nil disables client
	// pings.
	PingMessage func() []byte
	// IsPong reports whether a frame answers our ping.
	IsPong func(data []byte) bool
	// IsPing recognizes a server heartbeat and builds the reply frame.
	IsPing func(data []byte) (reply []byte, ok bool)
	// KeepAlive renews stream credentials. A failed renewal means the
	// stream's credential is about to lapse, so the connection is dropped
	// and rebuilt with a fresh one.
	KeepAlive func(ctx context.Context) error
	// OnOpen runs after the transport connects and before the session is
	// considered open: authentication and subscription replay belong here.
	// An error terminates the attempt and schedules a reconnect.
	OnOpen func(ctx context.Context, send SendFunc) error
	// OnMessage receives every data frame that is not a heartbeat.
	OnMessage func(data []byte)
}

func (s *Spec) withDefaults() {
	if s.PingInterval <= 0 {
		s.PingInterval = DefaultPingInterval
	}
	if s.PongTimeout <= 0 {
		s.PongTimeout = DefaultPongTimeout
	}
	if s.ReconnectDelay <= 0 {
		s.ReconnectDelay = DefaultReconnectDelay
	}
	if s.KeepAliveInterval <= 0 {
		s.KeepAliveInterval = DefaultKeepAliveInterval
	}
}

// Session supervises one websocket connection. All outbound frames pass
// through a single writer goroutine; the session reconnects on its own
// after any drop until Close is called.
type Session struct {
	exchange string
	spec     Spec
	dial     Dialer
	log      *logrus.Entry
	observer Observer

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	mu         sync.Mutex
	state      State
	conn       Conn
	sendCh     chan []byte
	connCancel context.CancelFunc
	closed     bool

	startOnce sync.Once
	closeOnce sync.Once
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDialer overrides the transport dialer. Tests only.
func WithDialer(dial Dialer) SessionOption {
	return func(s *Session) {
		if dial != nil {
			s.dial = dial
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(log *logrus.Entry) SessionOption {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithObserver attaches lifecycle instrumentation.
func WithObserver(observer Observer) SessionOption {
	return func(s *Session) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// NewSession constructs a session for one venue stream.
func NewSession(exchange string, spec Spec, opts ...SessionOption) *Session {
	spec.withDefaults()
	s := &Session{
		exchange: exchange,
		spec:     spec,
		dial:     Dial,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		observer: NopObserver{},
		state:    StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("exchange", exchange)
	return s
}

// State reports the current connection phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the supervisor. Subsequent calls are no-ops.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.ctx, s.cancel = context.WithCancel(ctx)
		s.wg.Go(s.supervise)
	})
}

// Send queues one frame for the writer goroutine.
func (s *Session) Send(ctx context.Context, data []byte) error {
	s.mu.Lock()
	ch := s.sendCh
	s.mu.Unlock()
	if ch == nil {
		return errs.New(s.exchange, errs.KindExchangeNotAvailable,
			errs.WithMessage("stream not connected"))
	}
	select {
	case ch <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Restart drops the current connection; the supervisor reconnects after
// the fixed delay. No-op while disconnected.
func (s *Session) Restart() {
	s.mu.Lock()
	cancel := s.connCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close stops the session for good: the connection is closed exactly once
// and no reconnect follows. Idempotent; blocks until the supervisor has
// exited.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.state = StateClosing
		s.mu.Unlock()
		s.observer.StateChanged(s.exchange, StateClosing)
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		s.setState(StateDisconnected)
	})
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	if s.closed && state != StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()
	s.observer.StateChanged(s.exchange, state)
}

func (s *Session) supervise() {
	policy := backoff.NewConstantBackOff(s.spec.ReconnectDelay)

	for {
		if s.ctx.Err() != nil {
			return
		}
		if err := s.runConnection(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.WithError(err).Warn("stream session dropped")
		}
		if s.ctx.Err() != nil {
			return
		}
		s.setState(StateDisconnected)
		s.observer.Reconnecting(s.exchange)
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(policy.NextBackOff()):
		}
	}
}

func (s *Session) runConnection(ctx context.Context) error {
	s.setState(StateConnecting)

	endpoint, err := s.spec.Endpoint(ctx)
	if err != nil {
		return err
	}
	conn, err := s.dial(ctx, endpoint)
	if err != nil {
		return err
	}

	connCtx, cancel := context.WithCancel(ctx)
	sendCh := make(chan []byte, sendBuffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return conn.Close()
	}
	s.conn = conn
	s.sendCh = sendCh
	s.connCancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
			s.sendCh = nil
			s.connCancel = nil
		}
		s.mu.Unlock()
		_ = conn.Close()
	}()

	pongCh := make(chan struct{}, 1)
	var workers conc.WaitGroup
	defer workers.Wait()

	workers.Go(func() { s.writeLoop(connCtx, cancel, conn, sendCh) })

	if s.spec.OnOpen != nil {
		s.setState(StateAuthenticating)
		send := func(sendCtx context.Context, data []byte) error {
			select {
			case sendCh <- data:
				return nil
			case <-sendCtx.Done():
				return sendCtx.Err()
			case <-connCtx.Done():
				return connCtx.Err()
			}
		}
		if err := s.spec.OnOpen(connCtx, send); err != nil {
			return err
		}
	}
	s.setState(StateOpen)

	if s.spec.PingMessage != nil {
		workers.Go(func() { s.heartbeatLoop(connCtx, cancel, sendCh, pongCh) })
	}
	if s.spec.KeepAlive != nil {
		workers.Go(func() { s.keepAliveLoop(connCtx, cancel) })
	}

	return s.readLoop(connCtx, conn, sendCh, pongCh)
}

func (s *Session) readLoop(ctx context.Context, conn Conn, sendCh chan []byte, pongCh chan struct{}) error {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return context.Canceled
			}
			return err
		}
		s.observer.MessageReceived(s.exchange)

		if s.spec.IsPong != nil && s.spec.IsPong(data) {
			select {
			case pongCh <- struct{}{}:
			default:
			}
			continue
		}
		if s.spec.IsPing != nil {
			if reply, ok := s.spec.IsPing(data); ok {
				select {
				case sendCh <- reply:
				case <-ctx.Done():
					return context.Canceled
				}
				continue
			}
		}
		if s.spec.OnMessage != nil {
			s.spec.OnMessage(data)
		}
	}
}

func (s *Session) writeLoop(ctx context.Context, terminate context.CancelFunc, conn Conn, sendCh <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-sendCh:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, frame)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					s.log.WithError(err).Warn("stream write failed")
				}
				terminate()
				return
			}
		}
	}
}

// heartbeatLoop sends the client ping and enforces the pong deadline. A
// missed pong terminates the connection; the supervisor reconnects.
func (s *Session) heartbeatLoop(ctx context.Context, terminate context.CancelFunc, sendCh chan<- []byte, pongCh <-chan struct{}) {
	ticker := time.NewTicker(s.spec.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		select {
		case sendCh <- s.spec.PingMessage():
		case <-ctx.Done():
			return
		}

		deadline := time.NewTimer(s.spec.PongTimeout)
		select {
		case <-pongCh:
			deadline.Stop()
		case <-deadline.C:
			s.log.Warn("heartbeat pong missed, dropping connection")
			s.observer.HeartbeatTimeout(s.exchange)
			terminate()
			return
		case <-ctx.Done():
			deadline.Stop()
			return
		}
	}
}

func (s *Session) keepAliveLoop(ctx context.Context, terminate context.CancelFunc) {
	ticker := time.NewTicker(s.spec.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.spec.KeepAlive(ctx); err != nil && ctx.Err() == nil {
				s.log.WithError(err).Warn("stream keepalive failed, restarting session")
				terminate()
				return
			}
		}
	}
}

// StaticEndpoint wraps a fixed URL as an endpoint resolver.
func StaticEndpoint(url string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		return url, nil
	}
}
