package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/flowcanvas/internal/wire"
)

const writeTimeout = 10 * time.Second

// Socket is a JSON-RPC transport over a websocket.
//
// Responses are matched to requests by id. Every other frame is a push and
// goes to the queue. When the read side fails, in-flight requests fail with
// ErrConnectionLost, the status becomes StatusReconnecting and a background
// loop redials with exponential backoff until Close.
type Socket struct {
	url     string
	header  http.Header
	dialer  *websocket.Dialer
	backoff Backoff
	logger  *slog.Logger

	queue  *Queue
	status *statusTracker

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan result
	closed  bool

	writeMu sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
}

type result struct {
	resp *wire.Response
	err  error
}

// SocketOption configures a Socket.
type SocketOption func(*Socket)

// WithHeader adds HTTP headers to the websocket handshake.
func WithHeader(h http.Header) SocketOption {
	return func(s *Socket) { s.header = h }
}

// WithBackoff sets the reconnect delays.
func WithBackoff(b Backoff) SocketOption {
	return func(s *Socket) { s.backoff = b }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) SocketOption {
	return func(s *Socket) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithSocketLogger sets the logger.
func WithSocketLogger(l *slog.Logger) SocketOption {
	return func(s *Socket) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSocket creates a websocket transport for url. An empty url is a fatal
// initialization error.
func NewSocket(url string, opts ...SocketOption) (*Socket, error) {
	if url == "" {
		return nil, &InitError{Code: ErrCodeMissingParameter, Message: "socket url is required"}
	}
	s := &Socket{
		url:     url,
		dialer:  websocket.DefaultDialer,
		backoff: Backoff{Initial: DefaultInitialDelay, Max: DefaultMaxDelay},
		logger:  slog.Default(),
		queue:   NewQueue(),
		status:  newStatusTracker(),
		pending: make(map[string]chan result),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Connect dials the socket and starts the reader.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	s.status.set(StatusConnecting)
	conn, err := s.dial(ctx)
	if err != nil {
		s.status.set(StatusDisconnected)
		return fmt.Errorf("connect %s: %w", s.url, err)
	}
	s.attach(conn)
	s.logger.Info("socket connected", "url", s.url)
	return nil
}

func (s *Socket) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, s.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// attach installs conn as the live connection and starts reading from it.
func (s *Socket) attach(conn *websocket.Conn) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()

	s.status.set(StatusOnline)
	s.wg.Add(1)
	go s.readLoop(conn)
}

func (s *Socket) readLoop(conn *websocket.Conn) {
	defer s.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.lost(conn, err)
			return
		}
		s.route(data)
	}
}

// route delivers a frame to its waiting request or to the push queue.
// Frames that fail to classify are queued so the dispatcher rejects and
// logs them.
func (s *Socket) route(data []byte) {
	isResponse, err := wire.ClassifyFrame(data)
	if err != nil || !isResponse {
		s.queue.Enqueue(string(data))
		return
	}

	resp, err := decodeResponse(data, "")
	if err != nil {
		s.logger.Warn("undecodable response", "error", err)
		return
	}
	s.mu.Lock()
	ch, ok := s.pending[resp.ID]
	delete(s.pending, resp.ID)
	s.mu.Unlock()
	if !ok {
		s.logger.Warn("response for unknown request", "id", resp.ID)
		return
	}
	ch <- result{resp: resp}
}

// lost handles a failed read on conn.
func (s *Socket) lost(conn *websocket.Conn, err error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	closed := s.closed
	s.failPendingLocked(ErrConnectionLost)
	s.mu.Unlock()
	conn.Close()

	if closed {
		return
	}
	s.logger.Warn("socket connection lost", "url", s.url, "error", err)
	s.status.set(StatusReconnecting)
	s.wg.Add(1)
	go s.reconnect()
}

func (s *Socket) reconnect() {
	defer s.wg.Done()
	for attempt := 1; ; attempt++ {
		wait := s.backoff.Delay(attempt)
		select {
		case <-s.done:
			return
		case <-time.After(wait):
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.backoff.Max+writeTimeout)
		conn, err := s.dial(ctx)
		cancel()
		if err != nil {
			s.logger.Debug("reconnect failed", "attempt", attempt, "error", err)
			continue
		}
		s.logger.Info("socket reconnected", "url", s.url, "attempt", attempt)
		s.attach(conn)
		return
	}
}

func (s *Socket) failPendingLocked(err error) {
	for id, ch := range s.pending {
		ch <- result{err: err}
		delete(s.pending, id)
	}
}

// Send writes req and waits for the matching response.
func (s *Socket) Send(ctx context.Context, req wire.Request) (*wire.Response, error) {
	if req.ID == "" {
		return nil, errors.New("request id is required")
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	ch := make(chan result, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return nil, ErrOffline
	}
	s.pending[req.ID] = ch
	s.mu.Unlock()

	if err := s.write(conn, data); err != nil {
		s.forget(req.ID)
		return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}

	select {
	case <-ctx.Done():
		s.forget(req.ID)
		return nil, ctx.Err()
	case r := <-ch:
		return r.resp, r.err
	}
}

func (s *Socket) write(conn *websocket.Conn, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Socket) forget(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Pushes returns the push queue.
func (s *Socket) Pushes() *Queue { return s.queue }

// Status returns the connectivity state.
func (s *Socket) Status() Status { return s.status.get() }

// OnStatus registers a status observer.
func (s *Socket) OnStatus(fn StatusFunc) func() { return s.status.subscribe(fn) }

// WaitOnline blocks until the socket is connected.
func (s *Socket) WaitOnline(ctx context.Context) error { return s.status.waitOnline(ctx) }

// Close stops reconnecting, closes the connection and the push queue, and
// fails in-flight requests with ErrClosed.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.failPendingLocked(ErrClosed)
	close(s.done)
	s.mu.Unlock()

	s.status.set(StatusClosed)
	var err error
	if conn != nil {
		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = conn.Close()
	}
	s.wg.Wait()
	s.queue.Close()
	return err
}

var _ Transport = (*Socket)(nil)
