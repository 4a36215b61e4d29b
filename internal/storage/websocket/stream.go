package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/keypointsim/recorder/pkg/streaming"
)

const (
	outboxSize   = 10_000
	maxRedials   = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
	defaultRetry = time.Second
)

// stream owns the viewer connection. A single pump goroutine writes queued
// messages; when the link breaks it redials and replays the preamble so the
// viewer can place the frames that follow.
type stream struct {
	url        string
	secret     string
	retryDelay time.Duration
	log        *slog.Logger

	outbox chan []byte
	done   chan struct{}

	mu      sync.Mutex
	conn    *ws.Conn
	closed  bool
	waiters map[string]chan struct{}
	dropped int

	// start_run, then start_scene of the scene in progress
	runMsg   []byte
	sceneMsg []byte
}

func newStream(rawURL, secret string, retryDelay time.Duration, logger *slog.Logger) *stream {
	if retryDelay <= 0 {
		retryDelay = defaultRetry
	}
	return &stream{
		url:        rawURL,
		secret:     secret,
		retryDelay: retryDelay,
		log:        logger,
		outbox:     make(chan []byte, outboxSize),
		done:       make(chan struct{}),
		waiters:    make(map[string]chan struct{}),
	}
}

func (s *stream) open() error {
	conn, err := s.dial()
	if err != nil {
		return err
	}
	if !s.attach(conn) {
		return fmt.Errorf("frame stream closed")
	}
	go s.pump(conn)
	return nil
}

func (s *stream) dial() (*ws.Conn, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("invalid stream URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", s.secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("stream dial failed: %w", err)
	}
	return conn, nil
}

// attach makes conn current unless the stream was closed meanwhile.
func (s *stream) attach(conn *ws.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = conn.Close()
		return false
	}
	s.conn = conn
	return true
}

func (s *stream) pump(conn *ws.Conn) {
	for conn != nil {
		broken := make(chan struct{})
		go s.readAcks(conn, broken)
		if !s.drain(conn, broken) {
			return
		}
		conn = s.redial()
	}
}

// drain writes queued messages until the link breaks (true) or the stream
// shuts down (false). A message whose write fails is lost.
func (s *stream) drain(conn *ws.Conn, broken <-chan struct{}) bool {
	for {
		select {
		case <-s.done:
			return false
		case <-broken:
			return true
		case data := <-s.outbox:
			if err := write(conn, data); err != nil {
				s.log.Warn("Frame stream write failed", "error", err)
				return true
			}
		}
	}
}

func write(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// readAcks releases waiters as acks arrive and closes broken when the
// connection fails.
func (s *stream) readAcks(conn *ws.Conn, broken chan<- struct{}) {
	defer close(broken)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.Warn("Frame stream read failed", "error", err)
			}
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			s.log.Debug("Ignoring viewer message", "raw", string(message))
			continue
		}
		s.mu.Lock()
		if ch, ok := s.waiters[ack.For]; ok {
			delete(s.waiters, ack.For)
			close(ch)
		}
		s.mu.Unlock()
	}
}

// redial reconnects with exponential backoff and replays the preamble. It
// returns nil when the stream is closed or every attempt failed.
func (s *stream) redial() *ws.Conn {
	s.mu.Lock()
	old := s.conn
	s.conn = nil
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	delay := s.retryDelay
	for attempt := 1; attempt <= maxRedials; attempt++ {
		select {
		case <-s.done:
			return nil
		case <-time.After(delay):
		}

		conn, err := s.dial()
		if err == nil {
			if err = s.replay(conn); err == nil {
				if !s.attach(conn) {
					return nil
				}
				s.log.Info("Frame stream reconnected", "attempt", attempt)
				return conn
			}
			_ = conn.Close()
		}
		s.log.Warn("Frame stream redial failed", "attempt", attempt, "error", err)
		delay = min(delay*2, maxBackoff)
	}

	s.log.Error("Frame stream gave up reconnecting", "attempts", maxRedials)
	return nil
}

func (s *stream) replay(conn *ws.Conn) error {
	s.mu.Lock()
	preamble := [][]byte{s.runMsg, s.sceneMsg}
	s.mu.Unlock()
	for _, msg := range preamble {
		if msg == nil {
			continue
		}
		if err := write(conn, msg); err != nil {
			return fmt.Errorf("replay: %w", err)
		}
	}
	return nil
}

func (s *stream) setRun(msg []byte) {
	s.mu.Lock()
	s.runMsg = msg
	s.mu.Unlock()
}

func (s *stream) setScene(msg []byte) {
	s.mu.Lock()
	s.sceneMsg = msg
	s.mu.Unlock()
}

// send queues data without blocking and reports whether it was queued.
func (s *stream) send(data []byte) bool {
	select {
	case s.outbox <- data:
		return true
	default:
		s.mu.Lock()
		s.dropped++
		n := s.dropped
		s.mu.Unlock()
		s.log.Warn("Frame stream queue full, dropping message", "dropped", n)
		return false
	}
}

// sendAndWait queues data and blocks until the viewer acks ackFor.
func (s *stream) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	ch := make(chan struct{})
	s.mu.Lock()
	s.waiters[ackFor] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.waiters[ackFor] == ch {
			delete(s.waiters, ackFor)
		}
		s.mu.Unlock()
	}()

	if !s.send(data) {
		return fmt.Errorf("%s not queued", ackFor)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		return fmt.Errorf("timeout waiting for ack of %q", ackFor)
	case <-s.done:
		return fmt.Errorf("stream closed while waiting for ack of %q", ackFor)
	}
}

func (s *stream) droppedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// close says goodbye to the viewer and stops the pump.
func (s *stream) close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return conn.Close()
}
