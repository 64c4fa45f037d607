package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/roadrunner-sim/viewer/pkg/streaming"
)

const (
	outboxSize   = 1_024
	ackBuffer    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// First redial delay; doubled per failed attempt up to maxBackoff.
var redialDelay = time.Second

// inbound is any message from the map: an ack or a UI event envelope.
type inbound struct {
	Type    string          `json:"type"`
	For     string          `json:"for,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// mapLink is one logical connection to the map. The serve goroutine is the
// only writer; each socket it holds gets its own reader. A broken socket is
// replaced by redialing, after which the pending session_start is replayed.
type mapLink struct {
	target string
	dialer *ws.Dialer
	outbox chan []byte
	acks   chan string
	quit   chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	sock   *ws.Conn
	replay []byte
	shut   bool

	onEvent func(streaming.Envelope)
	logger  *slog.Logger
}

func newMapLink(logger *slog.Logger, onEvent func(streaming.Envelope)) *mapLink {
	return &mapLink{
		dialer:  &ws.Dialer{HandshakeTimeout: writeWait},
		outbox:  make(chan []byte, outboxSize),
		acks:    make(chan string, ackBuffer),
		quit:    make(chan struct{}),
		onEvent: onEvent,
		logger:  logger,
	}
}

// withSecret adds the shared secret as a query parameter.
func withSecret(rawURL, secret string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}
	if secret != "" {
		q := u.Query()
		q.Set("secret", secret)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// open performs the first dial synchronously so a bad URL or an absent map
// fails Init; later failures are handled by redialing.
func (l *mapLink) open(rawURL, secret string) error {
	target, err := withSecret(rawURL, secret)
	if err != nil {
		return err
	}
	l.target = target

	sock, err := l.dial()
	if err != nil {
		return err
	}
	if !l.attach(sock) {
		return fmt.Errorf("map link already closed")
	}

	l.wg.Add(1)
	go l.serve(sock)
	return nil
}

func (l *mapLink) dial() (*ws.Conn, error) {
	sock, _, err := l.dialer.Dial(l.target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial map: %w", err)
	}
	return sock, nil
}

// attach records sock as current. It refuses and closes sock after close.
func (l *mapLink) attach(sock *ws.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.shut {
		_ = sock.Close()
		return false
	}
	l.sock = sock
	return true
}

func (l *mapLink) serve(sock *ws.Conn) {
	defer l.wg.Done()
	for sock != nil {
		broken := make(chan error, 1)
		go l.read(sock, broken)

		err := l.pump(sock, broken)
		if err == nil || !l.release(sock) {
			return
		}
		l.logger.Warn("Map connection lost", "error", err)
		sock = l.redial()
	}
}

// release closes a broken sock unless close already took it over.
func (l *mapLink) release(sock *ws.Conn) bool {
	l.mu.Lock()
	owned := l.sock == sock && !l.shut
	if owned {
		l.sock = nil
	}
	l.mu.Unlock()
	if owned {
		_ = sock.Close()
	}
	return owned
}

// pump writes queued frames until the socket breaks. It returns nil on close.
func (l *mapLink) pump(sock *ws.Conn, broken <-chan error) error {
	for {
		select {
		case <-l.quit:
			return nil
		case err := <-broken:
			return err
		case frame := <-l.outbox:
			if err := writeFrame(sock, frame); err != nil {
				return err
			}
		}
	}
}

func writeFrame(sock *ws.Conn, frame []byte) error {
	if err := sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return sock.WriteMessage(ws.TextMessage, frame)
}

func (l *mapLink) read(sock *ws.Conn, broken chan<- error) {
	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			broken <- err
			return
		}
		l.route(raw)
	}
}

// route sends acks to request and everything else to onEvent.
func (l *mapLink) route(raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
		l.logger.Debug("Ignoring unrecognized map message", "raw", string(raw))
		return
	}

	if msg.Type == streaming.TypeAck {
		select {
		case l.acks <- msg.For:
		default:
			l.logger.Debug("Ack buffer full, dropping", "for", msg.For)
		}
		return
	}
	if l.onEvent != nil {
		l.onEvent(streaming.Envelope{Type: msg.Type, Payload: msg.Payload})
	}
}

// redial returns the replacement socket, or nil when the link was closed or
// every attempt failed.
func (l *mapLink) redial() *ws.Conn {
	wait := redialDelay
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-l.quit:
			return nil
		case <-time.After(wait):
		}

		sock, err := l.dial()
		if err == nil {
			if err = l.replayStart(sock); err != nil {
				_ = sock.Close()
			}
		}
		if err != nil {
			l.logger.Warn("Map redial failed", "attempt", attempt, "error", err)
			wait = min(wait*2, maxBackoff)
			continue
		}

		if !l.attach(sock) {
			return nil
		}
		l.logger.Info("Map reconnected", "attempt", attempt)
		return sock
	}

	l.logger.Error("Giving up on map connection", "attempts", maxReconnect)
	return nil
}

func (l *mapLink) replayStart(sock *ws.Conn) error {
	l.mu.Lock()
	frame := l.replay
	l.mu.Unlock()
	if frame == nil {
		return nil
	}
	return writeFrame(sock, frame)
}

// setReplay sets the frame written first on every new socket. nil clears it.
func (l *mapLink) setReplay(frame []byte) {
	l.mu.Lock()
	l.replay = frame
	l.mu.Unlock()
}

// send queues frame without blocking. A full outbox drops it.
func (l *mapLink) send(frame []byte) {
	select {
	case l.outbox <- frame:
	default:
		l.logger.Warn("Map outbox full, dropping message")
	}
}

// request queues frame and waits for an ack naming ackFor.
func (l *mapLink) request(frame []byte, ackFor string, timeout time.Duration) error {
	l.send(frame)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case got := <-l.acks:
			if got == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-l.quit:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close sends a normal close frame and waits for serve to exit. Safe to call
// more than once.
func (l *mapLink) close() error {
	l.mu.Lock()
	if l.shut {
		l.mu.Unlock()
		return nil
	}
	l.shut = true
	sock := l.sock
	l.sock = nil
	l.mu.Unlock()

	close(l.quit)

	var err error
	if sock != nil {
		_ = sock.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = sock.Close()
	}
	l.wg.Wait()
	return err
}
