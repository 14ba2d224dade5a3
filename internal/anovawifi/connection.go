// Package anovawifi implements the appliance's Wi-Fi side: the framed TCP
// connection, the per-appliance device state machine, the accept loop,
// and the manager tying them together.
package anovawifi

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anova4all/gateway/internal/anovawifi/event"
	"github.com/anova4all/gateway/internal/anovawifi/frame"
	"github.com/anova4all/gateway/internal/gwerrors"
	"go.uber.org/zap"
)

// CommandTimeout is the overall budget for a single send_command call,
// from write to response (or timeout).
const CommandTimeout = 10 * time.Second

// EventCallback is invoked, from the connection's read goroutine, for
// every parsed unsolicited event. It must not call SendCommand on the
// same Connection.
type EventCallback func(event.Event)

// netConn is the subset of net.Conn a Connection needs; narrowed for
// testability with in-memory pipes.
type netConn interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error
}

// Connection owns one TCP socket to an appliance and multiplexes
// command/response traffic with unsolicited events, per the single
// read-goroutine / single-slot response channel discipline the protocol
// requires.
type Connection struct {
	conn   netConn
	logger *zap.Logger

	writeMu sync.Mutex // serializes SendCommand (the "command mutex")
	respCh  chan string
	inFlight atomic.Bool

	eventCbMu sync.RWMutex
	eventCb   EventCallback

	stream frame.Stream

	listenOnce sync.Once
	closeOnce  sync.Once
	closed     chan struct{}
	connected  atomic.Bool
}

// NewConnection wraps an already-accepted socket.
func NewConnection(conn netConn, logger *zap.Logger) *Connection {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Connection{
		conn:   conn,
		logger: logger,
		respCh: make(chan string, 1),
		closed: make(chan struct{}),
	}
	c.connected.Store(true)
	return c
}

// SetEventCallback installs the (at most one) event callback. Safe to
// call concurrently with the read loop.
func (c *Connection) SetEventCallback(cb EventCallback) {
	c.eventCbMu.Lock()
	defer c.eventCbMu.Unlock()
	c.eventCb = cb
}

// StartListening starts the background read loop. Idempotent: later
// calls are no-ops.
func (c *Connection) StartListening() {
	c.listenOnce.Do(func() {
		go c.readLoop()
	})
}

// Connected reports whether the socket is still believed open.
func (c *Connection) Connected() bool {
	return c.connected.Load()
}

// SendCommand sends one command and returns the next non-event,
// non-"invalid command" response line. Concurrent callers are serialized
// by the command mutex: the second call begins no earlier than the
// first's response (or timeout) is observed.
func (c *Connection) SendCommand(ctx context.Context, text string) (string, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if !c.Connected() {
		return "", gwerrors.ErrConnection("not connected", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
	defer cancel()

	// drain any stale value so a late, unrelated message from before
	// this call can't be mistaken for this call's response.
	select {
	case <-c.respCh:
	default:
	}

	encoded := frame.Encode(text)
	c.inFlight.Store(true)
	defer c.inFlight.Store(false)

	if _, err := c.conn.Write(encoded); err != nil {
		c.handleDisconnect()
		return "", gwerrors.ErrConnection("write failed", err)
	}

	select {
	case resp := <-c.respCh:
		return resp, nil
	case <-ctx.Done():
		return "", gwerrors.ErrCommandTimeout("command timed out: " + text)
	case <-c.closed:
		return "", gwerrors.ErrConnection("not connected", nil)
	}
}

// Close cancels the read loop and closes the socket. Safe to call more
// than once and from any goroutine.
func (c *Connection) Close() error {
	c.handleDisconnect()
	return nil
}

func (c *Connection) handleDisconnect() {
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		close(c.closed)
		_ = c.conn.Close()
	})
}

func (c *Connection) readLoop() {
	defer c.handleDisconnect()

	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if err != nil || n == 0 {
			return
		}

		messages, decodeErr := c.stream.Feed(buf[:n])
		for _, m := range messages {
			c.dispatch(m)
		}
		if decodeErr != nil {
			c.logger.Warn("frame decode error, resynchronizing", zap.Error(decodeErr))
			c.stream = frame.Stream{}
		}
	}
}

func (c *Connection) dispatch(message string) {
	if strings.Contains(strings.ToLower(message), "invalid command") {
		c.logger.Debug("dropping invalid command response", zap.String("message", message))
		return
	}

	if event.IsEvent(message) {
		evt, err := event.Parse(message)
		if err != nil {
			c.logger.Warn("dropping unparseable event", zap.String("message", message), zap.Error(err))
			return
		}
		c.invokeEventCallback(evt)
		return
	}

	if c.inFlight.Load() {
		select {
		case c.respCh <- message:
		default:
			c.logger.Warn("dropping message, response slot already full", zap.String("message", message))
		}
		return
	}

	c.logger.Warn("unexpected unsolicited non-event message", zap.String("message", message))
}

func (c *Connection) invokeEventCallback(evt event.Event) {
	c.eventCbMu.RLock()
	cb := c.eventCb
	c.eventCbMu.RUnlock()
	if cb != nil {
		cb(evt)
	}
}
