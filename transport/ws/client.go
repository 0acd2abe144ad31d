package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"

	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

var _ contract.EventSink = (*client)(nil)

// client is the transport side of one connection: a bounded outbound
// buffer drained by writePump, plus the EventSink the registry pushes
// into. Consume never blocks; when the buffer is full the client is
// disconnected to shed backpressure and the caller sees ErrOverflow.
type client struct {
	log       *slog.Logger
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(log *slog.Logger, conn *websocket.Conn, bufferSize int) *client {
	return &client{
		log:  log,
		conn: conn,
		send: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
}

// Consume queues one event for delivery. Safe to call concurrently with
// close: a closed client reports ErrDisconnected instead of queuing.
func (c *client) Consume(_ context.Context, e event.OutboundEvent) error {
	select {
	case <-c.done:
		return errors.ErrDisconnected
	default:
	}

	frame, err := encodeEvent(e)
	if err != nil {
		return err
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errors.ErrDisconnected
	default:
		// Buffer full: this recipient cannot keep up. Drop the connection
		// so normal cleanup reclaims its registry and room entries.
		c.log.Warn("Outbound buffer overflow, disconnecting slow client",
			"addr", c.conn.RemoteAddr().String())
		c.close()
		return errors.ErrOverflow
	}
}

// enqueue pushes a raw frame (error surface for malformed requests),
// best-effort.
func (c *client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	case <-c.done:
	default:
	}
}

// close is idempotent and safe from any goroutine. Closing the underlying
// conn unblocks readPump, which drives the lifecycle teardown.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writePump drains the send buffer onto the socket and keeps the
// connection alive with pings. One goroutine per connection; exits when
// the client closes or a write fails.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("Write failed, dropping connection", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// setupRead arms the read deadline and pong handler.
func (c *client) setupRead(readLimit int64) {
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}
