package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"raceway/internal/config"
)

// Connection wraps one player's WebSocket. Writes are serialized through a
// single writer goroutine fed by a buffered channel, so the engine can send
// from handler goroutines and timer callbacks without racing on the socket.
type Connection struct {
	conn     *websocket.Conn
	playerID string

	writeCh      chan []byte
	writeTimeout time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps an upgraded socket and starts its writer goroutine.
func NewConnection(conn *websocket.Conn, playerID string, cfg config.WebSocketConfig) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		playerID:     playerID,
		writeCh:      make(chan []byte, cfg.BufferSize),
		writeTimeout: cfg.WriteTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()

	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				c.cancel()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				// A failed write means the peer is gone; flip liveness so
				// broadcast paths stop targeting this connection.
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues a JSON message for the writer goroutine. Fire-and-forget:
// a full buffer or closed connection returns an error the caller may log and
// drop, matching the protocol's lack of acknowledgments.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrWriteTimeout
	}
}

// IsAlive reports whether the socket is still usable, the readyState check
// every broadcast makes before sending.
func (c *Connection) IsAlive() bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
		return true
	}
}

// CloseWithCode sends a close frame with the given code and reason before
// tearing the connection down. Used to evict not-ready members.
func (c *Connection) CloseWithCode(code int, reason string) error {
	deadline := time.Now().Add(c.writeTimeout)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	return c.Close()
}

// Close shuts down the writer goroutine and the underlying socket. Safe to
// call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// PlayerID returns the opaque id supplied at connection time.
func (c *Connection) PlayerID() string {
	return c.playerID
}
