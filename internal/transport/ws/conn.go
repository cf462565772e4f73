// Package ws provides WebSocket transport implementation for the chat server.
package ws

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// ErrPingTimeout is returned by Read when the peer stopped answering pings.
var ErrPingTimeout = errors.New("ping timeout")

// Conn adapts gorilla/websocket to chat.Conn interface.
// Read must be called from one goroutine and Write from one other goroutine.
type Conn struct {
	conn         *websocket.Conn
	remoteAddr   string
	writeTimeout time.Duration
}

// NewConn wraps a websocket.Conn. A zero writeTimeout disables write deadlines.
func NewConn(conn *websocket.Conn, remoteAddr string, writeTimeout time.Duration) *Conn {
	return &Conn{conn: conn, remoteAddr: remoteAddr, writeTimeout: writeTimeout}
}

// Read implements chat.Conn.
// Reads the next binary message; text messages are skipped.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, readError(err)
		}
		if messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func readError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return io.EOF
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrPingTimeout
	}
	return err
}

// Write implements chat.Conn.
// Writes a binary message to the WebSocket connection.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	if err := c.conn.SetWriteDeadline(c.deadline()); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Ping sends a ping control frame. It is safe to call concurrently with Write.
func (c *Conn) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, c.deadline())
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		c.deadline(),
	)
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

func (c *Conn) deadline() time.Time {
	if c.writeTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.writeTimeout)
}
