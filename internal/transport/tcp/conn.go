// Package tcp provides TCP transport implementation for the chat server.
package tcp

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/omochice/stranger-chat/pkg/protocol"
)

// Conn adapts net.Conn to chat.Conn interface using length-prefixed frames.
type Conn struct {
	conn         net.Conn
	reader       *bufio.Reader
	writeTimeout time.Duration
}

// NewConn wraps a net.Conn. A zero writeTimeout disables write deadlines.
func NewConn(conn net.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{conn: conn, reader: bufio.NewReader(conn), writeTimeout: writeTimeout}
}

// Read implements chat.Conn.
// Reads one frame from the TCP connection.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	return protocol.ReadFrame(c.reader)
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return protocol.WriteFrame(c.conn, data)
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
