// Package tcp provides a TCP client for the chat server.
package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/omochice/stranger-chat/internal/client"
	"github.com/omochice/stranger-chat/pkg/protocol"
)

const eventBufferSize = 16

// Client represents a TCP chat client
type Client struct {
	address string
	log     *slog.Logger
	conn    net.Conn
	events  chan protocol.Event
	mu      sync.RWMutex
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

var _ client.Client = (*Client)(nil)

// New creates a new Client instance
func New(address string, log *slog.Logger) *Client {
	return &Client{
		address: address,
		log:     log,
		events:  make(chan protocol.Event, eventBufferSize),
		done:    make(chan struct{}),
	}
}

// Connect establishes a connection to the server
func (c *Client) Connect(ctx context.Context) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.wg.Add(1)
	go c.receiveEvents(conn)

	return nil
}

// Disconnect closes the connection to the server
func (c *Client) Disconnect() {
	c.once.Do(func() { close(c.done) })

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// RequestPartner asks the server for a new partner.
func (c *Client) RequestPartner() error {
	return c.send(protocol.RequestNewPartner())
}

// EndSession ends the current conversation without requeueing.
func (c *Client) EndSession() error {
	return c.send(protocol.EndSession())
}

// SendChat sends a chat message to the current partner.
func (c *Client) SendChat(message string) error {
	return c.send(protocol.ChatMessage(message))
}

// SetTyping reports the local typing state.
func (c *Client) SetTyping(typing bool) error {
	return c.send(protocol.TypingState(typing))
}

// Events returns the channel for receiving server events
func (c *Client) Events() <-chan protocol.Event {
	return c.events
}

func (c *Client) send(event protocol.Event) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return client.ErrNotConnected
	}

	data, err := event.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := protocol.WriteFrame(conn, data); err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	return nil
}

func (c *Client) receiveEvents(conn net.Conn) {
	defer c.wg.Done()
	defer close(c.events)

	reader := bufio.NewReader(conn)
	for {
		data, err := protocol.ReadFrame(reader)
		if err != nil {
			select {
			case <-c.done:
			default:
				if errors.Is(err, io.EOF) {
					c.log.Info("Server closed the connection")
				} else {
					c.log.Error("Error reading from server", "error", err)
				}
				c.markDisconnected(conn)
			}
			return
		}

		var event protocol.Event
		if err := event.Decode(data); err != nil {
			c.log.Warn("Failed to decode event", "error", err)
			continue
		}

		select {
		case c.events <- event:
		case <-c.done:
			return
		}
	}
}

func (c *Client) markDisconnected(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		_ = c.conn.Close()
		c.conn = nil
	}
}
