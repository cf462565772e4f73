package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/omochice/stranger-chat/pkg/protocol"
	"github.com/samber/lo"
)

// Disconnect reasons reported to the partner of a connection that went away.
const (
	ReasonTransportClose = "transport close"
	ReasonServerShutdown = "server shutting down"
)

// Client represents a connected client with transport-agnostic connection.
type Client struct {
	ID       string
	Conn     Conn
	Outgoing chan []byte
}

// NewClient wraps conn with a fresh id and an outgoing queue of bufferSize frames.
func NewClient(conn Conn, bufferSize int) *Client {
	return &Client{
		ID:       uuid.NewString(),
		Conn:     conn,
		Outgoing: make(chan []byte, bufferSize),
	}
}

// Hub manages all connected clients and delivers matchmaking events to them.
// Every transport server shares a single Hub instance.
type Hub struct {
	clients    map[string]*Client
	mu         sync.RWMutex
	matchmaker *Matchmaker
	log        *slog.Logger
}

// NewHub creates a new Hub with its own Matchmaker.
func NewHub(log *slog.Logger) *Hub {
	h := &Hub{
		clients: make(map[string]*Client),
		log:     log,
	}
	h.matchmaker = NewMatchmaker(h, log)
	return h
}

func (h *Hub) Matchmaker() *Matchmaker {
	return h.matchmaker
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; ok {
		return ErrDuplicateID
	}
	h.clients[client.ID] = client
	return nil
}

// Unregister removes a client from the hub. Once it returns, nothing is
// queued on the client's Outgoing channel any more and the transport may close it.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client.ID)
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SendTo implements Broadcaster.
func (h *Hub) SendTo(id string, event protocol.Event) {
	data, ok := h.encode(event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[id]
	if !ok {
		h.log.Debug("Dropping event for unknown client", "connection_id", id, "event", event.Name)
		return
	}
	h.enqueue(client, data, event.Name)
}

// BroadcastAll implements Broadcaster.
func (h *Hub) BroadcastAll(event protocol.Event) {
	data, ok := h.encode(event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	lo.ForEach(lo.Values(h.clients), func(client *Client, _ int) {
		h.enqueue(client, data, event.Name)
	})
}

func (h *Hub) encode(event protocol.Event) ([]byte, bool) {
	data, err := event.Encode()
	if err != nil {
		h.log.Error("Failed to encode event", "event", event.Name, "error", err)
		return nil, false
	}
	return data, true
}

// enqueue never blocks: a client that does not drain its queue loses events.
func (h *Hub) enqueue(client *Client, data []byte, name protocol.EventName) {
	select {
	case client.Outgoing <- data:
	default:
		h.log.Warn("Client channel full, skipping", "connection_id", client.ID, "event", name)
	}
}

// HandleClient runs the lifecycle of one client: it joins matchmaking, every
// frame it sends is dispatched in order, and it is cleaned up once reading fails.
// The caller owns client.Outgoing and may close it after HandleClient returns.
func (h *Hub) HandleClient(ctx context.Context, client *Client) error {
	log := h.log.With("connection_id", client.ID, "remote_addr", client.Conn.RemoteAddr())

	if err := h.Register(client); err != nil {
		return err
	}
	defer h.Unregister(client)

	if err := h.matchmaker.Connect(client.ID); err != nil {
		return err
	}

	var reason string
	for {
		data, err := client.Conn.Read(ctx)
		if err != nil {
			reason = disconnectReason(ctx, err)
			if reason != ReasonTransportClose && reason != ReasonServerShutdown {
				log.Error("Failed to read from client", "error", err)
			}
			break
		}

		var event protocol.Event
		if err := event.Decode(data); err != nil {
			log.Warn("Failed to decode event", "error", err)
			continue
		}
		if err := h.matchmaker.Dispatch(client.ID, event); err != nil {
			log.Warn("Failed to handle event", "event", event.Name, "error", err)
		}
	}

	return h.matchmaker.Disconnect(client.ID, reason)
}

func disconnectReason(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return ReasonServerShutdown
	case errors.Is(err, io.EOF):
		return ReasonTransportClose
	default:
		return err.Error()
	}
}
