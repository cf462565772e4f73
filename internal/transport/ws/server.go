package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/omochice/stranger-chat/internal/chat"
)

// Path is the HTTP path clients upgrade on.
const Path = "/ws"

const shutdownTimeout = 5 * time.Second

// Options tunes the WebSocket connections accepted by a Server.
type Options struct {
	// BufferSize is the number of outgoing frames queued per client.
	BufferSize int
	// ReadLimit is the largest message accepted from a client, in bytes.
	ReadLimit int64
	// PingInterval is the keepalive period; zero disables pings.
	PingInterval time.Duration
	// WriteTimeout bounds every write; zero disables write deadlines.
	WriteTimeout time.Duration
}

// Server handles WebSocket connections and delegates to Hub.
type Server struct {
	address  string
	opts     Options
	hub      *chat.Hub
	log      *slog.Logger
	upgrader websocket.Upgrader
	server   *http.Server
	ctx      context.Context
	cancel   context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Conn]struct{}
	wg       sync.WaitGroup
}

// New creates a WebSocket server that uses the provided Hub.
func New(address string, hub *chat.Hub, opts Options, log *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		address: address,
		opts:    opts,
		hub:     hub,
		log:     log.With("transport", "websocket"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Clients are anonymous, any origin may pair.
			},
		},
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[*Conn]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleWebSocket)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Listen binds the listening socket so Addr is known before serving.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start WebSocket server: %w", err)
	}
	s.Attach(listener)
	return nil
}

// Attach serves on an existing listener, such as one half of a shared port.
func (s *Server) Attach(listener net.Listener) {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.Info("WebSocket server started", "address", listener.Addr().String(), "path", Path)
}

// Serve accepts connections on the bound listener. It returns nil after Stop.
func (s *Server) Serve() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("websocket server is not listening")
	}

	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server: %w", err)
	}
	return nil
}

// Stop stops the WebSocket server and closes every open connection.
func (s *Server) Stop() {
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.log.Error("Failed to shut down http server", "error", err)
	}

	// Upgraded connections are hijacked and not closed by Shutdown.
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Failed to upgrade connection", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	if s.opts.ReadLimit > 0 {
		wsConn.SetReadLimit(s.opts.ReadLimit)
	}
	if s.opts.PingInterval > 0 {
		pongWait := s.opts.PingInterval + s.opts.WriteTimeout
		_ = wsConn.SetReadDeadline(time.Now().Add(pongWait))
		wsConn.SetPongHandler(func(string) error {
			return wsConn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	conn := NewConn(wsConn, r.RemoteAddr, s.opts.WriteTimeout)
	if !s.track(conn) {
		_ = conn.Close()
		return
	}

	client := chat.NewClient(conn, s.opts.BufferSize)
	go s.handleClient(client)
	go s.writeLoop(client, conn)
}

// track records conn and its two goroutines unless the server is stopping.
func (s *Server) track(conn *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(2)
	return true
}

func (s *Server) untrack(conn *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) handleClient(client *chat.Client) {
	defer s.wg.Done()
	defer close(client.Outgoing)
	if err := s.hub.HandleClient(s.ctx, client); err != nil {
		s.log.Error("Client handling failed", "connection_id", client.ID, "error", err)
	}
}

func (s *Server) writeLoop(client *chat.Client, conn *Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	var ping <-chan time.Time
	if s.opts.PingInterval > 0 {
		ticker := time.NewTicker(s.opts.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case data, ok := <-client.Outgoing:
			if !ok {
				return
			}
			if err := conn.Write(s.ctx, data); err != nil {
				s.log.Error("Failed to write to WebSocket client", "connection_id", client.ID, "error", err)
				return
			}
		case <-ping:
			if err := conn.Ping(); err != nil {
				s.log.Debug("Failed to ping WebSocket client", "connection_id", client.ID, "error", err)
				return
			}
		}
	}
}
